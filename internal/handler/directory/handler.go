package directory

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/handler"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
)

type Service interface {
	CreateParty(ctx context.Context, req model.CreatePartyRequest) (*model.Party, error)
	GetParty(ctx context.Context, id uuid.UUID) (*model.Party, error)
	ListParties(ctx context.Context, filter model.PartyFilter) ([]*model.Party, error)
	CreatePatient(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	ListPatients(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error)
}

// Handler serves parties and patients. Request validation happens in the service.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(read, write *gin.RouterGroup) {
	read.GET("/parties", h.ListParties)
	read.GET("/parties/:id", h.GetParty)
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)

	write.POST("/parties", h.CreateParty)
	write.POST("/patients", h.CreatePatient)
}

func (h *Handler) CreateParty(c *gin.Context) {
	var req model.CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(handler.MalformedBody(err))
		return
	}

	party, err := h.service.CreateParty(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, party)
}

func (h *Handler) GetParty(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	party, err := h.service.GetParty(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, party)
}

func (h *Handler) ListParties(c *gin.Context) {
	page, err := handler.QueryPagination(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	filter := model.PartyFilter{Role: model.PartyRole(c.Query("role")), Pagination: page}

	parties, err := h.service.ListParties(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithList(c, parties, page.Limit, page.Offset, len(parties))
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(handler.MalformedBody(err))
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, patient)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, patient)
}

func (h *Handler) ListPatients(c *gin.Context) {
	ownerID, err := handler.QueryID(c, "owner_id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	page, err := handler.QueryPagination(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	patients, err := h.service.ListPatients(c.Request.Context(), model.PatientFilter{OwnerID: ownerID, Pagination: page})
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithList(c, patients, page.Limit, page.Offset, len(patients))
}
