package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/internal/handler"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
	"github.com/jwalitptl/vetclinic-api/pkg/validator"
)

type Service interface {
	Schedule(ctx context.Context, req model.ScheduleAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req model.RescheduleAppointmentRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, req model.CancelAppointmentRequest) (*model.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
}

type Handler struct {
	service   Service
	validator validator.Validator
}

func NewHandler(service Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

// RegisterRoutes mounts reads on read and state changes on write
func (h *Handler) RegisterRoutes(read, write *gin.RouterGroup) {
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/:id", h.GetAppointment)

	write.POST("/appointments", h.ScheduleAppointment)
	write.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	write.POST("/appointments/:id/cancel", h.CancelAppointment)
	write.POST("/appointments/:id/complete", h.CompleteAppointment)
}

func (h *Handler) ScheduleAppointment(c *gin.Context) {
	var req model.ScheduleAppointmentRequest
	if err := handler.BindJSON(c, h.validator, &req); err != nil {
		_ = c.Error(err)
		return
	}

	apt, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var (
		filter model.AppointmentFilter
		err    error
	)
	if filter.VeterinarianID, err = handler.QueryID(c, "veterinarian_id"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.PatientID, err = handler.QueryID(c, "patient_id"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.From, err = handler.QueryTime(c, "from"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.To, err = handler.QueryTime(c, "to"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.Pagination, err = handler.QueryPagination(c); err != nil {
		_ = c.Error(err)
		return
	}
	filter.Status = model.AppointmentStatus(c.Query("status"))

	apts, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithList(c, apts, filter.Limit, filter.Offset, len(apts))
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := handler.BindJSON(c, h.validator, &req); err != nil {
		_ = c.Error(err)
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	// the body is optional, a bare POST cancels without a reason
	var req model.CancelAppointmentRequest
	if c.Request.ContentLength != 0 {
		if err := handler.BindJSON(c, h.validator, &req); err != nil {
			_ = c.Error(err)
			return
		}
	}

	apt, err := h.service.Cancel(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}
