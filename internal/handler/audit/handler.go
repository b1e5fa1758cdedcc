package audit

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/internal/handler"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
)

type Service interface {
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/logs", h.ListLogs)
	r.GET("/audit/logs/entity/:type/:id", h.GetEntityLogs)
}

func (h *Handler) ListLogs(c *gin.Context) {
	entityID, err := handler.QueryID(c, "entity_id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.list(c, model.AuditFilter{EntityType: c.Query("entity_type"), EntityID: entityID})
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityID, err := handler.PathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	entityType := c.Param("type")
	switch entityType {
	case model.AuditEntityAppointment, model.AuditEntityParty, model.AuditEntityPatient:
	default:
		_ = c.Error(errors.NewBadRequest("unknown entity type "+entityType, nil))
		return
	}
	h.list(c, model.AuditFilter{EntityType: entityType, EntityID: &entityID})
}

func (h *Handler) list(c *gin.Context, filter model.AuditFilter) {
	page, err := handler.QueryPagination(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	filter.Pagination = page

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithList(c, logs, page.Limit, page.Offset, len(logs))
}
