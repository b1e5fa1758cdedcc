package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vetclinic-api/internal/middleware"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

type stubAudit struct {
	filter model.AuditFilter
}

func (s *stubAudit) List(_ context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	s.filter = filter
	return []*model.AuditLog{}, nil
}

func get(svc Service, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(logger.Nop()))
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestEntityLogs(t *testing.T) {
	svc := &stubAudit{}
	id := uuid.New()

	w := get(svc, "/api/v1/audit/logs/entity/appointment/"+id.String()+"?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.AuditEntityAppointment, svc.filter.EntityType)
	require.NotNil(t, svc.filter.EntityID)
	assert.Equal(t, id, *svc.filter.EntityID)
	assert.Equal(t, 5, svc.filter.Limit)
}

func TestEntityLogsRejectsUnknownType(t *testing.T) {
	w := get(&stubAudit{}, "/api/v1/audit/logs/entity/invoice/"+uuid.NewString())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLogsBadEntityID(t *testing.T) {
	w := get(&stubAudit{}, "/api/v1/audit/logs?entity_id=42")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
