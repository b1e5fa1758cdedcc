package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

// AuditLogger records entries without ever failing the caller. A lost audit
// row is logged, the business change it describes has already been committed.
type AuditLogger struct {
	service *Service
	logger  *logger.Logger
}

func NewAuditLogger(service *Service, log *logger.Logger) *AuditLogger {
	return &AuditLogger{
		service: service,
		logger:  log,
	}
}

func (l *AuditLogger) Log(ctx context.Context, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if err := l.service.Log(ctx, action, entityType, entityID, opts); err != nil {
		l.logger.Error(err, "failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String())
	}
}
