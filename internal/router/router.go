package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/internal/handler/appointment"
	"github.com/jwalitptl/vetclinic-api/internal/handler/audit"
	"github.com/jwalitptl/vetclinic-api/internal/handler/directory"
	"github.com/jwalitptl/vetclinic-api/internal/handler/health"
	"github.com/jwalitptl/vetclinic-api/internal/middleware"
	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
)

const APIVersion = "1.0"

type RouterConfig struct {
	Timeout        time.Duration
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
	// RateLimitEnabled switches the per-client token bucket on
	RateLimitEnabled bool
	MaxBodyBytes     int64
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	appointmentH *appointment.Handler
	directoryH   *directory.Handler
	auditH       *audit.Handler
	healthH      *health.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	appointmentH *appointment.Handler,
	directoryH *directory.Handler,
	auditH *audit.Handler,
	healthH *health.Handler,
	m *metrics.Metrics,
	log *logger.Logger,
	config RouterConfig,
) *Router {
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.CORS(config.AllowedOrigins),
		middleware.SecurityHeaders(),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	r := &Router{
		engine:       engine,
		auth:         auth,
		appointmentH: appointmentH,
		directoryH:   directoryH,
		auditH:       auditH,
		healthH:      healthH,
	}
	r.setup(config, log)
	return r
}

func (r *Router) setup(config RouterConfig, log *logger.Logger) {
	r.healthH.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(
		func(c *gin.Context) {
			c.Header("X-API-Version", APIVersion)
			c.Next()
		},
		middleware.BodyLimit(config.MaxBodyBytes),
		middleware.Timeout(config.Timeout),
		middleware.ErrorHandler(log),
		r.auth.Authenticate(),
	)

	write := api.Group("")
	write.Use(r.auth.RequireRole(model.PartyRoleSecretary, model.PartyRoleVeterinarian))

	r.appointmentH.RegisterRoutes(api, write)
	r.directoryH.RegisterRoutes(api, write)

	admin := api.Group("")
	admin.Use(r.auth.RequireRole(model.PartyRoleSecretary))
	r.auditH.RegisterRoutes(admin)
}

// Engine returns the configured gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
