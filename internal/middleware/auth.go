package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/internal/model"
	"github.com/jwalitptl/vetclinic-api/pkg/auth"
	"github.com/jwalitptl/vetclinic-api/pkg/errors"
	"github.com/jwalitptl/vetclinic-api/pkg/httputil"
)

type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and puts the acting party on the request context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized(err))
			return
		}

		actor := model.Actor{
			ID:    claims.PartyID,
			Role:  model.PartyRole(claims.Role),
			Email: claims.Email,
		}
		c.Request = c.Request.WithContext(model.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequireRole lets the request through only when the actor has one of roles
func (m *AuthMiddleware) RequireRole(roles ...model.PartyRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := model.ActorFromContext(c.Request.Context())
		if !ok {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, errors.Forbidden("role "+string(actor.Role)+" may not perform this action"))
	}
}
