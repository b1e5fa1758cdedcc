package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "vetclinic", Expiry: time.Hour})
	id := uuid.New()

	token, err := svc.GenerateAccessToken(id, "front@clinic.test", "secretary")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.PartyID)
	assert.Equal(t, "secretary", claims.Role)
	assert.Equal(t, "front@clinic.test", claims.Email)
}

func TestValidateRejects(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "vetclinic", Expiry: time.Hour})
	token, err := svc.GenerateAccessToken(uuid.New(), "a@b.test", "client")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(JWTConfig{Secret: "different", Issuer: "vetclinic"})
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "someone-else"})
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "vetclinic"})
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
