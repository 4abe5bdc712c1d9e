package auth

import (
	"testing"
	"time"

	"github.com/debtsettle/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{Secret: testSecret, Issuer: "debtsettle"})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.IssueToken("user-42", "operator@bank", []string{"negotiator"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "operator@bank", claims.Actor())
	assert.True(t, claims.HasRole("negotiator"))
	assert.False(t, claims.HasRole("admin"))
	assert.NotEmpty(t, claims.ID)
}

func TestClaims_ActorFallsBackToSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "svc-batch"}}
	assert.Equal(t, "svc-batch", c.Actor())
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	svc := newTestJWTService()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "debtsettle",
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	future := valid()
	future.NotBefore = jwt.NewNumericDate(now.Add(time.Hour))

	foreign := valid()
	foreign.Issuer = "someone-else"

	anonymous := valid()
	anonymous.Subject = ""

	tests := []struct {
		name  string
		token string
		err   error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", sign(ptr(valid()), jwt.SigningMethodHS256, []byte("another-secret")), ErrInvalidToken},
		{"wrong algorithm", sign(ptr(valid()), jwt.SigningMethodHS512, []byte(testSecret)), ErrInvalidToken},
		{"expired", sign(&expired, jwt.SigningMethodHS256, []byte(testSecret)), ErrExpiredToken},
		{"not yet valid", sign(&future, jwt.SigningMethodHS256, []byte(testSecret)), ErrTokenNotYetValid},
		{"foreign issuer", sign(&foreign, jwt.SigningMethodHS256, []byte(testSecret)), ErrInvalidToken},
		{"missing subject", sign(&anonymous, jwt.SigningMethodHS256, []byte(testSecret)), ErrMissingSubject},
	}

	svc.now = func() time.Time { return now }
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func ptr(c Claims) *Claims { return &c }
