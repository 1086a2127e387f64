package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = JWTConfig{
	SigningKey: []byte("test-signing-key-1234567890123456"),
	Issuer:     "craftbot",
	ExpiresIn:  time.Hour,
}

var ada = Identity{UserID: 7, TelegramID: 5001, Username: "ada", ChatInstance: "-8841"}

func TestValidateToken_Success(t *testing.T) {
	token, expiresAt, err := GenerateToken(testJWT, ada)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := testJWT.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, ada, claims.Identity())
	assert.Equal(t, "7", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken_Rejects(t *testing.T) {
	token, _, err := GenerateToken(testJWT, ada)
	require.NoError(t, err)

	t.Run("issuer", func(t *testing.T) {
		other := testJWT
		other.Issuer = "someone-else"
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("signature", func(t *testing.T) {
		other := testJWT
		other.SigningKey = []byte("another-signing-key-1234567890123")
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		expired := testJWT
		expired.ExpiresIn = -time.Minute
		stale, _, err := GenerateToken(expired, ada)
		require.NoError(t, err)
		_, err = testJWT.ValidateToken(stale)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing user", func(t *testing.T) {
		anon, _, err := GenerateToken(testJWT, Identity{TelegramID: 5001})
		require.NoError(t, err)
		_, err = testJWT.ValidateToken(anon)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
	})
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(testJWT))
	var seen Identity
	router.GET("/me", func(c *gin.Context) {
		seen, _ = GetIdentity(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	token, _, err := GenerateToken(testJWT, ada)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, ada, seen)
}
