package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"schoolchat/services"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubAuth map[string]int64

func (s stubAuth) Authenticate(_ context.Context, token string) (int64, error) {
	if token == "broken" {
		return 0, fmt.Errorf("%w: db down", services.ErrStorageUnavailable)
	}
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, services.ErrAuthenticationFailed
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(stubAuth{"good": 42}))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("user_id")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer bad", "", http.StatusUnauthorized},
		{"storage failure", "Bearer broken", "", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "invalid_event", errorType(fmt.Errorf("%w: x", services.ErrInvalidEvent)))
	assert.Equal(t, "storage_unavailable", errorType(fmt.Errorf("%w: x", services.ErrStorageUnavailable)))
	assert.Equal(t, "unknown", errorType(errors.New("other")))
}
