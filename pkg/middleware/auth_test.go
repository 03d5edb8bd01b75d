package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func newRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := jwt.NewManager("secret", "test", time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(mgr).RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+":"+GetUsername(c))
	})
	return r, mgr
}

func TestRequireAuth(t *testing.T) {
	r, mgr := newRouter(t)
	token, _, err := mgr.GenerateAccessToken("u-7", "bob", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token, http.StatusOK, "u-7:bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}
