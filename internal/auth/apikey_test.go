package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func callWithKey(t *testing.T, configured, presented string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(APIKeyMiddleware(configured))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if presented != "" {
		req.Header.Set(apiKeyHeader, presented)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		want       int
	}{
		{"empty key disables the check", "", "", http.StatusOK},
		{"correct key admitted", "classroom-7", "classroom-7", http.StatusOK},
		{"missing key unauthenticated", "classroom-7", "", http.StatusUnauthorized},
		{"wrong key rejected", "classroom-7", "classroom-8", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := callWithKey(t, tc.configured, tc.presented); got != tc.want {
				t.Errorf("status = %d; want %d", got, tc.want)
			}
		})
	}
}
