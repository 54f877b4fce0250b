package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSetCutoffRejectsOutOfRange(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Validation fails before any store access, so no store is needed.
	h := NewSettingsHandler(nil)
	r := gin.New()
	r.PUT("/settings/cutoff", h.SetCutoff)

	tests := []struct {
		name string
		body string
	}{
		{"hour past 23", `{"hour": 25, "minute": 0}`},
		{"negative minute", `{"hour": 9, "minute": -5}`},
		{"minute past 59", `{"hour": 9, "minute": 60}`},
		{"not json", `cutoff=9:15`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/settings/cutoff", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
