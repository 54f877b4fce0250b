package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

type SettingsHandler struct {
	db *storage.PostgresStore
}

func NewSettingsHandler(db *storage.PostgresStore) *SettingsHandler {
	return &SettingsHandler{db: db}
}

func (h *SettingsHandler) GetCutoff(c *gin.Context) {
	cutoff, err := h.db.GetCutoff(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.CutoffResponse{Hour: cutoff.Hour, Minute: cutoff.Minute})
}

// SetCutoff updates the lateness boundary. Takes effect on the next
// attendance decision; already-recorded events are not rewritten.
func (h *SettingsHandler) SetCutoff(c *gin.Context) {
	var req dto.CutoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cutoff := attendance.Cutoff{Hour: req.Hour, Minute: req.Minute}
	if err := h.db.SetCutoff(c.Request.Context(), cutoff); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.CutoffResponse{Hour: cutoff.Hour, Minute: cutoff.Minute})
}
