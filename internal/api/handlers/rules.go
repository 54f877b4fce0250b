package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

// RuleHandler persists alert rules. Workers pick up changes on their next
// periodic reload; rules are data, not code.
type RuleHandler struct {
	db *storage.PostgresStore
}

func NewRuleHandler(db *storage.PostgresStore) *RuleHandler {
	return &RuleHandler{db: db}
}

func (h *RuleHandler) Create(c *gin.Context) {
	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := &models.AlertRule{
		Name:       req.Name,
		Enabled:    req.Enabled,
		Priority:   models.AlertPriority(req.Priority),
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}

	if err := h.db.CreateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ruleToResponse(rule))
}

func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.db.ListRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RuleResponse, 0, len(rules))
	for _, r := range rules {
		resp = append(resp, ruleToResponse(&r))
	}

	c.JSON(http.StatusOK, gin.H{"rules": resp, "total": len(resp)})
}

func (h *RuleHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := &models.AlertRule{
		ID:         id,
		Name:       req.Name,
		Enabled:    req.Enabled,
		Priority:   models.AlertPriority(req.Priority),
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}

	if err := h.db.UpdateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ruleToResponse(rule))
}

func (h *RuleHandler) Toggle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var req dto.ToggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.SetRuleEnabled(c.Request.Context(), id, req.Enabled); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated", "enabled": req.Enabled})
}

func (h *RuleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	if err := h.db.DeleteRule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func ruleToResponse(r *models.AlertRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:         r.ID,
		Name:       r.Name,
		Enabled:    r.Enabled,
		Priority:   string(r.Priority),
		Conditions: r.Conditions,
		Actions:    r.Actions,
		CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
