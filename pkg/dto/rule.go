package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
)

type CreateRuleRequest struct {
	Name       string                  `json:"name" binding:"required"`
	Enabled    bool                    `json:"enabled"`
	Priority   string                  `json:"priority" binding:"required,oneof=critical high medium low"`
	Conditions []models.AlertCondition `json:"conditions" binding:"required,min=1"`
	Actions    []models.AlertAction    `json:"actions" binding:"required,min=1"`
}

type RuleResponse struct {
	ID         uuid.UUID               `json:"id"`
	Name       string                  `json:"name"`
	Enabled    bool                    `json:"enabled"`
	Priority   string                  `json:"priority"`
	Conditions []models.AlertCondition `json:"conditions"`
	Actions    []models.AlertAction    `json:"actions"`
	CreatedAt  string                  `json:"created_at"`
	UpdatedAt  string                  `json:"updated_at"`
}

type ToggleRuleRequest struct {
	Enabled bool `json:"enabled"`
}

type CutoffRequest struct {
	Hour   int `json:"hour" binding:"min=0,max=23"`
	Minute int `json:"minute" binding:"min=0,max=59"`
}

type CutoffResponse struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}
