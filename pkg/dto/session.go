package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	URL        string          `json:"url" binding:"required"`
	SourceType string          `json:"source_type" binding:"required,oneof=rtsp http device"`
	Mode       string          `json:"mode" binding:"required,oneof=single multiple classroom"`
	FPS        int             `json:"fps"`
	GroupID    *uuid.UUID      `json:"group_id,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type SessionResponse struct {
	ID           uuid.UUID       `json:"id"`
	URL          string          `json:"url"`
	SourceType   string          `json:"source_type"`
	Mode         string          `json:"mode"`
	FPS          int             `json:"fps"`
	Status       string          `json:"status"`
	GroupID      *uuid.UUID      `json:"group_id,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}
