package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type GroupResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
}

type CreateStudentRequest struct {
	GroupID  uuid.UUID       `json:"group_id" binding:"required"`
	Name     string          `json:"name" binding:"required"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type StudentResponse struct {
	ID              uuid.UUID       `json:"id"`
	GroupID         uuid.UUID       `json:"group_id"`
	Name            string          `json:"name"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	DescriptorCount int             `json:"descriptor_count"`
	CreatedAt       string          `json:"created_at"`
}

type DescriptorResponse struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	Quality   float32   `json:"quality"`
	SourceKey string    `json:"source_key"`
	CreatedAt string    `json:"created_at"`
}

// VerifyRequest identifies the student on an uploaded photo against the
// enrolled gallery, without recording attendance.
type VerifyRequest struct {
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	Threshold float64    `json:"threshold"`
	Limit     int        `json:"limit"`
}

type VerifyResult struct {
	StudentID uuid.UUID `json:"student_id"`
	Name      string    `json:"name"`
	Score     float32   `json:"score"`
}
