package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Student struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	GroupID   uuid.UUID       `json:"group_id" db:"group_id"`
	Name      string          `json:"name" db:"name"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Group is an enrollment scope (a class or a whole school) whose students
// form one matching gallery.
type Group struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FaceDescriptor is one enrolled embedding for a student. Immutable after
// enrollment; removed when the student is deregistered.
type FaceDescriptor struct {
	ID        uuid.UUID `json:"id" db:"id"`
	StudentID uuid.UUID `json:"student_id" db:"student_id"`
	Embedding []float32 `json:"embedding" db:"embedding"`
	Quality   float32   `json:"quality" db:"quality"`
	SourceKey string    `json:"source_key" db:"source_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
