package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is a closed enum. The historical habit of storing
// "unauthorized" to mean "present" is normalized away at the persistence
// boundary; it never appears past storage.
type AttendanceStatus string

const (
	StatusPresent      AttendanceStatus = "present"
	StatusLate         AttendanceStatus = "late"
	StatusAbsent       AttendanceStatus = "absent"
	StatusUnauthorized AttendanceStatus = "unauthorized"
)

// Valid reports whether s is one of the closed set of statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusUnauthorized:
		return true
	}
	return false
}

// AttendanceEvent is the durable arrival record. At most one per student
// per calendar day is authoritative; the (student_id, day) unique
// constraint in postgres enforces this across processes.
type AttendanceEvent struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	StudentID   *uuid.UUID       `json:"student_id,omitempty" db:"student_id"` // nil for unrecognized faces
	SessionID   uuid.UUID        `json:"session_id" db:"session_id"`
	Status      AttendanceStatus `json:"status" db:"status"`
	Confidence  float32          `json:"confidence" db:"confidence"`
	Day         time.Time        `json:"day" db:"day"` // calendar day, truncated
	Timestamp   time.Time        `json:"timestamp" db:"timestamp"`
	SnapshotKey string           `json:"snapshot_key" db:"snapshot_key"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
