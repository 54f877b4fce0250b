package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeRTSP   SourceType = "rtsp"
	SourceTypeHTTP   SourceType = "http"
	SourceTypeDevice SourceType = "device" // local camera, e.g. /dev/video0
)

// CaptureMode selects how many faces a session expects per frame.
type CaptureMode string

const (
	ModeSingle    CaptureMode = "single"    // kiosk: one dominant face
	ModeMultiple  CaptureMode = "multiple"  // entrance camera: a few faces
	ModeClassroom CaptureMode = "classroom" // batch: many simultaneous faces
)

type SessionStatus string

const (
	SessionStatusStopped  SessionStatus = "stopped"
	SessionStatusStarting SessionStatus = "starting"
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusError    SessionStatus = "error"
)

// Session is one camera capture session. All per-session pipeline state
// (tracker, scheduler, in-flight guard) is owned by the session's engine,
// created at start and torn down at stop.
type Session struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	URL          string          `json:"url" db:"url"`
	SourceType   SourceType      `json:"source_type" db:"source_type"`
	Mode         CaptureMode     `json:"mode" db:"mode"`
	FPS          int             `json:"fps" db:"fps"`
	Status       SessionStatus   `json:"status" db:"status"`
	GroupID      *uuid.UUID      `json:"group_id,omitempty" db:"group_id"`
	Config       json.RawMessage `json:"config" db:"config"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}
