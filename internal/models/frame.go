package models

import (
	"time"

	"github.com/google/uuid"
)

// FrameTask is the message published to NATS for worker processing.
type FrameTask struct {
	SessionID  uuid.UUID   `json:"session_id"`
	FrameID    uuid.UUID   `json:"frame_id"`
	FrameIndex uint64      `json:"frame_index"`
	Timestamp  time.Time   `json:"timestamp"`
	FrameRef   string      `json:"frame_ref"` // MinIO object key
	Mode       CaptureMode `json:"mode"`
	Capture    bool        `json:"capture"` // explicit capture: full rate, accurate tier
	GroupID    *uuid.UUID  `json:"group_id,omitempty"`
}

// RecognitionOutcome is the per-face output of a worker for one frame.
type RecognitionOutcome struct {
	SessionID   uuid.UUID        `json:"session_id"`
	TrackID     string           `json:"track_id"`
	Timestamp   time.Time        `json:"timestamp"`
	BBox        [4]float32       `json:"bbox"` // x1, y1, x2, y2
	Recognized  bool             `json:"recognized"`
	StudentID   *uuid.UUID       `json:"student_id,omitempty"`
	Confidence  float32          `json:"confidence"`
	Status      AttendanceStatus `json:"status"`
	Quality     float32          `json:"quality"`
	Expression  float32          `json:"expression"`
	Liveness    bool             `json:"liveness"`
	FaceCount   int              `json:"face_count"`
	SnapshotKey string           `json:"snapshot_key"`
}
