package dto

import "github.com/google/uuid"

type AttendanceEventResponse struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   *uuid.UUID `json:"student_id,omitempty"`
	StudentName string     `json:"student_name,omitempty"`
	SessionID   uuid.UUID  `json:"session_id"`
	Status      string     `json:"status"`
	Confidence  float32    `json:"confidence"`
	Day         string     `json:"day"`
	Timestamp   string     `json:"timestamp"`
	SnapshotURL string     `json:"snapshot_url,omitempty"`
	CreatedAt   string     `json:"created_at"`
}

type AttendanceListResponse struct {
	Events []AttendanceEventResponse `json:"events"`
	Total  int                       `json:"total"`
}

type AttendanceQuery struct {
	Day       string `form:"day"` // YYYY-MM-DD, defaults to today
	SessionID string `form:"session_id"`
	StudentID string `form:"student_id"`
	Status    string `form:"status"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

type AttendanceSummaryResponse struct {
	Day          string `json:"day"`
	Present      int    `json:"present"`
	Late         int    `json:"late"`
	Absent       int    `json:"absent"`
	Unauthorized int    `json:"unauthorized"`
}

// WSMessage is a WebSocket frame for live dashboards: per-face
// recognition outcomes, triggered alerts, and session status changes.
type WSMessage struct {
	Type      string      `json:"type"` // recognition, alert, session_status
	SessionID uuid.UUID   `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Status    string      `json:"status,omitempty"`
}
