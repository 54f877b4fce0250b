package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

var errNotFound = errors.New("not found")

type AttendanceHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewAttendanceHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *AttendanceHandler {
	return &AttendanceHandler{db: db, minio: minio}
}

// List returns attendance events with optional day/session/student/status
// filters. Day defaults to today.
func (h *AttendanceHandler) List(c *gin.Context) {
	var q dto.AttendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	day := time.Now().Truncate(24 * time.Hour)
	if q.Day != "" {
		parsed, err := time.Parse("2006-01-02", q.Day)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	var sessionID *uuid.UUID
	if q.SessionID != "" {
		id, err := uuid.Parse(q.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		sessionID = &id
	}

	var studentID *uuid.UUID
	if q.StudentID != "" {
		id, err := uuid.Parse(q.StudentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
			return
		}
		studentID = &id
	}

	var status *models.AttendanceStatus
	if q.Status != "" {
		s := models.AttendanceStatus(q.Status)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &s
	}

	events, total, err := h.db.QueryAttendance(c.Request.Context(), &day, sessionID, studentID, status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttendanceEventResponse, 0, len(events))
	for _, ev := range events {
		r := dto.AttendanceEventResponse{
			ID:         ev.ID,
			StudentID:  ev.StudentID,
			SessionID:  ev.SessionID,
			Status:     string(ev.Status),
			Confidence: ev.Confidence,
			Day:        ev.Day.Format("2006-01-02"),
			Timestamp:  ev.Timestamp.Format(time.RFC3339),
			CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
		}
		if ev.StudentID != nil {
			if st, err := h.db.GetStudent(c.Request.Context(), *ev.StudentID); err == nil && st != nil {
				r.StudentName = st.Name
			}
		}
		if ev.SnapshotKey != "" {
			if url, err := h.minio.PresignedGetURL(c.Request.Context(), ev.SnapshotKey, 15*time.Minute); err == nil {
				r.SnapshotURL = url
			}
		}
		resp = append(resp, r)
	}

	c.JSON(http.StatusOK, dto.AttendanceListResponse{Events: resp, Total: total})
}

// Summary returns the day's headcount by status.
func (h *AttendanceHandler) Summary(c *gin.Context) {
	day := time.Now().Truncate(24 * time.Hour)
	if dayStr := c.Query("day"); dayStr != "" {
		parsed, err := time.Parse("2006-01-02", dayStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	summary, err := h.db.DailySummary(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.AttendanceSummaryResponse{
		Day:          day.Format("2006-01-02"),
		Present:      summary[models.StatusPresent],
		Late:         summary[models.StatusLate],
		Absent:       summary[models.StatusAbsent],
		Unauthorized: summary[models.StatusUnauthorized],
	})
}

// Snapshot streams the stored face snapshot of an attendance event.
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.getEvent(c, id)
	if err != nil {
		return
	}
	if ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for event"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *AttendanceHandler) getEvent(c *gin.Context, id uuid.UUID) (*models.AttendanceEvent, error) {
	ev, err := h.db.GetAttendanceEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, errNotFound
	}
	return ev, nil
}
