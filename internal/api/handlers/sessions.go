package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

type SessionHandler struct {
	db       *storage.PostgresStore
	producer *queue.Producer
}

func NewSessionHandler(db *storage.PostgresStore, producer *queue.Producer) *SessionHandler {
	return &SessionHandler{db: db, producer: producer}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fps := req.FPS
	if fps <= 0 {
		fps = 5
	}

	sess := &models.Session{
		URL:        req.URL,
		SourceType: models.SourceType(req.SourceType),
		Mode:       models.CaptureMode(req.Mode),
		FPS:        fps,
		GroupID:    req.GroupID,
		Config:     req.Config,
	}

	if err := h.db.CreateSession(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionToResponse(sess))
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.db.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, sessionToResponse(&sess))
	}

	c.JSON(http.StatusOK, dto.SessionListResponse{Sessions: resp, Total: len(resp)})
}

func (h *SessionHandler) Start(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if sess.Status == models.SessionStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "session already running"})
		return
	}

	if err := h.db.UpdateSessionStatus(c.Request.Context(), id, models.SessionStatusStarting, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Publish start command to NATS for the ingestor
	cmd := map[string]interface{}{
		"action":      "start",
		"session_id":  id.String(),
		"url":         sess.URL,
		"source_type": string(sess.SourceType),
		"mode":        string(sess.Mode),
		"fps":         sess.FPS,
	}
	if sess.GroupID != nil {
		cmd["group_id"] = sess.GroupID.String()
	}

	cmdData, _ := json.Marshal(cmd)
	if err := h.producer.PublishControl(cmdData); err != nil {
		_ = h.db.UpdateSessionStatus(c.Request.Context(), id, models.SessionStatusError, "failed to publish start command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send start command"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "starting", "session_id": id})
}

func (h *SessionHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	cmd := map[string]interface{}{
		"action":     "stop",
		"session_id": id.String(),
	}
	cmdData, _ := json.Marshal(cmd)
	_ = h.producer.PublishControl(cmdData)

	if err := h.db.UpdateSessionStatus(c.Request.Context(), id, models.SessionStatusStopped, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopped", "session_id": id})
}

// Capture requests an explicit capture on a running session: the next
// frame bypasses the scheduler's skip logic and uses the accurate tier.
func (h *SessionHandler) Capture(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Status != models.SessionStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "session not running"})
		return
	}

	cmd := map[string]interface{}{
		"action":     "capture",
		"session_id": id.String(),
	}
	cmdData, _ := json.Marshal(cmd)
	if err := h.producer.PublishControl(cmdData); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send capture command"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "capture requested", "session_id": id})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	// Stop first if running
	sess, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess != nil && sess.Status == models.SessionStatusRunning {
		cmd := map[string]interface{}{
			"action":     "stop",
			"session_id": id.String(),
		}
		cmdData, _ := json.Marshal(cmd)
		_ = h.producer.PublishControl(cmdData)
	}

	if err := h.db.DeleteSession(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func sessionToResponse(sess *models.Session) dto.SessionResponse {
	return dto.SessionResponse{
		ID:           sess.ID,
		URL:          sess.URL,
		SourceType:   string(sess.SourceType),
		Mode:         string(sess.Mode),
		FPS:          sess.FPS,
		Status:       string(sess.Status),
		GroupID:      sess.GroupID,
		Config:       sess.Config,
		ErrorMessage: sess.ErrorMessage,
		CreatedAt:    sess.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    sess.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
