package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
)

// SessionCommand is a control command from the API: start or stop a
// capture session, or request an explicit capture on a running one.
type SessionCommand struct {
	Action     string `json:"action"` // start, stop, capture
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
	Mode       string `json:"mode"`
	FPS        int    `json:"fps"`
	GroupID    string `json:"group_id,omitempty"`
}

type activeSession struct {
	cancel     context.CancelFunc
	extractor  *FFmpegExtractor
	frameIndex atomic.Uint64
	capture    atomic.Bool // set by an explicit capture request, consumed by the next frame
}

// Manager owns the ingestion lifecycle of capture sessions: it runs one
// FFmpeg extractor per running session, uploads frames, and publishes
// frame tasks for the workers.
type Manager struct {
	producer *queue.Producer
	minio    *storage.MinIOStore
	db       *storage.PostgresStore
	width    int
	cfg      config.SchedulerConfig

	mu       sync.RWMutex
	sessions map[string]*activeSession
}

func NewManager(producer *queue.Producer, minio *storage.MinIOStore, db *storage.PostgresStore, frameWidth int, cfg config.SchedulerConfig) *Manager {
	return &Manager{
		producer: producer,
		minio:    minio,
		db:       db,
		width:    frameWidth,
		cfg:      cfg,
		sessions: make(map[string]*activeSession),
	}
}

// HandleCommand processes a session control command.
func (m *Manager) HandleCommand(ctx context.Context, cmd SessionCommand) error {
	switch cmd.Action {
	case "start":
		return m.startSession(ctx, cmd)
	case "stop":
		return m.stopSession(cmd.SessionID)
	case "capture":
		return m.requestCapture(cmd.SessionID)
	default:
		return fmt.Errorf("unknown action: %s", cmd.Action)
	}
}

func (m *Manager) startSession(ctx context.Context, cmd SessionCommand) error {
	m.mu.Lock()
	if _, exists := m.sessions[cmd.SessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s already running", cmd.SessionID)
	}
	m.mu.Unlock()

	sessionUUID, err := uuid.Parse(cmd.SessionID)
	if err != nil {
		return fmt.Errorf("parse session id: %w", err)
	}

	var groupID *uuid.UUID
	if cmd.GroupID != "" {
		if g, err := uuid.Parse(cmd.GroupID); err == nil {
			groupID = &g
		}
	}

	fps := cmd.FPS
	if fps <= 0 {
		fps = m.cfg.DefaultFPS
	}
	if fps > m.cfg.MaxFPS {
		fps = m.cfg.MaxFPS
	}

	sourceType := models.SourceType(cmd.SourceType)
	mode := models.CaptureMode(cmd.Mode)
	if mode == "" {
		mode = models.ModeSingle
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	extractor := &FFmpegExtractor{}

	as := &activeSession{
		cancel:    cancel,
		extractor: extractor,
	}

	m.mu.Lock()
	m.sessions[cmd.SessionID] = as
	m.mu.Unlock()

	observability.ActiveSessions.Inc()
	m.updateStatus(cmd.SessionID, models.SessionStatusRunning, "")

	slog.Info("starting session ingestion",
		"session_id", cmd.SessionID, "url", cmd.URL, "mode", mode, "fps", fps)

	// Run extraction in a goroutine with retry logic
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.sessions, cmd.SessionID)
			m.mu.Unlock()
			observability.ActiveSessions.Dec()
			slog.Info("session ingestion stopped", "session_id", cmd.SessionID)
		}()

		const maxRetries = 3

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(1<<uint(attempt)) * time.Second // 2s, 4s, 8s
				slog.Warn("retrying session extraction",
					"session_id", cmd.SessionID,
					"attempt", attempt,
					"delay", delay,
				)
				select {
				case <-sessionCtx.Done():
					m.updateStatus(cmd.SessionID, models.SessionStatusStopped, "")
					return
				case <-time.After(delay):
				}

				// Fresh extractor for the retry
				extractor = &FFmpegExtractor{}
			}

			err := extractor.StartExtraction(sessionCtx, cmd.URL, sourceType, fps, m.width, func(frameData []byte) error {
				index := as.frameIndex.Add(1)
				capture := as.capture.CompareAndSwap(true, false)

				key := storage.FrameKey(cmd.SessionID, index)
				if err := m.minio.PutObject(sessionCtx, key, frameData, "image/jpeg"); err != nil {
					return fmt.Errorf("upload frame: %w", err)
				}

				task := models.FrameTask{
					SessionID:  sessionUUID,
					FrameID:    uuid.New(),
					FrameIndex: index,
					Timestamp:  time.Now(),
					FrameRef:   key,
					Mode:       mode,
					Capture:    capture,
					GroupID:    groupID,
				}

				if err := m.producer.PublishFrame(sessionCtx, cmd.SessionID, task); err != nil {
					return fmt.Errorf("publish frame task: %w", err)
				}
				return nil
			})

			if err == nil || sessionCtx.Err() != nil {
				// Clean exit or context cancelled (user stopped the session)
				m.updateStatus(cmd.SessionID, models.SessionStatusStopped, "")
				return
			}

			slog.Error("session extraction failed",
				"session_id", cmd.SessionID,
				"attempt", attempt,
				"error", err,
			)
		}

		// All retries exhausted: the camera is unreachable.
		m.updateStatus(cmd.SessionID, models.SessionStatusError, "camera unavailable after retries")
	}()

	return nil
}

func (m *Manager) stopSession(sessionID string) error {
	m.mu.RLock()
	as, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil // already stopped
	}

	as.extractor.Stop()
	as.cancel()

	slog.Info("stop command sent", "session_id", sessionID)
	return nil
}

// requestCapture flags the session's next frame as an explicit capture:
// full rate, accurate detector tier.
func (m *Manager) requestCapture(sessionID string) error {
	m.mu.RLock()
	as, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %s not running", sessionID)
	}
	as.capture.Store(true)
	return nil
}

func (m *Manager) updateStatus(sessionID string, status models.SessionStatus, errMsg string) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}
	if err := m.db.UpdateSessionStatus(context.Background(), id, status, errMsg); err != nil {
		slog.Error("update session status", "session_id", sessionID, "error", err)
	}
}

// ActiveCount returns the number of currently running sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StopAll stops all running sessions.
func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.stopSession(id)
	}
}

// ParseCommand parses a NATS message into a SessionCommand.
func ParseCommand(data []byte) (SessionCommand, error) {
	var cmd SessionCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}
