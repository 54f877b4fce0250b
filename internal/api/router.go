package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/rollcall/internal/api/handlers"
	"github.com/your-org/rollcall/internal/api/ws"
	"github.com/your-org/rollcall/internal/auth"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	// EmbedFn extracts a face descriptor from image bytes (from the
	// recognition pipeline). Nil until models are loaded.
	EmbedFn func(imageData []byte) ([]float32, float32, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Groups, students and enrollment
	studentH := handlers.NewStudentHandler(cfg.DB, cfg.MinIO)
	studentH.EmbedFn = cfg.EmbedFn
	v1.POST("/groups", studentH.CreateGroup)
	v1.GET("/groups", studentH.ListGroups)
	v1.POST("/students", studentH.Create)
	v1.GET("/students", studentH.List)
	v1.GET("/students/:id", studentH.Get)
	v1.DELETE("/students/:id", studentH.Delete)
	v1.POST("/students/:id/descriptors", studentH.Enroll)
	v1.GET("/students/:id/descriptors", studentH.ListDescriptors)
	v1.DELETE("/students/:id/descriptors/:descriptorId", studentH.DeleteDescriptor)
	v1.POST("/verify", studentH.Verify)

	// Capture sessions
	sessionH := handlers.NewSessionHandler(cfg.DB, cfg.Producer)
	v1.POST("/sessions", sessionH.Create)
	v1.GET("/sessions", sessionH.List)
	v1.GET("/sessions/:id", sessionH.Get)
	v1.POST("/sessions/:id/start", sessionH.Start)
	v1.POST("/sessions/:id/stop", sessionH.Stop)
	v1.POST("/sessions/:id/capture", sessionH.Capture)
	v1.DELETE("/sessions/:id", sessionH.Delete)

	// Attendance
	attendanceH := handlers.NewAttendanceHandler(cfg.DB, cfg.MinIO)
	v1.GET("/attendance", attendanceH.List)
	v1.GET("/attendance/summary", attendanceH.Summary)
	v1.GET("/attendance/:id/snapshot", attendanceH.Snapshot)

	// Alert rules
	ruleH := handlers.NewRuleHandler(cfg.DB)
	v1.POST("/rules", ruleH.Create)
	v1.GET("/rules", ruleH.List)
	v1.PUT("/rules/:id", ruleH.Update)
	v1.PATCH("/rules/:id/toggle", ruleH.Toggle)
	v1.DELETE("/rules/:id", ruleH.Delete)

	// Settings
	settingsH := handlers.NewSettingsHandler(cfg.DB)
	v1.GET("/settings/cutoff", settingsH.GetCutoff)
	v1.PUT("/settings/cutoff", settingsH.SetCutoff)

	return r
}
