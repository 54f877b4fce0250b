package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/ingest"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
)

// frameRetention bounds how long raw frames stay in object storage.
// Snapshots attached to attendance events are kept; raw frames are not.
const frameRetention = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting rollcall ingestor",
		"default_fps", cfg.Scheduler.DefaultFPS,
		"frame_width", cfg.Vision.FrameWidth,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Error("ensure minio bucket", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Error("ensure nats streams", "error", err)
		os.Exit(1)
	}

	manager := ingest.NewManager(producer, minioStore, db, cfg.Vision.FrameWidth, cfg.Scheduler)

	// Listen for session control commands from the API
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	sub, err := consumer.SubscribeControl(func(data []byte) {
		cmd, err := ingest.ParseCommand(data)
		if err != nil {
			slog.Error("parse control command", "error", err)
			return
		}
		if err := manager.HandleCommand(ctx, cmd); err != nil {
			slog.Error("handle control command",
				"action", cmd.Action,
				"session_id", cmd.SessionID,
				"error", err,
			)
		}
	})
	if err != nil {
		slog.Error("subscribe to control", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	slog.Info("listening for session control commands", "subject", queue.ControlSubject)

	// Raw frames are write-once and short-lived; sweep stale ones so the
	// bucket holds minutes of backlog, not days.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions, err := db.ListSessions(ctx)
				if err != nil {
					slog.Warn("list sessions for frame cleanup", "error", err)
					continue
				}
				for _, s := range sessions {
					removed, err := minioStore.CleanupFrames(ctx, s.ID.String(), frameRetention)
					if err != nil {
						slog.Warn("frame cleanup", "session_id", s.ID, "error", err)
						continue
					}
					if removed > 0 {
						slog.Debug("cleaned up stale frames", "session_id", s.ID, "removed", removed)
					}
				}
			}
		}
	}()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("ingestor metrics listening", "addr", ":8081")
		if err := http.ListenAndServe(":8081", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down ingestor...")
	manager.StopAll()
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("ingestor stopped")
}
