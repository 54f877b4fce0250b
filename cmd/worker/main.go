package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/ingest"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/recognition"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/internal/vision"
)

// embeddingDim is fixed by the ArcFace w600k_r50 model.
const embeddingDim = 512

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

	slog.Info("starting rollcall recognition worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	attendance.DefaultCutoff = attendance.Cutoff{
		Hour:   cfg.Attendance.CutoffHour,
		Minute: cfg.Attendance.CutoffMinute,
	}

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Attendance core
	index := recognition.NewSimilarityIndex(
		recognition.Metric(cfg.Vision.Metric),
		cfg.Vision.RecognitionThreshold,
		embeddingDim,
		cfg.Vision.ANNThreshold,
	)
	decider := attendance.NewDecider(db, db)
	rules := attendance.NewRuleEngine()
	dispatcher := attendance.NewDispatcher(nil, producer, "")

	pipeline := vision.NewPipeline(
		cfg.Vision, cfg.Tracking, cfg.Scheduler,
		index, decider, rules, dispatcher,
		db, minioStore, producer,
	)
	defer pipeline.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipeline.RefreshGallery(ctx); err != nil {
		slog.Warn("initial gallery load", "error", err)
	}
	reloadRules(ctx, db, rules)

	// Periodic refresh: new enrollments and rule edits land without restart.
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pipeline.RefreshGallery(ctx); err != nil {
					slog.Warn("gallery refresh", "error", err)
				}
				reloadRules(ctx, db, rules)
			}
		}
	}()

	// Daily jobs: midnight rollover and the after-cutoff absent sweep
	jobs := attendance.NewJobs(decider, db)
	if err := jobs.Start(cfg.Attendance.AbsentSweep); err != nil {
		slog.Error("start scheduled jobs", "error", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Session stop commands tear down the per-session engine so a stale
	// pass can never record attendance.
	_, err = consumer.SubscribeControl(func(data []byte) {
		cmd, err := ingest.ParseCommand(data)
		if err != nil {
			return
		}
		if cmd.Action != "stop" {
			return
		}
		if id, err := uuid.Parse(cmd.SessionID); err == nil {
			pipeline.StopSession(id)
			slog.Info("session engine stopped", "session_id", cmd.SessionID)
		}
	})
	if err != nil {
		slog.Error("subscribe to control", "error", err)
		os.Exit(1)
	}

	// Start consuming frame tasks
	err = consumer.ConsumeFrames(ctx, "recognition-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.FrameTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal frame task", "error", err)
			return nil // don't retry on unmarshal errors
		}

		if err := pipeline.ProcessFrame(ctx, task); err != nil {
			return fmt.Errorf("process frame %s: %w", task.FrameID, err)
		}

		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start frame consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

func reloadRules(ctx context.Context, db *storage.PostgresStore, rules *attendance.RuleEngine) {
	loaded, err := db.ListRules(ctx)
	if err != nil {
		slog.Warn("load alert rules", "error", err)
		return
	}
	rules.SetRules(loaded)
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
