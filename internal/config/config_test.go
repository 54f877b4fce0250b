package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  user: rollcall
  password: secret
  name: rollcall
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d; want default 8080", cfg.Server.Port)
	}
	if cfg.Vision.RecognitionThreshold != 0.6 {
		t.Errorf("RecognitionThreshold = %v; want 0.6", cfg.Vision.RecognitionThreshold)
	}
	if cfg.Vision.Metric != "cosine" {
		t.Errorf("Metric = %q; want cosine", cfg.Vision.Metric)
	}
	if cfg.Tracking.Freshness != 5*time.Second {
		t.Errorf("Tracking.Freshness = %v; want 5s", cfg.Tracking.Freshness)
	}
	if cfg.Tracking.Eviction != 10*time.Second {
		t.Errorf("Tracking.Eviction = %v; want 10s", cfg.Tracking.Eviction)
	}
	if cfg.Scheduler.FrameInterval != 3 {
		t.Errorf("Scheduler.FrameInterval = %d; want 3", cfg.Scheduler.FrameInterval)
	}
	if cfg.Attendance.CutoffHour != 9 || cfg.Attendance.CutoffMinute != 0 {
		t.Errorf("cutoff = %02d:%02d; want 09:00",
			cfg.Attendance.CutoffHour, cfg.Attendance.CutoffMinute)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %s/%s; want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
vision:
  recognition_threshold: 0.75
  metric: euclidean
tracking:
  freshness: 2s
attendance:
  cutoff_hour: 10
  cutoff_minute: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d; want 9999", cfg.Server.Port)
	}
	if cfg.Vision.RecognitionThreshold != 0.75 {
		t.Errorf("RecognitionThreshold = %v; want 0.75", cfg.Vision.RecognitionThreshold)
	}
	if cfg.Vision.Metric != "euclidean" {
		t.Errorf("Metric = %q; want euclidean", cfg.Vision.Metric)
	}
	if cfg.Tracking.Freshness != 2*time.Second {
		t.Errorf("Freshness = %v; want 2s", cfg.Tracking.Freshness)
	}
	if cfg.Attendance.CutoffHour != 10 || cfg.Attendance.CutoffMinute != 30 {
		t.Errorf("cutoff = %02d:%02d; want 10:30",
			cfg.Attendance.CutoffHour, cfg.Attendance.CutoffMinute)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ROLLCALL_SERVER_PORT", "7070")
	t.Setenv("ROLLCALL_DB_HOST", "db.internal")
	t.Setenv("ROLLCALL_API_KEY", "sekrit")
	t.Setenv("ROLLCALL_CUTOFF", "08:45")

	path := writeConfig(t, `
server:
  port: 8080
database:
  host: localhost
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d; want env override 7070", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q; want env override", cfg.Database.Host)
	}
	if cfg.Server.APIKey != "sekrit" {
		t.Errorf("APIKey = %q; want env override", cfg.Server.APIKey)
	}
	if cfg.Attendance.CutoffHour != 8 || cfg.Attendance.CutoffMinute != 45 {
		t.Errorf("cutoff = %02d:%02d; want 08:45",
			cfg.Attendance.CutoffHour, cfg.Attendance.CutoffMinute)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432,
		Name: "rollcall", User: "app", Password: "pw",
	}
	want := "postgres://app:pw@localhost:5432/rollcall?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q; want %q", got, want)
	}
}
