package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir            string        `yaml:"models_dir"`
	DetectionThreshold   float64       `yaml:"detection_threshold"`
	RecognitionThreshold float64       `yaml:"recognition_threshold"`
	Metric               string        `yaml:"metric"` // "cosine" or "euclidean", bound per embedding model
	MaxFacesClassroom    int           `yaml:"max_faces_classroom"`
	WorkerCount          int           `yaml:"worker_count"`
	FrameWidth           int           `yaml:"frame_width"`
	LoadTimeout          time.Duration `yaml:"load_timeout"`
	LoadMaxAttempts      int           `yaml:"load_max_attempts"`
	LoadBackoffCap       time.Duration `yaml:"load_backoff_cap"`
	ANNThreshold         int           `yaml:"ann_threshold"` // gallery size above which HNSW search kicks in
}

type TrackingConfig struct {
	CorrelateDescriptor float64       `yaml:"correlate_descriptor"` // max embedding distance to join an existing track
	CorrelatePosition   float64       `yaml:"correlate_position"`   // max box centre distance (px) to join
	DriftDescriptor     float64       `yaml:"drift_descriptor"`     // embedding drift forcing re-recognition
	DriftPosition       float64       `yaml:"drift_position"`       // summed x/y movement (px) forcing re-recognition
	Freshness           time.Duration `yaml:"freshness"`            // re-recognize after this long regardless
	Eviction            time.Duration `yaml:"eviction"`             // drop tracks unseen for this long
}

type SchedulerConfig struct {
	FrameInterval int           `yaml:"frame_interval"` // process every Nth frame in preview mode
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	ROIPadding    int           `yaml:"roi_padding"`
	DefaultFPS    int           `yaml:"default_fps"`
	MaxFPS        int           `yaml:"max_fps"`
}

type AttendanceConfig struct {
	CutoffHour   int    `yaml:"cutoff_hour"`
	CutoffMinute int    `yaml:"cutoff_minute"`
	AbsentSweep  string `yaml:"absent_sweep"` // cron spec for the after-cutoff absent marking
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// yaml.v3 does not parse "5s"-style strings into time.Duration, so the
// duration-bearing sections decode through string shadows.

func (v *VisionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ModelsDir            string  `yaml:"models_dir"`
		DetectionThreshold   float64 `yaml:"detection_threshold"`
		RecognitionThreshold float64 `yaml:"recognition_threshold"`
		Metric               string  `yaml:"metric"`
		MaxFacesClassroom    int     `yaml:"max_faces_classroom"`
		WorkerCount          int     `yaml:"worker_count"`
		FrameWidth           int     `yaml:"frame_width"`
		LoadTimeout          string  `yaml:"load_timeout"`
		LoadMaxAttempts      int     `yaml:"load_max_attempts"`
		LoadBackoffCap       string  `yaml:"load_backoff_cap"`
		ANNThreshold         int     `yaml:"ann_threshold"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	v.ModelsDir = raw.ModelsDir
	v.DetectionThreshold = raw.DetectionThreshold
	v.RecognitionThreshold = raw.RecognitionThreshold
	v.Metric = raw.Metric
	v.MaxFacesClassroom = raw.MaxFacesClassroom
	v.WorkerCount = raw.WorkerCount
	v.FrameWidth = raw.FrameWidth
	v.LoadMaxAttempts = raw.LoadMaxAttempts
	v.ANNThreshold = raw.ANNThreshold
	if err := parseDuration(raw.LoadTimeout, &v.LoadTimeout); err != nil {
		return fmt.Errorf("load_timeout: %w", err)
	}
	if err := parseDuration(raw.LoadBackoffCap, &v.LoadBackoffCap); err != nil {
		return fmt.Errorf("load_backoff_cap: %w", err)
	}
	return nil
}

func (t *TrackingConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CorrelateDescriptor float64 `yaml:"correlate_descriptor"`
		CorrelatePosition   float64 `yaml:"correlate_position"`
		DriftDescriptor     float64 `yaml:"drift_descriptor"`
		DriftPosition       float64 `yaml:"drift_position"`
		Freshness           string  `yaml:"freshness"`
		Eviction            string  `yaml:"eviction"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.CorrelateDescriptor = raw.CorrelateDescriptor
	t.CorrelatePosition = raw.CorrelatePosition
	t.DriftDescriptor = raw.DriftDescriptor
	t.DriftPosition = raw.DriftPosition
	if err := parseDuration(raw.Freshness, &t.Freshness); err != nil {
		return fmt.Errorf("freshness: %w", err)
	}
	if err := parseDuration(raw.Eviction, &t.Eviction); err != nil {
		return fmt.Errorf("eviction: %w", err)
	}
	return nil
}

func (s *SchedulerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		FrameInterval int    `yaml:"frame_interval"`
		CacheTTL      string `yaml:"cache_ttl"`
		ROIPadding    int    `yaml:"roi_padding"`
		DefaultFPS    int    `yaml:"default_fps"`
		MaxFPS        int    `yaml:"max_fps"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.FrameInterval = raw.FrameInterval
	s.ROIPadding = raw.ROIPadding
	s.DefaultFPS = raw.DefaultFPS
	s.MaxFPS = raw.MaxFPS
	if err := parseDuration(raw.CacheTTL, &s.CacheTTL); err != nil {
		return fmt.Errorf("cache_ttl: %w", err)
	}
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.RecognitionThreshold == 0 {
		cfg.Vision.RecognitionThreshold = 0.6
	}
	if cfg.Vision.Metric == "" {
		cfg.Vision.Metric = "cosine"
	}
	if cfg.Vision.MaxFacesClassroom == 0 {
		cfg.Vision.MaxFacesClassroom = 50
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 6
	}
	if cfg.Vision.FrameWidth == 0 {
		cfg.Vision.FrameWidth = 640
	}
	if cfg.Vision.LoadTimeout == 0 {
		cfg.Vision.LoadTimeout = 30 * time.Second
	}
	if cfg.Vision.LoadMaxAttempts == 0 {
		cfg.Vision.LoadMaxAttempts = 5
	}
	if cfg.Vision.LoadBackoffCap == 0 {
		cfg.Vision.LoadBackoffCap = 10 * time.Second
	}
	if cfg.Vision.ANNThreshold == 0 {
		cfg.Vision.ANNThreshold = 2000
	}
	if cfg.Tracking.CorrelateDescriptor == 0 {
		cfg.Tracking.CorrelateDescriptor = 0.4
	}
	if cfg.Tracking.CorrelatePosition == 0 {
		cfg.Tracking.CorrelatePosition = 100
	}
	if cfg.Tracking.DriftDescriptor == 0 {
		cfg.Tracking.DriftDescriptor = 0.3
	}
	if cfg.Tracking.DriftPosition == 0 {
		cfg.Tracking.DriftPosition = 50
	}
	if cfg.Tracking.Freshness == 0 {
		cfg.Tracking.Freshness = 5 * time.Second
	}
	if cfg.Tracking.Eviction == 0 {
		cfg.Tracking.Eviction = 10 * time.Second
	}
	if cfg.Scheduler.FrameInterval == 0 {
		cfg.Scheduler.FrameInterval = 3
	}
	if cfg.Scheduler.CacheTTL == 0 {
		cfg.Scheduler.CacheTTL = time.Second
	}
	if cfg.Scheduler.ROIPadding == 0 {
		cfg.Scheduler.ROIPadding = 50
	}
	if cfg.Scheduler.DefaultFPS == 0 {
		cfg.Scheduler.DefaultFPS = 5
	}
	if cfg.Scheduler.MaxFPS == 0 {
		cfg.Scheduler.MaxFPS = 10
	}
	if cfg.Attendance.CutoffHour == 0 && cfg.Attendance.CutoffMinute == 0 {
		cfg.Attendance.CutoffHour = 9
	}
	if cfg.Attendance.AbsentSweep == "" {
		cfg.Attendance.AbsentSweep = "0 12 * * 1-5"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROLLCALL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ROLLCALL_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("ROLLCALL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ROLLCALL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ROLLCALL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ROLLCALL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ROLLCALL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ROLLCALL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("ROLLCALL_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("ROLLCALL_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("ROLLCALL_CUTOFF"); v != "" {
		var h, m int
		if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err == nil {
			cfg.Attendance.CutoffHour = h
			cfg.Attendance.CutoffMinute = m
		}
	}
}
