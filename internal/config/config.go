package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	PipelineLandmarkFirst = "landmark-first"
	PipelineDetectFirst   = "detect-first"
)

type Config struct {
	// Server
	Port           int    `envconfig:"PORT" default:"5000"`
	Environment    string `envconfig:"ENV" default:"development"`
	MaxUploadBytes int    `envconfig:"MAX_UPLOAD_BYTES" default:"104857600"`

	// Decision
	Threshold    float64 `envconfig:"THRESHOLD" default:"0.5"`
	FrameSamples int     `envconfig:"FRAME_SAMPLES" default:"5"`

	// Pipeline
	PipelineOrder     string  `envconfig:"PIPELINE_ORDER" default:"landmark-first"`
	CropMargin        float64 `envconfig:"CROP_MARGIN" default:"0.15"`
	CropVerticalShift float64 `envconfig:"CROP_VERTICAL_SHIFT" default:"0.1"`

	// Worker pool
	WorkerCount      int           `envconfig:"WORKER_COUNT"`
	WorkerQueueDepth int           `envconfig:"WORKER_QUEUE_DEPTH"`
	StageTimeout     time.Duration `envconfig:"STAGE_TIMEOUT" default:"30s"`

	// Transient video store
	TempDir string `envconfig:"TEMP_DIR"`

	// Providers
	DetectorBackend     string `envconfig:"DETECTOR_BACKEND" default:"opencv"`
	DetectorModelPath   string `envconfig:"DETECTOR_MODEL_PATH" default:"models/face_detection_yunet_2023mar.onnx"`
	EmbedderBackend     string `envconfig:"EMBEDDER_BACKEND" default:"onnx"`
	EmbedderModelPath   string `envconfig:"EMBEDDER_MODEL_PATH" default:"models/face_embedder.onnx"`
	EmbedderChannels    string `envconfig:"EMBEDDER_CHANNEL_ORDER" default:"bgr"`
	ONNXRuntimeLibPath  string `envconfig:"ONNXRUNTIME_LIB_PATH"`
	RemoteEmbedderURL   string `envconfig:"REMOTE_EMBEDDER_URL" default:"http://localhost:8000"`
	RemoteEmbedderModel string `envconfig:"REMOTE_EMBEDDER_MODEL" default:"face_embedder"`
	AWSRegion           string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Audit sink (optional)
	AuditDatabaseURL string `envconfig:"AUDIT_DATABASE_URL"`
	AuditAutoMigrate bool   `envconfig:"AUDIT_AUTO_MIGRATE" default:"true"`
}

const defaultQueueDepth = 64

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if cfg.WorkerQueueDepth == 0 {
		cfg.WorkerQueueDepth = max(defaultQueueDepth, cfg.WorkerCount+1)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("THRESHOLD must be between 0 and 1, got %v", c.Threshold)
	}
	if c.FrameSamples < 1 {
		return fmt.Errorf("FRAME_SAMPLES must be positive, got %d", c.FrameSamples)
	}
	if c.PipelineOrder != PipelineLandmarkFirst && c.PipelineOrder != PipelineDetectFirst {
		return fmt.Errorf("PIPELINE_ORDER must be %q or %q, got %q",
			PipelineLandmarkFirst, PipelineDetectFirst, c.PipelineOrder)
	}
	if c.EmbedderChannels != "rgb" && c.EmbedderChannels != "bgr" {
		return fmt.Errorf("EMBEDDER_CHANNEL_ORDER must be rgb or bgr, got %q", c.EmbedderChannels)
	}
	if c.CropMargin < 0 || c.CropVerticalShift < 0 {
		return fmt.Errorf("crop margin and vertical shift must not be negative")
	}
	// A request keeps at most WORKER_COUNT frame or embedding tasks plus its
	// reference image in flight; the queue must hold them while workers turn over.
	if c.WorkerQueueDepth <= c.WorkerCount {
		return fmt.Errorf("WORKER_QUEUE_DEPTH must exceed WORKER_COUNT (%d), got %d",
			c.WorkerCount, c.WorkerQueueDepth)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("STAGE_TIMEOUT must be positive, got %s", c.StageTimeout)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) AuditToDatabase() bool {
	return c.AuditDatabaseURL != ""
}
