package config

import (
	"errors"
	"time"
)

// RasterBackend selects the rasterizer implementation.
type RasterBackend string

const (
	BackendStdlib RasterBackend = "stdlib"
	BackendVips   RasterBackend = "vips"
)

// StorageBackend selects the blob store adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageMinio StorageBackend = "minio"
)

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Default() and override only what
// they need; per-field instances (icon vs thumbnail vs cover) override
// the ceiling and folder through session options.
type Config struct {
	// Upload limits.
	MaxSizeBytes int64 // default 5 MiB

	// Crop surface zoom bounds.
	MinZoom float64 // default 1.0
	MaxZoom float64 // default 3.0

	// Encoding.  JPEG for photographic crops, PNG for alpha composites.
	JPEGQuality int // 1-100; default 90

	// Storage.
	Bucket       string
	FolderPrefix string
	Storage      StorageBackend
	Local        LocalConfig
	Minio        MinioConfig

	// Rasterizer backend.
	Backend RasterBackend

	// Network bounds.  Store calls and remove calls are capped at
	// StoreTimeout; display probes and re-edit fetches at ProbeTimeout.
	StoreTimeout time.Duration
	ProbeTimeout time.Duration

	// Logging.
	LogLevel string // "debug", "info", "warn", "error"
}

// LocalConfig configures the local filesystem blob store.
type LocalConfig struct {
	RootDir     string
	Permissions uint32 // default 0644
}

// MinioConfig configures the S3-compatible blob store.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string // optional CDN / proxy base; default derives from Endpoint
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		MaxSizeBytes: 5 << 20,
		MinZoom:      1.0,
		MaxZoom:      3.0,
		JPEGQuality:  90,
		Bucket:       "card-images",
		Storage:      StorageLocal,
		Backend:      BackendStdlib,
		StoreTimeout: 30 * time.Second,
		ProbeTimeout: 10 * time.Second,
		LogLevel:     "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.MaxSizeBytes <= 0 {
		return errors.New("config: MaxSizeBytes must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("config: JPEGQuality must be between 1 and 100")
	}
	if c.MinZoom < 1.0 {
		return errors.New("config: MinZoom must be at least 1.0")
	}
	if c.MaxZoom < c.MinZoom {
		return errors.New("config: MaxZoom must not be less than MinZoom")
	}
	if c.Bucket == "" {
		return errors.New("config: Bucket must not be empty")
	}
	return nil
}
