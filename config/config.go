package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageBackend selects the storage adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// RemovalPolicy decides what removing the primary photo does when other
// photos remain.
type RemovalPolicy string

const (
	// RemovePromoteNext removes the primary and promotes the next remaining
	// photo in original order.
	RemovePromoteNext RemovalPolicy = "promote-next"
	// RemoveRejectPrimary refuses the removal with no mutation.
	RemoveRejectPrimary RemovalPolicy = "reject-primary"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	Queue      Queue      `yaml:"queue"`
	Ingest     Ingest     `yaml:"ingest"`
	Upload     Upload     `yaml:"upload"`
	Processing Processing `yaml:"processing"`
	Storage    Storage    `yaml:"storage"`
	Transport  Transport  `yaml:"transport"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=console json"`
}

// Queue controls the slot collection.
type Queue struct {
	MaxPhotos     int           `yaml:"max_photos" validate:"min=1,max=6"`
	RemovalPolicy RemovalPolicy `yaml:"removal_policy" validate:"oneof=promote-next reject-primary"`
}

// Ingest controls picker validation.
type Ingest struct {
	// Assets at or above this size are rejected before any slot exists.
	MaxAssetBytes int64    `yaml:"max_asset_bytes" validate:"gt=0"`
	AllowedTypes  []string `yaml:"allowed_types" validate:"min=1,dive,required"`
}

// Upload controls the coordinator's retry and timeout policy.
type Upload struct {
	// Timeout bounds all attempts for one slot together.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// AttemptTimeout bounds a single transport call; 0 disables it.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gte=0"`
	Retry          Retry         `yaml:"retry"`
}

// Retry is the bounded exponential backoff schedule between attempts.
type Retry struct {
	MaxAttempts  int           `yaml:"max_attempts" validate:"min=1"`
	InitialDelay time.Duration `yaml:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `yaml:"max_delay" validate:"gte=0"`
	Multiplier   float64       `yaml:"multiplier" validate:"gte=1"`
}

// Processing configures the image engine used by the asset processor.
type Processing struct {
	Backend        string `yaml:"backend" validate:"oneof=stdlib vips"`
	MaxDimension   int    `yaml:"max_dimension" validate:"gt=0"`
	DefaultQuality int    `yaml:"default_quality" validate:"min=1,max=100"`
	PreviewSize    int    `yaml:"preview_size" validate:"gt=0"`
	OutputDir      string `yaml:"output_dir"`

	// TargetBytes caps the normalized JPEG; quality steps down to
	// MinQuality until it fits. 0 disables the search.
	TargetBytes int64 `yaml:"target_bytes" validate:"gte=0"`
	MinQuality  int   `yaml:"min_quality" validate:"min=1,max=100"`

	// Streaming / memory limits.
	MaxInputBytes int64 `yaml:"max_input_bytes" validate:"gte=0"` // 0 = no limit
	ChunkSize     int   `yaml:"chunk_size" validate:"gt=0"`

	// Retries for transient step failures inside the engine.
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
}

// Storage selects where the local transport keeps uploaded objects.
type Storage struct {
	Backend StorageBackend `yaml:"backend" validate:"oneof=local s3"`
	Local   LocalConfig    `yaml:"local"`
	S3      S3Config       `yaml:"s3"`
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string `yaml:"root_dir"`
	Permissions uint32 `yaml:"permissions"` // default 0644
}

// S3Config configures the AWS S3 storage adapter.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"` // optional custom endpoint (MinIO, etc.)
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Transport selects and configures the upload/moderation endpoint.
type Transport struct {
	Backend string `yaml:"backend" validate:"oneof=local http"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Owner   string `yaml:"owner"`

	// Local transport duplicate screening.
	DedupIndex     string   `yaml:"dedup_index" validate:"oneof=memory sqlite"`
	DedupPath      string   `yaml:"dedup_path"`
	DedupThreshold int      `yaml:"dedup_threshold" validate:"min=0,max=64"`
	DenyMarkers    []string `yaml:"deny_markers"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Queue: Queue{
			MaxPhotos:     6,
			RemovalPolicy: RemovePromoteNext,
		},
		Ingest: Ingest{
			MaxAssetBytes: 10 * 1024 * 1024,
			AllowedTypes:  []string{"image/jpeg", "image/png", "image/webp"},
		},
		Upload: Upload{
			Timeout:        30 * time.Second,
			AttemptTimeout: 15 * time.Second,
			Retry: Retry{
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     4 * time.Second,
				Multiplier:   2,
			},
		},
		Processing: Processing{
			Backend:        "stdlib",
			MaxDimension:   2048,
			DefaultQuality: 85,
			PreviewSize:    256,
			TargetBytes:    4 * 1024 * 1024,
			MinQuality:     60,
			MaxInputBytes:  32 * 1024 * 1024,
			ChunkSize:      32 * 1024,
			MaxRetries:     1,
			RetryDelay:     100 * time.Millisecond,
		},
		Storage: Storage{
			Backend: StorageLocal,
			Local:   LocalConfig{RootDir: "./uploads", Permissions: 0o644},
		},
		Transport: Transport{
			Backend:        "local",
			Owner:          "local",
			DedupIndex:     "memory",
			DedupThreshold: 6,
		},
		LogLevel:  "info",
		LogFormat: "console",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid fields: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Upload.Retry.MaxDelay > 0 && c.Upload.Retry.MaxDelay < c.Upload.Retry.InitialDelay {
		return errors.New("config: Upload.Retry.MaxDelay must not be less than InitialDelay")
	}
	if c.Upload.AttemptTimeout > c.Upload.Timeout {
		return errors.New("config: Upload.AttemptTimeout must not exceed Upload.Timeout")
	}
	if c.Processing.MinQuality > c.Processing.DefaultQuality {
		return errors.New("config: Processing.MinQuality must not exceed DefaultQuality")
	}
	if c.Storage.Backend == StorageS3 && c.Storage.S3.Bucket == "" {
		return errors.New("config: Storage.S3.Bucket is required for the s3 backend")
	}
	if c.Transport.Backend == "http" && c.Transport.BaseURL == "" {
		return errors.New("config: Transport.BaseURL is required for the http transport")
	}
	if c.Transport.DedupIndex == "sqlite" && c.Transport.DedupPath == "" {
		return errors.New("config: Transport.DedupPath is required for the sqlite dedup index")
	}
	return nil
}
