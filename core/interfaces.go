package core

import (
	"context"
	"io"
)

// Decoder converts raw bytes / a reader into an in-memory ImageData.
// Implementations live in adapters/codec and adapters/vips.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality    int  // 1-100; 0 = use encoder default
	Lossless   bool // WebP / PNG lossless mode
	StripEXIF  bool
	Interlaced bool // progressive JPEG / interlaced PNG
}

// StorageAdapter persists uploaded images and retrieves them later.
// Implementations live in adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Exists(ctx context.Context, key StorageKey) (bool, error)
}

// MetricsCollector receives performance observations from the pipeline and
// the upload path.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(stepName string, category string)
	RecordUploadAttempt(attempt int, err error)
	RecordOutcome(status Status)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// ── Photo queue collaborators ────────────────────────────────────────────────

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// Picker acquires a raw asset from the device library.
//
//counterfeiter:generate . Picker
type Picker interface {
	RequestPermission(ctx context.Context) (bool, error)
	PickImage(ctx context.Context) (PickResult, error)
}

// AssetProcessor normalizes a raw asset for transfer.
//
//counterfeiter:generate . AssetProcessor
type AssetProcessor interface {
	Process(ctx context.Context, asset Asset) (ProcessedAsset, error)
}

// Transport performs the upload and moderation round trip. Failures are
// returned as *TransportError where the transport can classify them.
//
//counterfeiter:generate . Transport
type Transport interface {
	Upload(ctx context.Context, asset ProcessedAsset, onProgress func(percent int)) (*UploadRecord, error)
}

// SlotObserver is notified with a snapshot after every change to a slot.
type SlotObserver interface {
	SlotChanged(slot PhotoSlot)
}
