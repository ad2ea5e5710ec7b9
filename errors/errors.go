package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode     Category = "decode"
	CategoryEncode     Category = "encode"
	CategoryPipeline   Category = "pipeline"
	CategoryStorage    Category = "storage"
	CategoryConfig     Category = "config"
	CategoryTransient  Category = "transient"
	CategoryInput      Category = "input"
	CategoryCapacity   Category = "capacity"
	CategoryPermission Category = "permission"
	CategoryValidation Category = "validation"
	CategoryInvariant  Category = "invariant"
	CategoryTransport  Category = "transport"
	CategoryModeration Category = "moderation"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Interrupted wraps a context error. The result matches ErrContextCanceled
// as well as the context's own error.
func Interrupted(category Category, op string, ctxErr error) error {
	return New(category, op, fmt.Errorf("%w: %w", ErrContextCanceled, ctxErr))
}

// Unavailable marks a storage backend failure as transient.
func Unavailable(op string, err error) error {
	return Transient(op, fmt.Errorf("%w: %w", ErrStorageUnavailable, err))
}

// Is and As are re-exported so callers importing this package under the
// errors name keep the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// Image pipeline sentinels.
var (
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrInvalidDimensions  = errors.New("invalid dimensions")
	ErrEmptyInput         = errors.New("empty input")
	ErrContextCanceled    = errors.New("context canceled")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Photo queue sentinels.
var (
	ErrCapacity         = errors.New("photo limit reached")
	ErrCancelled        = errors.New("selection cancelled")
	ErrPermissionDenied = errors.New("photo library permission denied")
	ErrFileTooLarge     = errors.New("file size too large")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrInvalidAsset     = errors.New("invalid asset")
	ErrProcessingFailed = errors.New("failed to process image")
	ErrSlotNotFound     = errors.New("photo not found")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrPrimaryRemoval   = errors.New("cannot remove primary photo")
	ErrUploadTimeout    = errors.New("upload timed out")
	ErrRetriesExhausted = errors.New("upload retries exhausted")
	ErrSessionClosed    = errors.New("photo session closed")
)
