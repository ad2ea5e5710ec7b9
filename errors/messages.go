package errors

import (
	"errors"
	"fmt"
)

// CapacityError reports an add attempt against a full queue.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: maximum %d photos", ErrCapacity, e.Max)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// UserMessage returns the single user-facing string for err. Cancellation and
// nil produce an empty string.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrCancelled):
		return ""
	case errors.Is(err, ErrCapacity):
		var ce *CapacityError
		if errors.As(err, &ce) {
			return fmt.Sprintf("Maximum %d photos allowed", ce.Max)
		}
		return "Maximum photos reached"
	case errors.Is(err, ErrPermissionDenied):
		return "Photo library access required"
	case errors.Is(err, ErrFileTooLarge):
		return "File size too large"
	case errors.Is(err, ErrUnsupportedType):
		return "Unsupported file type"
	case errors.Is(err, ErrInvalidAsset):
		return "Invalid photo"
	case errors.Is(err, ErrProcessingFailed):
		return "Failed to process image"
	case errors.Is(err, ErrUploadTimeout):
		return "Upload timed out"
	case errors.Is(err, ErrRetriesExhausted):
		return "Upload failed. Please try again"
	case errors.Is(err, ErrSlotNotFound):
		return "Photo not found"
	case errors.Is(err, ErrPrimaryRemoval):
		return "Cannot remove primary photo"
	case errors.Is(err, ErrIndexOutOfRange):
		return "Invalid photo position"
	case errors.Is(err, ErrSessionClosed):
		return "Photo session closed"
	}
	return "Something went wrong"
}
