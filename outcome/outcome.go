// Package outcome classifies a finished transport result into the terminal
// state applied to a slot.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
)

// User-facing messages for terminal outcomes.
const (
	MsgDuplicate       = "Duplicate photo detected"
	MsgRejected        = "Photo rejected by moderation"
	MsgPendingReview   = "Photo is awaiting review"
	MsgUploadFailed    = "Upload failed. Please try again"
	MsgUploadCancelled = "Upload cancelled"
)

var reasonMessages = map[string]string{
	"unsafe_content":       "Photo contains unsafe content",
	"explicit_content":     "Photo contains unsafe content",
	"violence":             "Photo contains unsafe content",
	"no_pet_detected":      "No pet detected in photo",
	"security_scan_failed": "Security scan failed",
	"invalid_format":       "Invalid image format",
	"file_too_large":       "File size too large",
}

// ReasonMessage maps a moderation reason code to its user-facing message.
// Unknown codes fall back to a generic rejection message.
func ReasonMessage(code string) string {
	key := strings.ToLower(strings.TrimSpace(code))
	if msg, ok := reasonMessages[key]; ok {
		return msg
	}
	return MsgRejected
}

// Resolve maps a transport result to a terminal resolution. It never
// returns a non-terminal status.
func Resolve(r core.TransportResult) core.Resolution {
	if r.Err == nil && r.Record != nil {
		return fromRecord(*r.Record)
	}
	return fromError(r.Err, r.Attempts)
}

func fromRecord(rec core.UploadRecord) core.Resolution {
	switch rec.Moderation.Status {
	case core.ModerationApproved:
		return core.Resolution{
			Status:     core.StatusApproved,
			UploadID:   rec.UploadID,
			StorageKey: rec.StorageKey,
		}
	case core.ModerationRejected:
		return core.Resolution{
			Status:  core.StatusRejected,
			Message: ReasonMessage(rec.Moderation.Reason),
		}
	}
	// A pending or unknown verdict is not usable; the slot cannot count.
	return core.Resolution{Status: core.StatusError, Message: MsgPendingReview}
}

func fromError(err error, attempts int) core.Resolution {
	if err == nil {
		return core.Resolution{Status: core.StatusError, Message: MsgUploadFailed}
	}

	var te *core.TransportError
	if errors.As(err, &te) {
		switch te.Kind {
		case core.FailureDuplicate:
			return core.Resolution{
				Status:              core.StatusDuplicate,
				DuplicateOfID:       te.DuplicateOf,
				DuplicateConfidence: te.Confidence,
				Message:             MsgDuplicate,
			}
		case core.FailureRejected:
			return core.Resolution{Status: core.StatusRejected, Message: ReasonMessage(te.Reason)}
		}
	}

	switch {
	case errors.Is(err, apperrors.ErrUploadTimeout):
		return core.Resolution{Status: core.StatusError, Message: apperrors.UserMessage(err)}
	case errors.Is(err, apperrors.ErrRetriesExhausted) && attempts > 0:
		return core.Resolution{Status: core.StatusError, Message: fmt.Sprintf("Upload failed after %d attempts", attempts)}
	case errors.Is(err, context.Canceled):
		return core.Resolution{Status: core.StatusError, Message: MsgUploadCancelled}
	}
	return core.Resolution{Status: core.StatusError, Message: MsgUploadFailed}
}
