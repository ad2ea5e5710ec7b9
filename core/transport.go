package core

import (
	"fmt"
	"net/http"
)

// ModerationStatus is the server-side screening verdict.
type ModerationStatus string

const (
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
	ModerationPending  ModerationStatus = "pending"
)

// Moderation is the verdict attached to a successful transfer.
type Moderation struct {
	Status ModerationStatus
	Reason string
}

// UploadRecord is the transport's success payload.
type UploadRecord struct {
	UploadID   string
	StorageKey string
	Moderation Moderation
}

// FailureKind classifies a structured transport failure.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailureDuplicate FailureKind = "duplicate"
	FailureRejected  FailureKind = "rejected"
	FailurePermanent FailureKind = "permanent"
)

// TransportError is the structured failure returned by a Transport.
type TransportError struct {
	Kind       FailureKind
	StatusCode int
	Reason     string

	// Populated for duplicates.
	DuplicateOf string
	Confidence  float64

	Err error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *TransportError) Retryable() bool { return e.Kind == FailureTransient }

// DuplicateConflict builds the 409-equivalent duplicate failure.
func DuplicateConflict(duplicateOf string, confidence float64) *TransportError {
	return &TransportError{
		Kind:        FailureDuplicate,
		StatusCode:  http.StatusConflict,
		Reason:      "duplicate",
		DuplicateOf: duplicateOf,
		Confidence:  confidence,
	}
}

// TransportResult is the final outcome of all attempts for one slot.
type TransportResult struct {
	Record   *UploadRecord
	Err      error
	Attempts int
}

// Resolution is the terminal state the queue applies to a slot.
type Resolution struct {
	Status              Status
	UploadID            string
	StorageKey          string
	DuplicateOfID       string
	DuplicateConfidence float64
	Message             string
}
