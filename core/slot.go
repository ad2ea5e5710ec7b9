package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a photo slot.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusDuplicate, StatusError:
		return true
	}
	return false
}

// PhotoSlot is one entry in the photo queue.
type PhotoSlot struct {
	ID           string
	LocalURI     string
	ProcessedURI string
	Status       Status
	Progress     int
	IsPrimary    bool

	UploadID   string
	StorageKey string

	DuplicateOfID       string
	DuplicateConfidence float64

	RetryCount   int
	ErrorMessage string

	Width    int
	Height   int
	MimeType string

	// Preview is the cached display buffer; nil once released.
	Preview []byte

	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// NewSlotID returns a fresh, never reused slot identifier.
func NewSlotID() string { return uuid.NewString() }

// NewUploadingSlot builds a slot for a processed asset, ready for transfer.
func NewUploadingSlot(src Asset, processed ProcessedAsset) *PhotoSlot {
	return &PhotoSlot{
		ID:           NewSlotID(),
		LocalURI:     src.URI,
		ProcessedURI: processed.URI,
		Status:       StatusUploading,
		Width:        processed.Width,
		Height:       processed.Height,
		MimeType:     processed.MimeType,
		Preview:      processed.Preview,
		CreatedAt:    time.Now(),
	}
}

// NewFailedSlot builds a slot that never reached the transport phase.
func NewFailedSlot(src Asset, message string) *PhotoSlot {
	now := time.Now()
	return &PhotoSlot{
		ID:           NewSlotID(),
		LocalURI:     src.URI,
		Status:       StatusError,
		ErrorMessage: message,
		Width:        src.Width,
		Height:       src.Height,
		MimeType:     src.MimeType,
		CreatedAt:    now,
		ResolvedAt:   &now,
	}
}

// IsTerminal reports whether the slot has been finalized.
func (s *PhotoSlot) IsTerminal() bool { return s.Status.IsTerminal() }

// SetProgress records transfer progress. Values are clamped to 0..100 and
// never move backwards; progress is frozen once the slot is terminal.
func (s *PhotoSlot) SetProgress(p int) bool {
	if s.Status != StatusUploading {
		return false
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p <= s.Progress {
		return false
	}
	s.Progress = p
	return true
}

// Resolve finalizes the slot. A slot is finalized exactly once.
func (s *PhotoSlot) Resolve(r Resolution) error {
	if s.Status != StatusUploading {
		return fmt.Errorf("cannot resolve photo %s: current status is %s, expected %s",
			s.ID, s.Status, StatusUploading)
	}
	if !r.Status.IsTerminal() {
		return fmt.Errorf("cannot resolve photo %s to non-terminal status %s", s.ID, r.Status)
	}

	now := time.Now()
	s.Status = r.Status
	s.ResolvedAt = &now
	s.ErrorMessage = r.Message

	switch r.Status {
	case StatusApproved:
		s.UploadID = r.UploadID
		s.StorageKey = r.StorageKey
		s.Progress = 100
	case StatusDuplicate:
		s.DuplicateOfID = r.DuplicateOfID
		s.DuplicateConfidence = r.DuplicateConfidence
	}
	return nil
}

// ReleasePreview drops the cached preview buffer of an approved slot and
// reports whether anything was released.
func (s *PhotoSlot) ReleasePreview() bool {
	if s.Status != StatusApproved || s.Preview == nil {
		return false
	}
	s.Preview = nil
	return true
}

// Clone returns a deep copy safe to hand to readers.
func (s *PhotoSlot) Clone() PhotoSlot {
	out := *s
	if s.Preview != nil {
		out.Preview = append([]byte(nil), s.Preview...)
	}
	if s.ResolvedAt != nil {
		t := *s.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
