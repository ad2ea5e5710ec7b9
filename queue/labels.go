package queue

import (
	"fmt"

	"github.com/openann19/petphotos/core"
	"github.com/openann19/petphotos/outcome"
)

// AddPhotoLabel is the accessibility label of the add button.
const AddPhotoLabel = "Add photo to pet profile"

// SlotLabel is the accessibility text for one slot.
type SlotLabel struct {
	ID     string
	Label  string
	Status string
}

// Labels are the accessibility strings derived from current state.
type Labels struct {
	PhotoCount     string
	AddPhotoButton string
	CanAdd         bool
	Slots          []SlotLabel
}

// AccessibilityLabels computes labels from one consistent snapshot.
func (m *Manager) AccessibilityLabels() Labels {
	photos := m.Photos()
	n := len(photos)
	l := Labels{
		PhotoCount:     fmt.Sprintf("%d of %d photos added", n, m.cfg.MaxPhotos),
		AddPhotoButton: AddPhotoLabel,
		CanAdd:         n < m.cfg.MaxPhotos,
		Slots:          make([]SlotLabel, n),
	}
	for i, s := range photos {
		label := fmt.Sprintf("Photo %d of %d", i+1, n)
		if s.IsPrimary {
			label = "Primary photo"
		}
		l.Slots[i] = SlotLabel{ID: s.ID, Label: label, Status: StatusText(s)}
	}
	return l
}

// StatusText is the human-readable state of a slot.
func StatusText(s core.PhotoSlot) string {
	switch s.Status {
	case core.StatusUploading:
		return fmt.Sprintf("Uploading, %d%%", s.Progress)
	case core.StatusApproved:
		return "Approved"
	case core.StatusDuplicate:
		return outcome.MsgDuplicate
	case core.StatusRejected, core.StatusError:
		if s.ErrorMessage != "" {
			return s.ErrorMessage
		}
	}
	return string(s.Status)
}
