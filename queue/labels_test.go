package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openann19/petphotos/core"
	"github.com/openann19/petphotos/queue"
)

func TestAccessibilityLabels(t *testing.T) {
	h := newHarness(t, testConfig())

	l := h.m.AccessibilityLabels()
	assert.Equal(t, "0 of 6 photos added", l.PhotoCount)
	assert.Equal(t, "Add photo to pet profile", l.AddPhotoButton)
	assert.True(t, l.CanAdd)
	assert.Empty(t, l.Slots)

	a, b := h.add(t), h.add(t)
	h.m.Wait()

	l = h.m.AccessibilityLabels()
	assert.Equal(t, "2 of 6 photos added", l.PhotoCount)
	require.Len(t, l.Slots, 2)
	assert.Equal(t, queue.SlotLabel{ID: a.ID, Label: "Primary photo", Status: "Approved"}, l.Slots[0])
	assert.Equal(t, queue.SlotLabel{ID: b.ID, Label: "Photo 2 of 2", Status: "Approved"}, l.Slots[1])
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		slot core.PhotoSlot
		want string
	}{
		{core.PhotoSlot{Status: core.StatusUploading, Progress: 40}, "Uploading, 40%"},
		{core.PhotoSlot{Status: core.StatusApproved}, "Approved"},
		{core.PhotoSlot{Status: core.StatusDuplicate}, "Duplicate photo detected"},
		{core.PhotoSlot{Status: core.StatusRejected, ErrorMessage: "No pet detected in photo"}, "No pet detected in photo"},
		{core.PhotoSlot{Status: core.StatusError}, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, queue.StatusText(tt.slot))
	}
}
