// Package corefakes holds generated fakes for the core collaborator
// interfaces plus a few constructors for common test setups.
package corefakes

import (
	"context"

	"github.com/openann19/petphotos/core"
)

// NewFakePicker returns a picker that grants permission and returns asset
// on every pick.
func NewFakePicker(asset core.Asset) *FakePicker {
	f := &FakePicker{}
	f.RequestPermissionReturns(true, nil)
	f.PickImageReturns(core.PickResult{Asset: asset}, nil)
	return f
}

// NewFakeAssetProcessor returns a processor that echoes the asset back with
// a processed uri and a small preview buffer.
func NewFakeAssetProcessor() *FakeAssetProcessor {
	f := &FakeAssetProcessor{}
	f.ProcessCalls(func(_ context.Context, a core.Asset) (core.ProcessedAsset, error) {
		return core.ProcessedAsset{
			URI:      a.URI + ".processed",
			Name:     a.Name,
			Width:    a.Width,
			Height:   a.Height,
			ByteSize: a.ByteSize,
			MimeType: "image/jpeg",
			Data:     []byte("jpeg"),
			Preview:  []byte("preview"),
		}, nil
	})
	return f
}

// Approved returns an approved upload record.
func Approved(uploadID, key string) *core.UploadRecord {
	return &core.UploadRecord{
		UploadID:   uploadID,
		StorageKey: key,
		Moderation: core.Moderation{Status: core.ModerationApproved},
	}
}
