package transport

import (
	"context"
	"strings"

	"github.com/openann19/petphotos/core"
)

// Moderator screens an uploaded photo for safety.
type Moderator interface {
	Moderate(ctx context.Context, asset core.ProcessedAsset) (core.Moderation, error)
}

// AllowAll approves everything.
type AllowAll struct{}

func (AllowAll) Moderate(context.Context, core.ProcessedAsset) (core.Moderation, error) {
	return core.Moderation{Status: core.ModerationApproved}, nil
}

// DefaultRejectReason is used for deny markers without an explicit reason.
const DefaultRejectReason = "unsafe_content"

// DenyList rejects assets whose name contains a marker. Entries have the form
// "marker" or "marker=reason_code".
type DenyList struct {
	rules []denyRule
}

type denyRule struct {
	marker string
	reason string
}

func NewDenyList(entries ...string) *DenyList {
	d := &DenyList{}
	for _, e := range entries {
		marker, reason, _ := strings.Cut(e, "=")
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = DefaultRejectReason
		}
		d.rules = append(d.rules, denyRule{marker: marker, reason: reason})
	}
	return d
}

func (d *DenyList) Moderate(ctx context.Context, asset core.ProcessedAsset) (core.Moderation, error) {
	if err := ctx.Err(); err != nil {
		return core.Moderation{}, err
	}
	name := strings.ToLower(asset.Name)
	for _, r := range d.rules {
		if strings.Contains(name, r.marker) {
			return core.Moderation{Status: core.ModerationRejected, Reason: r.reason}, nil
		}
	}
	return core.Moderation{Status: core.ModerationApproved}, nil
}

var (
	_ Moderator = AllowAll{}
	_ Moderator = (*DenyList)(nil)
)
