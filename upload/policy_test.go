package upload_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/upload"
)

func TestRetryPolicy_Delays(t *testing.T) {
	tests := []struct {
		name   string
		policy upload.RetryPolicy
		want   []time.Duration
	}{
		{
			name:   "default",
			policy: upload.PolicyFromConfig(config.Default().Upload.Retry),
			want:   []time.Duration{500 * time.Millisecond, time.Second},
		},
		{
			name:   "capped",
			policy: upload.RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2},
			want:   []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second},
		},
		{
			name:   "single attempt",
			policy: upload.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delays())
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, upload.Retryable(&core.TransportError{Kind: core.FailureTransient}))
	assert.True(t, upload.Retryable(apperrors.Transient("upload", errors.New("flaky"))))
	assert.True(t, upload.Retryable(&net.DNSError{Err: "no such host", Name: "api"}))
	assert.False(t, upload.Retryable(core.DuplicateConflict("x", 1)))
	assert.False(t, upload.Retryable(errors.New("boom")))
}
