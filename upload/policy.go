package upload

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openann19/petphotos/config"
)

// RetryPolicy is the bounded exponential schedule between transport attempts.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PolicyFromConfig builds a RetryPolicy from the upload retry section.
func PolicyFromConfig(c config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
	}
}

// BackOff returns a fresh schedule yielding MaxAttempts-1 delays followed by
// backoff.Stop. The schedule is deterministic.
func (p RetryPolicy) BackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}
	eb.Multiplier = p.Multiplier
	if eb.Multiplier < 1 {
		eb.Multiplier = 1
	}
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithMaxRetries(eb, uint64(retries))
	b.Reset()
	return b
}

// Delays lists the waits the policy schedules between attempts.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.BackOff()
	var out []time.Duration
	for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
		out = append(out, d)
	}
	return out
}
