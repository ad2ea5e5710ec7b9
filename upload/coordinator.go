// Package upload drives one slot's transfer through the transport with
// retries, timeouts and progress propagation.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
)

// Target is the slot side of an upload. StartAttempt opens attempt n and
// returns a token; ok is false when the slot no longer accepts attempts.
// Progress carrying a token other than the latest one must be dropped.
type Target interface {
	StartAttempt(n int) (token uint64, ok bool)
	ReportProgress(token uint64, percent int)
}

// Coordinator applies the retry and timeout policy around a Transport.
// It is safe for concurrent use; each Upload call is independent.
type Coordinator struct {
	transport      core.Transport
	policy         RetryPolicy
	timeout        time.Duration
	attemptTimeout time.Duration

	logger  core.Logger
	metrics core.MetricsCollector
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// WithMetrics attaches a metrics collector for attempt accounting.
func WithMetrics(m core.MetricsCollector) Option { return func(c *Coordinator) { c.metrics = m } }

// WithPolicy overrides the retry policy derived from config.
func WithPolicy(p RetryPolicy) Option { return func(c *Coordinator) { c.policy = p } }

// NewCoordinator creates a Coordinator for transport t.
func NewCoordinator(t core.Transport, cfg config.Upload, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:      t,
		policy:         PolicyFromConfig(cfg.Retry),
		timeout:        cfg.Timeout,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         hooks.NopLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Upload runs attempts until one succeeds, a failure is not transient, the
// policy is exhausted or the overall timeout fires. It returns exactly one
// result; late results from abandoned attempts are discarded. Every
// attempt carries the same asset.UploadKey, assigned here when empty.
func (c *Coordinator) Upload(ctx context.Context, asset core.ProcessedAsset, target Target) core.TransportResult {
	if asset.UploadKey == "" {
		asset.UploadKey = uuid.NewString()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	schedule := c.policy.BackOff()
	for attempt := 1; ; attempt++ {
		token, ok := target.StartAttempt(attempt)
		if !ok {
			return core.TransportResult{
				Err:      apperrors.New(apperrors.CategoryTransport, "upload", context.Canceled),
				Attempts: attempt - 1,
			}
		}

		rec, err := c.attempt(ctx, asset, func(p int) { target.ReportProgress(token, p) })
		if c.metrics != nil {
			c.metrics.RecordUploadAttempt(attempt, err)
		}
		if err == nil {
			c.logger.Debug("upload.attempt.done", "attempt", attempt, "upload_id", rec.UploadID)
			return core.TransportResult{Record: rec, Attempts: attempt}
		}
		if ctx.Err() != nil {
			return c.interrupted(ctx, attempt)
		}
		if !Retryable(err) {
			c.logger.Warn("upload.attempt.failed", "attempt", attempt, "retryable", false, "error", err)
			return core.TransportResult{Err: err, Attempts: attempt}
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			c.logger.Warn("upload.retries.exhausted", "attempts", attempt, "error", err)
			return core.TransportResult{
				Err: apperrors.New(apperrors.CategoryTransport, "upload",
					fmt.Errorf("%w after %d attempts: %w", apperrors.ErrRetriesExhausted, attempt, err)),
				Attempts: attempt,
			}
		}
		c.logger.Info("upload.attempt.failed", "attempt", attempt, "retry_in", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return c.interrupted(ctx, attempt)
		case <-timer.C:
		}
	}
}

type attemptResult struct {
	rec *core.UploadRecord
	err error
}

// attempt runs one transport call bounded by the per-attempt timeout. The
// call runs on its own goroutine so a transport that ignores ctx cannot
// hold the slot past its deadline.
func (c *Coordinator) attempt(ctx context.Context, asset core.ProcessedAsset, onProgress func(int)) (*core.UploadRecord, error) {
	actx := ctx
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	done := make(chan attemptResult, 1)
	go func() {
		rec, err := c.transport.Upload(actx, asset, onProgress)
		done <- attemptResult{rec: rec, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.rec == nil {
			return nil, &core.TransportError{Kind: core.FailurePermanent, Reason: "empty upload record"}
		}
		if r.err != nil && actx.Err() != nil && ctx.Err() == nil {
			return nil, attemptTimedOut(actx.Err())
		}
		return r.rec, r.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, attemptTimedOut(actx.Err())
	}
}

func attemptTimedOut(err error) error {
	return &core.TransportError{Kind: core.FailureTransient, Reason: "attempt timed out", Err: err}
}

func (c *Coordinator) interrupted(ctx context.Context, attempts int) core.TransportResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("upload.timeout", "attempts", attempts, "timeout", c.timeout.String())
		return core.TransportResult{
			Err:      apperrors.New(apperrors.CategoryTransport, "upload", apperrors.ErrUploadTimeout),
			Attempts: attempts,
		}
	}
	return core.TransportResult{
		Err:      apperrors.New(apperrors.CategoryTransport, "upload", ctx.Err()),
		Attempts: attempts,
	}
}

// Retryable reports whether a transport failure is worth another attempt:
// transient TransportErrors, transient ProcessingErrors and network errors.
func Retryable(err error) bool {
	var te *core.TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	if apperrors.IsRetryable(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
