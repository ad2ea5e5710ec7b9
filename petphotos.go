// Package petphotos assembles a photo editing session for one pet profile:
// the slot queue wired to a picker, the image normalizer and an upload
// transport chosen from configuration.
package petphotos

import (
	"context"
	"errors"
	"io"

	"github.com/openann19/petphotos/adapters/processor"
	"github.com/openann19/petphotos/adapters/storage"
	"github.com/openann19/petphotos/adapters/transport"
	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
	"github.com/openann19/petphotos/ingest"
	"github.com/openann19/petphotos/queue"
	"github.com/openann19/petphotos/upload"
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Session is a queue.Manager plus the adapters it owns.
type Session struct {
	*queue.Manager

	metrics *hooks.InMemoryMetrics
	closers []io.Closer
}

// Option overrides one collaborator of a Session.
type Option func(*options)

type options struct {
	processor core.AssetProcessor
	transport core.Transport
	storage   core.StorageAdapter
	backend   processor.Backend
	logger    core.Logger
	observers []core.SlotObserver
}

// WithProcessor replaces the configured asset processor.
func WithProcessor(p core.AssetProcessor) Option { return func(o *options) { o.processor = p } }

// WithTransport replaces the configured transport.
func WithTransport(t core.Transport) Option { return func(o *options) { o.transport = t } }

// WithStorage replaces the storage used by the local transport.
func WithStorage(s core.StorageAdapter) Option { return func(o *options) { o.storage = s } }

// WithBackend selects the image backend for the default processor.
func WithBackend(b processor.Backend) Option { return func(o *options) { o.backend = b } }

// WithLogger attaches a structured logger to every component.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithObserver registers a slot observer.
func WithObserver(obs core.SlotObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// NewSession validates cfg and wires a session around picker.
func NewSession(ctx context.Context, cfg config.Config, picker core.Picker, opts ...Option) (*Session, error) {
	if picker == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "session", errors.New("picker is nil"))
	}
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "session", err)
	}
	o := options{logger: hooks.NopLogger{}}
	for _, fn := range opts {
		fn(&o)
	}

	s := &Session{metrics: hooks.NewInMemoryMetrics()}

	proc := o.processor
	if proc == nil {
		nopts := []processor.Option{
			processor.WithHook(hooks.NewMetricsHook(s.metrics)),
			processor.WithLogger(o.logger),
		}
		if o.backend != nil {
			nopts = append(nopts, processor.WithBackend(o.backend))
		}
		n, err := processor.NewNormalizer(cfg.Processing, nopts...)
		if err != nil {
			return nil, err
		}
		proc = n
	}

	tr := o.transport
	if tr == nil {
		var err error
		tr, err = s.buildTransport(ctx, cfg, o)
		if err != nil {
			return nil, err
		}
	}

	ing := ingest.New(picker, proc, cfg.Ingest)
	ing.SetLogger(o.logger)
	coord := upload.NewCoordinator(tr, cfg.Upload,
		upload.WithLogger(o.logger),
		upload.WithMetrics(s.metrics),
	)

	qopts := []queue.Option{
		queue.WithLogger(o.logger),
		queue.WithObserver(hooks.NewMetricsObserver(s.metrics)),
		queue.WithObserver(hooks.NewLoggingObserver(o.logger)),
	}
	for _, obs := range o.observers {
		qopts = append(qopts, queue.WithObserver(obs))
	}
	s.Manager = queue.NewManager(cfg.Queue, ing, coord, qopts...)
	return s, nil
}

func (s *Session) buildTransport(ctx context.Context, cfg config.Config, o options) (core.Transport, error) {
	if cfg.Transport.Backend == "http" {
		return transport.NewHTTP(cfg.Transport, transport.WithHTTPLogger(o.logger))
	}

	store := o.storage
	if store == nil {
		var err error
		switch cfg.Storage.Backend {
		case config.StorageS3:
			store, err = storage.NewS3FromConfig(ctx, cfg.Storage.S3)
		default:
			store, err = storage.NewLocalFromConfig(cfg.Storage.Local)
		}
		if err != nil {
			return nil, err
		}
	}
	local, err := transport.NewLocalFromConfig(cfg.Transport, store, o.logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, local)
	return local, nil
}

// Metrics returns a snapshot of processing and upload counters.
func (s *Session) Metrics() hooks.MetricsSnapshot { return s.metrics.Snapshot() }

// Close cancels in-flight uploads, waits for them to resolve and releases
// the transport.
func (s *Session) Close() error {
	s.Manager.Close()
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
