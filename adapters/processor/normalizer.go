// Package processor implements the asset processor collaborator on top of
// the image engine: decode, strip metadata, fit, re-encode as JPEG and
// render a preview.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/openann19/petphotos/adapters/codec"
	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/pipeline"
	"github.com/openann19/petphotos/utils"
)

const previewVariant = "preview"

// Backend supplies codecs and the step lists for one image library.
type Backend interface {
	Register(reg core.Registry)
	BaseSteps(cfg config.Processing, reg core.Registry) []core.Step
	PreviewSteps(cfg config.Processing, reg core.Registry) []core.Step
}

// Normalizer is a core.AssetProcessor.
type Normalizer struct {
	cfg      config.Processing
	engine   *core.Processor
	base     []core.Step
	variants []core.VariantDefinition
}

// Option configures a Normalizer.
type Option func(*options)

type options struct {
	backend Backend
	hooks   []core.Hook
	logger  core.Logger
}

// WithBackend replaces the pure-Go backend.
func WithBackend(b Backend) Option { return func(o *options) { o.backend = b } }

// WithHook attaches an engine hook.
func WithHook(h core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h) } }

// WithLogger attaches a structured logger to the engine.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// NewNormalizer wires the engine for cfg.
func NewNormalizer(cfg config.Processing, opts ...Option) (*Normalizer, error) {
	o := options{backend: Stdlib{}}
	for _, fn := range opts {
		fn(&o)
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryConfig, "normalizer.init", err)
		}
	}

	reg := core.NewRegistry()
	o.backend.Register(reg)

	engine := core.New(cfg, reg)
	for _, h := range o.hooks {
		engine.AddHook(h)
	}
	if o.logger != nil {
		engine.SetLogger(o.logger)
	}

	return &Normalizer{
		cfg:    cfg,
		engine: engine,
		base:   o.backend.BaseSteps(cfg, reg),
		variants: []core.VariantDefinition{
			{Name: previewVariant, Steps: o.backend.PreviewSteps(cfg, reg)},
		},
	}, nil
}

// Engine exposes the underlying image engine for counters.
func (n *Normalizer) Engine() *core.Processor { return n.engine }

// Process reads the asset from its file URI and returns the normalized JPEG.
func (n *Normalizer) Process(ctx context.Context, asset core.Asset) (core.ProcessedAsset, error) {
	path, ok := utils.PathFromURI(asset.URI)
	if !ok {
		return core.ProcessedAsset{}, apperrors.New(apperrors.CategoryInput, "normalizer.open",
			fmt.Errorf("unsupported uri %q", asset.URI))
	}
	f, err := os.Open(path)
	if err != nil {
		return core.ProcessedAsset{}, apperrors.Wrap(apperrors.CategoryInput, "normalizer.open", err)
	}
	defer f.Close()

	res, err := n.engine.ProcessVariants(ctx, core.Source{
		Reader:      f,
		ContentType: asset.MimeType,
		Name:        asset.Name,
		Size:        asset.ByteSize,
	}, n.base, n.variants)
	if err != nil {
		return core.ProcessedAsset{}, err
	}

	out := res.Primary
	if len(out.Data) == 0 {
		return core.ProcessedAsset{}, apperrors.New(apperrors.CategoryEncode, "normalizer", apperrors.ErrEmptyInput)
	}
	name := strings.TrimSuffix(asset.Name, filepath.Ext(asset.Name)) + ".jpg"
	processed := core.ProcessedAsset{
		Name:     name,
		Width:    out.Meta.Width,
		Height:   out.Meta.Height,
		ByteSize: int64(len(out.Data)),
		MimeType: core.FormatJPEG.MimeType(),
		Data:     out.Data,
	}
	if p, ok := res.Variants[previewVariant]; ok && p != nil {
		processed.Preview = p.Data
	}

	processed.URI, err = n.persist(name, out.Data)
	if err != nil {
		return core.ProcessedAsset{}, err
	}
	return processed, nil
}

// persist writes the normalized file under OutputDir, or returns an
// in-memory URI when no directory is configured.
func (n *Normalizer) persist(name string, data []byte) (string, error) {
	id := uuid.NewString()
	if n.cfg.OutputDir == "" {
		return "mem://" + id + "/" + name, nil
	}
	path := filepath.Join(n.cfg.OutputDir, id+"-"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "normalizer.persist", err)
	}
	return utils.FileURI(path), nil
}

// ── Pure-Go backend ───────────────────────────────────────────────────────────

// Stdlib is the default Backend built on the codec package and the
// pipeline steps.
type Stdlib struct{}

func (Stdlib) Register(reg core.Registry) { codec.Register(reg, 0) }

func (Stdlib) BaseSteps(cfg config.Processing, reg core.Registry) []core.Step {
	return pipeline.Normalize(cfg, reg)
}

func (Stdlib) PreviewSteps(cfg config.Processing, reg core.Registry) []core.Step {
	return pipeline.Preview(cfg, reg)
}

var (
	_ core.AssetProcessor = (*Normalizer)(nil)
	_ Backend             = Stdlib{}
)
