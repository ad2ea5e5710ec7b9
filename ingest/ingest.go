// Package ingest turns a picker result into a validated, processed asset.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/hooks"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Result is a successful acquisition. When Failure is set the asset passed
// validation but the processor could not normalize it; the caller still
// records a slot for it.
type Result struct {
	Asset     core.Asset
	Processed *core.ProcessedAsset
	Failure   error
}

// Pipeline acquires, validates and processes one asset per call.
type Pipeline struct {
	picker    core.Picker
	processor core.AssetProcessor
	cfg       config.Ingest
	logger    core.Logger
}

// New creates a Pipeline.
func New(picker core.Picker, processor core.AssetProcessor, cfg config.Ingest) *Pipeline {
	return &Pipeline{picker: picker, processor: processor, cfg: cfg, logger: hooks.NopLogger{}}
}

// SetLogger attaches a structured logger.
func (p *Pipeline) SetLogger(l core.Logger) { p.logger = l }

// Ingest runs the picker and processor. Errors mean no slot should exist:
// cancellation (ErrCancelled), permission denial, size, type or shape
// validation. A processor failure is reported through Result.Failure.
func (p *Pipeline) Ingest(ctx context.Context) (Result, error) {
	granted, err := p.picker.RequestPermission(ctx)
	if err != nil {
		return Result{}, apperrors.New(apperrors.CategoryPermission, "ingest.permission",
			fmt.Errorf("%w: %v", apperrors.ErrPermissionDenied, err))
	}
	if !granted {
		return Result{}, apperrors.New(apperrors.CategoryPermission, "ingest.permission", apperrors.ErrPermissionDenied)
	}

	picked, err := p.picker.PickImage(ctx)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CategoryInput, "ingest.pick", err)
	}
	if picked.Cancelled {
		p.logger.Debug("ingest.cancelled")
		return Result{}, apperrors.ErrCancelled
	}

	asset := picked.Asset
	if err := p.Validate(asset); err != nil {
		p.logger.Info("ingest.rejected", "uri", asset.URI, "error", err)
		return Result{}, err
	}

	processed, err := p.processor.Process(ctx, asset)
	if err != nil {
		p.logger.Warn("ingest.process.failed", "uri", asset.URI, "error", err)
		return Result{
			Asset:   asset,
			Failure: apperrors.New(apperrors.CategoryPipeline, "ingest.process", fmt.Errorf("%w: %v", apperrors.ErrProcessingFailed, err)),
		}, nil
	}
	p.logger.Debug("ingest.done",
		"uri", asset.URI,
		"processed_uri", processed.URI,
		"size", humanize.Bytes(uint64(processed.ByteSize)),
	)
	return Result{Asset: asset, Processed: &processed}, nil
}

// Validate checks an asset's shape, declared size and MIME type.
func (p *Pipeline) Validate(a core.Asset) error {
	if err := validate.Struct(a); err != nil {
		return apperrors.New(apperrors.CategoryValidation, "ingest.validate",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidAsset, err))
	}
	if a.ByteSize >= p.cfg.MaxAssetBytes {
		return apperrors.New(apperrors.CategoryValidation, "ingest.validate",
			fmt.Errorf("%w: %s is at or above the %s limit", apperrors.ErrFileTooLarge,
				humanize.Bytes(uint64(a.ByteSize)), humanize.Bytes(uint64(p.cfg.MaxAssetBytes))))
	}
	if !p.allowed(a.MimeType) {
		return apperrors.New(apperrors.CategoryValidation, "ingest.validate",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, a.MimeType))
	}
	return nil
}

func (p *Pipeline) allowed(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, t := range p.cfg.AllowedTypes {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}
