//go:build vips

// Package vips is the libvips decode/encode backend for the image engine.
// It is selected with processing.backend = "vips".
package vips

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/pipeline"
	"github.com/openann19/petphotos/utils"
)

var startOnce sync.Once

// Backend is a unified libvips-powered Decoder and Encoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	defaultQuality int
	chunkSize      int
}

// NewBackend starts libvips once per process and returns a Backend.
// Call Shutdown when the process exits.
func NewBackend(cfg config.Processing) *Backend {
	startOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelWarning)
		govips.Startup(&govips.Config{ConcurrencyLevel: runtime.NumCPU()})
	})
	return &Backend{defaultQuality: cfg.DefaultQuality, chunkSize: cfg.ChunkSize}
}

// Shutdown releases all libvips resources.
func (b *Backend) Shutdown() { govips.Shutdown() }

// Register replaces stdlib codecs with libvips for all formats.
func (b *Backend) Register(reg core.Registry) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP} {
		reg.RegisterDecoder(f, b)
		reg.RegisterEncoder(f, b)
	}
}

// BaseSteps normalizes a photo with libvips: orient, strip, fit and
// re-encode as JPEG.
func (b *Backend) BaseSteps(cfg config.Processing, reg core.Registry) []core.Step {
	return []core.Step{
		&pipeline.DecodeStep{Registry: reg},
		&AutoRotateStep{},
		&StripStep{},
		&FitStep{Max: cfg.MaxDimension},
		&pipeline.EncodeJPEGStep{
			Registry:    reg,
			Quality:     cfg.DefaultQuality,
			MinQuality:  cfg.MinQuality,
			TargetBytes: cfg.TargetBytes,
		},
	}
}

// PreviewSteps renders the display thumbnail from the encoded base image.
func (b *Backend) PreviewSteps(cfg config.Processing, reg core.Registry) []core.Step {
	return []core.Step{
		&PreviewStep{Size: cfg.PreviewSize},
		&pipeline.EncodeJPEGStep{Registry: reg, Quality: cfg.MinQuality},
	}
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatUnknown:
		return true
	}
	return false
}

func (b *Backend) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	buf, err := utils.DrainReader(ctx, r, b.chunkSize)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	runtime.SetFinalizer(ref, func(r *govips.ImageRef) { r.Close() })

	format := toCoreFormat(ref.Format())
	return &core.ImageData{
		Data:   raw,
		Format: format,
		Image:  &Image{ref: ref},
		Meta: core.Metadata{
			Width:       ref.Width(),
			Height:      ref.Height(),
			Format:      format,
			ColorSpace:  toColorSpace(ref.Interpretation()),
			HasAlpha:    ref.HasAlpha(),
			HasEXIF:     hasExif(ref.GetFields()),
			Orientation: ref.Orientation(),
		},
		OriginalSize: int64(len(raw)),
	}, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanEncode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP:
		return true
	}
	return false
}

func (b *Backend) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	vi, ok := img.Image.(*Image)
	if !ok || vi == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("image must be decoded with the vips backend first"))
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = b.defaultQuality
	}

	var (
		out []byte
		err error
	)
	switch img.Format {
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = opts.StripEXIF
		ep.Interlace = opts.Interlaced
		out, _, err = vi.ref.ExportJpeg(ep)
	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		ep.StripMetadata = opts.StripEXIF
		ep.Interlace = opts.Interlaced
		out, _, err = vi.ref.ExportPng(ep)
	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.Lossless = opts.Lossless
		ep.StripMetadata = opts.StripEXIF
		out, _, err = vi.ref.ExportWebp(ep)
	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode."+string(img.Format), err)
	}
	return out, nil
}

// ─── Image ────────────────────────────────────────────────────────────────────

// Image wraps a *govips.ImageRef for storage in core.ImageData.Image.
type Image struct {
	ref *govips.ImageRef
}

func (v *Image) Width() int  { return v.ref.Width() }
func (v *Image) Height() int { return v.ref.Height() }

// ─── helpers ──────────────────────────────────────────────────────────────────

func toCoreFormat(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	}
	return core.FormatUnknown
}

func hasExif(fields []string) bool {
	for _, f := range fields {
		if strings.HasPrefix(f, "exif-") {
			return true
		}
	}
	return false
}

func toColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

var (
	_ core.Decoder = (*Backend)(nil)
	_ core.Encoder = (*Backend)(nil)
)
