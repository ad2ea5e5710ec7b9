// Package pipeline holds the steps that turn a picked photo into the JPEG
// sent for upload and the square preview kept on its slot.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/utils"
)

// Normalize returns the steps for the upload image: decode, scrub metadata,
// fit within cfg.MaxDimension and encode as JPEG no larger than
// cfg.TargetBytes where quality allows.
func Normalize(cfg config.Processing, reg core.Registry) []core.Step {
	return []core.Step{
		&DecodeStep{Registry: reg},
		&ScrubStep{},
		&FitStep{MaxDimension: cfg.MaxDimension},
		&EncodeJPEGStep{
			Registry:    reg,
			Quality:     cfg.DefaultQuality,
			MinQuality:  cfg.MinQuality,
			TargetBytes: cfg.TargetBytes,
		},
	}
}

// Preview returns the variant steps for the slot thumbnail, run on the
// output of Normalize.
func Preview(cfg config.Processing, reg core.Registry) []core.Step {
	return []core.Step{
		&ThumbnailStep{Size: cfg.PreviewSize},
		&EncodeJPEGStep{Registry: reg, Quality: cfg.MinQuality},
	}
}

// pixels returns the decoded stdlib image carried by img.
func pixels(op string, img *core.ImageData) (image.Image, error) {
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, op, apperrors.ErrEmptyInput)
	}
	return src, nil
}

func withPixels(img *core.ImageData, dst *image.RGBA) *core.ImageData {
	out := *img
	out.Image = dst
	out.Meta.Width = dst.Bounds().Dx()
	out.Meta.Height = dst.Bounds().Dy()
	return &out
}

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes the picked file's bytes with the registry's decoder for
// their sniffed format.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	dec, ok := s.Registry.DecoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	return decoded, nil
}

// ── Scrub ─────────────────────────────────────────────────────────────────────

// ScrubStep drops EXIF from the working copy so camera and location tags
// never reach the upload.
type ScrubStep struct{}

func (s *ScrubStep) Name() string { return "scrub_metadata" }

func (s *ScrubStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	out := *img
	out.Meta.EXIF = nil
	out.Meta.HasEXIF = false
	out.Meta.Orientation = 0
	return &out, nil
}

// ── Fit ───────────────────────────────────────────────────────────────────────

// FitStep downsizes the photo so its longest side is at most MaxDimension,
// keeping the aspect ratio. Smaller photos pass through untouched.
type FitStep struct {
	MaxDimension int
}

func (s *FitStep) Name() string { return "fit" }

func (s *FitStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if s.MaxDimension <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("%w: max dimension %d", apperrors.ErrInvalidDimensions, s.MaxDimension))
	}
	src, err := pixels(s.Name(), img)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := utils.FitWithin(b.Dx(), b.Dy(), s.MaxDimension)
	if w == b.Dx() && h == b.Dy() {
		return img, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return withPixels(img, dst), nil
}

// ── Thumbnail ─────────────────────────────────────────────────────────────────

// ThumbnailStep renders a square preview of at most Size pixels from the
// centre of the photo. Sources smaller than Size keep their shorter side.
type ThumbnailStep struct {
	Size int
}

func (s *ThumbnailStep) Name() string { return "thumbnail" }

func (s *ThumbnailStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if s.Size <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("%w: preview size %d", apperrors.ErrInvalidDimensions, s.Size))
	}
	src, err := pixels(s.Name(), img)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	size := min(s.Size, side)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return withPixels(img, dst), nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeJPEGStep encodes the photo as JPEG at Quality. When TargetBytes is
// set and the result is larger, quality steps down by QualityStep until the
// output fits or MinQuality is reached; the last encoding is kept either way.
type EncodeJPEGStep struct {
	Registry    core.Registry
	Quality     int
	MinQuality  int
	TargetBytes int64
	QualityStep int // defaults to 5
}

func (s *EncodeJPEGStep) Name() string { return "encode_jpeg" }

func (s *EncodeJPEGStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	enc, ok := s.Registry.EncoderFor(core.FormatJPEG)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatJPEG))
	}

	out := *img
	out.Format = core.FormatJPEG
	out.Meta.Format = core.FormatJPEG

	quality := s.Quality
	floor := min(max(s.MinQuality, 1), quality)
	step := s.QualityStep
	if step <= 0 {
		step = 5
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, s.Name(), err)
		}
		data, err := enc.Encode(ctx, &out, core.EncodeOptions{Quality: quality, StripEXIF: true})
		if err != nil {
			return nil, err
		}
		out.Data = data
		out.Meta.SizeBytes = int64(len(data))
		if s.TargetBytes <= 0 || out.Meta.SizeBytes <= s.TargetBytes || quality <= floor {
			return &out, nil
		}
		quality = max(quality-step, floor)
	}
}
