//go:build vips

package vips

import (
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/utils"
)

func vipsImage(step string, img *core.ImageData) (*Image, error) {
	vi, ok := img.Image.(*Image)
	if !ok || vi == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, step,
			fmt.Errorf("expected a vips image; decode with the vips backend"))
	}
	return vi, nil
}

// AutoRotateStep applies the EXIF orientation tag so stripping metadata does
// not leave the photo sideways.
type AutoRotateStep struct{}

func (s *AutoRotateStep) Name() string { return "vips.auto_rotate" }

func (s *AutoRotateStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	vi, err := vipsImage(s.Name(), img)
	if err != nil {
		return nil, err
	}
	if err := vi.ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Meta.Width = vi.ref.Width()
	out.Meta.Height = vi.ref.Height()
	out.Meta.Orientation = 0
	return &out, nil
}

// StripStep removes EXIF/XMP/IPTC metadata in place.
type StripStep struct{}

func (s *StripStep) Name() string { return "vips.strip_exif" }

func (s *StripStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	vi, err := vipsImage(s.Name(), img)
	if err != nil {
		return nil, err
	}
	vi.ref.RemoveMetadata()
	out := *img
	out.Meta.EXIF = nil
	out.Meta.HasEXIF = false
	out.Meta.Orientation = 0
	return &out, nil
}

// FitStep shrinks the image so the longest side is at most Max, using the
// Lanczos3 kernel.
type FitStep struct {
	Max int
}

func (s *FitStep) Name() string { return "vips.fit" }

func (s *FitStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	vi, err := vipsImage(s.Name(), img)
	if err != nil {
		return nil, err
	}
	w, h := utils.FitWithin(vi.ref.Width(), vi.ref.Height(), s.Max)
	if w == vi.ref.Width() && h == vi.ref.Height() {
		return img, nil
	}
	scale := float64(w) / float64(vi.ref.Width())
	if err := vi.ref.Resize(scale, govips.KernelLanczos3); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Meta.Width = vi.ref.Width()
	out.Meta.Height = vi.ref.Height()
	return &out, nil
}

// PreviewStep builds a square, centre-cropped thumbnail straight from the
// encoded bytes, leaving the full-size image untouched.
type PreviewStep struct {
	Size int
}

func (s *PreviewStep) Name() string { return "vips.preview" }

func (s *PreviewStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	ref, err := govips.NewThumbnailFromBuffer(img.Data, s.Size, s.Size, govips.InterestingCentre)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	runtime.SetFinalizer(ref, func(r *govips.ImageRef) { r.Close() })
	out := *img
	out.Image = &Image{ref: ref}
	out.Meta.Width = ref.Width()
	out.Meta.Height = ref.Height()
	return &out, nil
}

var (
	_ core.Step = (*AutoRotateStep)(nil)
	_ core.Step = (*StripStep)(nil)
	_ core.Step = (*FitStep)(nil)
	_ core.Step = (*PreviewStep)(nil)
)
