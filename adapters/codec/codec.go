// Package codec provides pure-Go decoders and encoders for the image engine.
package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/webp"

	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
)

// Stdlib decodes JPEG, PNG and lossy WebP and encodes JPEG and PNG.
// WebP output is not offered; the vips backend covers it.
type Stdlib struct {
	format         core.Format
	defaultQuality int
}

// New returns a codec bound to format.
func New(format core.Format, defaultQuality int) *Stdlib {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return &Stdlib{format: format, defaultQuality: defaultQuality}
}

// Register installs stdlib codecs for every supported format.
func Register(reg core.Registry, defaultQuality int) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP} {
		c := New(f, defaultQuality)
		reg.RegisterDecoder(f, c)
		if c.CanEncode(f) {
			reg.RegisterEncoder(f, c)
		}
	}
}

func (c *Stdlib) CanDecode(f core.Format) bool { return f == c.format }

func (c *Stdlib) CanEncode(f core.Format) bool {
	return f == c.format && (f == core.FormatJPEG || f == core.FormatPNG)
}

func (c *Stdlib) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	op := string(c.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	var (
		img image.Image
		err error
	)
	switch c.format {
	case core.FormatJPEG:
		img, err = jpeg.Decode(r)
	case core.FormatPNG:
		img, err = png.Decode(r)
	case core.FormatWebP:
		img, err = webp.Decode(r)
	default:
		err = fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, c.format)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	b := img.Bounds()
	return &core.ImageData{
		Image:  img,
		Format: c.format,
		Meta: core.Metadata{
			Width:      b.Dx(),
			Height:     b.Dy(),
			Format:     c.format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

func (c *Stdlib) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	op := string(c.format) + ".encode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	}

	// Re-encoding from decoded pixels never carries EXIF, so StripEXIF is
	// satisfied implicitly.
	var buf bytes.Buffer
	switch c.format {
	case core.FormatJPEG:
		q := opts.Quality
		if q <= 0 {
			q = c.defaultQuality
		}
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: q}); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
		}
	case core.FormatPNG:
		level := png.DefaultCompression
		if opts.Lossless {
			level = png.BestCompression
		}
		enc := png.Encoder{CompressionLevel: level}
		if err := enc.Encode(&buf, src); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
		}
	default:
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, c.format))
	}
	return buf.Bytes(), nil
}

func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

var (
	_ core.Decoder = (*Stdlib)(nil)
	_ core.Encoder = (*Stdlib)(nil)
)
