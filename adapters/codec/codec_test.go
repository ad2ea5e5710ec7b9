package codec_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/openann19/petphotos/adapters/codec"
	"github.com/openann19/petphotos/core"
	apperrors "github.com/openann19/petphotos/errors"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, G: 40, B: 40, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.NRGBA{R: 20, G: 20, B: 180, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRegister(t *testing.T) {
	reg := core.NewRegistry()
	codec.Register(reg, 90)

	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP} {
		if _, ok := reg.DecoderFor(f); !ok {
			t.Errorf("no decoder for %s", f)
		}
	}
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG} {
		if _, ok := reg.EncoderFor(f); !ok {
			t.Errorf("no encoder for %s", f)
		}
	}
	if _, ok := reg.EncoderFor(core.FormatWebP); ok {
		t.Error("webp encoding must not be offered by the pure-Go codec")
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := &core.ImageData{Image: checker(40, 24)}

	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG} {
		t.Run(string(f), func(t *testing.T) {
			c := codec.New(f, 0)
			data, err := c.Encode(ctx, src, core.EncodeOptions{Quality: 80})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := c.Decode(ctx, bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Meta.Width != 40 || out.Meta.Height != 24 || out.Format != f {
				t.Errorf("got %dx%d %s", out.Meta.Width, out.Meta.Height, out.Format)
			}
		})
	}
}

func TestPNGKeepsAlpha(t *testing.T) {
	ctx := context.Background()
	c := codec.New(core.FormatPNG, 0)
	data, err := c.Encode(ctx, &core.ImageData{Image: checker(8, 8)}, core.EncodeOptions{Lossless: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(ctx, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Meta.HasAlpha || out.Meta.ColorSpace != core.ColorSpaceRGBA {
		t.Errorf("meta = %+v", out.Meta)
	}
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	_, err := codec.New(core.FormatJPEG, 0).Decode(ctx, bytes.NewReader([]byte("not a jpeg")))
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Errorf("corrupt jpeg: %v", err)
	}

	_, err = codec.New(core.FormatJPEG, 0).Encode(ctx, &core.ImageData{}, core.EncodeOptions{})
	if !apperrors.Is(err, apperrors.ErrEmptyInput) {
		t.Errorf("missing pixels: %v", err)
	}

	_, err = codec.New(core.FormatWebP, 0).Encode(ctx, &core.ImageData{Image: checker(2, 2)}, core.EncodeOptions{})
	if !apperrors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Errorf("webp encode: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := codec.New(core.FormatPNG, 0).Decode(cancelled, bytes.NewReader(nil)); err == nil {
		t.Error("cancelled context must fail")
	}
}
