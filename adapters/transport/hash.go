package transport

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// HashBits is the width of a difference hash.
const HashBits = 64

// DHash computes a 64-bit difference hash: the image is reduced to 9x8
// grayscale and each bit records whether a pixel is brighter than its right
// neighbour. Near-identical photos land within a few bits of each other.
func DHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, 9, 8))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	var h uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			h <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				h |= 1
			}
		}
	}
	return h
}

// HashBytes decodes an encoded image and returns its DHash.
func HashBytes(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode for hash: %w", err)
	}
	return DHash(img), nil
}

// Distance is the Hamming distance between two hashes.
func Distance(a, b uint64) int { return bits.OnesCount64(a ^ b) }

// Confidence maps a Hamming distance to a similarity score in [0, 1].
func Confidence(distance int) float64 {
	if distance < 0 {
		distance = 0
	}
	if distance > HashBits {
		distance = HashBits
	}
	return 1 - float64(distance)/HashBits
}
