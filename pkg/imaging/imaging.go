// Package imaging holds the presentation-side image helpers: the legacy
// widget displayed challenge images at twice their downloaded size, and the
// CLI and demo gateway keep that convention.
package imaging

import (
	"bytes"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// Decode parses raw image bytes and returns the image and its format name.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// Scale resizes img by an integer factor using bilinear interpolation.
// Factors below 2 return img unchanged.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG renders img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
