package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Normalize converts img to NRGBA and downsamples it so neither side exceeds maxDim,
// preserving aspect ratio. Smaller images are converted without resampling.
func Normalize(img image.Image, maxDim int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		nw, nh := fitWithin(w, h, maxDim)
		dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

// EncodePNG normalizes img and returns the PNG bytes written for a persisted logo.
// The encoding is deterministic, so equal inputs yield equal bytes and hashes.
func EncodePNG(img image.Image, maxDim int) ([]byte, *image.NRGBA, error) {
	out := Normalize(img, maxDim)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), out, nil
}
