package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Fit rotates img clockwise by rotation, then scales it to fit inside size
// while preserving its aspect ratio. Zero size dimensions leave that axis
// unconstrained; a zero size returns the rotated image unscaled.
func Fit(img image.Image, rotation Rotation, size Size) image.Image {
	rotated := Rotate(img, rotation)

	b := rotated.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), size)
	if w == b.Dx() && h == b.Dy() {
		return rotated
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), rotated, b, draw.Src, nil)
	return dst
}

// FitDimensions returns the largest w×h with the aspect ratio of srcW×srcH
// that fits inside size.
func FitDimensions(srcW, srcH int, size Size) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	if size.Width <= 0 && size.Height <= 0 {
		return srcW, srcH
	}

	scale := math.Inf(1)
	if size.Width > 0 {
		scale = float64(size.Width) / float64(srcW)
	}
	if size.Height > 0 {
		scale = math.Min(scale, float64(size.Height)/float64(srcH))
	}

	w := max(1, int(math.Round(float64(srcW)*scale)))
	h := max(1, int(math.Round(float64(srcH)*scale)))
	return w, h
}

// Rotate returns img rotated clockwise. Rotate0 returns img unchanged.
func Rotate(img image.Image, rotation Rotation) image.Image {
	if rotation == Rotate0 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if rotation.Quarter() {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch rotation {
			case Rotate90:
				dst.Set(h-1-y, x, c)
			case Rotate180:
				dst.Set(w-1-x, h-1-y, c)
			case Rotate270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}
