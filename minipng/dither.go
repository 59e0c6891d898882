package minipng

import (
	"image"

	"github.com/disintegration/gift"
)

// bayerMatrix is the 4x4 ordered-dithering threshold tile. The values
// are centered around zero to avoid brightness bias; the exact
// asymmetric ordering is an authoritative constant, not the canonical
// 0-15 Bayer layout.
var bayerMatrix = [4][4]int{
	{-8, 0, -6, 2},
	{4, -4, 6, -2},
	{-5, 3, -7, 1},
	{7, -1, 5, -3},
}

// Floyd-Steinberg error attenuation: only 7/8 of the quantization error
// is diffused, trading a slight bias for less visible noise.
const (
	errorReduction = 7
	errorDivisor   = 8
)

// stepForQuality maps a quality level (1-100) to the channel
// downsampling factor. Higher quality keeps more levels per channel.
func stepForQuality(quality int) int {
	switch {
	case quality <= 40:
		return 32
	case quality <= 55:
		return 16
	case quality <= 70:
		return 12
	default:
		return 8
	}
}

// quantizeChannel rounds a channel value to the nearest multiple of
// step, clamping to [0, 255] on both ends.
func quantizeChannel(value, step int) uint8 {
	if value < 0 {
		value = 0
	} else if value > 255 {
		value = 255
	}
	q := ((value + step/2) / step) * step
	if q > 255 {
		q = 255
	}
	return uint8(q)
}

// darken selectively darkens shadows in place before quantization.
// Alpha is skipped.
func darken(img *image.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := img.Pix[i+c]
			switch {
			case v < 16:
				img.Pix[i+c] = uint8(float64(v) * 0.8)
			case v < 32:
				img.Pix[i+c] = uint8(float64(v) * 0.9)
			}
		}
	}
}

// blur applies a Gaussian blur before quantization. Smoothing the
// source reduces banding, which matters most for ModeNone.
func blur(img *image.RGBA, radius float64) *image.RGBA {
	g := gift.New(gift.GaussianBlur(float32(radius)))
	out := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(out, img)
	return out
}

// applyNone quantizes every channel independently with no dithering.
// Cleanest for gradients and UI elements, but may show banding.
func applyNone(img *image.RGBA, step int) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	for i := 0; i < len(img.Pix); i += 4 {
		out.Pix[i] = quantizeChannel(int(img.Pix[i]), step)
		out.Pix[i+1] = quantizeChannel(int(img.Pix[i+1]), step)
		out.Pix[i+2] = quantizeChannel(int(img.Pix[i+2]), step)
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

// applyOrdered tiles the Bayer threshold matrix across the image and
// adds the scaled threshold to each channel before quantizing.
// Stateless per pixel.
func applyOrdered(img *image.RGBA, step int) *image.RGBA {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(img.Rect)
	for y := 0; y < height; y++ {
		i := img.PixOffset(0, y)
		for x := 0; x < width; x++ {
			threshold := bayerMatrix[y%4][x%4] * step / 32
			out.Pix[i] = quantizeChannel(int(img.Pix[i])+threshold, step)
			out.Pix[i+1] = quantizeChannel(int(img.Pix[i+1])+threshold, step)
			out.Pix[i+2] = quantizeChannel(int(img.Pix[i+2])+threshold, step)
			out.Pix[i+3] = img.Pix[i+3]
			i += 4
		}
	}
	return out
}

// applyFloydSteinberg diffuses quantization error to unvisited
// neighbors with the classic 7-3-5-1/16 kernel. The scan is
// serpentine: even rows run left to right, odd rows right to left, with
// the kernel mirrored so error always propagates in the direction of
// travel. The pass is strictly sequential; later pixels read error
// injected by earlier ones.
func applyFloydSteinberg(img *image.RGBA, step int) *image.RGBA {
	width, height := img.Rect.Dx(), img.Rect.Dy()

	// Signed working copy of the RGB channels; accumulated error can
	// push values outside [0, 255].
	work := make([]int16, width*height*3)
	for y := 0; y < height; y++ {
		i := img.PixOffset(0, y)
		w := y * width * 3
		for x := 0; x < width; x++ {
			work[w] = int16(img.Pix[i])
			work[w+1] = int16(img.Pix[i+1])
			work[w+2] = int16(img.Pix[i+2])
			i += 4
			w += 3
		}
	}

	out := image.NewRGBA(img.Rect)
	spread := func(x, y int, err [3]int16, num int16) {
		if x < 0 || x >= width || y >= height {
			return
		}
		w := (y*width + x) * 3
		work[w] += err[0] * num / 16
		work[w+1] += err[1] * num / 16
		work[w+2] += err[2] * num / 16
	}

	for y := 0; y < height; y++ {
		forward := y%2 == 0
		for k := 0; k < width; k++ {
			x := k
			if !forward {
				x = width - 1 - k
			}
			w := (y*width + x) * 3
			old := [3]int16{work[w], work[w+1], work[w+2]}

			r := quantizeChannel(int(old[0]), step)
			g := quantizeChannel(int(old[1]), step)
			b := quantizeChannel(int(old[2]), step)

			var err [3]int16
			for c, v := range [3]uint8{r, g, b} {
				err[c] = (old[c] - int16(v)) * errorReduction / errorDivisor
			}

			dx := 1
			if !forward {
				dx = -1
			}
			spread(x+dx, y, err, 7)
			spread(x-dx, y+1, err, 3)
			spread(x, y+1, err, 5)
			spread(x+dx, y+1, err, 1)

			work[w] = int16(r)
			work[w+1] = int16(g)
			work[w+2] = int16(b)

			i := img.PixOffset(x, y)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = img.Pix[i+3]
		}
	}
	return out
}
