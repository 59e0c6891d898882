package minipng

import (
	"image"
	"sort"
)

const denoiseBlockSize = 8

// Denoise removes dithering speckle from smooth gradient regions while
// leaving edges alone. The image is partitioned into 8x8 blocks; a
// block qualifies as "gradient with noise" when its edge density is low
// but its average neighbor difference is high, and only noticeably
// noisy blocks are actually filtered. Qualifying blocks get a 3x3
// channel-wise median filter on their interior pixels.
func Denoise(img *image.RGBA) *image.RGBA {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)

	for blockY := 0; blockY < height; blockY += denoiseBlockSize {
		for blockX := 0; blockX < width; blockX += denoiseBlockSize {
			endX := min(blockX+denoiseBlockSize, width)
			endY := min(blockY+denoiseBlockSize, height)

			isGradient, noise := analyzeBlock(img, blockX, blockY, endX, endY)
			if isGradient && noise > 15.0 {
				medianFilterBlock(img, out, blockX, blockY, endX, endY)
			}
		}
	}
	return out
}

// analyzeBlock classifies a block, returning whether it looks like a
// gradient area and its noise level (average 4-neighbor difference).
func analyzeBlock(img *image.RGBA, startX, startY, endX, endY int) (bool, float64) {
	edgeCount := 0
	totalPixels := 0
	varianceSum := 0.0

	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			if x == 0 || y == 0 || x >= endX-1 || y >= endY-1 {
				continue
			}
			center := img.PixOffset(x, y)
			right := img.PixOffset(x+1, y)
			bottom := img.PixOffset(x, y+1)

			if pixelDiff(img, center, right) > 30.0 || pixelDiff(img, center, bottom) > 30.0 {
				edgeCount++
			}

			neighbors := [4]int{
				img.PixOffset(x-1, y),
				right,
				img.PixOffset(x, y-1),
				bottom,
			}
			diffs := 0.0
			for _, n := range neighbors {
				diffs += pixelDiff(img, center, n)
			}
			varianceSum += diffs / 4
			totalPixels++
		}
	}

	if totalPixels == 0 {
		return false, 0
	}
	edgeDensity := float64(edgeCount) / float64(totalPixels)
	avgVariance := varianceSum / float64(totalPixels)

	// Gradient: few edges, but some residual variance (dither noise).
	return edgeDensity < 0.15 && avgVariance > 5.0, avgVariance
}

// pixelDiff is the mean absolute RGB difference between the pixels at
// two Pix offsets.
func pixelDiff(img *image.RGBA, i, j int) float64 {
	dr := abs(int(img.Pix[i]) - int(img.Pix[j]))
	dg := abs(int(img.Pix[i+1]) - int(img.Pix[j+1]))
	db := abs(int(img.Pix[i+2]) - int(img.Pix[j+2]))
	return float64(dr+dg+db) / 3
}

// medianFilterBlock replaces each interior pixel of the block with the
// channel-wise median of its 3x3 neighborhood. Border pixels stay
// untouched so the filter never reads outside the block's halo.
func medianFilterBlock(src *image.RGBA, dst *image.RGBA, startX, startY, endX, endY int) {
	var rs, gs, bs [9]int
	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			if x == 0 || y == 0 || x >= endX-1 || y >= endY-1 {
				continue
			}
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					i := src.PixOffset(x+dx, y+dy)
					rs[n] = int(src.Pix[i])
					gs[n] = int(src.Pix[i+1])
					bs[n] = int(src.Pix[i+2])
					n++
				}
			}
			sort.Ints(rs[:])
			sort.Ints(gs[:])
			sort.Ints(bs[:])

			i := dst.PixOffset(x, y)
			dst.Pix[i] = uint8(rs[4])
			dst.Pix[i+1] = uint8(gs[4])
			dst.Pix[i+2] = uint8(bs[4])
			// Alpha copied from the source pixel, never filtered.
			dst.Pix[i+3] = src.Pix[i+3]
		}
	}
}
