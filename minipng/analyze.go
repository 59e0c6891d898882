package minipng

import (
	"image"
	"math"
	"sort"
)

// ImageAnalysis holds the characteristics used to pick a dithering mode.
type ImageAnalysis struct {
	// GradientSmoothness is the average horizontal color gradient
	// magnitude (0-255). Lower = smoother.
	GradientSmoothness float64

	// EdgeDensity is the fraction of sampled pixels on an edge (0-1).
	// Higher = more complex/detailed.
	EdgeDensity float64

	// ColorDiversity is the number of unique colors after bucketing
	// each channel into 16 levels.
	ColorDiversity int

	// LocalVariance is the median luma variance over 8x8 blocks.
	// Lower = more uniform image.
	LocalVariance float64

	// DetailFrequency is the fraction of sampled pixels with
	// high-frequency detail. Higher = more photo-like.
	DetailFrequency float64
}

// Decision thresholds for SelectMode, tuned against the reference corpus.
const (
	smoothGradientThreshold = 5.0
	lowEdgeThreshold        = 0.15
	lowVarianceThreshold    = 200.0
	lowColorDiversity       = 100
	moderateColorDiversity  = 300
	highColorDiversity      = 500
	highDetailFrequency     = 0.25
	photoEdgeThreshold      = 0.35
)

// Sobel edge threshold and high-frequency neighbor L1 threshold.
const (
	edgeGradientThreshold = 30.0
	detailDiffThreshold   = 20
)

// Analyze scans an image and extracts its characteristics. A
// zero-dimension image yields all-zero metrics.
func Analyze(img *image.RGBA) ImageAnalysis {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if width == 0 || height == 0 {
		return ImageAnalysis{}
	}
	return ImageAnalysis{
		GradientSmoothness: gradientSmoothness(img, width, height),
		EdgeDensity:        edgeDensity(img, width, height),
		ColorDiversity:     colorDiversity(img, width, height),
		LocalVariance:      localVariance(img, width, height),
		DetailFrequency:    detailFrequency(img, width, height),
	}
}

// RecommendMode analyzes an image and returns the best concrete
// dithering mode for its content.
func RecommendMode(img *image.RGBA) Mode {
	return SelectMode(Analyze(img))
}

// SelectMode maps image characteristics to a concrete mode. It is a
// pure, total function: the final Ordered fallback always applies.
func SelectMode(a ImageAnalysis) Mode {
	// Very smooth gradient with low complexity: no dithering is cleanest.
	if a.GradientSmoothness < smoothGradientThreshold &&
		a.EdgeDensity < lowEdgeThreshold &&
		a.LocalVariance < lowVarianceThreshold {
		return ModeNone
	}

	// Simple image with few colors.
	if a.ColorDiversity < lowColorDiversity && a.EdgeDensity < lowEdgeThreshold {
		return ModeNone
	}

	// Many distinct colors but not photo-like: distinct flat color
	// regions (logos, illustrations, UI) quantize best with a palette.
	if a.ColorDiversity > lowColorDiversity && a.ColorDiversity < highColorDiversity &&
		a.EdgeDensity > lowEdgeThreshold && a.EdgeDensity < photoEdgeThreshold &&
		a.DetailFrequency < highDetailFrequency {
		return ModeMedianCut
	}

	// Photo-like with high detail frequency.
	if a.DetailFrequency > highDetailFrequency &&
		a.EdgeDensity > photoEdgeThreshold &&
		a.ColorDiversity > moderateColorDiversity {
		return ModeFloydSteinberg
	}

	// High-complexity photo content.
	if a.EdgeDensity > 0.4 && a.LocalVariance > 600.0 && a.ColorDiversity > highColorDiversity {
		return ModeFloydSteinberg
	}

	// Moderately complex but still fairly smooth.
	if a.GradientSmoothness < smoothGradientThreshold*2 && a.EdgeDensity < 0.3 {
		return ModeOrdered
	}

	// Safe middle ground.
	return ModeOrdered
}

// gradientSmoothness measures the mean absolute horizontal difference
// between neighboring pixels, sampled on a sparse grid.
func gradientSmoothness(img *image.RGBA, width, height int) float64 {
	total := 0.0
	count := 0
	for y := 0; y < height; y += 4 {
		for x := 0; x < width; x += 4 {
			if x+1 >= width {
				continue
			}
			i := img.PixOffset(x, y)
			j := img.PixOffset(x+1, y)
			p, q := img.Pix[i:i+3:i+3], img.Pix[j:j+3:j+3]
			diff := abs(int(q[0])-int(p[0])) + abs(int(q[1])-int(p[1])) + abs(int(q[2])-int(p[2]))
			total += float64(diff)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// edgeDensity measures the fraction of sampled interior pixels whose
// Sobel gradient magnitude exceeds the edge threshold.
func edgeDensity(img *image.RGBA, width, height int) float64 {
	edges := 0
	total := 0
	for y := 1; y < height-1; y += 4 {
		for x := 1; x < width-1; x += 4 {
			if pixelGradient(img, x, y) > edgeGradientThreshold {
				edges++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(edges) / float64(total)
}

// pixelGradient computes the Sobel gradient magnitude at (x, y) on the
// luma channel. Callers must keep a 1-pixel border.
func pixelGradient(img *image.RGBA, x, y int) float64 {
	at := func(x, y int) float64 {
		i := img.PixOffset(x, y)
		return luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
	}
	gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
		at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
	gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
		at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
	return math.Sqrt(gx*gx + gy*gy)
}

// colorDiversity counts unique colors after bucketing each channel into
// 16 levels. Every pixel is counted, not a sparse sample, so the result
// tracks visually distinguishable colors across the whole image.
func colorDiversity(img *image.RGBA, width, height int) int {
	seen := map[[3]uint8]struct{}{}
	for y := 0; y < height; y++ {
		i := img.PixOffset(0, y)
		for x := 0; x < width; x++ {
			seen[[3]uint8{img.Pix[i] / 16, img.Pix[i+1] / 16, img.Pix[i+2] / 16}] = struct{}{}
			i += 4
		}
	}
	return len(seen)
}

// localVariance tiles the image into 8x8 blocks and returns the median
// of the per-block luma variances. The median resists a single
// high-contrast region dominating an otherwise flat image.
func localVariance(img *image.RGBA, width, height int) float64 {
	var variances []float64
	for by := 0; by < height; by += 8 {
		for bx := 0; bx < width; bx += 8 {
			variances = append(variances, blockVariance(img, bx, by, width, height))
		}
	}
	if len(variances) == 0 {
		return 0
	}
	sort.Float64s(variances)
	return variances[len(variances)/2]
}

func blockVariance(img *image.RGBA, startX, startY, width, height int) float64 {
	endX := min(startX+8, width)
	endY := min(startY+8, height)

	var values []float64
	for y := startY; y < endY; y++ {
		for x := startX; x < endX; x++ {
			i := img.PixOffset(x, y)
			values = append(values, luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
		}
	}
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(values))
}

// detailFrequency measures how often a sampled pixel differs sharply
// from at least 2 of its 4 axis-aligned neighbors.
func detailFrequency(img *image.RGBA, width, height int) float64 {
	highFreq := 0
	total := 0
	for y := 2; y < height-2; y += 4 {
		for x := 2; x < width-2; x += 4 {
			c := img.PixOffset(x, y)
			changes := 0
			for _, n := range [4]int{
				img.PixOffset(x-1, y),
				img.PixOffset(x+1, y),
				img.PixOffset(x, y-1),
				img.PixOffset(x, y+1),
			} {
				diff := abs(int(img.Pix[c])-int(img.Pix[n])) +
					abs(int(img.Pix[c+1])-int(img.Pix[n+1])) +
					abs(int(img.Pix[c+2])-int(img.Pix[n+2]))
				if diff > detailDiffThreshold {
					changes++
				}
			}
			if changes >= 2 {
				highFreq++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(highFreq) / float64(total)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
