package minipng

import (
	"image"
	"testing"
)

func solidImage(width, height int, c Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// checkerboard builds a two-color checkerboard with cells of the given
// size.
func checkerboard(width, height, cell int, a, b Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
	return img
}

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / (width - 1))
			i := img.PixOffset(x, y)
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 255
		}
	}
	return img
}

func TestAnalyzeDegenerate(t *testing.T) {
	a := Analyze(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if a != (ImageAnalysis{}) {
		t.Errorf("expected zero metrics for empty image, got %+v", a)
	}
}

func TestAnalyzeSolidGray(t *testing.T) {
	a := Analyze(solidImage(64, 64, Color{128, 128, 128, 255}))
	if a.GradientSmoothness != 0 {
		t.Errorf("expected zero gradient but got %f", a.GradientSmoothness)
	}
	if a.EdgeDensity != 0 {
		t.Errorf("expected zero edge density but got %f", a.EdgeDensity)
	}
	if a.ColorDiversity != 1 {
		t.Errorf("expected 1 bucketed color but got %d", a.ColorDiversity)
	}
	if a.LocalVariance != 0 {
		t.Errorf("expected zero variance but got %f", a.LocalVariance)
	}
	if mode := SelectMode(a); mode != ModeNone {
		t.Errorf("expected mode none for solid gray but got %v", mode)
	}
}

func TestAnalyzeCheckerboard(t *testing.T) {
	// 2px cells: every sampled Sobel window straddles a cell boundary.
	img := checkerboard(64, 64, 2, Color{0, 0, 0, 255}, Color{255, 255, 255, 255})
	a := Analyze(img)
	if a.ColorDiversity != 2 {
		t.Errorf("expected 2 bucketed colors but got %d", a.ColorDiversity)
	}
	if a.EdgeDensity < 0.9 {
		t.Errorf("expected near-total edge density but got %f", a.EdgeDensity)
	}
	if a.DetailFrequency < 0.9 {
		t.Errorf("expected near-total detail frequency but got %f", a.DetailFrequency)
	}
	if a.LocalVariance < 600 {
		t.Errorf("expected high local variance but got %f", a.LocalVariance)
	}
	// 2 colors fail every diversity gate, so the selector lands on the
	// Ordered fallback.
	if mode := SelectMode(a); mode != ModeOrdered {
		t.Errorf("expected mode ordered for checkerboard but got %v", mode)
	}
}

func TestSelectModeDecisionList(t *testing.T) {
	cases := []struct {
		name string
		a    ImageAnalysis
		want Mode
	}{
		{
			"smooth low-complexity",
			ImageAnalysis{GradientSmoothness: 4.9, EdgeDensity: 0.14, LocalVariance: 199, ColorDiversity: 1000},
			ModeNone,
		},
		{
			"few colors low edges",
			ImageAnalysis{GradientSmoothness: 50, EdgeDensity: 0.1, ColorDiversity: 99, LocalVariance: 500},
			ModeNone,
		},
		{
			"flat color regions",
			ImageAnalysis{GradientSmoothness: 50, EdgeDensity: 0.2, ColorDiversity: 400, DetailFrequency: 0.2, LocalVariance: 500},
			ModeMedianCut,
		},
		{
			"photo high detail",
			ImageAnalysis{GradientSmoothness: 50, EdgeDensity: 0.36, ColorDiversity: 600, DetailFrequency: 0.3, LocalVariance: 500},
			ModeFloydSteinberg,
		},
		{
			"photo high variance",
			ImageAnalysis{GradientSmoothness: 50, EdgeDensity: 0.41, ColorDiversity: 501, DetailFrequency: 0.1, LocalVariance: 601},
			ModeFloydSteinberg,
		},
		{
			"mildly smooth",
			ImageAnalysis{GradientSmoothness: 9.9, EdgeDensity: 0.29, ColorDiversity: 1000, LocalVariance: 1000},
			ModeOrdered,
		},
		{
			"fallback",
			ImageAnalysis{GradientSmoothness: 100, EdgeDensity: 0.9, ColorDiversity: 50, DetailFrequency: 0.9, LocalVariance: 5000},
			ModeOrdered,
		},
	}
	for _, c := range cases {
		if got := SelectMode(c.a); got != c.want {
			t.Errorf("%s: expected %v but got %v", c.name, c.want, got)
		}
		// Pure function: the same metrics always map to the same mode.
		if again := SelectMode(c.a); again != SelectMode(c.a) {
			t.Errorf("%s: selector is not deterministic", c.name)
		}
	}
}

func TestSelectModeBoundaries(t *testing.T) {
	// Exactly at the edge-density threshold: rule 1 and rule 2 both
	// require strictly less than 0.15, so neither fires.
	at := ImageAnalysis{GradientSmoothness: 4, EdgeDensity: 0.15, LocalVariance: 100, ColorDiversity: 50}
	if got := SelectMode(at); got != ModeOrdered {
		t.Errorf("edge density 0.15: expected ordered but got %v", got)
	}
	below := at
	below.EdgeDensity = 0.149
	if got := SelectMode(below); got != ModeNone {
		t.Errorf("edge density 0.149: expected none but got %v", got)
	}

	// Diversity exactly at 500 fails both the median-cut upper bound
	// and the high-diversity photo rule.
	div := ImageAnalysis{GradientSmoothness: 50, EdgeDensity: 0.41, ColorDiversity: 500, DetailFrequency: 0.1, LocalVariance: 601}
	if got := SelectMode(div); got != ModeOrdered {
		t.Errorf("diversity 500: expected ordered but got %v", got)
	}
	div.ColorDiversity = 501
	if got := SelectMode(div); got != ModeFloydSteinberg {
		t.Errorf("diversity 501: expected floyd-steinberg but got %v", got)
	}
}

func TestLocalVarianceUsesMedian(t *testing.T) {
	// Flat image with one high-contrast 8x8 block: the median must
	// ignore the outlier block.
	img := solidImage(64, 64, Color{100, 100, 100, 255})
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := img.PixOffset(x, y)
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
		}
	}
	a := Analyze(img)
	if a.LocalVariance != 0 {
		t.Errorf("expected median variance 0 with a single outlier block, got %f", a.LocalVariance)
	}
}
