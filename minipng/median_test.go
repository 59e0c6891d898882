package minipng

import (
	"image"
	"math/rand"
	"testing"
)

// bandedImage fills the image with horizontal bands cycling through the
// given colors.
func bandedImage(width, height int, colors []Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bandHeight := height / len(colors)
	for y := 0; y < height; y++ {
		band := y / bandHeight
		if band >= len(colors) {
			band = len(colors) - 1
		}
		c := colors[band]
		for x := 0; x < width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
	return img
}

func TestBuildPaletteStopsEarly(t *testing.T) {
	// Exactly 3 distinct colors: a 16-color request must terminate with
	// a 3-entry palette, not pad to 16.
	img := bandedImage(64, 64, []Color{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	})
	palette := BuildPalette(img, 16)
	if len(palette) != 3 {
		t.Errorf("expected 3 palette entries but got %d", len(palette))
	}
}

func TestBuildPaletteBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	img := randomImage(64, 64, rng)
	for _, size := range []int{1, 2, 16, 256} {
		palette := BuildPalette(img, size)
		if len(palette) > size {
			t.Errorf("size %d: palette has %d entries", size, len(palette))
		}
		if len(palette) < 1 {
			t.Errorf("size %d: palette is empty", size)
		}
	}
}

func TestBuildPaletteWeightedAverage(t *testing.T) {
	// One box, two colors with a 3:1 frequency split: the representative
	// leans toward the common color, not the midpoint.
	img := image.NewRGBA(image.Rect(0, 0, 16, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(0)
			if x >= 12 {
				v = 200
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 255
		}
	}
	palette := BuildPalette(img, 1)
	if len(palette) != 1 {
		t.Fatalf("expected 1 palette entry but got %d", len(palette))
	}
	// Sampled colors: 0 at x=0,4,8 and 200 at x=12, so the weighted
	// average is 200/4 = 50.
	if palette[0].R != 50 {
		t.Errorf("expected weighted average 50 but got %d", palette[0].R)
	}
}

func TestQuantizeMedianCutOutputInPalette(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	img := randomImage(48, 32, rng)
	palette := BuildPalette(img, 16)
	members := map[Color]bool{}
	for _, c := range palette {
		members[c] = true
	}

	out := applyPalette(img, palette)
	for i := 0; i < len(out.Pix); i += 4 {
		c := Color{out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3]}
		if !members[c] {
			t.Fatalf("output color %+v is not in the palette", c)
		}
	}
}

func TestQuantizeMedianCutForcesOpaqueAlpha(t *testing.T) {
	img := solidImage(16, 16, Color{10, 20, 30, 77})
	out := QuantizeMedianCut(img, 4)
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 255 {
			t.Fatalf("expected alpha forced to 255 but got %d", out.Pix[i])
		}
	}
}

func TestQuantizeMedianCutExactColors(t *testing.T) {
	// With enough palette room, distinct flat regions survive exactly.
	colors := []Color{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 255, 0, 255},
	}
	img := bandedImage(64, 64, colors)
	out := QuantizeMedianCut(img, 16)
	for _, c := range colors {
		found := false
		for i := 0; i < len(out.Pix); i += 4 {
			if out.Pix[i] == c.R && out.Pix[i+1] == c.G && out.Pix[i+2] == c.B {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("color %+v lost by quantization", c)
		}
	}
}

func TestClosestPaletteColor(t *testing.T) {
	palette := []Color{{0, 0, 0, 255}, {128, 128, 128, 255}, {255, 255, 255, 255}}
	cases := []struct {
		in   Color
		want Color
	}{
		{Color{10, 10, 10, 255}, palette[0]},
		{Color{120, 130, 125, 255}, palette[1]},
		{Color{250, 251, 252, 255}, palette[2]},
		{Color{128, 128, 128, 0}, palette[1]}, // alpha ignored
	}
	for _, c := range cases {
		if got := closestPaletteColor(c.in, palette); got != c.want {
			t.Errorf("%+v: expected %+v but got %+v", c.in, c.want, got)
		}
	}
}
