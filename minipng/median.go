package minipng

import (
	"image"
	"runtime"
	"sort"
	"sync"
)

// DefaultPaletteSize is the number of colors built by the median-cut
// path, matching an 8-bit PNG palette.
const DefaultPaletteSize = 256

// colorCount pairs a color with how often it was sampled.
type colorCount struct {
	Color Color
	Count uint32
}

// colorBox is an axis-aligned box in RGB space holding a set of colors
// with their frequencies. Boxes are split recursively along their
// widest channel until the palette is full.
type colorBox struct {
	colors     []colorCount
	minR, maxR uint8
	minG, maxG uint8
	minB, maxB uint8
}

func newColorBox(colors []colorCount) *colorBox {
	b := &colorBox{colors: colors, minR: 255, minG: 255, minB: 255}
	for _, cc := range colors {
		c := cc.Color
		if c.R < b.minR {
			b.minR = c.R
		}
		if c.R > b.maxR {
			b.maxR = c.R
		}
		if c.G < b.minG {
			b.minG = c.G
		}
		if c.G > b.maxG {
			b.maxG = c.G
		}
		if c.B < b.minB {
			b.minB = c.B
		}
		if c.B > b.maxB {
			b.maxB = c.B
		}
	}
	return b
}

func (b *colorBox) ranges() (r, g, bl int) {
	return int(b.maxR) - int(b.minR), int(b.maxG) - int(b.minG), int(b.maxB) - int(b.minB)
}

func (b *colorBox) widestChannel() int {
	r, g, bl := b.ranges()
	if r >= g && r >= bl {
		return 0
	}
	if g >= bl {
		return 1
	}
	return 2
}

// split cuts the box at the midpoint of its member list, sorted along
// the widest channel, and returns the upper half as a new box. Both
// boxes get freshly computed bounds. Returns nil when the box holds
// fewer than 2 distinct colors.
func (b *colorBox) split() *colorBox {
	if len(b.colors) < 2 {
		return nil
	}

	channel := b.widestChannel()
	sort.Slice(b.colors, func(i, j int) bool {
		ci, cj := b.colors[i].Color, b.colors[j].Color
		switch channel {
		case 0:
			return ci.R < cj.R
		case 1:
			return ci.G < cj.G
		default:
			return ci.B < cj.B
		}
	})

	mid := len(b.colors) / 2
	right := newColorBox(b.colors[mid:])
	*b = *newColorBox(b.colors[:mid])
	return right
}

// averageColor returns the frequency-weighted mean of the box's
// members, giving common colors more pull than rare ones.
func (b *colorBox) averageColor() Color {
	var sumR, sumG, sumB, total uint64
	for _, cc := range b.colors {
		n := uint64(cc.Count)
		sumR += uint64(cc.Color.R) * n
		sumG += uint64(cc.Color.G) * n
		sumB += uint64(cc.Color.B) * n
		total += n
	}
	if total == 0 {
		return Color{A: 255}
	}
	return Color{
		R: uint8(sumR / total),
		G: uint8(sumG / total),
		B: uint8(sumB / total),
		A: 255,
	}
}

// BuildPalette constructs a palette of at most maxColors representative
// colors via median cut. Colors are sampled on a 4x4 grid; the
// algorithm needs color variety, not full pixel coverage. The returned
// palette can be shorter than requested when the image has fewer
// distinct colors.
func BuildPalette(img *image.RGBA, maxColors int) []Color {
	width, height := img.Rect.Dx(), img.Rect.Dy()

	counts := map[Color]uint32{}
	for y := 0; y < height; y += 4 {
		for x := 0; x < width; x += 4 {
			i := img.PixOffset(x, y)
			c := Color{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
			counts[c]++
		}
	}

	initial := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		initial = append(initial, colorCount{Color: c, Count: n})
	}

	// The splitting frontier is a flat list: consumers only ever need
	// the current leaves, so no tree links are kept.
	boxes := []*colorBox{newColorBox(initial)}
	for len(boxes) < maxColors {
		largestIdx := 0
		largestRange := 0
		for i, b := range boxes {
			r, g, bl := b.ranges()
			if r+g+bl > largestRange {
				largestRange = r + g + bl
				largestIdx = i
			}
		}
		next := boxes[largestIdx].split()
		if next == nil {
			break
		}
		boxes = append(boxes, next)
	}

	palette := make([]Color, len(boxes))
	for i, b := range boxes {
		palette[i] = b.averageColor()
	}
	return palette
}

// QuantizeMedianCut maps every pixel of img to its nearest color in a
// median-cut palette of at most maxColors entries.
//
// Output alpha is always 255, regardless of the source pixel: the
// palette carries no alpha. Kept for byte compatibility with earlier
// releases even though the other modes preserve alpha.
func QuantizeMedianCut(img *image.RGBA, maxColors int) *image.RGBA {
	return applyPalette(img, BuildPalette(img, maxColors))
}

// applyPalette maps every pixel to its nearest palette color.
func applyPalette(img *image.RGBA, palette []Color) *image.RGBA {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(img.Rect)

	// Rows are independent: each worker strides the row space and
	// writes only its own rows, so no locking is needed and the output
	// layout is deterministic.
	numProcs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	for p := 0; p < numProcs; p++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for y := start; y < height; y += numProcs {
				// Row-local cache: repeated colors within a row skip
				// the palette search without any shared state.
				cache := map[Color]Color{}
				i := img.PixOffset(0, y)
				for x := 0; x < width; x++ {
					c := Color{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
					q, ok := cache[c]
					if !ok {
						q = closestPaletteColor(c, palette)
						cache[c] = q
					}
					out.Pix[i] = q.R
					out.Pix[i+1] = q.G
					out.Pix[i+2] = q.B
					out.Pix[i+3] = q.A
					i += 4
				}
			}
		}(p)
	}
	wg.Wait()
	return out
}

// closestPaletteColor finds the palette entry with the smallest squared
// RGB distance to c, short-circuiting on an exact match.
func closestPaletteColor(c Color, palette []Color) Color {
	best := palette[0]
	bestDist := uint64(1) << 63
	for _, p := range palette {
		d := c.DistSquared(p)
		if d < bestDist {
			bestDist = d
			best = p
			if d == 0 {
				break
			}
		}
	}
	return best
}
