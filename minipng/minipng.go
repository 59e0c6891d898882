// Package minipng shrinks PNG files by reducing their color space with
// content-aware dithering, then repacking the container.
package minipng

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// DefaultQuality balances aggressive minification with good visual
// quality.
const DefaultQuality = 40

// Mode selects how quantization error is handled.
type Mode int

const (
	// ModeAuto analyzes the image and picks one of the concrete modes.
	ModeAuto Mode = iota

	// ModeNone quantizes with no dithering. Cleanest gradients, may band.
	ModeNone

	// ModeOrdered uses a Bayer threshold matrix. Balanced pattern.
	ModeOrdered

	// ModeFloydSteinberg diffuses error serpentine-wise. Best for photos.
	ModeFloydSteinberg

	// ModeMedianCut builds a palette by median cut. Best for flat-color art.
	ModeMedianCut
)

// ParseMode resolves a user-facing mode name, accepting the historical
// aliases.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto":
		return ModeAuto, nil
	case "none":
		return ModeNone, nil
	case "ordered":
		return ModeOrdered, nil
	case "floyd", "floyd-steinberg":
		return ModeFloydSteinberg, nil
	case "median", "mediancut":
		return ModeMedianCut, nil
	}
	return ModeAuto, fmt.Errorf("invalid dithering mode %q: use auto, none, ordered, floyd, or median", s)
}

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeNone:
		return "none"
	case ModeOrdered:
		return "ordered"
	case ModeFloydSteinberg:
		return "floyd-steinberg"
	case ModeMedianCut:
		return "median"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Config controls a minification run.
type Config struct {
	// Lossless skips quantization and only repacks the container.
	Lossless bool

	// Quality is the lossy quality level, 1-100. Zero means
	// DefaultQuality.
	Quality int

	// Mode is the dithering mode; ModeAuto resolves per image.
	Mode Mode

	// SmoothRadius is a Gaussian pre-blur radius (0 = off). Smoothing
	// before quantization reduces banding.
	SmoothRadius float64

	// Denoise runs the selective denoiser after quantization.
	Denoise bool

	// PaletteSize caps the median-cut palette. Zero means
	// DefaultPaletteSize.
	PaletteSize int

	// Force re-minifies files that already carry the marker.
	Force bool
}

func (c *Config) quality() int {
	if c.Quality == 0 {
		return DefaultQuality
	}
	return c.Quality
}

func (c *Config) paletteSize() int {
	if c.PaletteSize == 0 {
		return DefaultPaletteSize
	}
	return c.PaletteSize
}

// Result reports the sizes of one processed file.
type Result struct {
	OriginalSize int64
	NewSize      int64
}

// ReductionPct is how much smaller the file got, in percent.
func (r *Result) ReductionPct() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(r.NewSize)/float64(r.OriginalSize)) * 100
}

// Transform runs the full pixel pipeline on a decoded image: mode
// resolution, darkening, optional pre-blur, quantization, and optional
// denoising. The input image is not modified.
func Transform(img image.Image, c *Config) (*image.RGBA, error) {
	if c == nil {
		c = &Config{}
	}
	rgba := toRGBA(img)
	mode := c.Mode
	if mode == ModeAuto {
		mode = RecommendMode(rgba)
	}
	return applyQuantization(rgba, mode, c)
}

// applyQuantization dispatches to the concrete engine. The mode must
// already be resolved: receiving ModeAuto here is an orchestration bug,
// never silently defaulted.
func applyQuantization(rgba *image.RGBA, mode Mode, c *Config) (*image.RGBA, error) {
	darken(rgba)
	if c.SmoothRadius > 0 {
		rgba = blur(rgba, c.SmoothRadius)
	}

	step := stepForQuality(c.quality())
	var out *image.RGBA
	switch mode {
	case ModeNone:
		out = applyNone(rgba, step)
	case ModeOrdered:
		out = applyOrdered(rgba, step)
	case ModeFloydSteinberg:
		out = applyFloydSteinberg(rgba, step)
	case ModeMedianCut:
		out = QuantizeMedianCut(rgba, c.paletteSize())
	case ModeAuto:
		return nil, errors.New("auto dithering mode must be resolved before quantization")
	default:
		return nil, fmt.Errorf("unknown dithering mode %v", mode)
	}

	if c.Denoise {
		out = Denoise(out)
	}
	return out, nil
}

// MinifyData minifies an in-memory PNG and returns the new bytes. The
// result may be larger than the input; callers decide whether to keep
// it.
func MinifyData(data []byte, c *Config) ([]byte, error) {
	if c == nil {
		c = &Config{}
	}
	if c.Lossless {
		return OptimizePNG(data)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode PNG: %w", err)
	}
	out, err := Transform(img, c)
	if err != nil {
		return nil, err
	}
	encoded, err := encodePNG(out)
	if err != nil {
		return nil, err
	}
	return OptimizePNG(encoded)
}

// MinifyFile minifies sourcePath into targetPath (which may be the same
// file). The target is only replaced when the result is strictly
// smaller; shrunken files get the minification marker embedded.
//
// When the source already carries the marker and Force is off, nothing
// is written and the previous settings are returned.
func MinifyFile(sourcePath, targetPath string, c *Config) (*Result, *MarkerInfo, error) {
	if c == nil {
		c = &Config{}
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read source file: %w", err)
	}
	originalSize := int64(len(data))

	if !c.Force {
		if minified, info := AlreadyMinified(data); minified {
			return &Result{OriginalSize: originalSize, NewSize: originalSize}, info, nil
		}
	}

	minified, err := MinifyData(data, c)
	if err != nil {
		return nil, nil, err
	}
	newSize := int64(len(minified))

	if newSize >= originalSize {
		// Keep the original; minification did not help.
		if sourcePath != targetPath {
			if err := writeFileAtomic(targetPath, data); err != nil {
				return nil, nil, err
			}
		}
		return &Result{OriginalSize: originalSize, NewSize: originalSize}, nil, nil
	}

	reductionPct := (1 - float64(newSize)/float64(originalSize)) * 100
	marked, err := AddMarker(minified, c.Lossless, c.quality(), reductionPct)
	if err != nil {
		return nil, nil, err
	}
	if err := writeFileAtomic(targetPath, marked); err != nil {
		return nil, nil, err
	}
	return &Result{OriginalSize: originalSize, NewSize: newSize}, nil, nil
}

// ReadImage decodes the PNG at path.
func ReadImage(path string) (image.Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return png.Decode(r)
}

// WriteImage encodes img to path at maximum compression.
func WriteImage(path string, img image.Image) error {
	encoded, err := encodePNG(img)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, encoded)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data through a temp file in the target's
// directory and renames it into place, so a crash never leaves a
// half-written PNG behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".minipng-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// toRGBA converts any decoded image into a zero-origin RGBA buffer the
// pipeline can own and mutate.
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(out, out.Bounds(), img, bounds.Min, xdraw.Src)
	return out
}
