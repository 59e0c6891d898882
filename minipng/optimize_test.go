package minipng

import (
	"bytes"
	"image/png"
	"testing"
)

func TestOptimizePNGPreservesPixels(t *testing.T) {
	img := gradientImage(64, 48)
	var buf bytes.Buffer
	// Deliberately weak compression so the rebuild has room to win.
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	out, err := OptimizePNG(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) >= buf.Len() {
		t.Errorf("expected a smaller file: %d -> %d bytes", buf.Len(), len(out))
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	got := toRGBA(decoded)
	if !bytes.Equal(got.Pix, img.Pix) {
		t.Error("pixel data changed by lossless optimization")
	}
}

func TestOptimizePNGNeverGrows(t *testing.T) {
	data := encodeTestPNG(t)
	out, err := OptimizePNG(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) > len(data) {
		t.Errorf("optimized file grew: %d -> %d bytes", len(data), len(out))
	}
}

func TestOptimizePNGStripsMarker(t *testing.T) {
	data := encodeTestPNG(t)
	marked, err := AddMarker(data, false, 40, 50)
	if err != nil {
		t.Fatal(err)
	}
	out, err := OptimizePNG(marked)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) < len(marked) {
		// Only when the rebuild won is the tEXt chunk guaranteed gone.
		if found, _ := AlreadyMinified(out); found {
			t.Error("ancillary tEXt chunk survived the rebuild")
		}
	}
}

func TestOptimizePNGRejectsGarbage(t *testing.T) {
	if _, err := OptimizePNG([]byte("JFIF")); err == nil {
		t.Error("expected an error for non-PNG data")
	}
}
