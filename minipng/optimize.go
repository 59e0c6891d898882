package minipng

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Ancillary chunks that survive the lossless rebuild. Everything else
// outside the critical set is metadata and gets stripped.
var keepChunks = map[string]bool{
	"IHDR": true,
	"PLTE": true,
	"IDAT": true,
	"IEND": true,
	"tRNS": true,
	"gAMA": true,
	"sRGB": true,
}

// OptimizePNG rebuilds a PNG with non-essential ancillary chunks
// stripped and its IDAT stream re-deflated at maximum compression. The
// pixel data is untouched; only the container shrinks. Returns the
// original bytes unchanged when the rebuild is not smaller.
func OptimizePNG(data []byte) ([]byte, error) {
	rebuilt, err := rebuildPNG(data)
	if err != nil {
		return nil, err
	}
	if len(rebuilt) >= len(data) {
		return data, nil
	}
	return rebuilt, nil
}

func rebuildPNG(data []byte) ([]byte, error) {
	if len(data) < len(pngSignature) || string(data[:len(pngSignature)]) != string(pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	// Collect kept chunks in order, concatenating the IDAT stream.
	type chunk struct {
		typ  string
		data []byte
	}
	var chunks []chunk
	var idat bytes.Buffer
	sawIEND := false
	forEachChunk(data, func(pos int, typ string, chunkData []byte) bool {
		switch {
		case typ == "IDAT":
			idat.Write(chunkData)
		case typ == "IEND":
			sawIEND = true
			return false
		case keepChunks[typ]:
			chunks = append(chunks, chunk{typ, chunkData})
		}
		return true
	})
	if !sawIEND || idat.Len() == 0 {
		return nil, errors.New("truncated PNG: missing IDAT or IEND")
	}

	recompressed, err := recompress(idat.Bytes())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data))
	out = append(out, pngSignature...)
	for _, c := range chunks {
		out = appendChunk(out, c.typ, c.data)
	}
	out = appendChunk(out, "IDAT", recompressed)
	out = appendChunk(out, "IEND", nil)
	return out, nil
}

// recompress inflates a zlib stream and re-deflates it at best
// compression.
func recompress(stream []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("read IDAT stream: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("inflate IDAT stream: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("inflate IDAT stream: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
