package minipng

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"
)

// pngSignature is the 8-byte header of every PNG file.
var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// markerKeyword identifies files minified by this tool. The trailing
// NUL separates the tEXt keyword from its value, as PNG requires.
const markerKeyword = "MiniPNG by P. Andrian.\x00"

// Chunks longer than this are treated as corrupt input.
const maxChunkLength = 10_000_000

// MarkerInfo describes a previous minification recorded in the file's
// marker chunk.
type MarkerInfo struct {
	Quality      int
	Lossless     bool
	ReductionPct float64
	Timestamp    string
}

// FormatTimestamp renders a marker's RFC-3339 timestamp as
// "2026-02-06 at 20:15" for display. Unparseable values pass through.
func (m *MarkerInfo) FormatTimestamp() string {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return m.Timestamp
	}
	return t.Format("2006-01-02 at 15:04")
}

// forEachChunk walks the chunks of a PNG byte stream, calling fn with
// each chunk's start offset, type, and data. Iteration stops when fn
// returns false. Malformed streams terminate the walk without error;
// callers treat them as "no match".
func forEachChunk(data []byte, fn func(pos int, typ string, chunkData []byte) bool) {
	if len(data) < len(pngSignature) || string(data[:len(pngSignature)]) != string(pngSignature) {
		return
	}
	pos := len(pngSignature)
	for pos+12 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		if length > maxChunkLength {
			return
		}
		end := pos + 8 + length
		if end > len(data) {
			return
		}
		typ := string(data[pos+4 : pos+8])
		if !fn(pos, typ, data[pos+8:end]) {
			return
		}
		pos += 12 + length
	}
}

// AlreadyMinified reports whether the PNG data carries this tool's
// marker chunk, returning the recorded settings when it does.
func AlreadyMinified(data []byte) (bool, *MarkerInfo) {
	var info *MarkerInfo
	found := false
	forEachChunk(data, func(pos int, typ string, chunkData []byte) bool {
		if typ != "tEXt" || !strings.HasPrefix(string(chunkData), markerKeyword) {
			return true
		}
		found = true
		info = parseMarkerInfo(string(chunkData[len(markerKeyword):]))
		return false
	})
	return found, info
}

// parseMarkerInfo decodes the key=value pairs following the marker
// keyword, e.g. "quality=40,lossless=false,reduction=73.0,timestamp=…".
func parseMarkerInfo(s string) *MarkerInfo {
	info := &MarkerInfo{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch key {
		case "quality":
			info.Quality, _ = strconv.Atoi(value)
		case "lossless":
			info.Lossless = value == "true"
		case "reduction":
			info.ReductionPct, _ = strconv.ParseFloat(value, 64)
		case "timestamp":
			info.Timestamp = value
		}
	}
	return info
}

// AddMarker inserts the minification marker as a tEXt chunk right
// before IEND and returns the new PNG bytes.
func AddMarker(data []byte, lossless bool, quality int, reductionPct float64) ([]byte, error) {
	if len(data) < len(pngSignature) || string(data[:len(pngSignature)]) != string(pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	iendPos := -1
	forEachChunk(data, func(pos int, typ string, chunkData []byte) bool {
		if typ == "IEND" {
			iendPos = pos
			return false
		}
		return true
	})
	if iendPos < 0 {
		return nil, errors.New("IEND chunk not found")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	var value string
	if lossless {
		value = fmt.Sprintf("lossless=true,reduction=%.1f,timestamp=%s", reductionPct, timestamp)
	} else {
		value = fmt.Sprintf("quality=%d,lossless=false,reduction=%.1f,timestamp=%s", quality, reductionPct, timestamp)
	}
	marker := []byte(markerKeyword + value)

	out := make([]byte, 0, len(data)+12+len(marker))
	out = append(out, data[:iendPos]...)
	out = appendChunk(out, "tEXt", marker)
	out = append(out, data[iendPos:]...)
	return out, nil
}

// appendChunk serializes one PNG chunk (length, type, data, CRC-32 of
// type+data) onto dst.
func appendChunk(dst []byte, typ string, chunkData []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(chunkData)))
	dst = append(dst, typ...)
	dst = append(dst, chunkData...)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(chunkData)
	return binary.BigEndian.AppendUint32(dst, crc.Sum32())
}
