package minipng

// Color is an exact RGBA tuple. It is comparable, so it doubles as a
// map key for color-frequency tables and per-row quantization caches.
type Color struct {
	R, G, B, A uint8
}

// DistSquared computes the squared Euclidean distance between two
// colors in RGB space. Alpha is ignored.
func (c Color) DistSquared(o Color) uint64 {
	dr := int64(c.R) - int64(o.R)
	dg := int64(c.G) - int64(o.G)
	db := int64(c.B) - int64(o.B)
	return uint64(dr*dr + dg*dg + db*db)
}

// luma approximates perceived brightness from RGB.
func luma(r, g, b uint8) float64 {
	return float64(r)*0.299 + float64(g)*0.587 + float64(b)*0.114
}
