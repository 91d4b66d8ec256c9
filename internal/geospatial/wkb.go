package geospatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// EncodeEWKB converts a geometry to little-endian EWKB bytes carrying its SRID.
// Returns nil, nil for a nil geometry.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// EncodeWKT renders a geometry as WKT, the textual form written next to the
// source shape in the cleaned table. Returns "" for a nil geometry.
func EncodeWKT(g geom.T) (string, error) {
	if g == nil {
		return "", nil
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode WKT")
	}
	return s, nil
}
