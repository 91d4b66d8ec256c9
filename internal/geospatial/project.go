package geospatial

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

const (
	// earthRadius is the WGS84 semi-major axis used by spherical Web Mercator.
	earthRadius = 6378137.0
	// maxLatitude is the latitude where Web Mercator's square world ends.
	maxLatitude = 85.05112877980659
)

// ErrOutOfBounds is returned for coordinates Web Mercator cannot represent.
var ErrOutOfBounds = eris.New("geo: coordinate out of projection bounds")

type coordFunc func(x, y float64) (float64, float64, error)

// Reproject returns a new collection with every geometry transformed to
// target. Records are shared with c; only coordinates change and feature
// order is kept.
func (c *Collection) Reproject(target string) (*Collection, error) {
	if c.CRS == "" {
		return nil, ErrNoCRS
	}
	srid, ok := sridByCRS[target]
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedCRS, "geo: reproject to %q", target)
	}

	var fn coordFunc
	switch {
	case c.CRS == target:
		fn = func(x, y float64) (float64, float64, error) { return x, y, nil }
	case c.CRS == CRSGeographic && target == CRSWebMercator:
		fn = ToWebMercator
	case c.CRS == CRSWebMercator && target == CRSGeographic:
		fn = FromWebMercator
	default:
		return nil, eris.Wrapf(ErrUnsupportedCRS, "geo: reproject %s to %s", c.CRS, target)
	}

	out := &Collection{CRS: target, Features: make([]Feature, len(c.Features))}
	for i, f := range c.Features {
		g, err := transform(f.Geometry, fn, srid)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: reproject feature %d", i)
		}
		out.Features[i] = Feature{Record: f.Record, Geometry: g}
	}
	return out, nil
}

// ToWebMercator projects a longitude/latitude pair in degrees to EPSG:3857 meters.
func ToWebMercator(lon, lat float64) (float64, float64, error) {
	if math.Abs(lat) > maxLatitude || math.Abs(lon) > 180 || math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, eris.Wrapf(ErrOutOfBounds, "lon %g lat %g", lon, lat)
	}
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y, nil
}

// FromWebMercator is the inverse of ToWebMercator.
func FromWebMercator(x, y float64) (float64, float64, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, eris.Wrapf(ErrOutOfBounds, "x %g y %g", x, y)
	}
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	if math.Abs(lon) > 180+1e-9 {
		return 0, 0, eris.Wrapf(ErrOutOfBounds, "x %g y %g", x, y)
	}
	return lon, lat, nil
}

// transform applies fn to every XY pair of g and returns a new geometry of the
// same type, layout and ring structure tagged with srid.
func transform(g geom.T, fn coordFunc, srid int) (geom.T, error) {
	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for _, child := range gc.Geoms() {
			tc, err := transform(child, fn, srid)
			if err != nil {
				return nil, err
			}
			if err := out.Push(tc); err != nil {
				return nil, eris.Wrap(err, "geo: rebuild collection")
			}
		}
		return out.SetSRID(srid), nil
	}

	stride := g.Stride()
	flat := append([]float64(nil), g.FlatCoords()...)
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := fn(flat[i], flat[i+1])
		if err != nil {
			return nil, err
		}
		flat[i], flat[i+1] = x, y
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), flat, copyEnds(t.Ends())).SetSRID(srid), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), flat).SetSRID(srid), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), flat, copyEnds(t.Ends())).SetSRID(srid), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = copyEnds(ends)
		}
		return geom.NewMultiPolygonFlat(t.Layout(), flat, endss).SetSRID(srid), nil
	default:
		return nil, eris.Errorf("geo: unsupported geometry %T", g)
	}
}

func copyEnds(ends []int) []int {
	return append([]int(nil), ends...)
}
