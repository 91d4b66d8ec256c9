package geospatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// Coordinate reference systems understood by the transformer.
const (
	CRSGeographic  = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

var sridByCRS = map[string]int{
	CRSGeographic:  4326,
	CRSWebMercator: 3857,
}

var (
	// ErrUnsupportedCRS is returned for a CRS or CRS pair outside sridByCRS.
	ErrUnsupportedCRS = eris.New("geo: unsupported coordinate reference system")
	// ErrNoCRS is returned when reprojecting a collection without a CRS.
	ErrNoCRS = eris.New("geo: collection has no coordinate reference system")
)

// Feature pairs a cleaned record with the geometry drawn for it. The record
// is shared with the cleaned table and must be treated as read-only.
type Feature struct {
	Record   *model.CleanedRecord
	Geometry geom.T
}

// Collection is an ordered set of features tagged with a CRS. Its order is
// the cleaned table's row order.
type Collection struct {
	CRS      string
	Features []Feature
}

// Len returns the number of features.
func (c *Collection) Len() int {
	return len(c.Features)
}

// FromRecords wraps the geometries of records into an untagged collection.
// Records that already carry a parsed geometry are not parsed again;
// the others have their GeoShape parsed and the first failure aborts.
func FromRecords(records []model.CleanedRecord) (*Collection, error) {
	c := &Collection{Features: make([]Feature, len(records))}
	for i := range records {
		rec := &records[i]
		g := rec.Geometry
		if g == nil {
			parsed, err := ParseShape(rec.GeoShape)
			if err != nil {
				return nil, &GeometryParseError{Row: i, Err: err}
			}
			rec.Geometry = parsed
			g = parsed
		}
		c.Features[i] = Feature{Record: rec, Geometry: g}
	}
	return c, nil
}

// Wrap returns src unchanged when it is already a collection and builds one
// with FromRecords when it is a cleaned table.
func Wrap(src any) (*Collection, error) {
	switch v := src.(type) {
	case *Collection:
		return v, nil
	case []model.CleanedRecord:
		return FromRecords(v)
	default:
		return nil, eris.Errorf("geo: cannot wrap %T into a collection", src)
	}
}

// SetCRS tags the collection and its geometries with crs without touching
// coordinates.
func (c *Collection) SetCRS(crs string) error {
	srid, ok := sridByCRS[crs]
	if !ok {
		return eris.Wrapf(ErrUnsupportedCRS, "geo: set crs %q", crs)
	}
	for i := range c.Features {
		g, err := setSRID(c.Features[i].Geometry, srid)
		if err != nil {
			return err
		}
		c.Features[i].Geometry = g
	}
	c.CRS = crs
	return nil
}

// Prepare builds the projected collection handed to renderers: wrap,
// tag as geographic, reproject to Web Mercator.
func Prepare(src any) (*Collection, error) {
	c, err := Wrap(src)
	if err != nil {
		return nil, err
	}
	if c.CRS == "" {
		if err := c.SetCRS(CRSGeographic); err != nil {
			return nil, err
		}
	}
	return c.Reproject(CRSWebMercator)
}

func setSRID(g geom.T, srid int) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid), nil
	case *geom.LineString:
		return t.SetSRID(srid), nil
	case *geom.LinearRing:
		return t.SetSRID(srid), nil
	case *geom.Polygon:
		return t.SetSRID(srid), nil
	case *geom.MultiPoint:
		return t.SetSRID(srid), nil
	case *geom.MultiLineString:
		return t.SetSRID(srid), nil
	case *geom.MultiPolygon:
		return t.SetSRID(srid), nil
	case *geom.GeometryCollection:
		return t.SetSRID(srid), nil
	default:
		return nil, eris.Errorf("geo: unsupported geometry %T", g)
	}
}
