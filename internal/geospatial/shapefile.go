package geospatial

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapefileFields are the DBF attributes written next to each polygon.
// DBF field names are limited to 10 characters.
var shapefileFields = []shp.Field{
	shp.NumberField("ANNEE", 4),
	shp.NumberField("SECTEUR", 4),
	shp.NumberField("QUARTIER", 6),
	shp.StringField("NOM", 80),
	shp.FloatField("PIECES", 8, 2),
	shp.NumberField("EPOQUE", 4),
	shp.NumberField("MEUBLE", 1),
	shp.FloatField("LOYER_REF", 12, 4),
}

// WriteShapefile writes the collection as a polygon shapefile (plus .dbf and
// .shx siblings) for the chart renderer. Coordinates are written as-is in the
// collection's CRS. Features whose geometry has no polygon are skipped.
func WriteShapefile(path string, c *Collection) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "geo: create shapefile dir")
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: create shapefile %s", path)
	}
	written, err := writeFeatures(w, path, c)
	w.Close()
	if err != nil {
		return written, err
	}

	// go-shp names the attribute table <base>dbf, without the dot.
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return written, eris.Wrapf(err, "geo: rename attribute table for %s", path)
	}
	return written, nil
}

func writeFeatures(w *shp.Writer, path string, c *Collection) (int, error) {
	if err := w.SetFields(shapefileFields); err != nil {
		return 0, eris.Wrap(err, "geo: set shapefile fields")
	}

	var written, skipped int
	for i, f := range c.Features {
		poly := toShpPolygon(f.Geometry)
		if poly == nil {
			skipped++
			continue
		}
		row := int(w.Write(poly))

		rec := f.Record
		attrs := []any{
			intAttr(rec.Year),
			intAttr(rec.Sector),
			intAttr(rec.NeighborhoodID),
			rec.NeighborhoodName,
			floatAttr(rec.Rooms),
			intAttr(rec.Era),
			intAttr(rec.Furnished),
			floatAttr(rec.RentRef),
		}
		for field, v := range attrs {
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(row, field, v); err != nil {
				return written, eris.Wrapf(err, "geo: write attribute %d of feature %d", field, i)
			}
		}
		written++
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped features without polygons",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return written, nil
}

// toShpPolygon flattens polygon rings into shapefile parts.
func toShpPolygon(g geom.T) *shp.Polygon {
	var parts [][]shp.Point
	addPolygon := func(p *geom.Polygon) {
		for i := 0; i < p.NumLinearRings(); i++ {
			ring := p.LinearRing(i)
			pts := make([]shp.Point, 0, ring.NumCoords())
			for _, c := range ring.Coords() {
				pts = append(pts, shp.Point{X: c.X(), Y: c.Y()})
			}
			if len(pts) > 0 {
				parts = append(parts, pts)
			}
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		addPolygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			addPolygon(t.Polygon(i))
		}
	default:
		return nil
	}

	if len(parts) == 0 {
		return nil
	}
	poly := shp.Polygon(*shp.NewPolyLine(parts))
	return &poly
}

func intAttr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatAttr(v *float64) any {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	return *v
}
