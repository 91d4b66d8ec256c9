// Package geospatial turns cleaned records into projected geometry
// collections and exports them for rendering and PostGIS.
package geospatial

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeometryParseError reports a shape description that is not valid GeoJSON.
// Row is the zero-based row index.
type GeometryParseError struct {
	Row int
	Err error
}

func (e *GeometryParseError) Error() string {
	return fmt.Sprintf("geometry parse error at row %d: %v", e.Row, e.Err)
}

func (e *GeometryParseError) Unwrap() error {
	return e.Err
}

// ParseShape decodes a GeoJSON geometry, or a Feature wrapping one. The text
// is decoded as data only; anything that is not well-formed GeoJSON fails.
func ParseShape(text string) (geom.T, error) {
	data := []byte(strings.TrimSpace(text))
	if len(data) == 0 {
		return nil, eris.New("geo: empty shape")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "geo: decode shape")
	}

	var g geom.T
	switch probe.Type {
	case "":
		return nil, eris.New("geo: shape has no type")
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "geo: decode feature")
		}
		g = f.Geometry
	case "FeatureCollection":
		return nil, eris.New("geo: feature collections are not a row shape")
	default:
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "geo: decode %s", probe.Type)
		}
	}

	if g == nil {
		return nil, eris.New("geo: null geometry")
	}
	return g, nil
}
