package cleaning

import (
	"fmt"

	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
)

// SourceFormatError reports raw bytes that could not be read as a
// semicolon-delimited table. It aborts the run.
type SourceFormatError struct {
	Err error
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("cleaning: source format: %v", e.Err)
}

func (e *SourceFormatError) Unwrap() error {
	return e.Err
}

// GeometryParseError reports a shape description that is not valid GeoJSON.
// It aborts the run.
type GeometryParseError = geospatial.GeometryParseError
