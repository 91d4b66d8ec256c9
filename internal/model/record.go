package model

import (
	"github.com/twpayne/go-geom"
)

// RawRecord is one row of the raw export after column renaming. Every cell
// is kept as text; typing happens in the cleaning pipeline.
type RawRecord struct {
	Year             string `csv:"annee"`
	Sector           string `csv:"secteur_geographique"`
	NeighborhoodID   string `csv:"numero_quartier"`
	NeighborhoodName string `csv:"nom_quartier"`
	Rooms            string `csv:"nombre_pieces_principales"`
	Era              string `csv:"epoque_construction"`
	Furnished        string `csv:"type_location"`
	RentRef          string `csv:"loyers_reference"`
	RentMax          string `csv:"loyers_majores"`
	RentMin          string `csv:"loyers_minores"`
	City             string `csv:"ville"`
	InseeCode        string `csv:"numero_insee"`
	GeoShape         string `csv:"geo_shape"`
	GeoPoint         string `csv:"geo_point_2d"`
}

// Numeric returns a pointer to the raw cell backing one of NumericColumns.
func (r *RawRecord) Numeric(col string) *string {
	switch col {
	case ColRentRef:
		return &r.RentRef
	case ColRentMax:
		return &r.RentMax
	case ColRentMin:
		return &r.RentMin
	case ColRooms:
		return &r.Rooms
	}
	return nil
}

// CleanedRecord is a typed row of the cleaned table.
//
// Numeric rent and room fields are nil only when a non-empty cell failed
// coercion. Furnished is 0, 1 or nil; Era is one of the EraBrackets years or nil.
type CleanedRecord struct {
	Year             *int
	Sector           *int
	NeighborhoodID   *int
	NeighborhoodName string
	Rooms            *float64
	Era              *int
	Furnished        *int
	RentRef          *float64
	RentMax          *float64
	RentMin          *float64
	City             string
	InseeCode        string
	GeoShape         string
	GeoPoint         string
	Geometry         geom.T
}

// Numeric returns a pointer to the field backing one of NumericColumns.
func (r *CleanedRecord) Numeric(col string) **float64 {
	switch col {
	case ColRentRef:
		return &r.RentRef
	case ColRentMax:
		return &r.RentMax
	case ColRentMin:
		return &r.RentMin
	case ColRooms:
		return &r.Rooms
	}
	return nil
}

// Neighborhood is one entry of the lookup used to populate the prediction form.
type Neighborhood struct {
	Name   string `json:"nom_quartier"`
	ID     *int   `json:"numero_quartier"`
	Sector *int   `json:"secteur_geographique"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
