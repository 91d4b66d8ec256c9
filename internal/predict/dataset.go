// Package predict trains, evaluates, persists and serves the reference-rent
// regressor.
package predict

import (
	"fmt"
	"math"
	"os"

	"github.com/rotisserie/eris"

	"github.com/Hitoyu22/TP3-datamining/internal/cleaning"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// FeatureColumns are the model inputs, in vector order.
var FeatureColumns = []string{
	model.ColEra,
	model.ColRooms,
	model.ColFurnished,
	model.ColNeighborhoodID,
	model.ColSector,
}

// TargetColumn is the regressed value.
const TargetColumn = model.ColRentRef

// SchemaError reports a column required by the model that the table lacks.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("predict: missing column %q", e.Column)
}

// Features is one inference row. Nil fields are unknown values.
type Features struct {
	Era            *int     `json:"epoque_construction"`
	Rooms          *float64 `json:"nombre_pieces_principales"`
	Furnished      *int     `json:"type_location"`
	NeighborhoodID *int     `json:"numero_quartier"`
	Sector         *int     `json:"secteur_geographique"`
}

// Vector returns the row in FeatureColumns order with NaN for unknown values.
func (f Features) Vector() []float64 {
	return []float64{
		intValue(f.Era),
		floatValue(f.Rooms),
		intValue(f.Furnished),
		intValue(f.NeighborhoodID),
		intValue(f.Sector),
	}
}

func intValue(v *int) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

func floatValue(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Table is a numeric column store. Missing cells are NaN.
type Table struct {
	rows    int
	columns map[string][]float64
}

// NewTable returns an empty table of n rows.
func NewTable(n int) *Table {
	return &Table{rows: n, columns: make(map[string][]float64)}
}

// Has reports whether col is present.
func (t *Table) Has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// Column returns the values of col, or nil when absent.
func (t *Table) Column(col string) []float64 {
	return t.columns[col]
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// TableFromRecords builds a table holding the feature and target columns of
// records.
func TableFromRecords(records []model.CleanedRecord) *Table {
	t := NewTable(len(records))
	cols := map[string]func(r *model.CleanedRecord) float64{
		model.ColEra:            func(r *model.CleanedRecord) float64 { return intValue(r.Era) },
		model.ColRooms:          func(r *model.CleanedRecord) float64 { return floatValue(r.Rooms) },
		model.ColFurnished:      func(r *model.CleanedRecord) float64 { return intValue(r.Furnished) },
		model.ColNeighborhoodID: func(r *model.CleanedRecord) float64 { return intValue(r.NeighborhoodID) },
		model.ColSector:         func(r *model.CleanedRecord) float64 { return intValue(r.Sector) },
		model.ColRentRef:        func(r *model.CleanedRecord) float64 { return floatValue(r.RentRef) },
	}
	for col, get := range cols {
		values := make([]float64, len(records))
		for i := range records {
			values[i] = get(&records[i])
		}
		t.columns[col] = values
	}
	return t
}

// ReadCleanedCSV loads the model columns of a persisted cleaned table.
// Columns missing from the file's header are left out of the table, so they
// surface as a SchemaError when the lifecycle prepares the data.
func ReadCleanedCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: open %s", path)
	}
	defer f.Close()

	raw, err := cleaning.ReadTable(f)
	if err != nil {
		return nil, err
	}
	records, err := cleaning.DecodeCleaned(raw)
	if err != nil {
		return nil, err
	}

	t := TableFromRecords(records)
	for col := range t.columns {
		if !raw.Has(col) {
			delete(t.columns, col)
		}
	}
	return t, nil
}
