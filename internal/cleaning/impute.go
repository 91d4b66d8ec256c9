package cleaning

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// missingMarkers are the cell values read as "no value", besides the empty cell.
var missingMarkers = map[string]bool{
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || missingMarkers[s]
}

// parseFinite parses s as a finite float64.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// MissingCounts counts missing cells per column, keeping only columns with
// at least one missing cell.
func MissingCounts(t *Table) map[string]int {
	counts := make(map[string]int)
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(t.Header) && IsMissing(cell) {
				counts[t.Header[i]]++
			}
		}
	}
	return counts
}

// ImputeStats describes one imputation pass.
type ImputeStats struct {
	Missing map[string]int     // missing cells per column before imputation
	Means   map[string]float64 // substitute used per column
}

// Impute replaces missing cells of each numeric column present in the table
// with the mean of that column's parseable cells. The mean is computed on the
// snapshot before any replacement. A column with no parseable cell imputes NaN.
func Impute(records []model.RawRecord, present func(col string) bool) ImputeStats {
	stats := ImputeStats{
		Missing: make(map[string]int),
		Means:   make(map[string]float64),
	}

	for _, col := range model.NumericColumns {
		if present != nil && !present(col) {
			continue
		}

		var values []float64
		var missing []int
		for i := range records {
			cell := *records[i].Numeric(col)
			if IsMissing(cell) {
				missing = append(missing, i)
				continue
			}
			if v, ok := parseFinite(cell); ok {
				values = append(values, v)
			}
		}

		mean := math.NaN()
		if len(values) > 0 {
			mean = stat.Mean(values, nil)
		}
		stats.Means[col] = mean
		if len(missing) == 0 {
			continue
		}
		stats.Missing[col] = len(missing)

		fill := strconv.FormatFloat(mean, 'g', -1, 64)
		for _, i := range missing {
			*records[i].Numeric(col) = fill
		}
	}
	return stats
}
