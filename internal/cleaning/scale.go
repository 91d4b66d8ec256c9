package cleaning

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// Scaling operation names accepted in configuration.
const (
	ScaleMinMax   = "minmax"
	ScaleStandard = "standard"
)

// ParseScaling validates a configured list of scaling operations. The list is
// applied in order; applying both compounds the transforms.
func ParseScaling(ops []string) ([]string, error) {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		op = strings.ToLower(strings.TrimSpace(op))
		switch op {
		case "":
			continue
		case ScaleMinMax, ScaleStandard:
			out = append(out, op)
		default:
			return nil, eris.Errorf("cleaning: unknown scaling %q", op)
		}
	}
	return out, nil
}

// columnValues returns the finite values of col and the indices they came from.
func columnValues(records []model.CleanedRecord, col string) ([]float64, []int) {
	var vals []float64
	var idx []int
	for i := range records {
		p := *records[i].Numeric(col)
		if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
			continue
		}
		vals = append(vals, *p)
		idx = append(idx, i)
	}
	return vals, idx
}

func setColumn(records []model.CleanedRecord, col string, idx []int, vals []float64) {
	for k, i := range idx {
		*records[i].Numeric(col) = model.Float(vals[k])
	}
}

// MinMaxScale rescales each column to [0, 1] in place. A constant column
// becomes 0. Nil and NaN cells are left untouched.
func MinMaxScale(records []model.CleanedRecord, cols []string, report *Report) {
	for _, col := range cols {
		vals, idx := columnValues(records, col)
		if len(vals) == 0 {
			continue
		}
		lo, hi := floats.Min(vals), floats.Max(vals)
		span := hi - lo
		for i, v := range vals {
			if span == 0 {
				vals[i] = 0
				continue
			}
			vals[i] = (v - lo) / span
		}
		setColumn(records, col, idx, vals)
	}
	if report != nil {
		report.Add(StepMinMax, fmt.Sprintf("Columns %v were scaled to [0, 1].", cols))
	}
}

// Standardize rescales each column to zero mean and unit population variance
// in place. A constant column becomes 0. Nil and NaN cells are left untouched.
func Standardize(records []model.CleanedRecord, cols []string, report *Report) {
	for _, col := range cols {
		vals, idx := columnValues(records, col)
		if len(vals) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		std := math.Sqrt(variance)
		if std == 0 {
			std = 1
		}
		for i, v := range vals {
			vals[i] = (v - mean) / std
		}
		setColumn(records, col, idx, vals)
	}
	if report != nil {
		report.Add(StepStandardize, fmt.Sprintf("Columns %v were standardized.", cols))
	}
}

// ApplyScaling runs the configured operations in order over model.ScaledColumns.
func ApplyScaling(records []model.CleanedRecord, ops []string, report *Report) error {
	ops, err := ParseScaling(ops)
	if err != nil {
		return err
	}
	for _, op := range ops {
		switch op {
		case ScaleMinMax:
			MinMaxScale(records, model.ScaledColumns, report)
		case ScaleStandard:
			Standardize(records, model.ScaledColumns, report)
		}
	}
	return nil
}
