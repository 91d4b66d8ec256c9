package cleaning

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// FurnishedStats counts the outcome of furnished-status encoding.
type FurnishedStats struct {
	Furnished   int `yaml:"furnished"`
	Unfurnished int `yaml:"unfurnished"`
	Unknown     int `yaml:"unknown"`
}

// EncodeFurnished sets out[i].Furnished from the raw label of records[i].
// Unrecognized or empty labels become nil; encoding never fails.
func EncodeFurnished(records []model.RawRecord, out []model.CleanedRecord) FurnishedStats {
	var stats FurnishedStats
	for i := range records {
		code, ok := model.FurnishedCode(records[i].Furnished)
		if !ok {
			out[i].Furnished = nil
			stats.Unknown++
			continue
		}
		out[i].Furnished = model.Int(code)
		if code == model.Furnished {
			stats.Furnished++
		} else {
			stats.Unfurnished++
		}
	}
	return stats
}

// CoerceStats summarizes numeric coercion.
type CoerceStats struct {
	Types       map[string]string `yaml:"types"`
	Warnings    map[string]int    `yaml:"coercion_warnings,omitempty"`
	UnknownEras int               `yaml:"unknown_era_labels"`
}

// Coerce converts the numeric columns of records into out, maps era labels to
// their representative year and parses identifier columns. A cell that cannot
// be parsed becomes nil and is counted; coercion never fails.
func Coerce(records []model.RawRecord, out []model.CleanedRecord) CoerceStats {
	stats := CoerceStats{
		Types:    make(map[string]string),
		Warnings: make(map[string]int),
	}

	for i := range records {
		raw := &records[i]
		rec := &out[i]

		for _, col := range model.NumericColumns {
			v, ok := coerceFloat(*raw.Numeric(col))
			if !ok {
				stats.Warnings[col]++
				zap.L().Warn("cleaning: value coercion failed",
					zap.String("column", col),
					zap.Int("row", i),
					zap.String("value", *raw.Numeric(col)),
				)
			}
			*rec.Numeric(col) = v
		}

		rec.Era = nil
		if y, ok := model.EraYear(raw.Era); ok {
			rec.Era = model.Int(y)
		} else if strings.TrimSpace(raw.Era) != "" {
			stats.UnknownEras++
		}

		rec.Year = parseIntPtr(raw.Year)
		rec.Sector = parseIntPtr(raw.Sector)
		rec.NeighborhoodID = parseIntPtr(raw.NeighborhoodID)
		rec.NeighborhoodName = strings.TrimSpace(raw.NeighborhoodName)
		rec.City = strings.TrimSpace(raw.City)
		rec.InseeCode = strings.TrimSpace(raw.InseeCode)
		rec.GeoShape = raw.GeoShape
		rec.GeoPoint = strings.TrimSpace(raw.GeoPoint)
	}

	for _, col := range model.NumericColumns {
		stats.Types[col] = "float64"
	}
	stats.Types[model.ColEra] = "int (nullable)"
	stats.Types[model.ColFurnished] = "int (nullable)"
	if len(stats.Warnings) == 0 {
		stats.Warnings = nil
	}
	return stats
}

// coerceFloat parses a numeric cell. Empty cells give nil without a warning,
// "NaN" gives NaN (the mean of an entirely missing column) and any other
// unparseable or infinite value gives nil with ok=false.
func coerceFloat(cell string) (*float64, bool) {
	s := strings.TrimSpace(cell)
	switch {
	case s == "":
		return nil, true
	case strings.EqualFold(s, "nan"):
		return model.Float(math.NaN()), true
	case IsMissing(s):
		return nil, true
	}
	v, ok := parseFinite(s)
	if !ok {
		return nil, false
	}
	return model.Float(v), true
}

// parseIntPtr parses an identifier cell, accepting integral floats like "12.0".
func parseIntPtr(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return model.Int(v)
	}
	if f, ok := parseFinite(s); ok && f == math.Trunc(f) {
		return model.Int(int(f))
	}
	return nil
}
