// Package cleaning turns the raw rent-control export into the typed cleaned
// table and the step report of the run.
package cleaning

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// Options configures a pipeline run. Empty paths skip the matching output.
type Options struct {
	OutputPath string   // cleaned CSV
	XLSXPath   string   // optional spreadsheet copy
	ReportDir  string   // directory of timestamped reports
	Scaling    []string // ScaleMinMax / ScaleStandard, applied in order
	Now        func() time.Time
}

// Result is the output of one run.
type Result struct {
	Header     []string
	Records    []model.CleanedRecord
	Report     *Report
	OutputPath string
	ReportPath string
}

// Pipeline runs the cleaning steps. A Pipeline holds no per-run state and
// can be reused.
type Pipeline struct {
	opts Options
}

// New validates opts and returns a pipeline.
func New(opts Options) (*Pipeline, error) {
	scaling, err := ParseScaling(opts.Scaling)
	if err != nil {
		return nil, err
	}
	opts.Scaling = scaling
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{opts: opts}, nil
}

// Run cleans the raw table read from r. Steps run in order: rename, impute,
// encode, coerce, parse geometries, scale, persist, report. A source format
// or geometry error aborts the run before anything is written.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	log := zap.L().With(zap.String("component", "cleaning"))
	start := p.opts.Now()
	report := &Report{}

	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	header, added := Rename(t.Header)
	t.Header = header
	report.Add(StepRename, renamedDetail(added))
	if !t.Has(model.ColGeoShape) {
		return nil, &SourceFormatError{Err: eris.Errorf("missing column %q", model.ColGeoShape)}
	}

	raw, err := DecodeRaw(t)
	if err != nil {
		return nil, err
	}

	report.Add(StepMissing, MissingCounts(t))
	imputed := Impute(raw, t.Has)

	records := make([]model.CleanedRecord, len(raw))
	furnished := EncodeFurnished(raw, records)
	report.Add(StepFurnished, furnished)

	coerced := Coerce(raw, records)
	report.Add(StepTypes, coerced)

	if err := ParseGeometries(records); err != nil {
		return nil, err
	}
	report.Add(StepGeometry, "Geometries parsed successfully.")

	if err := ApplyScaling(records, p.opts.Scaling, report); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "cleaning: run cancelled")
	}

	res := &Result{Header: model.CleanedHeader, Records: records, Report: report}

	if p.opts.OutputPath != "" {
		if err := WriteCSVFile(p.opts.OutputPath, records); err != nil {
			return nil, err
		}
		res.OutputPath = p.opts.OutputPath
		report.Add(StepPersist, "Written to "+p.opts.OutputPath)
	}
	if p.opts.XLSXPath != "" {
		if err := WriteXLSX(p.opts.XLSXPath, records); err != nil {
			return nil, err
		}
	}

	if p.opts.ReportDir != "" {
		path, err := report.WriteFile(p.opts.ReportDir, start)
		if err != nil {
			return nil, err
		}
		res.ReportPath = path
	}

	log.Info("cleaning run complete",
		zap.Int("rows", len(records)),
		zap.Int("imputed_cells", countTotal(imputed.Missing)),
		zap.Int("coercion_warnings", countTotal(coerced.Warnings)),
		zap.Int("unknown_furnished", furnished.Unknown),
		zap.String("output", res.OutputPath),
		zap.String("report", res.ReportPath),
	)
	return res, nil
}

// ParseGeometries parses each record's GeoShape into its Geometry. Records
// that already hold a geometry are kept. The first malformed shape aborts
// with a *GeometryParseError and no record is modified.
func ParseGeometries(records []model.CleanedRecord) error {
	parsed := make([]geom.T, len(records))
	for i := range records {
		if records[i].Geometry != nil {
			parsed[i] = records[i].Geometry
			continue
		}
		g, err := geospatial.ParseShape(records[i].GeoShape)
		if err != nil {
			return &GeometryParseError{Row: i, Err: err}
		}
		parsed[i] = g
	}
	for i := range records {
		records[i].Geometry = parsed[i]
	}
	return nil
}

func renamedDetail(added []string) string {
	return fmt.Sprintf("Renamed columns: %v", added)
}

func countTotal(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
