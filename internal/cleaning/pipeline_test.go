package cleaning

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var rawHeader = []string{
	"annee", "id_zone", "id_quartier", "nom_quartier", "piece", "epoque",
	"meuble_txt", "ref", "max", "min", "ville", "code_grand_quartier",
	"geo_shape", "geo_point_2d",
}

const testShape = `{"type":"Polygon","coordinates":[[[2.35,48.85],[2.36,48.85],[2.36,48.86],[2.35,48.85]]]}`

// rawCSV renders rows as the semicolon-delimited raw export.
func rawCSV(t *testing.T, header []string, rows ...[]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = Delimiter
	require.NoError(t, w.Write(header))
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.String()
}

func rawRow(era, rooms, furnished, ref, max, min string) []string {
	return []string{
		"2023", "1", "12", "Sainte-Marguerite", rooms, era, furnished,
		ref, max, min, "PARIS", "7511244", testShape, "48.85, 2.35",
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
}

func runPipeline(t *testing.T, opts Options, input string) (*Result, error) {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p.Run(context.Background(), strings.NewReader(input))
}

func TestRun_ConcreteScenario(t *testing.T) {
	input := rawCSV(t, rawHeader, rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95"))

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	require.NotNil(t, rec.Era)
	assert.Equal(t, 1945, *rec.Era)
	require.NotNil(t, rec.Rooms)
	assert.Equal(t, 2.0, *rec.Rooms)
	require.NotNil(t, rec.Furnished)
	assert.Equal(t, 1, *rec.Furnished)
	require.NotNil(t, rec.RentRef)
	assert.Equal(t, 28.5, *rec.RentRef)

	assert.Equal(t, 2023, *rec.Year)
	assert.Equal(t, 1, *rec.Sector)
	assert.Equal(t, 12, *rec.NeighborhoodID)
	assert.Equal(t, "Sainte-Marguerite", rec.NeighborhoodName)
	assert.NotNil(t, rec.Geometry)
	assert.Equal(t, model.CleanedHeader, res.Header)
}

func TestRun_ImputesColumnMean(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("1946-1970", "1", "non meublé", "20", "24", "14"),
		rawRow("1971-1990", "", "non meublé", "", "30", "NA"),
		rawRow("Après 1990", "3", "meublé", "30", "36", "21"),
	)

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	imputed := res.Records[1]
	assert.Equal(t, 25.0, *imputed.RentRef)
	assert.Equal(t, 2.0, *imputed.Rooms)
	assert.Equal(t, 17.5, *imputed.RentMin)
	assert.Equal(t, 30.0, *imputed.RentMax)

	for i, rec := range res.Records {
		for _, col := range model.NumericColumns {
			assert.NotNil(t, *rec.Numeric(col), "row %d column %s", i, col)
		}
	}

	detail, ok := res.Report.Detail(StepMissing)
	require.True(t, ok)
	assert.Equal(t, map[string]int{
		model.ColRentRef: 1,
		model.ColRentMin: 1,
		model.ColRooms:   1,
	}, detail)

	eras := []int{*res.Records[0].Era, *res.Records[1].Era, *res.Records[2].Era}
	assert.Equal(t, []int{1958, 1980, 1991}, eras)
}

func TestRun_ReportsMissingInEveryColumn(t *testing.T) {
	unfurnished := rawRow("Avant 1946", "2", "", "28.5", "34.2", "19.95")
	unfurnished[13] = ""
	input := rawCSV(t, rawHeader,
		unfurnished,
		rawRow("Avant 1946", "", "meublé", "30", "36", "21"),
	)

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)

	detail, ok := res.Report.Detail(StepMissing)
	require.True(t, ok)
	assert.Equal(t, map[string]int{
		model.ColFurnished: 1,
		model.ColGeoPoint:  1,
		model.ColRooms:     1,
	}, detail)
	assert.Nil(t, res.Records[0].Furnished)
}

func TestRun_AllMissingColumnImputesNaN(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Avant 1946", "1", "meublé", "20", "", "14"),
		rawRow("Avant 1946", "2", "meublé", "22", "", "15"),
	)

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)
	for _, rec := range res.Records {
		require.NotNil(t, rec.RentMax)
		assert.True(t, math.IsNaN(*rec.RentMax))
	}
}

func TestRun_UnknownLabelsBecomeNil(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Moyen Age", "1", "colocation", "20", "24", "14"),
		rawRow("", "1", "", "20", "24", "14"),
	)

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)
	for _, rec := range res.Records {
		assert.Nil(t, rec.Era)
		assert.Nil(t, rec.Furnished)
	}

	detail, ok := res.Report.Detail(StepFurnished)
	require.True(t, ok)
	assert.Equal(t, FurnishedStats{Unknown: 2}, detail)
}

func TestRun_UnparseableCellIsNulled(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Avant 1946", "deux", "meublé", "28.5", "34.2", "19.95"),
		rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95"),
	)

	res, err := runPipeline(t, Options{}, input)
	require.NoError(t, err)
	assert.Nil(t, res.Records[0].Rooms)
	assert.Equal(t, 2.0, *res.Records[1].Rooms)

	detail, ok := res.Report.Detail(StepTypes)
	require.True(t, ok)
	stats := detail.(CoerceStats)
	assert.Equal(t, map[string]int{model.ColRooms: 1}, stats.Warnings)
}

func TestRun_MalformedGeometryIsFatal(t *testing.T) {
	bad := rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95")
	bad[12] = `{'type': 'Polygon', 'coordinates': __import__('os')}`
	input := rawCSV(t, rawHeader, rawRow("Avant 1946", "1", "meublé", "20", "24", "14"), bad)

	dir := t.TempDir()
	out := filepath.Join(dir, "loyers_clean.csv")
	_, err := runPipeline(t, Options{OutputPath: out, ReportDir: filepath.Join(dir, "log")}, input)
	require.Error(t, err)

	var perr *GeometryParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Row)

	assert.NoFileExists(t, out)
	assert.NoDirExists(t, filepath.Join(dir, "log"))
}

func TestRun_MissingShapeColumn(t *testing.T) {
	input := rawCSV(t, rawHeader[:12], rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95")[:12])

	_, err := runPipeline(t, Options{}, input)
	var serr *SourceFormatError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, err.Error(), "geo_shape")
}

func TestRun_SourceFormatError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"ragged rows", "annee;ref;geo_shape\n2023;28.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runPipeline(t, Options{}, tt.input)
			var serr *SourceFormatError
			assert.True(t, errors.As(err, &serr))
		})
	}
}

func TestRun_WritesOutputsAndReport(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95"),
		rawRow("1971-1990", "1", "non meublé", "25.1", "30.1", "17.6"),
	)

	dir := t.TempDir()
	opts := Options{
		OutputPath: filepath.Join(dir, "data", "loyers_clean.csv"),
		XLSXPath:   filepath.Join(dir, "data", "loyers_clean.xlsx"),
		ReportDir:  filepath.Join(dir, "log"),
	}
	res, err := runPipeline(t, opts, input)
	require.NoError(t, err)

	assert.Equal(t, opts.OutputPath, res.OutputPath)
	assert.Equal(t, filepath.Join(dir, "log", "report_2024-03-05_14-07-09.txt"), res.ReportPath)
	assert.FileExists(t, opts.XLSXPath)

	data, err := os.ReadFile(opts.OutputPath)
	require.NoError(t, err)
	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, strings.Join(model.CleanedHeader, ";"), firstLine)

	report, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	text := string(report)
	assert.True(t, strings.HasPrefix(text, "Data processing report:\n"))
	for _, step := range []string{StepRename, StepMissing, StepFurnished, StepTypes, StepGeometry, StepPersist} {
		assert.Contains(t, text, "\n"+step+":\n")
	}
	assert.Less(t, strings.Index(text, StepRename), strings.Index(text, StepGeometry))
}

func TestRun_Idempotent(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Avant 1946", "2", "meublé", "28.5", "34.2", "19.95"),
		rawRow("1971-1990", "", "non meublé", "25.1", "", "17.6"),
		rawRow("Après 1990", "4", "meublé", "22", "26.4", "15.4"),
	)

	dir := t.TempDir()
	first, err := runPipeline(t, Options{OutputPath: filepath.Join(dir, "first.csv")}, input)
	require.NoError(t, err)

	cleaned, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)

	second, err := runPipeline(t, Options{OutputPath: filepath.Join(dir, "second.csv")}, string(cleaned))
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)

	again, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, string(cleaned), string(again))
}

func TestRun_Scaling(t *testing.T) {
	input := rawCSV(t, rawHeader,
		rawRow("Avant 1946", "2", "meublé", "28.5", "30", "10"),
		rawRow("Avant 1946", "2", "meublé", "28.5", "40", "20"),
	)

	res, err := runPipeline(t, Options{Scaling: []string{"minmax"}}, input)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *res.Records[0].RentMax)
	assert.Equal(t, 1.0, *res.Records[1].RentMax)
	assert.Equal(t, 28.5, *res.Records[0].RentRef, "reference rent is never scaled")

	_, ok := res.Report.Detail(StepMinMax)
	assert.True(t, ok)

	_, err = New(Options{Scaling: []string{"log"}})
	assert.Error(t, err)
}

func TestParseGeometries_KeepsExisting(t *testing.T) {
	records := []model.CleanedRecord{{GeoShape: testShape}, {GeoShape: testShape}}
	require.NoError(t, ParseGeometries(records))
	g := records[0].Geometry

	records[0].GeoShape = "not parsed again"
	require.NoError(t, ParseGeometries(records))
	assert.Same(t, g, records[0].Geometry)
}

func TestParseGeometries_NoPartialOutput(t *testing.T) {
	records := []model.CleanedRecord{{GeoShape: testShape}, {GeoShape: "{"}}
	err := ParseGeometries(records)
	require.Error(t, err)
	assert.Nil(t, records[0].Geometry)
}
