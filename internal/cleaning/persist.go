package cleaning

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// cleanedRow is the on-disk shape of a CleanedRecord. Field order follows
// model.CleanedHeader; nil pointers are written as empty cells.
type cleanedRow struct {
	Year             *int     `csv:"annee"`
	Sector           *int     `csv:"secteur_geographique"`
	NeighborhoodID   *int     `csv:"numero_quartier"`
	NeighborhoodName string   `csv:"nom_quartier"`
	Rooms            *float64 `csv:"nombre_pieces_principales"`
	Era              *int     `csv:"epoque_construction"`
	Furnished        *int     `csv:"type_location"`
	RentRef          *float64 `csv:"loyers_reference"`
	RentMax          *float64 `csv:"loyers_majores"`
	RentMin          *float64 `csv:"loyers_minores"`
	City             string   `csv:"ville"`
	InseeCode        string   `csv:"numero_insee"`
	GeoShape         string   `csv:"geo_shape"`
	GeoPoint         string   `csv:"geo_point_2d"`
	Geometry         string   `csv:"geometry"`
}

func toRow(rec *model.CleanedRecord) (cleanedRow, error) {
	wkt, err := geospatial.EncodeWKT(rec.Geometry)
	if err != nil {
		return cleanedRow{}, err
	}
	return cleanedRow{
		Year:             rec.Year,
		Sector:           rec.Sector,
		NeighborhoodID:   rec.NeighborhoodID,
		NeighborhoodName: rec.NeighborhoodName,
		Rooms:            rec.Rooms,
		Era:              rec.Era,
		Furnished:        rec.Furnished,
		RentRef:          rec.RentRef,
		RentMax:          rec.RentMax,
		RentMin:          rec.RentMin,
		City:             rec.City,
		InseeCode:        rec.InseeCode,
		GeoShape:         rec.GeoShape,
		GeoPoint:         rec.GeoPoint,
		Geometry:         wkt,
	}, nil
}

func fromRow(row *cleanedRow) model.CleanedRecord {
	return model.CleanedRecord{
		Year:             row.Year,
		Sector:           row.Sector,
		NeighborhoodID:   row.NeighborhoodID,
		NeighborhoodName: row.NeighborhoodName,
		Rooms:            row.Rooms,
		Era:              row.Era,
		Furnished:        row.Furnished,
		RentRef:          row.RentRef,
		RentMax:          row.RentMax,
		RentMin:          row.RentMin,
		City:             row.City,
		InseeCode:        row.InseeCode,
		GeoShape:         row.GeoShape,
		GeoPoint:         row.GeoPoint,
	}
}

// WriteCSV encodes records as a semicolon-delimited table with a header row.
func WriteCSV(w io.Writer, records []model.CleanedRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	enc := csvutil.NewEncoder(cw)

	if len(records) == 0 {
		if err := enc.EncodeHeader(cleanedRow{}); err != nil {
			return eris.Wrap(err, "cleaning: encode header")
		}
	}
	for i := range records {
		row, err := toRow(&records[i])
		if err != nil {
			return eris.Wrapf(err, "cleaning: row %d", i)
		}
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "cleaning: encode row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "cleaning: flush csv")
}

// WriteCSVFile writes the cleaned table to path, replacing any previous file.
// The table is written to a sibling temp file and renamed into place, so a
// failed write leaves the previous table intact.
func WriteCSVFile(path string, records []model.CleanedRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cleaning: create dir for %s", path)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "cleaning: create temp for %s", path)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "cleaning: chmod %s", f.Name())
	}

	bw := bufio.NewWriter(f)
	if err := WriteCSV(bw, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "cleaning: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "cleaning: close %s", f.Name())
	}
	return eris.Wrapf(os.Rename(f.Name(), path), "cleaning: rename to %s", path)
}

// ReadCleaned decodes a table written by WriteCSV. Geometries are not
// parsed; GeoShape keeps the source text.
func ReadCleaned(r io.Reader) ([]model.CleanedRecord, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return DecodeCleaned(t)
}

// DecodeCleaned maps the rows of a cleaned table onto records by column
// name. Columns absent from the header leave their fields unset.
func DecodeCleaned(t *Table) ([]model.CleanedRecord, error) {
	if len(t.Rows) == 0 {
		return nil, nil
	}

	dec, err := csvutil.NewDecoder(&rowReader{rows: t.Rows}, t.Header...)
	if err != nil {
		return nil, &SourceFormatError{Err: eris.Wrap(err, "init decoder")}
	}

	out := make([]model.CleanedRecord, 0, len(t.Rows))
	for {
		var row cleanedRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &SourceFormatError{Err: eris.Wrapf(err, "decode row %d", len(out))}
		}
		out = append(out, fromRow(&row))
	}
	return out, nil
}

// ReadCleanedFile opens path and decodes it with ReadCleaned.
func ReadCleanedFile(path string) ([]model.CleanedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cleaning: open %s", path)
	}
	defer f.Close()
	return ReadCleaned(f)
}

// xlsxHeader is the spreadsheet column order. Geometry columns are left out.
var xlsxHeader = []string{
	model.ColYear, model.ColSector, model.ColNeighborhoodID, model.ColNeighborhoodName,
	model.ColRooms, model.ColEra, model.ColFurnished,
	model.ColRentRef, model.ColRentMax, model.ColRentMin,
	model.ColCity, model.ColInseeCode,
}

// WriteXLSX writes the attribute columns of the cleaned table as a single
// sheet workbook.
func WriteXLSX(path string, records []model.CleanedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "cleaning: create dir for %s", path)
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("loyers")
	if err != nil {
		return eris.Wrap(err, "cleaning: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for i := range records {
		rec := &records[i]
		row := sheet.AddRow()
		addIntCell(row, rec.Year)
		addIntCell(row, rec.Sector)
		addIntCell(row, rec.NeighborhoodID)
		row.AddCell().SetString(rec.NeighborhoodName)
		addFloatCell(row, rec.Rooms)
		addIntCell(row, rec.Era)
		addIntCell(row, rec.Furnished)
		addFloatCell(row, rec.RentRef)
		addFloatCell(row, rec.RentMax)
		addFloatCell(row, rec.RentMin)
		row.AddCell().SetString(rec.City)
		row.AddCell().SetString(rec.InseeCode)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "cleaning: save %s", path)
	}
	return nil
}

func addIntCell(row *xlsx.Row, v *int) {
	c := row.AddCell()
	if v != nil {
		c.SetInt(*v)
	}
}

func addFloatCell(row *xlsx.Row, v *float64) {
	c := row.AddCell()
	if v != nil && !math.IsNaN(*v) {
		c.SetFloat(*v)
	}
}
