// Package lookup derives the neighborhood table used to populate the
// prediction form.
package lookup

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// key is the comparable form of a neighborhood triple; nil ids are distinct
// from every integer.
type key struct {
	name      string
	id        int
	hasID     bool
	sector    int
	hasSector bool
}

func keyOf(n model.Neighborhood) key {
	k := key{name: n.Name}
	if n.ID != nil {
		k.id, k.hasID = *n.ID, true
	}
	if n.Sector != nil {
		k.sector, k.hasSector = *n.Sector, true
	}
	return k
}

// Extract projects records onto (name, id, sector) and drops exact duplicates,
// keeping first-seen order.
func Extract(records []model.CleanedRecord) []model.Neighborhood {
	seen := make(map[key]bool)
	out := make([]model.Neighborhood, 0)
	for i := range records {
		n := model.Neighborhood{
			Name:   records[i].NeighborhoodName,
			ID:     records[i].NeighborhoodID,
			Sector: records[i].Sector,
		}
		k := keyOf(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}

// FromCollection extracts the lookup from a geometry collection's records.
func FromCollection(c *geospatial.Collection) []model.Neighborhood {
	records := make([]model.CleanedRecord, len(c.Features))
	for i, f := range c.Features {
		records[i] = *f.Record
	}
	return Extract(records)
}

// JSON renders the lookup as a compact JSON array.
func JSON(records []model.CleanedRecord) ([]byte, error) {
	data, err := json.Marshal(Extract(records))
	if err != nil {
		return nil, eris.Wrap(err, "lookup: marshal")
	}
	return data, nil
}

// WriteFile writes the lookup of records to path, creating parent directories.
func WriteFile(path string, records []model.CleanedRecord) (int, error) {
	entries := Extract(records)
	return len(entries), Write(path, entries)
}

// Write writes an extracted lookup as JSON to path, creating parent
// directories.
func Write(path string, entries []model.Neighborhood) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "lookup: marshal")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "lookup: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "lookup: write %s", path)
	}
	return nil
}

// ReadFile loads a lookup written by WriteFile. A missing file yields an
// empty list.
func ReadFile(path string) ([]model.Neighborhood, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Neighborhood{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "lookup: read %s", path)
	}
	entries := make([]model.Neighborhood, 0)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "lookup: decode %s", path)
	}
	return entries, nil
}
