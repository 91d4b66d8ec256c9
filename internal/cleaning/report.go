package cleaning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Report step names, in pipeline order.
const (
	StepRename      = "Column renaming"
	StepMissing     = "Missing values"
	StepFurnished   = "Furnished encoding"
	StepTypes       = "Data types after conversion"
	StepGeometry    = "Geometry parsing"
	StepMinMax      = "Normalization"
	StepStandardize = "Standardization"
	StepPersist     = "Cleaned table"
)

const (
	reportHeader     = "Data processing report:\n"
	reportTimeLayout = "2006-01-02_15-04-05"
)

// Entry is one step of a report. Detail is a string or any value yaml.v3
// can marshal.
type Entry struct {
	Step   string
	Detail any
}

// Report is the ordered step log of one pipeline run. It is append-only: a
// step recorded twice, such as a repeated scaling operation, appears twice.
type Report struct {
	entries []Entry
}

// Add appends detail under step.
func (r *Report) Add(step string, detail any) {
	r.entries = append(r.entries, Entry{Step: step, Detail: detail})
}

// Detail returns the latest detail recorded for step.
func (r *Report) Detail(step string) (any, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Step == step {
			return r.entries[i].Detail, true
		}
	}
	return nil, false
}

// String renders the report as written to disk.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(reportHeader)
	for _, e := range r.entries {
		fmt.Fprintf(&b, "\n%s:\n%s\n", e.Step, renderDetail(e.Detail))
	}
	return b.String()
}

func renderDetail(d any) string {
	switch v := d.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	out, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v", d)
	}
	return strings.TrimRight(string(out), "\n")
}

// FileName returns the report file name for a run started at now.
func FileName(now time.Time) string {
	return "report_" + now.Format(reportTimeLayout) + ".txt"
}

// WriteFile writes the report to dir, creating it if needed, and returns the
// file path.
func (r *Report) WriteFile(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "cleaning: create report dir %s", dir)
	}
	path := filepath.Join(dir, FileName(now))
	if err := os.WriteFile(path, []byte(r.String()), 0o644); err != nil {
		return "", eris.Wrapf(err, "cleaning: write report %s", path)
	}
	return path, nil
}
