package cleaning

import (
	"sort"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

// Rename applies model.RenameMap to a header. Columns outside the map keep
// their name. It returns the new header and the sorted names that did not
// exist before renaming.
func Rename(header []string) ([]string, []string) {
	before := make(map[string]bool, len(header))
	for _, h := range header {
		before[h] = true
	}

	out := make([]string, len(header))
	var added []string
	for i, h := range header {
		name := h
		if to, ok := model.RenameMap[h]; ok {
			name = to
		}
		out[i] = name
		if !before[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	return out, added
}
