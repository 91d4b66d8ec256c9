package catalog

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Details is the subset of dataset metadata shown next to the prediction form.
// Raw keeps the full document.
type Details struct {
	ID          string          `json:"dataset_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Publisher   string          `json:"publisher"`
	License     string          `json:"license"`
	Records     int64           `json:"records_count"`
	Modified    string          `json:"modified"`
	Raw         json.RawMessage `json:"raw"`
}

// Summary is one dataset of a catalog page.
type Summary struct {
	ID      string `json:"dataset_id"`
	Title   string `json:"title"`
	Records int64  `json:"records_count"`
}

// Page is one page of the catalog listing. NextOffset and PrevOffset are nil
// at the ends.
type Page struct {
	TotalCount int64     `json:"total_count"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
	Datasets   []Summary `json:"datasets"`
	NextOffset *int      `json:"next_offset"`
	PrevOffset *int      `json:"prev_offset"`
}

// Details fetches the metadata document of dataset id.
func (c *Client) Details(ctx context.Context, id string) (*Details, error) {
	data, err := c.getJSON(ctx, c.endpoint(nil, id))
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: details %s", id)
	}
	if !gjson.ValidBytes(data) {
		return nil, eris.Errorf("catalog: details %s: invalid json", id)
	}
	return parseDetails(data), nil
}

func parseDetails(data []byte) *Details {
	doc := gjson.ParseBytes(data)
	meta := doc.Get("metas.default")
	return &Details{
		ID:          doc.Get("dataset_id").String(),
		Title:       meta.Get("title").String(),
		Description: meta.Get("description").String(),
		Publisher:   meta.Get("publisher").String(),
		License:     meta.Get("license").String(),
		Records:     meta.Get("records_count").Int(),
		Modified:    meta.Get("modified").String(),
		Raw:         json.RawMessage(data),
	}
}

// List returns one page of the catalog.
func (c *Client) List(ctx context.Context, offset, limit int) (*Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 10
	}

	data, err := c.getJSON(ctx, c.endpoint(pageQuery(offset, limit)))
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list datasets")
	}
	if !gjson.ValidBytes(data) {
		return nil, eris.New("catalog: list datasets: invalid json")
	}
	return parsePage(data, offset, limit), nil
}

func parsePage(data []byte, offset, limit int) *Page {
	doc := gjson.ParseBytes(data)
	p := &Page{
		TotalCount: doc.Get("total_count").Int(),
		Offset:     offset,
		Limit:      limit,
		Datasets:   make([]Summary, 0),
	}
	doc.Get("results").ForEach(func(_, r gjson.Result) bool {
		p.Datasets = append(p.Datasets, Summary{
			ID:      r.Get("dataset_id").String(),
			Title:   r.Get("metas.default.title").String(),
			Records: r.Get("metas.default.records_count").Int(),
		})
		return true
	})

	if int64(offset+limit) < p.TotalCount {
		next := offset + limit
		p.NextOffset = &next
	}
	if offset > 0 {
		prev := max(offset-limit, 0)
		p.PrevOffset = &prev
	}
	return p
}
