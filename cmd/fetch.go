package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Hitoyu22/TP3-datamining/internal/catalog"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [dataset-id]",
	Short: "Download a dataset export from the open data catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := newCatalogClient()
		if err != nil {
			return err
		}

		id := cfg.Catalog.DatasetID
		if len(args) == 1 {
			id = args[0]
		}
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = cfg.Catalog.Format
		}
		force, _ := cmd.Flags().GetBool("force")

		path, err := client.Download(ctx, id, format, force)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

var fetchInfoCmd = &cobra.Command{
	Use:   "info [dataset-id]",
	Short: "Print dataset metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCatalogClient()
		if err != nil {
			return err
		}
		id := cfg.Catalog.DatasetID
		if len(args) == 1 {
			id = args[0]
		}

		d, err := client.Details(cmd.Context(), id)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if raw {
			var doc any
			if err := json.Unmarshal(d.Raw, &doc); err != nil {
				return eris.Wrap(err, "decode metadata")
			}
			return enc.Encode(doc)
		}
		d.Raw = nil
		return enc.Encode(d)
	},
}

var fetchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog datasets page by page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newCatalogClient()
		if err != nil {
			return err
		}
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")

		page, err := client.List(cmd.Context(), offset, limit)
		if err != nil {
			return err
		}
		formatCatalogPage(os.Stdout, page)
		return nil
	},
}

// formatCatalogPage writes one catalog page as a table followed by the
// offsets of the neighboring pages.
func formatCatalogPage(out io.Writer, p *catalog.Page) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tTITLE\tRECORDS")
	for _, d := range p.Datasets {
		title := d.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", d.ID, title, d.Records)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d datasets, offset %d", p.TotalCount, p.Offset)
	if p.PrevOffset != nil {
		_, _ = fmt.Fprintf(out, ", previous --offset %d", *p.PrevOffset)
	}
	if p.NextOffset != nil {
		_, _ = fmt.Fprintf(out, ", next --offset %d", *p.NextOffset)
	}
	_, _ = fmt.Fprintln(out)
}

func init() {
	fetchCmd.Flags().String("format", "", "export format (default from config)")
	fetchCmd.Flags().Bool("force", false, "download again even if the export exists")

	fetchInfoCmd.Flags().Bool("raw", false, "print the full metadata document")

	fetchListCmd.Flags().Int("offset", 0, "index of the first dataset")
	fetchListCmd.Flags().Int("limit", 10, "datasets per page")

	fetchCmd.AddCommand(fetchInfoCmd)
	fetchCmd.AddCommand(fetchListCmd)
	rootCmd.AddCommand(fetchCmd)
}
