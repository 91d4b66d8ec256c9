package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/cleaning"
	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
	"github.com/Hitoyu22/TP3-datamining/internal/lookup"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the raw export and write the cleaned table, report and chart inputs",
	Long: "Runs rename, imputation, encoding, coercion, geometry parsing and optional scaling " +
		"over the raw export, then writes the cleaned CSV, the processing report, the projected " +
		"shapefile and the neighborhood lookup.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if scaling, _ := cmd.Flags().GetStringSlice("scaling"); cmd.Flags().Changed("scaling") {
			cfg.Cleaning.Scaling = scaling
		}
		if err := cfg.Validate("clean"); err != nil {
			return err
		}
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		download, _ := cmd.Flags().GetBool("download")
		skipGeo, _ := cmd.Flags().GetBool("skip-geo")

		if input == "" || download {
			client, err := newCatalogClient()
			if err != nil {
				return err
			}
			if input == "" {
				input = client.ExportPath(cfg.Catalog.DatasetID, cfg.Catalog.Format)
			}
			if download {
				if input, err = client.Download(ctx, cfg.Catalog.DatasetID, cfg.Catalog.Format, false); err != nil {
					return err
				}
			}
		}

		return trackRun(ctx, model.RunKindClean, func(ctx context.Context) (*model.RunResult, error) {
			res, err := runCleaning(ctx, input)
			if err != nil {
				return nil, err
			}
			if !skipGeo {
				if err := writeChartInputs(res.Records); err != nil {
					return nil, err
				}
			}
			fmt.Fprintf(os.Stdout, "cleaned %d rows -> %s\n", len(res.Records), res.OutputPath)
			if res.ReportPath != "" {
				fmt.Fprintf(os.Stdout, "report -> %s\n", res.ReportPath)
			}
			return &model.RunResult{
				Rows:       len(res.Records),
				OutputPath: res.OutputPath,
				ReportPath: res.ReportPath,
			}, nil
		})
	},
}

func runCleaning(ctx context.Context, input string) (*cleaning.Result, error) {
	p, err := cleaning.New(cleaning.Options{
		OutputPath: cfg.Cleaning.OutputPath,
		XLSXPath:   cfg.Cleaning.XLSXPath,
		ReportDir:  cfg.Cleaning.ReportDir,
		Scaling:    cfg.Cleaning.Scaling,
	})
	if err != nil {
		return nil, err
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, eris.Wrapf(err, "open raw export %s", input)
	}
	defer f.Close() //nolint:errcheck

	return p.Run(ctx, f)
}

// writeChartInputs projects the cleaned table to Web Mercator for the chart
// renderer and writes the neighborhood lookup for the prediction form.
func writeChartInputs(records []model.CleanedRecord) error {
	coll, err := geospatial.Prepare(records)
	if err != nil {
		return err
	}
	if cfg.Geo.ShapefilePath != "" {
		n, err := geospatial.WriteShapefile(cfg.Geo.ShapefilePath, coll)
		if err != nil {
			return err
		}
		zap.L().Info("shapefile written", zap.String("path", cfg.Geo.ShapefilePath), zap.Int("shapes", n))
	}
	if cfg.Lookup.OutputPath != "" {
		entries := lookup.FromCollection(coll)
		if err := lookup.Write(cfg.Lookup.OutputPath, entries); err != nil {
			return err
		}
		zap.L().Info("lookup written", zap.String("path", cfg.Lookup.OutputPath), zap.Int("neighborhoods", len(entries)))
	}
	return nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Write the neighborhood lookup from the cleaned table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		records, err := cleaning.ReadCleanedFile(cfg.Cleaning.OutputPath)
		if err != nil {
			return err
		}

		if stdout, _ := cmd.Flags().GetBool("stdout"); stdout {
			data, err := lookup.JSON(records)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		}

		n, err := lookup.WriteFile(cfg.Lookup.OutputPath, records)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d neighborhoods -> %s\n", n, cfg.Lookup.OutputPath)
		return nil
	},
}

func init() {
	cleanCmd.Flags().String("input", "", "raw export path (default: the catalog download path)")
	cleanCmd.Flags().Bool("download", false, "download the export first when it is missing")
	cleanCmd.Flags().Bool("skip-geo", false, "skip the shapefile and lookup outputs")
	cleanCmd.Flags().StringSlice("scaling", nil, "scaling operations applied in order (minmax, standard)")

	lookupCmd.Flags().Bool("stdout", false, "print the lookup instead of writing it")

	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(lookupCmd)
}
