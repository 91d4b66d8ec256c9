package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/cleaning"
	"github.com/Hitoyu22/TP3-datamining/internal/db"
	"github.com/Hitoyu22/TP3-datamining/internal/geospatial"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Load the projected cleaned table into PostGIS",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if table, _ := cmd.Flags().GetString("table"); table != "" {
			cfg.PostGIS.Table = table
		}
		if err := cfg.Validate("publish"); err != nil {
			return err
		}
		ctx := cmd.Context()

		records, err := cleaning.ReadCleanedFile(cfg.Cleaning.OutputPath)
		if err != nil {
			return err
		}
		coll, err := geospatial.Prepare(records)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.PostGIS.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pub, err := geospatial.NewPublisher(pool, cfg.PostGIS.Table)
		if err != nil {
			return err
		}
		if err := pub.Migrate(ctx, cfg.PostGIS.SRID); err != nil {
			return err
		}
		n, err := pub.Publish(ctx, coll)
		if err != nil {
			return err
		}

		zap.L().Info("published to postgis", zap.String("table", cfg.PostGIS.Table), zap.Int64("rows", n))
		fmt.Fprintf(os.Stdout, "%d rows -> %s\n", n, cfg.PostGIS.Table)
		return nil
	},
}

func init() {
	publishCmd.Flags().String("table", "", "target table (default from config)")
	rootCmd.AddCommand(publishCmd)
}
