package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete generated CSV files and chart images",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		total := 0
		for _, target := range []struct{ dir, pattern string }{
			{cfg.Catalog.DownloadDir, "*.csv"},
			{cfg.Geo.ImagesDir, "*.png"},
		} {
			n, err := purgeFiles(target.dir, target.pattern, dryRun)
			if err != nil {
				return err
			}
			total += n
		}

		verb := "deleted"
		if dryRun {
			verb = "would delete"
		}
		fmt.Fprintf(os.Stdout, "%s %d files\n", verb, total)
		return nil
	},
}

// purgeFiles removes the regular files of dir matching pattern. A missing
// directory is not an error.
func purgeFiles(dir, pattern string, dryRun bool) (int, error) {
	if dir == "" {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, eris.Wrapf(err, "purge: glob %s", pattern)
	}

	n := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if dryRun {
			zap.L().Info("would delete", zap.String("path", path))
			n++
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return n, eris.Wrapf(err, "purge: remove %s", path)
		}
		zap.L().Info("deleted", zap.String("path", path))
		n++
	}
	return n, nil
}

func init() {
	purgeCmd.Flags().Bool("dry-run", false, "list the files without deleting them")
	rootCmd.AddCommand(purgeCmd)
}
