package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
	"github.com/Hitoyu22/TP3-datamining/internal/predict"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the reference-rent model on the cleaned table and persist it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if n, _ := cmd.Flags().GetInt("estimators"); n > 0 {
			cfg.Model.Estimators = n
		}
		if cmd.Flags().Changed("seed") {
			cfg.Model.Seed, _ = cmd.Flags().GetUint64("seed")
		}
		if err := cfg.Validate("train"); err != nil {
			return err
		}

		return trackRun(cmd.Context(), model.RunKindTrain, func(ctx context.Context) (*model.RunResult, error) {
			metrics, err := trainModel(ctx, cfg.Cleaning.OutputPath, cfg.Model.Path, modelConfig())
			if err != nil {
				return nil, err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(metrics); err != nil {
				return nil, err
			}

			mae := metrics.MAE
			return &model.RunResult{
				Rows:      metrics.TrainRows + metrics.TestRows,
				ModelPath: cfg.Model.Path,
				MAE:       &mae,
			}, nil
		})
	},
}

// trainModel fits a lifecycle on the cleaned CSV at dataset and persists it
// to artifact.
func trainModel(ctx context.Context, dataset, artifact string, mc predict.Config) (predict.Metrics, error) {
	table, err := predict.ReadCleanedCSV(dataset)
	if err != nil {
		return predict.Metrics{}, err
	}

	l := predict.New(mc)
	metrics, err := l.Fit(ctx, table)
	if err != nil {
		return predict.Metrics{}, err
	}
	if err := l.Persist(artifact); err != nil {
		return predict.Metrics{}, err
	}

	zap.L().Info("model trained",
		zap.String("artifact", artifact),
		zap.Float64("mae", metrics.MAE),
		zap.Int("train_rows", metrics.TrainRows),
		zap.Int("test_rows", metrics.TestRows),
	)
	return metrics, nil
}

var (
	predictEra       int
	predictRooms     float64
	predictFurnished int
	predictQuartier  int
	predictSecteur   int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate the reference rent of one dwelling",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			cfg.Model.Mode = mode
		}
		if err := cfg.Validate("predict"); err != nil {
			return err
		}
		svc, err := newService(cfg.Model.Mode)
		if err != nil {
			return err
		}

		f := predict.Features{
			Rooms:          &predictRooms,
			NeighborhoodID: &predictQuartier,
			Sector:         &predictSecteur,
		}
		if cmd.Flags().Changed("era") {
			f.Era = &predictEra
		}
		if cmd.Flags().Changed("furnished") {
			f.Furnished = &predictFurnished
		}

		estimate, err := svc.Predict(cmd.Context(), f)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]float64{"loyer_estime": estimate})
	},
}

func init() {
	trainCmd.Flags().Int("estimators", 0, "number of trees (default from config)")
	trainCmd.Flags().Uint64("seed", 0, "random seed (default from config)")

	predictCmd.Flags().IntVar(&predictEra, "era", 0, "construction era year (1945, 1958, 1980 or 1991)")
	predictCmd.Flags().Float64Var(&predictRooms, "rooms", 0, "number of main rooms")
	predictCmd.Flags().IntVar(&predictFurnished, "furnished", 0, "1 furnished, 0 unfurnished")
	predictCmd.Flags().IntVar(&predictQuartier, "quartier", 0, "neighborhood number")
	predictCmd.Flags().IntVar(&predictSecteur, "secteur", 0, "geographic sector")
	predictCmd.Flags().String("mode", "", "cached or retrain (default from config)")
	_ = predictCmd.MarkFlagRequired("rooms")
	_ = predictCmd.MarkFlagRequired("quartier")
	_ = predictCmd.MarkFlagRequired("secteur")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
}
