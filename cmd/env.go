package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/catalog"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
	"github.com/Hitoyu22/TP3-datamining/internal/predict"
	"github.com/Hitoyu22/TP3-datamining/internal/resilience"
	"github.com/Hitoyu22/TP3-datamining/internal/store"
)

func newCatalogClient() (*catalog.Client, error) {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Catalog.MaxAttempts
	return catalog.New(catalog.Options{
		BaseURL:           cfg.Catalog.BaseURL,
		DownloadDir:       cfg.Catalog.DownloadDir,
		UserAgent:         cfg.Catalog.UserAgent,
		Timeout:           cfg.Catalog.Timeout(),
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Retry:             retry,
	})
}

// initStore opens and migrates the run history database.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// modelConfig overlays the configured training parameters on the defaults.
func modelConfig() predict.Config {
	mc := predict.DefaultConfig()
	if cfg.Model.Estimators > 0 {
		mc.Estimators = cfg.Model.Estimators
	}
	if cfg.Model.TestFraction > 0 {
		mc.TestFraction = cfg.Model.TestFraction
	}
	mc.Seed = cfg.Model.Seed
	mc.Workers = cfg.Model.Workers
	return mc
}

func newService(mode string) (*predict.Service, error) {
	m, err := predict.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return predict.NewService(predict.ServiceConfig{
		Mode:        m,
		ModelPath:   cfg.Model.Path,
		DatasetPath: cfg.Cleaning.OutputPath,
		Model:       modelConfig(),
	})
}

// trackRun records fn as a run of kind in the history store. A store that
// cannot be opened only costs the history entry.
func trackRun(ctx context.Context, kind model.RunKind, fn func(ctx context.Context) (*model.RunResult, error)) error {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		_, err := fn(ctx)
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, kind, cfg.Catalog.DatasetID)
	if err != nil {
		zap.L().Warn("record run", zap.Error(err))
		_, err := fn(ctx)
		return err
	}

	start := time.Now()
	result, runErr := fn(ctx)

	// The run context may be cancelled; the history write should still land.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if runErr != nil {
		err = st.FailRun(finishCtx, run.ID, runErr)
	} else {
		err = st.CompleteRun(finishCtx, run.ID, result)
	}
	if err != nil {
		zap.L().Warn("finish run", zap.String("run_id", run.ID), zap.Error(err))
	}

	zap.L().Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("kind", string(kind)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("ok", runErr == nil),
	)
	return runErr
}
