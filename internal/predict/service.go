package predict

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Mode selects how the Service obtains the model used for a prediction.
type Mode string

const (
	// ModeCached loads the persisted model once, training and persisting it
	// from the cleaned dataset when no artifact exists. Retraining only
	// happens through Retrain.
	ModeCached Mode = "cached"
	// ModeRetrain fits a fresh model from the cleaned dataset for every
	// prediction and never reads the artifact.
	ModeRetrain Mode = "retrain"
)

// ParseMode validates a configured mode. Empty means ModeCached.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCached:
		return ModeCached, nil
	case ModeRetrain:
		return ModeRetrain, nil
	default:
		return "", eris.Errorf("predict: unknown mode %q", s)
	}
}

// ServiceConfig wires a Service to its files.
type ServiceConfig struct {
	Mode        Mode
	ModelPath   string // persisted artifact
	DatasetPath string // cleaned CSV used for training
	Model       Config
}

// Service serves predictions from a cached lifecycle. The cached model is
// replaced atomically by Retrain and dropped by Invalidate; in-flight
// predictions keep using the lifecycle they started with.
type Service struct {
	cfg ServiceConfig

	mu      sync.RWMutex
	current *Lifecycle

	// trainMu serializes loads and retrains.
	trainMu sync.Mutex
}

// NewService returns a service with no model cached yet.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeCached
	}
	if cfg.Mode != ModeCached && cfg.Mode != ModeRetrain {
		return nil, eris.Errorf("predict: unknown mode %q", cfg.Mode)
	}
	if cfg.DatasetPath == "" {
		return nil, eris.New("predict: dataset path is required")
	}
	if cfg.Mode == ModeCached && cfg.ModelPath == "" {
		return nil, eris.New("predict: model path is required in cached mode")
	}
	return &Service{cfg: cfg}, nil
}

// Mode returns the configured mode.
func (s *Service) Mode() Mode {
	return s.cfg.Mode
}

// Ready reports whether a model is cached.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Predict estimates the reference rent of one row.
func (s *Service) Predict(ctx context.Context, f Features) (float64, error) {
	var l *Lifecycle
	var err error
	if s.cfg.Mode == ModeRetrain {
		l, _, err = s.train(ctx)
	} else {
		l, err = s.ensure(ctx)
	}
	if err != nil {
		return 0, err
	}

	out, err := l.Predict([]Features{f})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Retrain fits a new model from the cleaned dataset, persists it when a
// model path is configured and swaps it in as the cached model.
func (s *Service) Retrain(ctx context.Context) (Metrics, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	l, m, err := s.train(ctx)
	if err != nil {
		return Metrics{}, err
	}
	if s.cfg.ModelPath != "" {
		if err := l.Persist(s.cfg.ModelPath); err != nil {
			return Metrics{}, err
		}
	}

	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	return m, nil
}

// Invalidate drops the cached model; the next cached prediction reloads it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	zap.L().Info("predict: cached model invalidated")
}

// ensure returns the cached lifecycle, loading or training it on first use.
func (s *Service) ensure(ctx context.Context) (*Lifecycle, error) {
	s.mu.RLock()
	l := s.current
	s.mu.RUnlock()
	if l != nil {
		return l, nil
	}

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	s.mu.RLock()
	l = s.current
	s.mu.RUnlock()
	if l != nil {
		return l, nil
	}

	l = New(s.cfg.Model)
	err := l.Load(s.cfg.ModelPath)
	switch {
	case err == nil:
	case errors.Is(err, ErrArtifactNotFound):
		trained, _, terr := s.train(ctx)
		if terr != nil {
			return nil, terr
		}
		if perr := trained.Persist(s.cfg.ModelPath); perr != nil {
			return nil, perr
		}
		l = trained
	default:
		return nil, err
	}

	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	return l, nil
}

// train fits a fresh lifecycle from the cleaned dataset. A dataset that
// cannot be read leaves no model, reported as ErrModelNotReady.
func (s *Service) train(ctx context.Context) (*Lifecycle, Metrics, error) {
	t, err := ReadCleanedCSV(s.cfg.DatasetPath)
	if err != nil {
		return nil, Metrics{}, eris.Wrapf(ErrModelNotReady, "predict: read training data: %v", err)
	}

	l := New(s.cfg.Model)
	m, err := l.Fit(ctx, t)
	if err != nil {
		return nil, Metrics{}, err
	}
	zap.L().Info("predict: model fitted",
		zap.String("mode", string(s.cfg.Mode)),
		zap.Float64("mae", m.MAE),
		zap.Int("train_rows", m.TrainRows),
		zap.Int("test_rows", m.TestRows),
	)
	return l, m, nil
}
