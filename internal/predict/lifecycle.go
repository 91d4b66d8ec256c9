package predict

import (
	"context"
	"encoding/gob"
	"errors"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrModelNotReady is returned by inference or evaluation before a
	// successful train or load.
	ErrModelNotReady = eris.New("predict: model not ready")
	// ErrArtifactNotFound is returned by Load when no artifact exists.
	ErrArtifactNotFound = eris.New("predict: no model found")
	// ErrNotPrepared is returned by Train before Prepare.
	ErrNotPrepared = eris.New("predict: dataset not prepared")
)

// State is the lifecycle stage of a model.
type State int

// Lifecycle states.
const (
	Untrained State = iota
	Trained
	Persisted
	Loaded
)

func (s State) String() string {
	switch s {
	case Trained:
		return "trained"
	case Persisted:
		return "persisted"
	case Loaded:
		return "loaded"
	default:
		return "untrained"
	}
}

// Config holds the training parameters.
type Config struct {
	Estimators   int
	Seed         uint64
	TestFraction float64
	Workers      int // parallel tree fits; <1 uses GOMAXPROCS
}

// DefaultConfig returns 100 trees, seed 42 and a 20% test split.
func DefaultConfig() Config {
	return Config{Estimators: 100, Seed: 42, TestFraction: 0.2}
}

// Metrics summarizes a training run.
type Metrics struct {
	MAE        float64 `json:"mae"`
	TrainRows  int     `json:"train_rows"`
	TestRows   int     `json:"test_rows"`
	Estimators int     `json:"estimators"`
}

// Lifecycle owns one model from preparation to inference. Inference is safe
// for concurrent use; training and loading take an exclusive lock.
type Lifecycle struct {
	cfg Config

	mu       sync.RWMutex
	state    State
	forest   *Forest
	prepared bool
	trainX   [][]float64
	trainY   []float64
	testX    [][]float64
	testY    []float64
	testRows []int
}

// New returns an untrained lifecycle.
func New(cfg Config) *Lifecycle {
	return &Lifecycle{cfg: cfg}
}

// State returns the current stage.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Split returns the row indices of a deterministic train/test partition of
// n rows. The test part holds ceil(n * testFraction) rows.
func Split(n int, testFraction float64, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(float64(n) * testFraction))
	nTest = min(max(nTest, 0), n)
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

// Prepare selects the feature and target columns of t and splits its rows.
// Rows with an unknown target are left out of both partitions.
func (l *Lifecycle) Prepare(t *Table) error {
	for _, col := range append(slices.Clone(FeatureColumns), TargetColumn) {
		if !t.Has(col) {
			return &SchemaError{Column: col}
		}
	}

	target := t.Column(TargetColumn)
	var usable []int
	for i, v := range target {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			usable = append(usable, i)
		}
	}
	if dropped := t.Len() - len(usable); dropped > 0 {
		zap.L().Warn("predict: rows without target left out",
			zap.Int("dropped", dropped),
			zap.Int("rows", t.Len()),
		)
	}

	vector := func(row int) []float64 {
		x := make([]float64, len(FeatureColumns))
		for j, col := range FeatureColumns {
			x[j] = t.Column(col)[row]
		}
		return x
	}

	trainIdx, testIdx := Split(len(usable), l.cfg.TestFraction, l.cfg.Seed)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.trainX, l.trainY = nil, nil
	l.testX, l.testY, l.testRows = nil, nil, nil
	for _, k := range trainIdx {
		row := usable[k]
		l.trainX = append(l.trainX, vector(row))
		l.trainY = append(l.trainY, target[row])
	}
	for _, k := range testIdx {
		row := usable[k]
		l.testX = append(l.testX, vector(row))
		l.testY = append(l.testY, target[row])
		l.testRows = append(l.testRows, row)
	}
	l.prepared = true
	return nil
}

// TestRows returns the table rows of the test partition, in split order.
func (l *Lifecycle) TestRows() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.testRows)
}

// Train fits the forest on the training partition.
func (l *Lifecycle) Train(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.prepared {
		return ErrNotPrepared
	}

	forest, err := fitForest(ctx, l.trainX, l.trainY, l.cfg.Estimators, l.cfg.Seed, l.cfg.Workers)
	if err != nil {
		return err
	}
	l.forest = forest
	l.state = Trained

	zap.L().Info("predict: model trained",
		zap.Int("estimators", len(forest.Trees)),
		zap.Int("train_rows", len(l.trainY)),
		zap.Uint64("seed", l.cfg.Seed),
	)
	return nil
}

// Evaluate returns the mean absolute error on the test partition. It needs
// a model trained in this lifecycle.
func (l *Lifecycle) Evaluate() (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != Trained && l.state != Persisted {
		return 0, eris.Wrap(ErrModelNotReady, "predict: evaluate")
	}
	if len(l.testY) == 0 {
		return 0, eris.New("predict: empty test partition")
	}

	var sum float64
	for i, x := range l.testX {
		sum += math.Abs(l.forest.Predict(x) - l.testY[i])
	}
	return sum / float64(len(l.testY)), nil
}

// Fit prepares t, trains and evaluates in one call.
func (l *Lifecycle) Fit(ctx context.Context, t *Table) (Metrics, error) {
	if err := l.Prepare(t); err != nil {
		return Metrics{}, err
	}
	if err := l.Train(ctx); err != nil {
		return Metrics{}, err
	}
	mae, err := l.Evaluate()
	if err != nil {
		return Metrics{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return Metrics{
		MAE:        mae,
		TrainRows:  len(l.trainY),
		TestRows:   len(l.testY),
		Estimators: len(l.forest.Trees),
	}, nil
}

// Predict returns one estimate per row, rounded to two decimals.
func (l *Lifecycle) Predict(rows []Features) ([]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.forest == nil {
		return nil, eris.Wrap(ErrModelNotReady, "predict: inference")
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = Round2(l.forest.Predict(r.Vector()))
	}
	return out, nil
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// artifactVersion is bumped whenever the encoded layout changes.
const artifactVersion = 1

type artifact struct {
	Version  int
	Features []string
	Config   Config
	Forest   Forest
}

// Persist writes the fitted forest to path as zstd-compressed gob. The file
// is written next to path and renamed into place.
func (l *Lifecycle) Persist(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.forest == nil {
		return eris.Wrap(ErrModelNotReady, "predict: persist")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "predict: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "predict: create temp artifact")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "predict: init zstd writer")
	}
	a := artifact{Version: artifactVersion, Features: FeatureColumns, Config: l.cfg, Forest: *l.forest}
	if err := gob.NewEncoder(enc).Encode(&a); err != nil {
		_ = enc.Close()
		_ = tmp.Close()
		return eris.Wrap(err, "predict: encode artifact")
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "predict: flush zstd")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "predict: close temp artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "predict: rename artifact to %s", path)
	}

	if l.state == Trained {
		l.state = Persisted
	}
	zap.L().Info("predict: model persisted", zap.String("path", path))
	return nil
}

// Load replaces the lifecycle's model with the artifact at path. A missing
// artifact is logged and returned as ErrArtifactNotFound; the lifecycle is
// left unchanged.
func (l *Lifecycle) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.L().Info("predict: no model found", zap.String("path", path))
			return ErrArtifactNotFound
		}
		return eris.Wrapf(err, "predict: open %s", path)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return eris.Wrap(err, "predict: init zstd reader")
	}
	defer dec.Close()

	var a artifact
	if err := gob.NewDecoder(dec).Decode(&a); err != nil {
		return eris.Wrapf(err, "predict: decode %s", path)
	}
	if a.Version != artifactVersion {
		return eris.Errorf("predict: artifact version %d, want %d", a.Version, artifactVersion)
	}
	if !slices.Equal(a.Features, FeatureColumns) {
		return eris.Errorf("predict: artifact features %v do not match %v", a.Features, FeatureColumns)
	}
	if len(a.Forest.Trees) == 0 {
		return eris.Errorf("predict: artifact %s has no trees", path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.forest = &a.Forest
	l.state = Loaded
	zap.L().Info("predict: model loaded",
		zap.String("path", path),
		zap.Int("estimators", len(a.Forest.Trees)),
	)
	return nil
}
