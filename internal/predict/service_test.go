package predict

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hitoyu22/TP3-datamining/internal/cleaning"
)

func newTestService(t *testing.T, mode Mode) (*Service, ServiceConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := ServiceConfig{
		Mode:        mode,
		ModelPath:   filepath.Join(dir, "models", "rent.model"),
		DatasetPath: filepath.Join(dir, "data", "dataset_clean.csv"),
		Model:       testConfig(),
	}
	require.NoError(t, cleaning.WriteCSVFile(cfg.DatasetPath, syntheticRecords(80)))

	s, err := NewService(cfg)
	require.NoError(t, err)
	return s, cfg
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeCached, false},
		{"cached", ModeCached, false},
		{" Retrain ", ModeRetrain, false},
		{"always", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{Mode: ModeCached, DatasetPath: "data.csv"})
	assert.Error(t, err, "cached mode needs a model path")

	_, err = NewService(ServiceConfig{Mode: ModeRetrain})
	assert.Error(t, err, "dataset path required")

	_, err = NewService(ServiceConfig{Mode: "sometimes", DatasetPath: "data.csv", ModelPath: "m"})
	assert.Error(t, err)
}

func TestService_CachedTrainsAndPersistsOnce(t *testing.T) {
	s, cfg := newTestService(t, ModeCached)
	assert.False(t, s.Ready())

	first, err := s.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.True(t, s.Ready())
	assert.FileExists(t, cfg.ModelPath)

	second, err := s.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestService_CachedLoadsExistingArtifact(t *testing.T) {
	s, cfg := newTestService(t, ModeCached)

	l := New(cfg.Model)
	_, err := l.Fit(context.Background(), TableFromRecords(syntheticRecords(80)))
	require.NoError(t, err)
	require.NoError(t, l.Persist(cfg.ModelPath))
	want, err := l.Predict([]Features{sampleFeatures()})
	require.NoError(t, err)

	got, err := s.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, want[0], got)

	s.mu.RLock()
	state := s.current.State()
	s.mu.RUnlock()
	assert.Equal(t, Loaded, state)
}

func TestService_RetrainSwapsModel(t *testing.T) {
	s, cfg := newTestService(t, ModeCached)

	m, err := s.Retrain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, m.TrainRows)
	assert.Equal(t, 16, m.TestRows)
	assert.Equal(t, cfg.Model.Estimators, m.Estimators)
	assert.FileExists(t, cfg.ModelPath)
	assert.True(t, s.Ready())

	s.Invalidate()
	assert.False(t, s.Ready())

	_, err = s.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.True(t, s.Ready())
}

func TestService_RetrainModeMatchesCached(t *testing.T) {
	cached, _ := newTestService(t, ModeCached)
	retrain, _ := newTestService(t, ModeRetrain)

	a, err := cached.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	b, err := retrain.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.False(t, retrain.Ready(), "retrain mode does not cache")
}

func TestService_MissingDatasetIsNotReady(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(ServiceConfig{
		Mode:        ModeCached,
		ModelPath:   filepath.Join(dir, "rent.model"),
		DatasetPath: filepath.Join(dir, "absent.csv"),
		Model:       testConfig(),
	})
	require.NoError(t, err)

	_, err = s.Predict(context.Background(), sampleFeatures())
	assert.ErrorIs(t, err, ErrModelNotReady)
	assert.False(t, s.Ready())
}
