package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.opendatasoft.com", cfg.Catalog.BaseURL)
	assert.Equal(t, "logement-encadrement-des-loyers@parisdata", cfg.Catalog.DatasetID)
	assert.Equal(t, "csv", cfg.Catalog.Format)
	assert.Equal(t, "data", cfg.Catalog.DownloadDir)
	assert.Equal(t, 60, cfg.Catalog.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.Catalog.RequestsPerSecond, 0.001)
	assert.Equal(t, "data/loyers_clean.csv", cfg.Cleaning.OutputPath)
	assert.Equal(t, "reports", cfg.Cleaning.ReportDir)
	assert.Empty(t, cfg.Cleaning.Scaling)
	assert.Equal(t, "images", cfg.Geo.ImagesDir)
	assert.Equal(t, "data/quartiers.json", cfg.Lookup.OutputPath)
	assert.Equal(t, "cached", cfg.Model.Mode)
	assert.Equal(t, 100, cfg.Model.Estimators)
	assert.Equal(t, uint64(42), cfg.Model.Seed)
	assert.InDelta(t, 0.2, cfg.Model.TestFraction, 0.001)
	assert.Equal(t, "public.loyers", cfg.PostGIS.Table)
	assert.Equal(t, 3857, cfg.PostGIS.SRID)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cleaning:
  scaling: [minmax, standard]
model:
  estimators: 25
  mode: retrain
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"minmax", "standard"}, cfg.Cleaning.Scaling)
	assert.Equal(t, 25, cfg.Model.Estimators)
	assert.Equal(t, "retrain", cfg.Model.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, uint64(42), cfg.Model.Seed)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
model:
  path: from-file.zst
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LOYERS_MODEL_PATH", "from-env.zst")
	t.Setenv("LOYERS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env.zst", cfg.Model.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LOYERS_SERVER_PORT", "3000")
	t.Setenv("LOYERS_POSTGIS_DATABASE_URL", "postgres://localhost/geo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/geo", cfg.PostGIS.DatabaseURL)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("model: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation relies on.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Catalog.DatasetID = "logement-encadrement-des-loyers@parisdata"
	cfg.Catalog.RequestsPerSecond = 5
	cfg.Cleaning.OutputPath = "data/loyers_clean.csv"
	cfg.Model.Path = "models/loyers.gob.zst"
	cfg.Model.Mode = "cached"
	cfg.Model.Estimators = 100
	cfg.Model.TestFraction = 0.2
	cfg.PostGIS.Table = "public.loyers"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "fetch ok", mode: "fetch"},
		{name: "fetch no dataset", mode: "fetch", mutate: func(c *Config) { c.Catalog.DatasetID = "" }, wantErr: "catalog.dataset_id is required"},
		{name: "clean ok", mode: "clean", mutate: func(c *Config) { c.Cleaning.Scaling = []string{"MinMax", "standard"} }},
		{name: "clean bad scaling", mode: "clean", mutate: func(c *Config) { c.Cleaning.Scaling = []string{"log"} }, wantErr: `unknown operation "log"`},
		{name: "train ok", mode: "train"},
		{name: "train no trees", mode: "train", mutate: func(c *Config) { c.Model.Estimators = 0 }, wantErr: "model.estimators must be >= 1"},
		{name: "train bad fraction", mode: "train", mutate: func(c *Config) { c.Model.TestFraction = 1 }, wantErr: "model.test_fraction"},
		{name: "predict ok", mode: "predict"},
		{name: "predict bad fraction", mode: "predict", mutate: func(c *Config) { c.Model.TestFraction = 0 }, wantErr: "model.test_fraction"},
		{name: "predict bad mode", mode: "predict", mutate: func(c *Config) { c.Model.Mode = "lazy" }, wantErr: "model.mode"},
		{name: "serve ok", mode: "serve"},
		{name: "serve bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "serve bad mode", mode: "serve", mutate: func(c *Config) { c.Model.Mode = "lazy" }, wantErr: "model.mode"},
		{name: "publish no url", mode: "publish", wantErr: "postgis.database_url is required"},
		{name: "publish ok", mode: "publish", mutate: func(c *Config) { c.PostGIS.DatabaseURL = "postgres://localhost/geo" }},
		{name: "unknown mode", mode: "unknown", wantErr: "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Model.Path = ""
	cfg.Model.Estimators = 0

	err := cfg.Validate("train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.path is required")
	assert.Contains(t, err.Error(), "model.estimators must be >= 1")
}
