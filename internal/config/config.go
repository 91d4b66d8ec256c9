package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Cleaning CleaningConfig `yaml:"cleaning" mapstructure:"cleaning"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Lookup   LookupConfig   `yaml:"lookup" mapstructure:"lookup"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	PostGIS  PostGISConfig  `yaml:"postgis" mapstructure:"postgis"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures the open data catalog client.
type CatalogConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	DatasetID         string  `yaml:"dataset_id" mapstructure:"dataset_id"`
	Format            string  `yaml:"format" mapstructure:"format"`
	DownloadDir       string  `yaml:"download_dir" mapstructure:"download_dir"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Timeout returns TimeoutSecs as a duration.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CleaningConfig configures the cleaning pipeline outputs.
type CleaningConfig struct {
	OutputPath string   `yaml:"output_path" mapstructure:"output_path"`
	XLSXPath   string   `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	ReportDir  string   `yaml:"report_dir" mapstructure:"report_dir"`
	Scaling    []string `yaml:"scaling" mapstructure:"scaling"`
}

// GeoConfig configures the projected exports used for charts.
type GeoConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	ImagesDir     string `yaml:"images_dir" mapstructure:"images_dir"`
}

// LookupConfig configures the neighborhood lookup file.
type LookupConfig struct {
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// ModelConfig configures training and serving of the rent model.
type ModelConfig struct {
	Path         string  `yaml:"path" mapstructure:"path"`
	Mode         string  `yaml:"mode" mapstructure:"mode"`
	Estimators   int     `yaml:"estimators" mapstructure:"estimators"`
	Seed         uint64  `yaml:"seed" mapstructure:"seed"`
	TestFraction float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostGISConfig configures publishing of the projected table.
type PostGISConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	SRID        int    `yaml:"srid" mapstructure:"srid"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOYERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.base_url", "https://data.opendatasoft.com")
	v.SetDefault("catalog.dataset_id", "logement-encadrement-des-loyers@parisdata")
	v.SetDefault("catalog.format", "csv")
	v.SetDefault("catalog.download_dir", "data")
	v.SetDefault("catalog.user_agent", "loyers/1.0")
	v.SetDefault("catalog.timeout_secs", 60)
	v.SetDefault("catalog.requests_per_second", 5.0)
	v.SetDefault("catalog.max_attempts", 3)
	v.SetDefault("cleaning.output_path", "data/loyers_clean.csv")
	v.SetDefault("cleaning.xlsx_path", "")
	v.SetDefault("cleaning.report_dir", "reports")
	v.SetDefault("cleaning.scaling", []string{})
	v.SetDefault("geo.shapefile_path", "data/loyers_3857.shp")
	v.SetDefault("geo.images_dir", "images")
	v.SetDefault("lookup.output_path", "data/quartiers.json")
	v.SetDefault("model.path", "models/loyers.gob.zst")
	v.SetDefault("model.mode", "cached")
	v.SetDefault("model.estimators", 100)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.test_fraction", 0.2)
	v.SetDefault("model.workers", 0)
	v.SetDefault("store.path", "data/runs.db")
	v.SetDefault("postgis.database_url", "")
	v.SetDefault("postgis.table", "public.loyers")
	v.SetDefault("postgis.srid", 3857)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command relies on. Mode is the command
// name: fetch, clean, train, predict, serve or publish.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fetch":
		if c.Catalog.DatasetID == "" {
			errs = append(errs, "catalog.dataset_id is required")
		}
		if c.Catalog.RequestsPerSecond <= 0 {
			errs = append(errs, "catalog.requests_per_second must be > 0")
		}
	case "clean":
		if c.Cleaning.OutputPath == "" {
			errs = append(errs, "cleaning.output_path is required")
		}
		for _, s := range c.Cleaning.Scaling {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "minmax", "standard":
			default:
				errs = append(errs, fmt.Sprintf("cleaning.scaling: unknown operation %q", s))
			}
		}
	case "train", "predict":
		errs = append(errs, c.validateModel()...)
	case "serve":
		errs = append(errs, c.validateModel()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "publish":
		if c.PostGIS.DatabaseURL == "" {
			errs = append(errs, "postgis.database_url is required")
		}
		if c.PostGIS.Table == "" {
			errs = append(errs, "postgis.table is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateModel() []string {
	var errs []string
	if c.Model.Path == "" {
		errs = append(errs, "model.path is required")
	}
	if c.Cleaning.OutputPath == "" {
		errs = append(errs, "cleaning.output_path is required")
	}
	if c.Model.Estimators < 1 {
		errs = append(errs, "model.estimators must be >= 1")
	}
	if c.Model.TestFraction <= 0 || c.Model.TestFraction >= 1 {
		errs = append(errs, "model.test_fraction must be between 0 and 1")
	}
	switch strings.ToLower(c.Model.Mode) {
	case "", "cached", "retrain":
	default:
		errs = append(errs, fmt.Sprintf("model.mode: unknown mode %q", c.Model.Mode))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
