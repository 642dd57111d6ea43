// Package config holds the runtime settings of the etl binary: which query
// backend to run manifests against, where relative output paths land, and how
// logging and metrics are wired.
//
// Settings come from three layers, lowest precedence first:
//
//  1. Defaults registered in Load.
//  2. An optional YAML file (etl.yaml in ".", "./config" or an explicit path).
//  3. Environment variables prefixed with ETL_, with dots replaced by
//     underscores (e.g. ETL_DATABASE_DSN overrides database.dsn).
//
// The manifest itself is not part of this package; see internal/manifest.
//
// Example etl.yaml:
//
//	database:
//	  kind: sqlite
//	  dsn: "file:demo.db?_pragma=foreign_keys(1)"
//	output_dir: ./exports
//	log:
//	  level: info
//	  format: console
//	metrics:
//	  backend: none
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "ETL"

// Config is the top-level runtime configuration.
type Config struct {
	// Database selects the query-execution backend.
	Database Database `mapstructure:"database"`

	// OutputDir is prepended to relative output.path values from manifests.
	// Empty means the current working directory.
	OutputDir string `mapstructure:"output_dir"`

	Log     Log     `mapstructure:"log"`
	Metrics Metrics `mapstructure:"metrics"`
}

// Database configures the storage.Executor used to run compiled plans.
type Database struct {
	// Kind is a registered storage kind: sqlite, sqlite3, postgres, mysql, mssql.
	Kind string `mapstructure:"kind"`

	// DSN is passed to the backend driver unchanged.
	DSN string `mapstructure:"dsn"`
}

// Log configures the process logger.
type Log struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string `mapstructure:"level"`

	// Format is "console", "json" or "auto" (console when stderr is a TTY).
	Format string `mapstructure:"format"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend is one of none, pushgateway, datadog.
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`

	// Job groups pushed metrics; defaults to "etl".
	Job string `mapstructure:"job"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Database: Database{Kind: "sqlite", DSN: "etl.db"},
		Log:      Log{Level: "info", Format: "auto"},
		Metrics:  Metrics{Backend: "none", Job: "etl"},
	}
}

// Load reads configuration from path (when non-empty) or from etl.yaml in the
// usual search locations, then applies ETL_* environment overrides.
//
// A missing config file is not an error when path is empty; defaults and the
// environment still apply. An explicit path that cannot be read is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("etl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve env overrides
// for keys that never appear in a file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.kind", d.Database.Kind)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.backend", d.Metrics.Backend)
	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.datadog_addr", d.Metrics.DatadogAddr)
	v.SetDefault("metrics.job", d.Metrics.Job)
}
