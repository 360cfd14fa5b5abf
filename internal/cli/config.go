package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/store"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g.
// DOCSQL_DSN.
const EnvPrefix = "DOCSQL"

// Config holds the resolved connection and runtime settings.
//
// Precedence, highest first: command-line flags, DOCSQL_* environment
// variables (including those loaded from .env), the config file, defaults.
type Config struct {
	Driver            string
	DSN               string
	Table             string
	IDStrategy        string
	LogFormat         string
	ImportConcurrency int
}

// Configuration keys and the flags bound to them.
var configFlags = map[string]string{
	"driver":             "driver",
	"dsn":                "dsn",
	"table":              "table",
	"id_strategy":        "id-strategy",
	"log_format":         "log-format",
	"import_concurrency": "import-concurrency",
}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Driver:            "sqlite3",
		DSN:               "docsql.db",
		Table:             store.DefaultTable,
		IDStrategy:        collection.IDStrategyUUID,
		LogFormat:         "text",
		ImportConcurrency: 4,
	}
}

// LoadConfig resolves the configuration from flags, environment, .env and
// the config file.
//
// configFile names an explicit config file; when empty, .docsql.yaml in the
// working directory is read if present.
func LoadConfig(flags *pflag.FlagSet, configFile string) (Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("driver", def.Driver)
	v.SetDefault("dsn", def.DSN)
	v.SetDefault("table", def.Table)
	v.SetDefault("id_strategy", def.IDStrategy)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("import_concurrency", def.ImportConcurrency)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(".docsql")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for key, name := range configFlags {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := Config{
		Driver:            v.GetString("driver"),
		DSN:               v.GetString("dsn"),
		Table:             v.GetString("table"),
		IDStrategy:        v.GetString("id_strategy"),
		LogFormat:         v.GetString("log_format"),
		ImportConcurrency: v.GetInt("import_concurrency"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c Config) Validate() error {
	if _, err := collection.GeneratorFor(c.IDStrategy); err != nil {
		return err
	}
	if !contains(ValidLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.LogFormat, ValidLogFormats)
	}
	if c.ImportConcurrency < 1 {
		return fmt.Errorf("import concurrency must be at least 1, got %d", c.ImportConcurrency)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
