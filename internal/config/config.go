// Package config loads docsnap settings with priority flag > env > file > default.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides, e.g. DOCSNAP_BACKUP_ROOT.
const EnvPrefix = "DOCSNAP_"

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// MaxWorkers bounds collection fan-out.
const MaxWorkers = 64

// Config is the full application configuration.
type Config struct {
	Mongo   MongoConfig   `koanf:"mongo"`
	Backup  BackupConfig  `koanf:"backup"`
	Journal JournalConfig `koanf:"journal"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// MongoConfig describes the database connection.
type MongoConfig struct {
	URI      string        `koanf:"uri"`
	Database string        `koanf:"database"` // empty: taken from the URI path
	Timeout  time.Duration `koanf:"timeout"`
}

// BackupConfig controls snapshot files and fan-out.
type BackupConfig struct {
	Root     string   `koanf:"root"`
	Workers  int      `koanf:"workers"`
	Exclude  []string `koanf:"exclude"` // doublestar patterns matched against collection names
	Manifest bool     `koanf:"manifest"`
}

// JournalConfig enables the PostgreSQL run journal when DSN is set.
type JournalConfig struct {
	DSN     string `koanf:"dsn"`
	Migrate bool   `koanf:"migrate"`
}

// Enabled reports whether a journal database is configured.
func (c JournalConfig) Enabled() bool { return c.DSN != "" }

// MetricsConfig enables pushing run metrics when Pushgateway is set.
type MetricsConfig struct {
	Pushgateway string `koanf:"pushgateway"`
	Job         string `koanf:"job"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:     "mongodb://localhost:27017",
			Timeout: 10 * time.Second,
		},
		Backup: BackupConfig{
			Root:     "./backups",
			Workers:  4,
			Exclude:  []string{"system.*"},
			Manifest: true,
		},
		Journal: JournalConfig{Migrate: true},
		Metrics: MetricsConfig{Job: "docsnap"},
		Log:     LogConfig{Level: "info", Format: FormatConsole},
	}
}

func (c *Config) flatten() map[string]any {
	return map[string]any{
		"mongo.uri":           c.Mongo.URI,
		"mongo.database":      c.Mongo.Database,
		"mongo.timeout":       c.Mongo.Timeout.String(),
		"backup.root":         c.Backup.Root,
		"backup.workers":      c.Backup.Workers,
		"backup.exclude":      c.Backup.Exclude,
		"backup.manifest":     c.Backup.Manifest,
		"journal.dsn":         c.Journal.DSN,
		"journal.migrate":     c.Journal.Migrate,
		"metrics.pushgateway": c.Metrics.Pushgateway,
		"metrics.job":         c.Metrics.Job,
		"log.level":           c.Log.Level,
		"log.format":          c.Log.Format,
	}
}

// Load layers defaults, the YAML file at path (optional), DOCSNAP_* variables
// and overrides, then validates the result. Override keys are dotted, e.g.
// "backup.workers".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Default().flatten(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// listKeys are configuration keys whose environment values are comma separated.
var listKeys = map[string]bool{
	"backup.exclude": true,
}

// envValue maps DOCSNAP_BACKUP_ROOT to backup.root and splits list values.
func envValue(name, value string) (string, any) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Mongo.Validate(); err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Validate validates the connection settings.
func (c *MongoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required,
			validation.Match(uriScheme).Error("must start with mongodb:// or mongodb+srv://")),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate validates the backup settings.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(MaxWorkers)),
		validation.Field(&c.Exclude, validation.Each(validation.By(validPattern))),
	)
}

// Validate validates the metrics settings.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Job, validation.When(c.Pushgateway != "", validation.Required)),
	)
}

// Validate validates the logging settings.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.Required, validation.In(FormatConsole, FormatJSON)),
	)
}
