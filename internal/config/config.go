package config

import (
	"errors"
	"strings"
	"time"

	"github.com/couchcryptid/granule-extract/internal/adapter/ncdump"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cast"
)

// Dump backends.
const (
	BackendNcdump = "ncdump"
	BackendNative = "native"
)

// Config holds all extraction settings, populated from environment variables
// and overridden by command-line flags.
type Config struct {
	DumpBackend string
	NcdumpPath  string
	DumpTimeout time.Duration

	OutputDir        string
	Variables        string
	MaxPointsPerUnit int
	DatasetID        string
	ProfilePath      string

	LogLevel        string
	LogFormat       string
	MetricsTextfile string
	ShutdownTimeout time.Duration

	// Unit-sealed notifications are published only when brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	dumpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DUMP_TIMEOUT", "2m"))
	if err != nil || dumpTimeout <= 0 {
		return nil, errors.New("invalid DUMP_TIMEOUT")
	}

	maxPoints, err := cast.ToIntE(sharedcfg.EnvOrDefault("MAX_POINTS_PER_UNIT", "0"))
	if err != nil {
		return nil, errors.New("invalid MAX_POINTS_PER_UNIT")
	}

	var brokers []string
	if raw := strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		DumpBackend:      strings.ToLower(sharedcfg.EnvOrDefault("DUMP_BACKEND", BackendNcdump)),
		NcdumpPath:       sharedcfg.EnvOrDefault("NCDUMP_PATH", ncdump.DefaultPath),
		DumpTimeout:      dumpTimeout,
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		Variables:        sharedcfg.EnvOrDefault("VARIABLES", "all"),
		MaxPointsPerUnit: maxPoints,
		DatasetID:        sharedcfg.EnvOrDefault("DATASET_ID", ""),
		ProfilePath:      sharedcfg.EnvOrDefault("PROFILE_PATH", ""),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		MetricsTextfile:  sharedcfg.EnvOrDefault("METRICS_TEXTFILE", ""),
		ShutdownTimeout:  shutdownTimeout,
		KafkaBrokers:     brokers,
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "granule-units"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings after flags have been applied.
func (c *Config) Validate() error {
	switch c.DumpBackend {
	case BackendNcdump, BackendNative:
	default:
		return errors.New("invalid DUMP_BACKEND: must be ncdump or native")
	}
	if c.DumpBackend == BackendNcdump && c.NcdumpPath == "" {
		return errors.New("NCDUMP_PATH is required for the ncdump backend")
	}
	if c.DumpTimeout <= 0 {
		return errors.New("invalid DUMP_TIMEOUT")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.MaxPointsPerUnit < 0 {
		return errors.New("invalid MAX_POINTS_PER_UNIT: must not be negative")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.New("invalid LOG_FORMAT: must be json or text")
	}
	if c.NotificationsEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// NotificationsEnabled reports whether unit-sealed notifications are published.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
