// Package config loads and validates pagevault configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pagevault/pagevault/internal/scrape"
)

// File names consulted when no explicit path is given: the primary config,
// then a fallback shipped alongside the binary, then compiled defaults.
const (
	DefaultFile  = "config.yaml"
	FallbackFile = "config.default.yaml"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Solver    SolverConfig    `mapstructure:"solver"`
	Output    OutputConfig    `mapstructure:"output"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Tasks     []scrape.Task   `mapstructure:"tasks"`

	// Source records which file the configuration came from, or "defaults".
	Source string `mapstructure:"-"`
}

// SolverConfig points at the external solving proxy.
type SolverConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	MaxTimeoutMs          int    `mapstructure:"max_timeout_ms"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// MaxTimeout is the per-solve time limit forwarded to the solver.
func (c SolverConfig) MaxTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutMs) * time.Millisecond
}

// RequestTimeout bounds the HTTP round trip to the solver endpoint.
func (c SolverConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// OutputConfig selects and parameterizes the content sink.
type OutputConfig struct {
	Provider  string `mapstructure:"provider"`
	Directory string `mapstructure:"directory"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DatabaseConfig controls the optional Postgres capture journal.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// Enabled reports whether a journal should be connected.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// PublisherConfig holds metadata for capture notifications.
type PublisherConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications should be published.
func (c PublisherConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// ServerConfig controls the optional status API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FeedConfig sizes the capture event feed.
type FeedConfig struct {
	Buffer int `mapstructure:"buffer"`
	Recent int `mapstructure:"recent"`
}

// Load builds a Config from disk and environment. A missing or unparseable
// primary file falls back to FallbackFile, then to compiled defaults;
// environment variables (PAGEVAULT_ prefix, FLARESOLVERR_URL for the solver
// address) apply in every case.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The conventional FlareSolverr variable wins over the default base URL
	// so existing deployments need no extra wiring.
	_ = v.BindEnv("solver.base_url", "PAGEVAULT_SOLVER_BASE_URL", "FLARESOLVERR_URL")

	setDefaults(v)

	source := "defaults"
	for _, candidate := range candidates(path) {
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err == nil {
			source = candidate
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func candidates(path string) []string {
	primary := path
	if primary == "" {
		primary = DefaultFile
	}
	if primary == FallbackFile {
		return []string{primary}
	}
	return []string{primary, FallbackFile}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.base_url", "http://localhost:8191")
	v.SetDefault("solver.max_timeout_ms", 60000)
	v.SetDefault("solver.request_timeout_seconds", 75)
	v.SetDefault("output.provider", "local")
	v.SetDefault("output.directory", "scraped_html")
	v.SetDefault("output.gcs_prefix", "captures")
	v.SetDefault("database.table", "captures")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("feed.buffer", 1024)
	v.SetDefault("feed.recent", 100)
	v.SetDefault("tasks", []scrape.Task{})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Solver.BaseURL) == "" {
		return fmt.Errorf("solver.base_url must be set")
	}
	if c.Solver.MaxTimeoutMs <= 0 {
		return fmt.Errorf("solver.max_timeout_ms must be > 0")
	}
	if c.Solver.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("solver.request_timeout_seconds must be > 0")
	}
	if c.Solver.RequestTimeout() <= c.Solver.MaxTimeout() {
		return fmt.Errorf("solver.request_timeout_seconds must exceed solver.max_timeout_ms")
	}
	switch c.Output.Provider {
	case "local", "memory":
	case "gcs":
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("output.provider must be one of local, gcs, memory (got %q)", c.Output.Provider)
	}
	if c.Output.Provider == "local" && strings.TrimSpace(c.Output.Directory) == "" {
		return fmt.Errorf("output.directory must be set for the local provider")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in 1..65535 when the server is enabled")
	}
	if c.Feed.Buffer < 0 || c.Feed.Recent < 0 {
		return fmt.Errorf("feed.buffer and feed.recent must be >= 0")
	}
	for i, task := range c.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return fmt.Errorf("tasks[%d].name must be set", i)
		}
		if strings.TrimSpace(task.URL) == "" {
			return fmt.Errorf("tasks[%d].url must be set", i)
		}
		if strings.TrimSpace(task.Schedule) == "" {
			return fmt.Errorf("tasks[%d].schedule must be set", i)
		}
	}
	return nil
}
