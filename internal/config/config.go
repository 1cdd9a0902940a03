// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Crawl       CrawlConfig       `mapstructure:"crawl"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	OSHWA       OSHWAConfig       `mapstructure:"oshwa"`
	Thingiverse ThingiverseConfig `mapstructure:"thingiverse"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Ops         OpsConfig         `mapstructure:"ops"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
	HostRPS     float64       `mapstructure:"host_rps"`
	HostBurst   int           `mapstructure:"host_burst"`
}

// CrawlConfig governs the fetch orchestrator.
type CrawlConfig struct {
	PageRetryLimit    int           `mapstructure:"page_retry_limit"`
	SecondaryCooldown time.Duration `mapstructure:"secondary_cooldown"`
}

// GitHubConfig configures the GitHub code-search adapter.
type GitHubConfig struct {
	AccessToken      string        `mapstructure:"access_token"`
	BatchSize        int           `mapstructure:"batch_size"`
	SecondarySpacing time.Duration `mapstructure:"secondary_spacing"`
	FileSpacing      time.Duration `mapstructure:"file_spacing"`
}

// OSHWAConfig configures the OSHWA certification-API adapter.
type OSHWAConfig struct {
	AccessToken string        `mapstructure:"access_token"`
	BatchSize   int           `mapstructure:"batch_size"`
	Spacing     time.Duration `mapstructure:"spacing"`
}

// ThingiverseConfig configures the Thingiverse id-sweep adapter.
type ThingiverseConfig struct {
	AccessToken string        `mapstructure:"access_token"`
	BatchSize   int           `mapstructure:"batch_size"`
	Spacing     time.Duration `mapstructure:"spacing"`
}

// StorageConfig selects and configures the manifest blob backend.
type StorageConfig struct {
	// Backend is one of "local", "gcs" or "memory".
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// CheckpointConfig selects where crawl state is persisted.
type CheckpointConfig struct {
	// Backend is one of "file" or "postgres".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn"`
}

// ArchiveConfig locates the SQLite manifest index.
type ArchiveConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// OpsConfig controls the metrics and health endpoint.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment. An empty path skips the config
// file; environment variables use the KRAWLER_ prefix with underscores for
// dots, e.g. KRAWLER_GITHUB_ACCESS_TOKEN.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(xdg.DataHome, "krawler")

	v.SetDefault("logging.development", true)
	v.SetDefault("http.user_agent", "OKH-Krawler")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base", "250ms")
	v.SetDefault("http.backoff_max", "15s")
	v.SetDefault("http.host_rps", 0)
	v.SetDefault("http.host_burst", 1)
	v.SetDefault("crawl.page_retry_limit", 10)
	v.SetDefault("crawl.secondary_cooldown", "60s")
	v.SetDefault("github.batch_size", 10)
	v.SetDefault("github.secondary_spacing", "5s")
	v.SetDefault("github.file_spacing", "1s")
	v.SetDefault("oshwa.batch_size", 50)
	v.SetDefault("oshwa.spacing", "5s")
	v.SetDefault("thingiverse.batch_size", 50)
	v.SetDefault("thingiverse.spacing", "1s")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", filepath.Join(dataDir, "manifests"))
	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.dir", filepath.Join(dataDir, "state"))
	v.SetDefault("archive.db_path", filepath.Join(dataDir, "index.db"))
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.topic", "fetch-outcomes")
	v.SetDefault("ops.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawl.PageRetryLimit < 0 {
		return fmt.Errorf("crawl.page_retry_limit must be >= 0")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Checkpoint.Backend {
	case "file":
		if c.Checkpoint.Dir == "" {
			return fmt.Errorf("checkpoint.dir must be set for the file backend")
		}
	case "postgres":
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	return nil
}
