package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.UserAgent != "OKH-Krawler" {
		t.Fatalf("expected default user agent, got %q", cfg.HTTP.UserAgent)
	}
	if cfg.Crawl.PageRetryLimit != 10 {
		t.Fatalf("expected page retry limit 10, got %d", cfg.Crawl.PageRetryLimit)
	}
	if cfg.Crawl.SecondaryCooldown != 60*time.Second {
		t.Fatalf("expected 60s cooldown, got %v", cfg.Crawl.SecondaryCooldown)
	}
	if cfg.GitHub.BatchSize != 10 || cfg.OSHWA.BatchSize != 50 {
		t.Fatalf("expected platform batch defaults, got %d/%d",
			cfg.GitHub.BatchSize, cfg.OSHWA.BatchSize)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.BaseDir == "" {
		t.Fatalf("expected local storage default with a base dir: %+v", cfg.Storage)
	}
	if cfg.Checkpoint.Backend != "file" || cfg.Checkpoint.Dir == "" {
		t.Fatalf("expected file checkpoint default with a dir: %+v", cfg.Checkpoint)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
http:
  user_agent: custom-agent
  timeout: 45s
  max_retries: 4
crawl:
  page_retry_limit: 3
  secondary_cooldown: 5s
github:
  access_token: ghtoken
  batch_size: 25
storage:
  backend: gcs
  bucket: manifests
checkpoint:
  backend: postgres
  dsn: postgres://krawler@localhost/krawler
pubsub:
  enabled: true
  project_id: okh-project
  topic: outcomes
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development {
		t.Fatal("expected development logging to be disabled")
	}
	if cfg.HTTP.UserAgent != "custom-agent" || cfg.HTTP.Timeout != 45*time.Second {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.Crawl.PageRetryLimit != 3 || cfg.Crawl.SecondaryCooldown != 5*time.Second {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if cfg.GitHub.AccessToken != "ghtoken" || cfg.GitHub.BatchSize != 25 {
		t.Fatalf("expected github overrides to apply: %+v", cfg.GitHub)
	}
	if cfg.GitHub.SecondarySpacing != 5*time.Second {
		t.Fatalf("expected github spacing default to survive: %+v", cfg.GitHub)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.Bucket != "manifests" {
		t.Fatalf("expected gcs storage: %+v", cfg.Storage)
	}
	if cfg.Checkpoint.Backend != "postgres" {
		t.Fatalf("expected postgres checkpoint: %+v", cfg.Checkpoint)
	}
	if !cfg.PubSub.Enabled || cfg.PubSub.ProjectID != "okh-project" {
		t.Fatalf("expected pubsub overrides to apply: %+v", cfg.PubSub)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		HTTP:       HTTPConfig{Timeout: 10 * time.Second},
		Storage:    StorageConfig{Backend: "memory"},
		Checkpoint: CheckpointConfig{Backend: "file", Dir: "/tmp/state"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.Timeout = 0
				return c
			}(),
			want: "http.timeout",
		},
		{
			name: "negative page retry limit",
			cfg: func() Config {
				c := base
				c.Crawl.PageRetryLimit = -1
				return c
			}(),
			want: "crawl.page_retry_limit",
		},
		{
			name: "unknown storage backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "s3"
				return c
			}(),
			want: "storage backend",
		},
		{
			name: "gcs without bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "gcs"
				return c
			}(),
			want: "storage.bucket",
		},
		{
			name: "postgres without dsn",
			cfg: func() Config {
				c := base
				c.Checkpoint.Backend = "postgres"
				c.Checkpoint.DSN = ""
				return c
			}(),
			want: "checkpoint.dsn",
		},
		{
			name: "pubsub without project",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				return c
			}(),
			want: "pubsub.project_id",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
