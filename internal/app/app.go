// Package app initializes and holds the long-lived services of the crawler:
// the HTTP client, the platform adapters, checkpoint and blob storage, the
// manifest archive and the outcome sinks. It is built once at startup and
// torn down by Close.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/config"
	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/fetch/github"
	"github.com/oseg/krawler/internal/fetch/oshwa"
	"github.com/oseg/krawler/internal/fetch/thingiverse"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/ops"
	"github.com/oseg/krawler/internal/report"
	"github.com/oseg/krawler/internal/repository"
	"github.com/oseg/krawler/internal/storage"
	"github.com/oseg/krawler/internal/storage/gcs"
	"github.com/oseg/krawler/internal/storage/local"
	"github.com/oseg/krawler/internal/storage/memory"
	"github.com/oseg/krawler/internal/transport"
)

// App holds all shared services for one crawler process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	client      *transport.Client
	registry    *fetch.Registry
	checkpoints checkpoint.Store
	archive     *repository.Archive
	stats       *report.Stats
	listeners   fetch.Listeners
	metrics     *prometheus.Registry
	ops         *ops.Server

	pubsubClient *pubsub.Client
	gcsClient    *gstorage.Client
}

// New assembles the application from its configuration. It fails fast if any
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	a.client = transport.New(transport.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
		Retry: transport.RetryConfig{
			MaxAttempts: cfg.HTTP.MaxRetries,
			BaseDelay:   cfg.HTTP.BackoffBase,
			MaxDelay:    cfg.HTTP.BackoffMax,
		},
		HostRPS:   cfg.HTTP.HostRPS,
		HostBurst: cfg.HTTP.HostBurst,
	}, logger)

	registry, err := fetch.NewRegistry(
		github.New(github.Config{
			AccessToken:      cfg.GitHub.AccessToken,
			BatchSize:        cfg.GitHub.BatchSize,
			SecondarySpacing: cfg.GitHub.SecondarySpacing,
			FileSpacing:      cfg.GitHub.FileSpacing,
		}, a.client, logger),
		oshwa.New(oshwa.Config{
			AccessToken: cfg.OSHWA.AccessToken,
			BatchSize:   cfg.OSHWA.BatchSize,
			Spacing:     cfg.OSHWA.Spacing,
		}, a.client, logger),
		thingiverse.New(thingiverse.Config{
			AccessToken: cfg.Thingiverse.AccessToken,
			BatchSize:   cfg.Thingiverse.BatchSize,
			Spacing:     cfg.Thingiverse.Spacing,
		}, a.client, logger),
	)
	if err != nil {
		return nil, err
	}
	a.registry = registry

	if a.checkpoints, err = a.buildCheckpointStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Archive.DBPath), 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	if a.archive, err = repository.Open(cfg.Archive.DBPath, blobs, logger); err != nil {
		a.Close()
		return nil, err
	}

	a.metrics = prometheus.NewRegistry()
	promSink, err := report.NewPrometheusSink(a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.stats = report.NewStats()
	a.listeners = fetch.Listeners{
		report.NewLogSink(logger),
		a.stats,
		promSink,
		report.NewArchiveSink(a.archive, logger),
	}

	if cfg.PubSub.Enabled {
		a.pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to pubsub: %w", err)
		}
		topic := a.pubsubClient.Topic(cfg.PubSub.Topic)
		a.listeners = append(a.listeners, report.NewPubSubSink(topic, logger))
	}

	platforms := make([]string, 0)
	for _, p := range registry.Platforms() {
		platforms = append(platforms, p.String())
	}
	a.ops = ops.NewServer(a.metrics, a.stats, platforms, logger)

	return a, nil
}

func (a *App) buildCheckpointStore(ctx context.Context) (checkpoint.Store, error) {
	switch a.cfg.Checkpoint.Backend {
	case "file":
		return checkpoint.NewFileStore(a.cfg.Checkpoint.Dir, a.logger)
	case "postgres":
		return checkpoint.NewPostgresStore(ctx, a.cfg.Checkpoint.DSN, a.logger)
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", a.cfg.Checkpoint.Backend)
}

func (a *App) buildBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "local":
		return local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect to gcs: %w", err)
		}
		a.gcsClient = client
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.Bucket})
	case "memory":
		return memory.NewBlobStore(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
}

// Logger exposes the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Registry exposes the platform adapters.
func (a *App) Registry() *fetch.Registry { return a.registry }

// Stats exposes the live outcome counters.
func (a *App) Stats() *report.Stats { return a.stats }

// Archive exposes the manifest archive.
func (a *App) Archive() *repository.Archive { return a.archive }

// ResolvePlatforms maps configured platform names to adapters. An empty list
// selects every registered platform.
func (a *App) ResolvePlatforms(names []string) ([]hosting.Platform, error) {
	if len(names) == 0 {
		return a.registry.Platforms(), nil
	}
	out := make([]hosting.Platform, 0, len(names))
	for _, name := range names {
		platform, ok := hosting.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", name)
		}
		if _, registered := a.registry.Get(platform); !registered {
			return nil, fmt.Errorf("no adapter registered for platform %q", name)
		}
		out = append(out, platform)
	}
	return out, nil
}

// Crawl runs one orchestrator per selected platform, concurrently. The first
// fatal error cancels the remaining crawls; checkpoints stay behind for a
// later resume.
func (a *App) Crawl(ctx context.Context, names []string, startOver bool) error {
	platforms, err := a.ResolvePlatforms(names)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, platform := range platforms {
		adapter, _ := a.registry.Get(platform)
		orch := fetch.NewOrchestrator(adapter, a.checkpoints, a.listeners, fetch.Config{
			PageRetryLimit:    a.cfg.Crawl.PageRetryLimit,
			SecondaryCooldown: a.cfg.Crawl.SecondaryCooldown,
		}, a.logger)
		g.Go(func() error {
			return orch.Crawl(ctx, startOver)
		})
	}
	return g.Wait()
}

// FetchOne fetches a single project or manifest URL through the adapter
// responsible for its platform.
func (a *App) FetchOne(ctx context.Context, rawURL string) (*fetch.Outcome, error) {
	adapter, err := a.registry.ForURL(rawURL)
	if err != nil {
		return nil, err
	}
	orch := fetch.NewOrchestrator(adapter, a.checkpoints, a.listeners, fetch.Config{
		PageRetryLimit:    a.cfg.Crawl.PageRetryLimit,
		SecondaryCooldown: a.cfg.Crawl.SecondaryCooldown,
	}, a.logger)
	return orch.FetchOne(ctx, rawURL)
}

// ServeOps serves the operational HTTP endpoints until ctx is canceled.
func (a *App) ServeOps(ctx context.Context) error {
	a.logger.Info("serving operational endpoints", zap.String("addr", a.cfg.Ops.Addr))
	return a.ops.ListenAndServe(ctx, a.cfg.Ops.Addr)
}

// Close tears down all backends. Safe to call on a partially built App.
func (a *App) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("close archive", zap.Error(err))
		}
	}
	if a.checkpoints != nil {
		if closer, ok := a.checkpoints.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("close gcs client", zap.Error(err))
		}
	}
}
