package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
	"github.com/oseg/krawler/internal/repository"
	"github.com/oseg/krawler/internal/storage/memory"
)

func successOutcome() *fetch.Outcome {
	outcome := fetch.Success(
		hosting.ForgeUnit{Host: hosting.GitHub, Owner: "acme", Repo: "widget", Path: "okh.toml"},
		&manifest.Manifest{Content: []byte(`title = "widget"`), Format: manifest.TOML},
		manifest.SourcingManifest,
	)
	outcome.CrawlRun = uuid.New()
	return outcome
}

func failureOutcome() *fetch.Outcome {
	outcome := fetch.Failure(
		hosting.WebUnit{Host: hosting.Thingiverse, ProjectID: "1234"},
		&fetch.NotFoundError{Subject: "thing 1234"},
	)
	outcome.CrawlRun = uuid.New()
	return outcome
}

func TestNewEvent_FlattensOutcome(t *testing.T) {
	t.Parallel()

	evt := NewEvent(successOutcome())
	require.True(t, evt.OK)
	require.Equal(t, "github.com", evt.Platform)
	require.Equal(t, "github.com/acme/widget/okh.toml", evt.ID)
	require.Equal(t, "toml", evt.Format)
	require.Equal(t, "Manifest", evt.Sourcing)
	require.Equal(t, len(`title = "widget"`), evt.Bytes)

	evt = NewEvent(failureOutcome())
	require.False(t, evt.OK)
	require.NotEmpty(t, evt.Error)
	require.Empty(t, evt.Format)
}

func TestStats_CountsPerPlatform(t *testing.T) {
	t.Parallel()
	stats := NewStats()
	ctx := context.Background()

	stats.Notify(ctx, successOutcome())
	stats.Notify(ctx, successOutcome())
	stats.Notify(ctx, failureOutcome())

	snap := stats.Snapshot()
	require.Equal(t, Tally{Succeeded: 2}, snap["github.com"])
	require.Equal(t, Tally{Failed: 1}, snap["thingiverse.com"])

	failures := stats.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, "thingiverse.com/1234", failures[0].ID)
}

func TestLogSink_LogsBothResults(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	ctx := context.Background()

	sink.Notify(ctx, successOutcome())
	sink.Notify(ctx, failureOutcome())

	require.Equal(t, 1, logs.FilterMessage("manifest fetched").Len())
	entries := logs.FilterMessage("fetch failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestArchiveSink_StoresOnlySuccesses(t *testing.T) {
	t.Parallel()
	blobs := memory.NewBlobStore()
	archive, err := repository.Open(filepath.Join(t.TempDir(), "index.db"), blobs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	sink := NewArchiveSink(archive, nil)
	ctx := context.Background()

	sink.Notify(ctx, successOutcome())
	sink.Notify(ctx, failureOutcome())

	count, err := archive.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, blobs.Len())
}
