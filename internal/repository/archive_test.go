package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
	"github.com/oseg/krawler/internal/storage/memory"
)

func newTestArchive(t *testing.T) (*Archive, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	archive, err := Open(filepath.Join(t.TempDir(), "index.db"), blobs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	return archive, blobs
}

func tomlOutcome(content string) *fetch.Outcome {
	outcome := fetch.Success(
		hosting.ForgeUnit{Host: hosting.GitHub, Owner: "acme", Repo: "widget", Path: "okh.toml"},
		&manifest.Manifest{Content: []byte(content), Format: manifest.TOML},
		manifest.SourcingManifest,
	)
	outcome.CrawlRun = uuid.New()
	return outcome
}

func TestStore_WritesBlobAndIndexRow(t *testing.T) {
	t.Parallel()
	archive, blobs := newTestArchive(t)
	ctx := context.Background()

	outcome := tomlOutcome(`title = "widget"`)
	require.NoError(t, archive.Store(ctx, outcome))

	data, ok := blobs.Object("github.com/acme/widget/okh.toml.toml")
	require.True(t, ok)
	require.Equal(t, `title = "widget"`, string(data))

	rec, err := archive.Lookup(ctx, "github.com", outcome.ID.PathKey())
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "toml", rec.Format)
	require.Equal(t, "Manifest", rec.Sourcing)
	require.Equal(t, outcome.CrawlRun.String(), rec.CrawlRun)
	require.Equal(t, "memory://github.com/acme/widget/okh.toml.toml", rec.BlobURI)
}

func TestStore_RefetchReplacesIndexRow(t *testing.T) {
	t.Parallel()
	archive, _ := newTestArchive(t)
	ctx := context.Background()

	first := tomlOutcome(`title = "v1"`)
	second := tomlOutcome(`title = "v2"`)
	require.NoError(t, archive.Store(ctx, first))
	require.NoError(t, archive.Store(ctx, second))

	count, err := archive.Count(ctx, "github.com")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	rec, err := archive.Lookup(ctx, "github.com", second.ID.PathKey())
	require.NoError(t, err)
	require.Equal(t, second.CrawlRun.String(), rec.CrawlRun)
}

func TestStore_RejectsFailedOutcome(t *testing.T) {
	t.Parallel()
	archive, blobs := newTestArchive(t)

	failed := fetch.Failure(
		hosting.WebUnit{Host: hosting.Thingiverse, ProjectID: "1234"},
		&fetch.NotFoundError{Subject: "thing 1234"},
	)
	err := archive.Store(context.Background(), failed)
	require.Error(t, err)
	require.Equal(t, 0, blobs.Len())
}

func TestCount_FiltersByPlatform(t *testing.T) {
	t.Parallel()
	archive, _ := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, archive.Store(ctx, tomlOutcome(`title = "x"`)))

	thing := fetch.Success(
		hosting.WebUnit{Host: hosting.Thingiverse, ProjectID: "42"},
		&manifest.Manifest{Content: []byte(`{"name":"y"}`), Format: manifest.JSON},
		manifest.SourcingAPI,
	)
	require.NoError(t, archive.Store(ctx, thing))

	all, err := archive.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, all)

	things, err := archive.Count(ctx, "thingiverse.com")
	require.NoError(t, err)
	require.Equal(t, 1, things)

	rec, err := archive.Lookup(ctx, "oshwa.org", "nope")
	require.NoError(t, err)
	require.Nil(t, rec)
}
