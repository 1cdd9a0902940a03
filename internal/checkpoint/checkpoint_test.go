package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oseg/krawler/internal/hosting"
)

func sampleState() *State {
	return &State{
		Cursor:     "page-cursor-42",
		Page:       3,
		NumFetched: 27,
		Total:      120,
		FetchedIDs: []string{"100", "101"},
		FailedIDs:  []string{"99"},
	}
}

func TestState_SeenAndMarks(t *testing.T) {
	t.Parallel()
	s := &State{}
	require.False(t, s.Seen("100"))

	s.MarkFetched("100")
	s.MarkFetched("100")
	require.Equal(t, []string{"100"}, s.FetchedIDs)
	require.True(t, s.Seen("100"))

	s.MarkFailed("99")
	s.MarkFailed("99")
	require.Equal(t, []string{"99"}, s.FailedIDs)
	require.True(t, s.Seen("99"))
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	// no checkpoint yet
	got, err := store.Load(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.Nil(t, got)

	want := sampleState()
	require.NoError(t, store.Save(ctx, hosting.GitHub, want))

	got, err = store.Load(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// the state lands in the reserved subdirectory, one file per platform
	_, err = os.Stat(filepath.Join(dir, stateSubdir, "github.com.json"))
	require.NoError(t, err)

	existed, err := store.Delete(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.True(t, existed)

	got, err = store.Load(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.Nil(t, got)

	existed, err = store.Delete(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.False(t, existed)
}

func TestFileStore_PlatformsAreIsolated(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, hosting.GitHub, &State{Page: 1}))
	require.NoError(t, store.Save(ctx, hosting.OSHWA, &State{Offset: 75}))

	gh, err := store.Load(ctx, hosting.GitHub)
	require.NoError(t, err)
	require.Equal(t, 1, gh.Page)

	osh, err := store.Load(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.Equal(t, 75, osh.Offset)
}

func TestFileStore_SaveReplacesWholeState(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, hosting.Thingiverse, sampleState()))
	require.NoError(t, store.Save(ctx, hosting.Thingiverse, &State{NumFetched: 1}))

	got, err := store.Load(ctx, hosting.Thingiverse)
	require.NoError(t, err)
	require.Equal(t, &State{NumFetched: 1}, got)
}

func TestFileStore_CorruptCheckpointIsAnError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, stateSubdir, "github.com.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = store.Load(context.Background(), hosting.GitHub)
	require.Error(t, err)
}

func TestFileStore_RequiresBaseDir(t *testing.T) {
	t.Parallel()
	_, err := NewFileStore("", nil)
	require.Error(t, err)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Load(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.Nil(t, got)

	want := sampleState()
	require.NoError(t, store.Save(ctx, hosting.OSHWA, want))

	got, err = store.Load(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// mutating the original after save must not leak into the store
	want.MarkFetched("extra")
	again, err := store.Load(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.NotContains(t, again.FetchedIDs, "extra")

	existed, err := store.Delete(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = store.Delete(ctx, hosting.OSHWA)
	require.NoError(t, err)
	require.False(t, existed)
}
