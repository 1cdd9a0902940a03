// Package repository archives successful fetch outcomes: raw payloads go to
// a blob store, the index of what was fetched when lives in SQLite so other
// tooling can query the crawl results without touching the blobs.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/storage"
)

const createManifestsTable = `
CREATE TABLE IF NOT EXISTS manifests (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	platform   TEXT NOT NULL,
	path_key   TEXT NOT NULL,
	format     TEXT NOT NULL,
	sourcing   TEXT NOT NULL,
	crawl_run  TEXT NOT NULL,
	visited_at TEXT NOT NULL,
	blob_uri   TEXT NOT NULL,
	UNIQUE (platform, path_key)
)`

// Archive indexes archived manifests in SQLite and stores their payloads in
// a blob store.
type Archive struct {
	db     *sql.DB
	blobs  storage.BlobStore
	logger *zap.Logger
}

// Open opens (creating if necessary) the archive index at dbPath. Pass
// ":memory:" for an ephemeral index.
func Open(dbPath string, blobs storage.BlobStore, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive index %s: %w", dbPath, err)
	}
	if _, err := db.Exec(createManifestsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create manifests table: %w", err)
	}
	return &Archive{db: db, blobs: blobs, logger: logger}, nil
}

// Store archives one successful outcome. A later fetch of the same unit
// replaces the earlier record.
func (a *Archive) Store(ctx context.Context, outcome *fetch.Outcome) error {
	if !outcome.OK() {
		return fmt.Errorf("refusing to archive a failed outcome for %s", outcome.ID)
	}
	blobPath := fmt.Sprintf("%s.%s", outcome.ID.PathKey(), outcome.Manifest.Format)
	uri, err := a.blobs.PutObject(ctx, blobPath,
		outcome.Manifest.Format.ContentType(), outcome.Manifest.Content)
	if err != nil {
		return fmt.Errorf("store payload for %s: %w", outcome.ID, err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO manifests (platform, path_key, format, sourcing, crawl_run, visited_at, blob_uri)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (platform, path_key) DO UPDATE SET
			format = excluded.format,
			sourcing = excluded.sourcing,
			crawl_run = excluded.crawl_run,
			visited_at = excluded.visited_at,
			blob_uri = excluded.blob_uri`,
		outcome.ID.Platform().String(),
		outcome.ID.PathKey(),
		outcome.Manifest.Format.String(),
		outcome.Sourcing.String(),
		outcome.CrawlRun.String(),
		outcome.VisitedAt.UTC().Format(time.RFC3339),
		uri,
	)
	if err != nil {
		return fmt.Errorf("index manifest for %s: %w", outcome.ID, err)
	}
	a.logger.Debug("archived manifest",
		zap.String("id", outcome.ID.String()), zap.String("uri", uri))
	return nil
}

// Record is one indexed manifest.
type Record struct {
	Platform  string
	PathKey   string
	Format    string
	Sourcing  string
	CrawlRun  string
	VisitedAt string
	BlobURI   string
}

// Count reports how many manifests are archived for a platform; an empty
// platform counts everything.
func (a *Archive) Count(ctx context.Context, platform string) (int, error) {
	var (
		count int
		err   error
	)
	if platform == "" {
		err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM manifests`).Scan(&count)
	} else {
		err = a.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM manifests WHERE platform = ?`, platform).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count archived manifests: %w", err)
	}
	return count, nil
}

// Lookup returns the indexed record of one unit, or (nil, nil) when absent.
func (a *Archive) Lookup(ctx context.Context, platform, pathKey string) (*Record, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT platform, path_key, format, sourcing, crawl_run, visited_at, blob_uri
		 FROM manifests WHERE platform = ? AND path_key = ?`, platform, pathKey)
	var rec Record
	err := row.Scan(&rec.Platform, &rec.PathKey, &rec.Format, &rec.Sourcing,
		&rec.CrawlRun, &rec.VisitedAt, &rec.BlobURI)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up archived manifest: %w", err)
	}
	return &rec, nil
}

// Close releases the index database.
func (a *Archive) Close() error {
	return a.db.Close()
}
