package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/hosting"
)

// stateSubdir keeps fetcher state apart from archived fetch results inside
// the same workdir.
const stateSubdir = "__fetcher__"

// FileStore persists one JSON document per platform under
// <baseDir>/__fetcher__/<platform>.json.
type FileStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFileStore builds a file-backed checkpoint store rooted at baseDir.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("checkpoint base directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{baseDir: filepath.Join(baseDir, stateSubdir), logger: logger}, nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, platform hosting.Platform) (*State, error) {
	path := s.path(platform)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no checkpoint for platform, starting empty",
				zap.String("platform", platform.String()))
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return &state, nil
}

// Save implements Store. The state is written to a temp file first and then
// renamed into place, so an interrupted write never corrupts the previous
// checkpoint.
func (s *FileStore) Save(_ context.Context, platform hosting.Platform, state *State) error {
	path := s.path(platform)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint for %s: %w", platform, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+string(platform)+".*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint %s: %w", path, err)
	}
	s.logger.Debug("saved checkpoint",
		zap.String("platform", platform.String()), zap.String("path", path))
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, platform hosting.Platform) (bool, error) {
	path := s.path(platform)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete checkpoint %s: %w", path, err)
	}
	s.logger.Debug("deleted checkpoint", zap.String("platform", platform.String()))
	return true, nil
}

func (s *FileStore) path(platform hosting.Platform) string {
	return filepath.Join(s.baseDir, string(platform)+".json")
}
