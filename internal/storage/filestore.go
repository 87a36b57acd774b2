package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// FileStore keeps each document as one JSON file under a data directory.
// The directory is created lazily on first use. Writes go through a temp
// file and rename, so a killed process can lose a write but never leave a
// half-written document behind.
type FileStore struct {
	dir    string
	logger *logging.Logger

	mkdirOnce sync.Once
	mkdirErr  error
}

func NewFileStore(dir string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &FileStore{
		dir:    strings.TrimSpace(dir),
		logger: logger,
	}
}

func (s *FileStore) Read(ctx context.Context, key string, target any) bool {
	path, err := s.documentPath(key)
	if err != nil {
		s.logger.WarnContext(ctx, "document path unavailable", "key", key, "error", err)
		return false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnContext(ctx, "read document failed, using fallback", "key", key, "error", err)
		}
		return false
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		// Corrupt documents behave as absent.
		s.logger.WarnContext(ctx, "document is not valid JSON, using fallback", "key", key, "error", err)
		return false
	}
	return true
}

func (s *FileStore) Write(ctx context.Context, key string, value any) error {
	path, err := s.documentPath(key)
	if err != nil {
		return err
	}

	raw, err := sonic.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for document %q: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write document %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close document %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace document %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) LastModified(_ context.Context, key string) (time.Time, bool) {
	path, err := s.documentPath(key)
	if err != nil {
		return time.Time{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime().UTC(), true
}

func (s *FileStore) documentPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid document key %q", key)
	}

	s.mkdirOnce.Do(func() {
		s.mkdirErr = os.MkdirAll(s.dir, 0o755)
	})
	if s.mkdirErr != nil {
		return "", fmt.Errorf("create data dir %q: %w", s.dir, s.mkdirErr)
	}

	return filepath.Join(s.dir, key+".json"), nil
}
