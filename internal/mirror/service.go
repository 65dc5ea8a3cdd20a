// Package mirror copies data files from an object store prefix into the
// directory of a directory-mode database. The database's watcher picks up
// the changes and rebuilds its views.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/duckview/internal/observability"
	"github.com/duckmesh/duckview/internal/schema"
	"github.com/duckmesh/duckview/internal/storage"
)

const DefaultInterval = 30 * time.Second

type Config struct {
	Database  string
	Directory string
	Prefix    string
	Interval  time.Duration
}

type Service struct {
	Store  storage.ObjectStore
	Config Config
	Logger *slog.Logger

	mu     sync.Mutex
	synced map[string]string
}

type Summary struct {
	ObjectsListed int `json:"objects_listed"`
	Downloaded    int `json:"downloaded"`
	Removed       int `json:"removed"`
	Unchanged     int `json:"unchanged"`
	Failures      int `json:"failures"`
}

// Run syncs once immediately and then on every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	interval := s.Config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	summary, err := s.SyncOnce(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.ErrorContext(ctx, "mirror sync failed", slog.Any("error", err), slog.Any("summary", summary))
		}
		return
	}
	if s.Logger != nil && (summary.Downloaded > 0 || summary.Removed > 0) {
		s.Logger.InfoContext(ctx, "mirror sync completed", slog.Any("summary", summary))
	}
}

// SyncOnce downloads new or changed data files and removes local files the
// mirror created whose objects are gone. Files it did not create are never
// removed.
func (s *Service) SyncOnce(ctx context.Context) (Summary, error) {
	if s.Store == nil {
		return Summary{}, fmt.Errorf("object store is required")
	}
	if s.Config.Directory == "" {
		return Summary{}, fmt.Errorf("mirror directory is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDefaults()

	objects, err := s.Store.List(ctx, s.Config.Prefix)
	if err != nil {
		observability.ObserveMirrorSync(s.Config.Database, "failed", 0, 0)
		return Summary{}, err
	}

	summary := Summary{ObjectsListed: len(objects)}
	failures := make([]string, 0)
	seen := make(map[string]bool, len(objects))

	for _, object := range objects {
		rel, ok := s.relativePath(object.Key)
		if !ok {
			continue
		}
		seen[rel] = true
		local := filepath.Join(s.Config.Directory, filepath.FromSlash(rel))

		if s.upToDate(rel, local, object) {
			summary.Unchanged++
			continue
		}
		if err := s.download(ctx, object.Key, local); err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("object %s: %v", object.Key, err))
			continue
		}
		s.synced[rel] = object.ETag
		summary.Downloaded++
	}

	for rel := range s.synced {
		if seen[rel] {
			continue
		}
		local := filepath.Join(s.Config.Directory, filepath.FromSlash(rel))
		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("remove %s: %v", local, err))
			continue
		}
		delete(s.synced, rel)
		summary.Removed++
	}

	if len(failures) > 0 {
		observability.ObserveMirrorSync(s.Config.Database, "failed", summary.Downloaded, summary.Removed)
		return summary, fmt.Errorf("mirror encountered %d failure(s): %s", len(failures), strings.Join(failures, "; "))
	}
	observability.ObserveMirrorSync(s.Config.Database, "completed", summary.Downloaded, summary.Removed)
	return summary, nil
}

// relativePath maps an object key to a slash separated path under the mirror
// directory. Keys outside the prefix, hidden paths and files the schema
// would ignore are skipped.
func (s *Service) relativePath(key string) (string, bool) {
	prefix := strings.Trim(s.Config.Prefix, "/")
	rel := key
	if prefix != "" {
		if !strings.HasPrefix(key, prefix+"/") {
			return "", false
		}
		rel = strings.TrimPrefix(key, prefix+"/")
	}
	rel = path.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if !schema.IsDataFile(path.Base(rel)) {
		return "", false
	}
	return rel, true
}

// upToDate reports whether local already holds object. A local file the
// mirror has not seen before is adopted when its size matches and it is not
// older than the object.
func (s *Service) upToDate(rel, local string, object storage.ObjectInfo) bool {
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		return false
	}
	if etag, ok := s.synced[rel]; ok {
		return etag == object.ETag && info.Size() == object.Size
	}
	if info.Size() == object.Size && !info.ModTime().Before(object.LastModified) {
		s.synced[rel] = object.ETag
		return true
	}
	return false
}

// download writes the object to a hidden temporary file next to local and
// renames it into place, so readers never see a partial file.
func (s *Service) download(ctx context.Context, key, local string) error {
	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	reader, err := s.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(local)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, local); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (s *Service) ensureDefaults() {
	if s.Config.Interval <= 0 {
		s.Config.Interval = DefaultInterval
	}
	if s.synced == nil {
		s.synced = make(map[string]string)
	}
}
