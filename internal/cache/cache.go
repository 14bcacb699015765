package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sonroyaalmerol/kumasonic/internal/config"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

// Source downloads the raw bytes of a track from the catalog.
type Source interface {
	Download(ctx context.Context, trackID string) (io.ReadCloser, error)
}

// Index keeps size and access time of published files for LRU eviction.
// repository.Repo implements it.
type Index interface {
	CacheTouch(ctx context.Context, hash string, size int64, created bool) error
	CacheRemove(ctx context.Context, hash string) error
	CacheTotalBytes(ctx context.Context) (int64, error)
	CacheOldest(ctx context.Context) (string, error)
}

var ErrEmptyDownload = errors.New("catalog returned no data")

type DownloadError struct {
	TrackID string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.TrackID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// FileCache maps track ids to files under CacheDir. Each id is downloaded at
// most once at a time; concurrent callers share the in-flight download.
// Published files are never rewritten.
type FileCache struct {
	dir     string
	tmp     string
	limit   int64
	timeout time.Duration

	src   Source
	index Index
	group singleflight.Group

	mu sync.Mutex // serializes eviction
}

func NewFileCache(cfg *config.Config, src Source, index Index) *FileCache {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FileCache{
		dir:     cfg.CacheDir,
		tmp:     filepath.Join(cfg.CacheDir, "tmp"),
		limit:   cfg.CacheLimitBytes,
		timeout: timeout,
		src:     src,
		index:   index,
	}
}

func (c *FileCache) HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *FileCache) PathFor(hash string) string {
	return filepath.Join(c.dir, hash+".audio")
}

// Get returns the published resource for trackID without downloading.
func (c *FileCache) Get(ctx context.Context, trackID string) (media.Resource, bool) {
	hash := c.HashKey(trackID)
	p := c.PathFor(hash)
	info, err := os.Stat(p)
	if err != nil {
		if c.index != nil {
			_ = c.index.CacheRemove(ctx, hash)
		}
		return media.Resource{}, false
	}
	if c.index != nil {
		_ = c.index.CacheTouch(ctx, hash, 0, false)
	}
	return media.Resource{TrackID: trackID, Path: p, Size: info.Size()}, true
}

// Resolve returns the cached file for track, downloading it on first use.
// The download itself is detached from ctx so that a caller giving up does not
// abort it for the other waiters; ctx only bounds how long this caller waits.
func (c *FileCache) Resolve(ctx context.Context, track media.TrackRef) (media.Resource, error) {
	if res, ok := c.Get(ctx, track.ID); ok {
		return res, nil
	}

	dlCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(track.ID, func() (any, error) {
		fctx, cancel := context.WithTimeout(dlCtx, c.timeout)
		defer cancel()
		return c.fetch(fctx, track.ID)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return media.Resource{}, r.Err
		}
		if r.Shared {
			slog.Debug("joined in-flight download", "trackID", track.ID)
		}
		return r.Val.(media.Resource), nil
	case <-ctx.Done():
		return media.Resource{}, ctx.Err()
	}
}

func (c *FileCache) fetch(ctx context.Context, trackID string) (media.Resource, error) {
	// a previous flight may have published it between Get and DoChan
	if res, ok := c.Get(ctx, trackID); ok {
		return res, nil
	}

	hash := c.HashKey(trackID)
	final := c.PathFor(hash)
	start := time.Now()

	body, err := c.src.Download(ctx, trackID)
	if err != nil {
		return media.Resource{}, &DownloadError{TrackID: trackID, Err: err}
	}
	defer body.Close()

	f, tmp, err := c.CreateTemp(hash)
	if err != nil {
		return media.Resource{}, &DownloadError{TrackID: trackID, Err: err}
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyDownload
	}
	if err != nil {
		_ = os.Remove(tmp)
		return media.Resource{}, &DownloadError{TrackID: trackID, Err: err}
	}

	if err := c.Commit(ctx, tmp, final, hash); err != nil {
		return media.Resource{}, &DownloadError{TrackID: trackID, Err: err}
	}
	slog.Info("cached track", "trackID", trackID, "bytes", n, "took", time.Since(start).Round(time.Millisecond))
	return media.Resource{TrackID: trackID, Path: final, Size: n}, nil
}

// CreateTemp opens a uniquely named scratch file next to the published files.
func (c *FileCache) CreateTemp(hash string) (*os.File, string, error) {
	tmp := filepath.Join(c.tmp, hash+"-"+uuid.NewString()+".part")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	return f, tmp, err
}

// Commit publishes tmp as finalPath with a rename. An already published file
// wins and tmp is discarded.
func (c *FileCache) Commit(ctx context.Context, tmp, finalPath, hash string) error {
	info, err := os.Stat(tmp)
	if err != nil {
		return err
	}
	if _, err := os.Stat(finalPath); err == nil {
		_ = os.Remove(tmp)
		return nil
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if c.index == nil {
		return nil
	}
	if err := c.index.CacheTouch(ctx, hash, info.Size(), true); err != nil {
		slog.Warn("cache index update failed", "hash", hash, "err", err)
		return nil
	}
	if err := c.evictIfNeeded(ctx, hash); err != nil {
		slog.Warn("cache eviction failed", "err", err)
	}
	return nil
}

// evictIfNeeded removes least recently used files until the cache fits the
// limit. keep is never evicted.
func (c *FileCache) evictIfNeeded(ctx context.Context, keep string) error {
	if c.limit <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.index.CacheTotalBytes(ctx)
	if err != nil {
		return err
	}
	for total > c.limit {
		oldest, err := c.index.CacheOldest(ctx)
		if err != nil {
			return err
		}
		if oldest == keep {
			return nil
		}
		_ = os.Remove(c.PathFor(oldest))
		if err := c.index.CacheRemove(ctx, oldest); err != nil {
			return err
		}
		slog.Debug("evicted cached track", "hash", oldest)
		total, err = c.index.CacheTotalBytes(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// Sweep removes scratch files left behind by an interrupted process.
func (c *FileCache) Sweep() error {
	entries, err := os.ReadDir(c.tmp)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.tmp, e.Name())); err != nil {
			slog.Warn("remove stale scratch file", "name", e.Name(), "err", err)
		}
	}
	return nil
}
