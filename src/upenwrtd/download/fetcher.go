package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

// Result describes the cached copy of a remote file after a fetch.
type Result struct {
	// Key is the cache key holding the file
	Key string
	// Info is the cached object's metadata
	Info *storage.ObjectInfo
	// Updated is true when the remote copy was transferred
	Updated bool
	// SHA256 is set when the file was transferred
	SHA256 string
}

// Fetcher downloads remote files into a storage backend.
type Fetcher struct {
	client  *http.Client
	cache   storage.Backend
	mirrors *MirrorResolver
	limiter *rateLimiter
	config  Config
	group   singleflight.Group
}

// NewFetcher creates a fetcher. The client is expected to be shared process-wide.
func NewFetcher(client *http.Client, cache storage.Backend, cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	return &Fetcher{
		client:  client,
		cache:   cache,
		mirrors: NewMirrorResolver(cfg.Mirrors),
		limiter: newRateLimiter(cfg.BytesPerSec),
		config:  cfg,
	}
}

// Cache returns the backend files are fetched into
func (f *Fetcher) Cache() storage.Backend {
	return f.cache
}

// Fetch makes sure key holds an up-to-date copy of rawURL.
//
// A cached copy is revalidated with If-Modified-Since. It is kept on 304 and
// on a 200 whose Last-Modified is older than the cached copy. Concurrent
// fetches of the same key share one transfer; a waiter that gives up does not
// abort the transfer for the others.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, key string) (*Result, error) {
	ch := f.group.DoChan(key, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if f.config.Timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, f.config.Timeout)
			defer cancel()
		}
		return f.fetch(fetchCtx, rawURL, key)
	})

	select {
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.ErrTimeout.WithMessagef("Timed out waiting for %s", key).WithCause(ctx.Err())
		}
		return nil, errors.ErrCanceled.WithMessagef("Gave up waiting for %s", key).WithCause(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, key string) (*Result, error) {
	cached, err := f.cache.GetInfo(ctx, key)
	if err != nil {
		if !errors.Is(err, errors.ErrObjectNotFound) {
			return nil, fmt.Errorf("failed to inspect cache for %s: %w", key, err)
		}
		cached = nil
	}

	resolved := f.mirrors.ResolveURL(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, errors.ErrInvalidArgument.WithMessagef("Invalid download URL %s", resolved).WithCause(err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	if cached != nil {
		req.Header.Set("If-Modified-Since", cached.LastModified.UTC().Format(http.TimeFormat))
	}

	log.Debug("Fetching", "url", resolved, "key", key, "cached", cached != nil)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.ErrDownloadFailed.WithMessagef("GET %s failed", resolved).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		log.Info("Cached copy is up to date", "key", key)
		return &Result{Key: key, Info: cached}, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.ErrDownloadNotFound.WithMessagef("Remote file not found: %s", resolved).
			WithDetail("url", resolved)

	case resp.StatusCode != http.StatusOK:
		return nil, errors.ErrDownloadFailed.WithMessagef("GET %s: unexpected status %s", resolved, resp.Status).
			WithDetail("url", resolved).
			WithDetail("status", resp.StatusCode)
	}

	if cached != nil {
		if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil && lm.Before(cached.LastModified) {
			log.Info("Remote copy is older than the cache, keeping cache", "key", key, "remote_last_modified", lm)
			return &Result{Key: key, Info: cached}, nil
		}
	}

	sum, err := f.store(ctx, resp, key)
	if err != nil {
		return nil, err
	}

	info, err := f.cache.GetInfo(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect stored object %s: %w", key, err)
	}

	return &Result{Key: key, Info: info, Updated: true, SHA256: sum}, nil
}

// store spools the body to a temp file, then hands it to the cache backend,
// which owns the atomic replace.
func (f *Fetcher) store(ctx context.Context, resp *http.Response, key string) (string, error) {
	tmp, err := os.CreateTemp(f.config.TempDir, "upenwrtd-download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hash := sha256.New()
	body := newThrottledReader(ctx, resp.Body, f.limiter)
	written, err := copyWithProgress(io.MultiWriter(tmp, hash), body, resp.ContentLength, key)
	if err != nil {
		return "", errors.ErrDownloadFailed.WithMessagef("Transfer of %s interrupted", key).WithCause(err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return "", errors.ErrDownloadFailed.WithMessagef("Short transfer of %s: got %d of %d bytes", key, written, resp.ContentLength)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind temp file: %w", err)
	}
	if err := f.cache.Upload(ctx, key, tmp, written, resp.Header.Get("Content-Type")); err != nil {
		return "", err
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	log.Info("Downloaded", "key", key, "size", written, "sha256", sum)
	return sum, nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, key string) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	lastReport := time.Now()

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)

			if time.Since(lastReport) >= 5*time.Second {
				log.Debug("Download progress", "key", key, "received", written, "total", total)
				lastReport = time.Now()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
