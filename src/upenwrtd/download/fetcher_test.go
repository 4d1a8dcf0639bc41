package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

type testRemote struct {
	server       *httptest.Server
	hits         atomic.Int32
	body         string
	lastModified time.Time
	ignoreIMS    bool
	delay        time.Duration
}

func newTestRemote(t *testing.T, body string, lastModified time.Time) *testRemote {
	t.Helper()
	r := &testRemote{body: body, lastModified: lastModified}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.hits.Add(1)
		if r.delay > 0 {
			time.Sleep(r.delay)
		}
		if req.URL.Path == "/missing" {
			http.NotFound(w, req)
			return
		}
		if req.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !r.ignoreIMS {
			if ims, err := http.ParseTime(req.Header.Get("If-Modified-Since")); err == nil && !r.lastModified.After(ims) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		w.Header().Set("Last-Modified", r.lastModified.UTC().Format(http.TimeFormat))
		io.WriteString(w, r.body)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func newTestFetcher(t *testing.T) (*Fetcher, storage.Backend) {
	t.Helper()
	cache, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewHTTPClient(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	return NewFetcher(client, cache, cfg), cache
}

func readCached(t *testing.T, cache storage.Backend, key string) string {
	t.Helper()
	rc, _, err := cache.Download(context.Background(), key)
	if err != nil {
		t.Fatalf("cache read failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	return string(data)
}

func TestFetcher_DownloadThenNotModified(t *testing.T) {
	remote := newTestRemote(t, "archive-v1", time.Now().Add(-time.Hour))
	f, cache := newTestFetcher(t)
	ctx := context.Background()

	first, err := f.Fetch(ctx, remote.server.URL+"/ib.tar.xz", "archives/ib.tar.xz")
	if err != nil {
		t.Fatalf("first Fetch() error: %v", err)
	}
	if !first.Updated || first.SHA256 == "" {
		t.Errorf("expected a transfer, got %+v", first)
	}

	second, err := f.Fetch(ctx, remote.server.URL+"/ib.tar.xz", "archives/ib.tar.xz")
	if err != nil {
		t.Fatalf("second Fetch() error: %v", err)
	}
	if second.Updated {
		t.Error("expected cached copy to be reused on 304")
	}
	if got := readCached(t, cache, "archives/ib.tar.xz"); got != "archive-v1" {
		t.Errorf("unexpected cached content %q", got)
	}
}

func TestFetcher_OlderRemoteKeepsCache(t *testing.T) {
	remote := newTestRemote(t, "stale", time.Now().Add(-24*time.Hour))
	remote.ignoreIMS = true
	f, cache := newTestFetcher(t)

	if err := cache.Upload(context.Background(), "k", strings.NewReader("fresh"), 5, ""); err != nil {
		t.Fatal(err)
	}

	res, err := f.Fetch(context.Background(), remote.server.URL+"/ib", "k")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if res.Updated {
		t.Error("older remote must not replace the cache")
	}
	if got := readCached(t, cache, "k"); got != "fresh" {
		t.Errorf("cache was replaced: %q", got)
	}
}

func TestFetcher_NewerRemoteReplacesCache(t *testing.T) {
	remote := newTestRemote(t, "newer", time.Now().Add(time.Hour))
	f, cache := newTestFetcher(t)

	if err := cache.Upload(context.Background(), "k", strings.NewReader("older"), 5, ""); err != nil {
		t.Fatal(err)
	}

	res, err := f.Fetch(context.Background(), remote.server.URL+"/ib", "k")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !res.Updated {
		t.Error("expected newer remote to replace the cache")
	}
	if got := readCached(t, cache, "k"); got != "newer" {
		t.Errorf("unexpected cached content %q", got)
	}
}

func TestFetcher_Errors(t *testing.T) {
	remote := newTestRemote(t, "", time.Now())
	f, cache := newTestFetcher(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"not found", "/missing", errors.ErrDownloadNotFound},
		{"server error", "/broken", errors.ErrDownloadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), remote.server.URL+tt.path, "k"+tt.path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if ok, _ := cache.Exists(context.Background(), "k"+tt.path); ok {
				t.Error("failed fetch must not create a cache entry")
			}
		})
	}
}

func TestFetcher_ConcurrentFetchSharesTransfer(t *testing.T) {
	remote := newTestRemote(t, "shared", time.Now().Add(-time.Hour))
	remote.delay = 100 * time.Millisecond
	f, _ := newTestFetcher(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), remote.server.URL+"/ib", "k"); err != nil {
				t.Errorf("Fetch() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if hits := remote.hits.Load(); hits != 1 {
		t.Errorf("expected one upstream request, got %d", hits)
	}
}

func TestFetcher_WaiterCancel(t *testing.T) {
	remote := newTestRemote(t, "slow", time.Now())
	remote.delay = 200 * time.Millisecond
	f, _ := newTestFetcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, remote.server.URL+"/ib", "k"); !errors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	// The transfer itself carries on for other callers.
	res, err := f.Fetch(context.Background(), remote.server.URL+"/ib", "k")
	if err != nil {
		t.Fatalf("follow-up Fetch() error: %v", err)
	}
	if res.Info == nil || res.Info.Size != int64(len("slow")) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestMirrorResolver_ResolveURL(t *testing.T) {
	r := NewMirrorResolver([]Mirror{
		{Name: "empty", URLPrefix: "", MirrorURL: "https://nowhere/"},
		{Name: "local", URLPrefix: "https://downloads.openwrt.org/", MirrorURL: "https://mirror.lan/openwrt/"},
	})

	tests := []struct {
		in   string
		want string
	}{
		{"https://downloads.openwrt.org/snapshots/targets/ath79/generic/x.tar.xz", "https://mirror.lan/openwrt/snapshots/targets/ath79/generic/x.tar.xz"},
		{"https://example.org/x", "https://example.org/x"},
	}

	for _, tt := range tests {
		if got := r.ResolveURL(tt.in); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	var none *MirrorResolver
	if none.ResolveURL("u") != "u" || none.HasMirrors() {
		t.Error("nil resolver must pass URLs through")
	}
}
