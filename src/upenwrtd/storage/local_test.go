package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

// =============================================================================
// Storage Factory Tests
// =============================================================================

func TestStorage_New(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		wantErr  bool
		wantType string
	}{
		{"local", "local", false, "local"},
		{"empty defaults to local", "", false, "local"},
		{"unknown", "ftp", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := storage.DefaultConfig(t.TempDir())
			cfg.Type = tt.typ

			backend, err := storage.New(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if backend.Type() != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, backend.Type())
			}
		})
	}
}

func TestStorage_NewS3_RequiresBucket(t *testing.T) {
	if _, err := storage.NewS3(storage.S3Config{Endpoint: "http://localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

// =============================================================================
// Local Backend Tests
// =============================================================================

func setupLocalBackend(t *testing.T) (*storage.LocalBackend, string) {
	t.Helper()

	tmpDir := t.TempDir()
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: tmpDir})
	if err != nil {
		t.Fatalf("failed to create local backend: %v", err)
	}
	return backend, tmpDir
}

func TestLocalBackend_UploadDownload(t *testing.T) {
	backend, _ := setupLocalBackend(t)
	ctx := context.Background()
	content := []byte("imagebuilder archive")

	if err := backend.Upload(ctx, "archives/snapshots/a.tar.xz", bytes.NewReader(content), int64(len(content)), ""); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	reader, info, err := backend.Download(ctx, "archives/snapshots/a.tar.xz")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer reader.Close()

	got, _ := io.ReadAll(reader)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %q", got)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}
	if info.LastModified.IsZero() {
		t.Error("expected LastModified to be set")
	}
}

func TestLocalBackend_UploadReplacesAtomically(t *testing.T) {
	backend, tmpDir := setupLocalBackend(t)
	ctx := context.Background()

	if err := backend.Upload(ctx, "k", strings.NewReader("old"), 3, ""); err != nil {
		t.Fatal(err)
	}

	// An open reader keeps seeing the old content after the replace.
	reader, _, err := backend.Download(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if err := backend.Upload(ctx, "k", strings.NewReader("new content"), -1, ""); err != nil {
		t.Fatal(err)
	}

	old, _ := io.ReadAll(reader)
	if string(old) != "old" {
		t.Errorf("reader saw %q after replace", old)
	}

	data, _ := os.ReadFile(filepath.Join(tmpDir, "k"))
	if string(data) != "new content" {
		t.Errorf("expected new content, got %q", data)
	}
}

func TestLocalBackend_UploadSizeMismatchLeavesNothing(t *testing.T) {
	backend, tmpDir := setupLocalBackend(t)
	ctx := context.Background()

	err := backend.Upload(ctx, "dir/k", strings.NewReader("short"), 100, "")
	if !errors.Is(err, errors.ErrStorageUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(tmpDir, "dir"))
	if len(entries) != 0 {
		t.Errorf("expected no leftovers, found %d entries", len(entries))
	}
}

func TestLocalBackend_UploadCanceled(t *testing.T) {
	backend, _ := setupLocalBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.Upload(ctx, "k", strings.NewReader("data"), -1, ""); err == nil {
		t.Fatal("expected error on canceled context")
	}
	if ok, _ := backend.Exists(context.Background(), "k"); ok {
		t.Error("canceled upload must not create the object")
	}
}

func TestLocalBackend_NotFound(t *testing.T) {
	backend, _ := setupLocalBackend(t)
	ctx := context.Background()

	if _, err := backend.GetInfo(ctx, "missing"); !errors.Is(err, errors.ErrObjectNotFound) {
		t.Errorf("GetInfo: expected not found, got %v", err)
	}
	if _, _, err := backend.Download(ctx, "missing"); !errors.Is(err, errors.ErrObjectNotFound) {
		t.Errorf("Download: expected not found, got %v", err)
	}
	if ok, err := backend.Exists(ctx, "missing"); ok || err != nil {
		t.Errorf("Exists: got %v, %v", ok, err)
	}
	if err := backend.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing object should succeed, got %v", err)
	}
}

func TestLocalBackend_PathTraversal(t *testing.T) {
	backend, tmpDir := setupLocalBackend(t)

	tests := []string{"../escape", "/etc/passwd", "a/../../b", "..\\win"}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			p := backend.ResolvePath(key)
			if !strings.HasPrefix(p, tmpDir) {
				t.Errorf("ResolvePath(%q) = %q escapes %q", key, p, tmpDir)
			}
		})
	}
}

func TestLocalBackend_ListAndDelete(t *testing.T) {
	backend, tmpDir := setupLocalBackend(t)
	ctx := context.Background()

	for _, key := range []string{"archives/a", "archives/b", "targetinfo/r1/.targetinfo-ath79"} {
		if err := backend.Upload(ctx, key, strings.NewReader("x"), 1, ""); err != nil {
			t.Fatal(err)
		}
	}

	objects, err := backend.List(ctx, "archives/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}

	if err := backend.Delete(ctx, "targetinfo/r1/.targetinfo-ath79"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "targetinfo")); !os.IsNotExist(err) {
		t.Error("expected empty parent directories to be pruned")
	}
	if err := backend.Ping(ctx); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
