package build

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/artifact"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
	"github.com/bitswalk/upenwrt/src/upenwrtd/download"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/reconcile"
	"github.com/bitswalk/upenwrt/src/upenwrtd/source"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

const (
	testTarget = "ath79/generic"
	testBoard  = "tplink,archer-c7-v2"

	builderTargetInfo = `Target: ath79/generic
Default-Packages: base-files busybox dnsmasq
@@
Target-Profile: DEVICE_tplink_archer-c7-v2
Target-Profile-Packages: kmod-ath10k
Target-Profile-SupportedDevices: tplink,archer-c7-v2
@@
`
	builderPackageInfo = `Package: libustream-openssl
Provides: libustream
@@
Package: luci
@@
`
	sourceTargetInfo = `Target: ath79/generic
Default-Packages: base-files busybox dnsmasq
@@
Target-Profile: DEVICE_tplink_archer-c7-v2
Target-Profile-Packages: kmod-ath10k
Target-Profile-SupportedDevices: tplink,archer-c7-v2
@@
`
)

var testPackages = []string{"base-files", "busybox", "kmod-ath10k", "luci", "libustream-openssl20201210"}

func makeBuilderArchive(t *testing.T) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	top := "openwrt-imagebuilder-ath79-generic.Linux-x86_64/"
	files := []struct{ name, body string }{
		{top + ".targetinfo", builderTargetInfo},
		{top + ".packageinfo", builderPackageInfo},
		{top + "Makefile", "image:\n"},
	}
	if err := tw.WriteHeader(&tar.Header{Name: top, Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(f.body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(f.body))
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	w, err := xz.NewWriter(&out)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(tarBuf.Bytes())
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

// fakeToolchain stands in for git and make.
type fakeToolchain struct {
	mu       sync.Mutex
	images   []string
	packages string
	failMake bool
	block    chan struct{}
}

func (f *fakeToolchain) Run(ctx context.Context, cmd executor.Command) (*executor.Result, error) {
	if cmd.Args[0] != "make" {
		return &executor.Result{}, nil
	}

	switch cmd.Args[1] {
	case "prepare-tmpinfo":
		dir := filepath.Join(cmd.Dir, "tmp", "info")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return &executor.Result{}, os.WriteFile(filepath.Join(dir, ".targetinfo-ath79"), []byte(sourceTargetInfo), 0o644)

	case "image":
		if f.block != nil {
			select {
			case <-f.block:
			case <-ctx.Done():
				return nil, errors.ErrCanceled.WithCause(ctx.Err())
			}
		}
		f.mu.Lock()
		f.packages = strings.TrimPrefix(cmd.Args[3], "PACKAGES=")
		f.mu.Unlock()
		if f.failMake {
			return &executor.Result{ExitCode: 2}, errors.ErrSubprocess.
				WithMessage("Command failed: make image").
				WithDetail("output", "Cannot install package foo")
		}
		outdir := filepath.Join(cmd.Dir, "bin", "targets", testTarget)
		if err := os.MkdirAll(outdir, 0o755); err != nil {
			return nil, err
		}
		for _, name := range f.images {
			if err := os.WriteFile(filepath.Join(outdir, name), []byte("image:"+name), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return &executor.Result{}, nil
}

type testEnv struct {
	manager *Manager
	tools   *fakeToolchain
	workdir string
}

func newTestEnv(t *testing.T, withSource bool, configure func(*Config)) *testEnv {
	t.Helper()

	archive := makeBuilderArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshots/targets/ath79/generic/openwrt-imagebuilder-ath79-generic.Linux-x86_64.tar.xz" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
		w.Write(archive)
	}))
	t.Cleanup(server.Close)

	cache, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	dcfg := download.DefaultConfig()
	dcfg.TempDir = t.TempDir()
	client, err := download.NewHTTPClient(dcfg)
	if err != nil {
		t.Fatal(err)
	}

	acfg := artifact.DefaultConfig()
	acfg.BaseURL = server.URL
	artifacts := artifact.NewProvider(acfg, download.NewFetcher(client, cache, dcfg))

	tools := &fakeToolchain{images: []string{
		"openwrt-ath79-generic-tplink_archer-c7-v2-squashfs-factory.bin",
		"openwrt-ath79-generic-tplink_archer-c7-v2-squashfs-sysupgrade.bin",
	}}

	var sources *source.Provider
	if withSource {
		sources = source.NewProvider(source.Config{RepoDir: t.TempDir()}, tools, cache)
	}

	engine, err := reconcile.New(reconcile.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	database, err := db.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := DefaultConfig()
	cfg.WorkDir = t.TempDir()
	if configure != nil {
		configure(&cfg)
	}

	m, err := NewManager(cfg, artifacts, sources, engine, tools, db.NewOperationRepository(database))
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{manager: m, tools: tools, workdir: cfg.WorkDir}
}

func (e *testEnv) assertWorkdirEmpty(t *testing.T) {
	t.Helper()
	left, err := os.ReadDir(e.workdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("workdir not released: %v", left)
	}
}

func (e *testEnv) record(t *testing.T, id string) *db.Operation {
	t.Helper()
	rec, err := e.manager.Repo().GetByID(id)
	if err != nil || rec == nil {
		t.Fatalf("operation %s not recorded: %v", id, err)
	}
	return rec
}

func testRequest(mode db.OperationMode) Request {
	return Request{
		Mode:       mode,
		TargetName: testTarget,
		BoardName:  testBoard,
		Packages:   testPackages,
	}
}

func TestManager_NewOperation(t *testing.T) {
	env := newTestEnv(t, true, nil)

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
		source  bool
	}{
		{name: "defaults", mutate: func(*Request) {}},
		{name: "missing target", mutate: func(r *Request) { r.TargetName = "" }, wantErr: errors.ErrMissingArgument},
		{name: "missing board", mutate: func(r *Request) { r.BoardName = "" }, wantErr: errors.ErrMissingArgument},
		{name: "bad target", mutate: func(r *Request) { r.TargetName = "ath79" }, wantErr: errors.ErrInvalidArgument},
		{name: "bad version", mutate: func(r *Request) { r.TargetVersion = "../x" }, wantErr: errors.ErrInvalidArgument},
		{name: "with source", mutate: func(r *Request) { r.CurrentRelease = "22.03.3" }, source: true},
		{name: "revision without release", mutate: func(r *Request) { r.CurrentRevision = "r1-abc" }, wantErr: errors.ErrInvalidArgument},
		{name: "bad snapshot revision", mutate: func(r *Request) {
			r.CurrentRelease = "SNAPSHOT"
			r.CurrentRevision = "r1"
		}, wantErr: errors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest("")
			tt.mutate(&req)
			op, err := env.manager.NewOperation(req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOperation() error: %v", err)
			}
			if op.Request.Mode != db.ModeBuild || op.Request.TargetVersion != artifact.Snapshot {
				t.Errorf("unexpected defaults %+v", op.Request)
			}
			if (op.Source != nil) != tt.source {
				t.Errorf("source = %v, want %v", op.Source != nil, tt.source)
			}
		})
	}
}

func TestManager_ListWithoutSource(t *testing.T) {
	env := newTestEnv(t, false, nil)

	op, err := env.manager.NewOperation(testRequest(db.ModeList))
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	err = env.manager.Execute(context.Background(), op, func(ctx context.Context, op *Operation) error {
		var err error
		got, err = op.ListPackages(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	want := []string{"base-files", "busybox", "kmod-ath10k", "libustream-openssl", "luci"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("packages = %v, want %v", got, want)
	}
	if op.State() != db.StateReleased {
		t.Errorf("expected released state, got %s", op.State())
	}
	env.assertWorkdirEmpty(t)

	rec := env.record(t, op.ID)
	if rec.Status != db.StatusCompleted || !reflect.DeepEqual(rec.InstallPackages, want) {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestManager_BuildWithSource(t *testing.T) {
	env := newTestEnv(t, true, nil)

	req := testRequest(db.ModeBuild)
	req.CurrentRelease = "SNAPSHOT"
	req.CurrentRevision = "r12345-abcdef01"
	op, err := env.manager.NewOperation(req)
	if err != nil {
		t.Fatal(err)
	}

	var image []byte
	err = env.manager.Execute(context.Background(), op, func(ctx context.Context, op *Operation) error {
		path, err := op.Build(ctx)
		if err != nil {
			return err
		}
		image, err = os.ReadFile(path)
		return err
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if !strings.Contains(string(image), "sysupgrade") {
		t.Errorf("unexpected image content %q", image)
	}
	if env.tools.packages != "libustream-openssl luci" {
		t.Errorf("unexpected PACKAGES %q", env.tools.packages)
	}

	details, err := op.Prepare(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(details.Removed, []string{"dnsmasq"}) {
		t.Errorf("removed = %v, want [dnsmasq]", details.Removed)
	}
	if details.Profile.Name != "tplink_archer-c7-v2" {
		t.Errorf("unexpected profile %s", details.Profile.Name)
	}

	env.assertWorkdirEmpty(t)
	rec := env.record(t, op.ID)
	if rec.Status != db.StatusCompleted || rec.ImageName != "openwrt-ath79-generic-tplink_archer-c7-v2-squashfs-sysupgrade.bin" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestManager_Failures(t *testing.T) {
	tests := []struct {
		name    string
		board   string
		setup   func(*fakeToolchain)
		wantErr error
		check   func(*testing.T, error)
	}{
		{
			name:    "unknown board",
			board:   "tplink,nosuch",
			wantErr: errors.ErrUnknownBoard,
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "- Target: ath79/generic") ||
					!strings.Contains(err.Error(), "\t\t- Device: tplink,archer-c7-v2") {
					t.Errorf("error lacks the valid targets dump: %v", err)
				}
			},
		},
		{
			name:    "no sysupgrade image",
			setup:   func(f *fakeToolchain) { f.images = []string{"openwrt-factory.bin"} },
			wantErr: errors.ErrImageNotFound,
		},
		{
			name: "two sysupgrade images",
			setup: func(f *fakeToolchain) {
				f.images = []string{"a-sysupgrade.bin", "b-sysupgrade.bin"}
			},
			wantErr: errors.ErrImageNotFound,
		},
		{
			name:    "make fails",
			setup:   func(f *fakeToolchain) { f.failMake = true },
			wantErr: errors.ErrSubprocess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false, nil)
			if tt.setup != nil {
				tt.setup(env.tools)
			}

			req := testRequest(db.ModeBuild)
			if tt.board != "" {
				req.BoardName = tt.board
			}
			op, err := env.manager.NewOperation(req)
			if err != nil {
				t.Fatal(err)
			}

			err = env.manager.Execute(context.Background(), op, func(ctx context.Context, op *Operation) error {
				_, err := op.Build(ctx)
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.check != nil {
				tt.check(t, err)
			}

			env.assertWorkdirEmpty(t)
			if rec := env.record(t, op.ID); rec.Status != db.StatusFailed || rec.ErrorMessage == "" {
				t.Errorf("unexpected record %+v", rec)
			}
		})
	}
}

func TestManager_ReleaseOnce(t *testing.T) {
	env := newTestEnv(t, false, nil)
	op, err := env.manager.NewOperation(testRequest(db.ModeList))
	if err != nil {
		t.Fatal(err)
	}

	if err := op.Acquire(); err != nil {
		t.Fatal(err)
	}
	op.Release()
	if err := os.MkdirAll(op.Workdir, 0o755); err != nil {
		t.Fatal(err)
	}
	op.Release()

	if _, err := os.Stat(op.Workdir); err != nil {
		t.Error("second Release must be a no-op")
	}
}

func TestManager_Cancel(t *testing.T) {
	env := newTestEnv(t, false, nil)
	env.tools.block = make(chan struct{})

	op, err := env.manager.NewOperation(testRequest(db.ModeBuild))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- env.manager.Execute(context.Background(), op, func(ctx context.Context, op *Operation) error {
			_, err := op.Build(ctx)
			return err
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for op.State() != db.StateReconciled {
		if time.Now().After(deadline) {
			t.Fatal("operation never reached the build step")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.manager.Cancel(op.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if err := <-done; !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}

	env.assertWorkdirEmpty(t)
	if rec := env.record(t, op.ID); rec.Status != db.StatusCanceled {
		t.Errorf("expected canceled record, got %s", rec.Status)
	}
	if err := env.manager.Cancel(op.ID); !errors.Is(err, errors.ErrOperationNotFound) {
		t.Errorf("expected finished operation to be gone, got %v", err)
	}
}

func TestManager_WorkerSlots(t *testing.T) {
	env := newTestEnv(t, false, func(c *Config) { c.Workers = 1 })

	first, err := env.manager.NewOperation(testRequest(db.ModeList))
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- env.manager.Execute(context.Background(), first, func(ctx context.Context, op *Operation) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if size, busy := env.manager.Workers(); size != 1 || busy != 1 {
		t.Errorf("workers = %d/%d, want 1/1", busy, size)
	}

	second, err := env.manager.NewOperation(testRequest(db.ModeList))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = env.manager.Execute(ctx, second, func(context.Context, *Operation) error {
		t.Error("second operation must not run while the only worker is busy")
		return nil
	})
	if !errors.Is(err, errors.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if got := errors.GetHTTPStatus(err); got != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", got)
	}
	if rec := env.record(t, second.ID); rec.Status != db.StatusFailed {
		t.Errorf("expected failed record, got %s", rec.Status)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first operation failed: %v", err)
	}
}

func TestManager_CancelAll(t *testing.T) {
	env := newTestEnv(t, false, func(c *Config) { c.Workers = 1 })

	started := make(chan struct{})
	var once sync.Once
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		op, err := env.manager.NewOperation(testRequest(db.ModeList))
		if err != nil {
			t.Fatal(err)
		}
		go func() {
			results <- env.manager.Execute(context.Background(), op, func(ctx context.Context, op *Operation) error {
				once.Do(func() { close(started) })
				<-ctx.Done()
				return errors.ErrCanceled.WithCause(ctx.Err())
			})
		}()
	}
	<-started

	deadline := time.Now().Add(5 * time.Second)
	for {
		ops, err := env.manager.Repo().List(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) == 2 && env.manager.Active(ops[0].ID) && env.manager.Active(ops[1].ID) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second operation never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := env.manager.CancelAll(); n != 2 {
		t.Errorf("CancelAll() = %d, want 2", n)
	}
	for i := 0; i < 2; i++ {
		if err := <-results; !errors.Is(err, errors.ErrCanceled) {
			t.Errorf("expected canceled error, got %v", err)
		}
	}
	env.assertWorkdirEmpty(t)
}
