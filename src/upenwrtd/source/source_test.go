package source

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

const sourceTargetInfo = `Target: ath79/generic
Default-Packages: base-files busybox dnsmasq
@@
Target-Profile: DEVICE_tplink_archer-c7-v2
Target-Profile-Packages: kmod-ath10k
Target-Profile-SupportedDevices: tplink,archer-c7-v2
@@
`

func TestParseRef(t *testing.T) {
	tests := []struct {
		release  string
		revision string
		want     string
		wantErr  bool
	}{
		{"SNAPSHOT", "r12345-abcdef01", "abcdef01", false},
		{"22.03.3", "r20028-43d71ad93e", "v22.03.3", false},
		{"21.02.0", "", "v21.02.0", false},
		{"SNAPSHOT", "r12345", "", true},
		{"SNAPSHOT", "r12345-ABCDEF", "", true},
		{"SNAPSHOT", "xr12345-abcdef01", "", true},
		{"", "r12345-abcdef01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.release+"/"+tt.revision, func(t *testing.T) {
			got, err := ParseRef(tt.release, tt.revision)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRef() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidArgument) {
				t.Errorf("expected invalid argument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRef() = %q, want %q", got, tt.want)
			}
		})
	}
}

// recorder is a fake executor that logs commands and optionally reacts to them.
type recorder struct {
	mu    sync.Mutex
	cmds  []executor.Command
	react func(executor.Command) error
}

func (r *recorder) Run(ctx context.Context, cmd executor.Command) (*executor.Result, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	if r.react != nil {
		if err := r.react(cmd); err != nil {
			return &executor.Result{ExitCode: 1}, err
		}
	}
	return &executor.Result{}, nil
}

func (r *recorder) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.cmds {
		out = append(out, strings.Join(c.Args[:min(len(c.Args), 3)], " "))
	}
	return out
}

func TestSource_Checkout(t *testing.T) {
	patchDir := t.TempDir()
	for _, name := range []string{"0002-second.patch", "0001-first.patch", ".gitkeep"} {
		if err := os.WriteFile(filepath.Join(patchDir, name), []byte("patch"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	p := NewProvider(Config{RepoDir: "/srv/repo", PatchDir: patchDir}, rec, nil)
	src, err := p.Source("ath79/generic", "SNAPSHOT", "r1-abc")
	if err != nil {
		t.Fatal(err)
	}

	workdir := t.TempDir()
	worktree, err := src.Checkout(context.Background(), workdir)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if filepath.Dir(worktree) != workdir || !strings.HasPrefix(filepath.Base(worktree), "worktree") {
		t.Errorf("unexpected worktree %s", worktree)
	}

	rec.mu.Lock()
	cmds := rec.cmds
	rec.mu.Unlock()
	if len(cmds) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(cmds))
	}

	want := [][]string{
		{"git", "clone", "--no-checkout", "/srv/repo/openwrt.git", worktree},
		{"git", "checkout", "--force", "abc"},
		{"git", "am", "-3", filepath.Join(patchDir, "0001-first.patch")},
		{"git", "am", "-3", filepath.Join(patchDir, "0002-second.patch")},
	}
	for i, w := range want {
		if !reflect.DeepEqual(cmds[i].Args, w) {
			t.Errorf("command %d = %v, want %v", i, cmds[i].Args, w)
		}
	}
	if cmds[0].Dir != workdir || cmds[1].Dir != worktree {
		t.Errorf("unexpected working directories %q, %q", cmds[0].Dir, cmds[1].Dir)
	}
	if len(cmds[2].Env) == 0 {
		t.Error("git am needs a committer identity")
	}
}

func TestSource_CheckoutFailureIsFatal(t *testing.T) {
	rec := &recorder{react: func(c executor.Command) error {
		if c.Args[1] == "checkout" {
			return errors.ErrSubprocess.WithMessage("unknown revision")
		}
		return nil
	}}
	p := NewProvider(Config{RepoDir: "/srv/repo"}, rec, nil)
	src, err := p.Source("ath79/generic", "22.03.3", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := src.Checkout(context.Background(), t.TempDir()); !errors.Is(err, errors.ErrSubprocess) {
		t.Fatalf("expected subprocess error, got %v", err)
	}
	if got := rec.commands(); len(got) != 2 {
		t.Errorf("expected no steps after the failure, got %v", got)
	}
}

// writeTmpInfo fakes "make prepare-tmpinfo" by writing the metadata file.
func writeTmpInfo(c executor.Command) error {
	if c.Args[0] != "make" {
		return nil
	}
	dir := filepath.Join(c.Dir, "tmp", "info")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ".targetinfo-ath79"), []byte(sourceTargetInfo), 0o644)
}

func TestSource_TargetInfo(t *testing.T) {
	cache, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	rec := &recorder{react: writeTmpInfo}
	p := NewProvider(Config{RepoDir: "/srv/repo"}, rec, cache)
	src, err := p.Source("ath79/generic", "SNAPSHOT", "r1-abc")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ti, err := src.TargetInfo(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("TargetInfo() error: %v", err)
	}
	if target := ti.Target("ath79/generic"); target == nil || len(target.Packages) != 3 {
		t.Fatalf("unexpected target %+v", target)
	}
	if got := rec.commands(); got[len(got)-1] != "make prepare-tmpinfo" {
		t.Errorf("expected metadata generation, got %v", got)
	}

	// Memoized on the same source.
	before := len(rec.commands())
	if _, err := src.TargetInfo(ctx, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if len(rec.commands()) != before {
		t.Error("expected memoized target info")
	}

	if ok, _ := cache.Exists(ctx, "targetinfo/abc/.targetinfo-ath79"); !ok {
		t.Fatal("generated metadata was not cached")
	}

	// A new source at the same ref is served from the cache.
	again, err := p.Source("ath79/generic", "SNAPSHOT", "r1-abc")
	if err != nil {
		t.Fatal(err)
	}
	ti, err = again.TargetInfo(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("cached TargetInfo() error: %v", err)
	}
	if ti.Profile("tplink,archer-c7-v2") == nil {
		t.Error("cached metadata lost the profile")
	}
	if len(rec.commands()) != before {
		t.Error("cached metadata must not run any command")
	}
}

func TestSource_TargetInfoNotGenerated(t *testing.T) {
	p := NewProvider(Config{RepoDir: "/srv/repo"}, &recorder{}, nil)
	src, err := p.Source("ath79/generic", "22.03.3", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := src.TargetInfo(context.Background(), t.TempDir()); !errors.Is(err, errors.ErrMetadataMissing) {
		t.Fatalf("expected metadata missing error, got %v", err)
	}
}

func TestProvider_SourceRejectsBadTarget(t *testing.T) {
	p := NewProvider(Config{}, &recorder{}, nil)
	if _, err := p.Source("ath79", "22.03.3", ""); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
