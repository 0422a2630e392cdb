package supervisor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/output"
	"github.com/absmach/fedtree/pkg/roleconf"
	"github.com/absmach/fedtree/pkg/supervisor"
)

func newSupervisor(t *testing.T) (*supervisor.Supervisor, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return supervisor.New(dir, output.NewNormalizer(), logger), dir
}

// script writes an executable shell script. It receives the configuration
// path as $1 and Spec.Args as $2...
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return path
}

func spec(executable string, args ...string) supervisor.Spec {
	cfg := roleconf.New()
	cfg.Set("n_parties", 2)
	cfg.Set("mode", "vertical")

	return supervisor.Spec{
		ID:         "test",
		Executable: executable,
		Config:     cfg,
		Args:       args,
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("configuration artifact not removed: %v", entries)
	}
}

func waitResult(t *testing.T, p *supervisor.Process) supervisor.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	return res
}

func TestLaunchNaturalExit(t *testing.T) {
	sup, dir := newSupervisor(t)
	exe := script(t, `cat "$1"; echo "party.cpp:12 done $2" >&2; exit 3`)

	p, err := sup.Launch(context.Background(), spec(exe, "1"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	res := waitResult(t, p)
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "n_parties=2\nmode=vertical\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Stderr != "party.cpp:12 done 1\n" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.Log != `{"fedtree":"party.cpp:12 done 1"}`+"\n" {
		t.Errorf("Log = %q", res.Log)
	}
	if p.Running() {
		t.Error("process reported running after Wait")
	}
	assertDirEmpty(t, dir)
}

func TestLaunchEnv(t *testing.T) {
	sup, _ := newSupervisor(t)
	exe := script(t, `echo "$FEDTREE_JOB_ID/$FEDTREE_ROLE"`)

	s := spec(exe)
	s.Env = map[string]string{"FEDTREE_JOB_ID": "job-1", "FEDTREE_ROLE": "server"}
	p, err := sup.Launch(context.Background(), s)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	res := waitResult(t, p)
	if res.Stdout != "job-1/server\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "job-1/server\n")
	}
}

func TestKillIsIdempotentAfterExit(t *testing.T) {
	sup, _ := newSupervisor(t)

	p, err := sup.Launch(context.Background(), spec(script(t, `echo ok`)))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	first := waitResult(t, p)

	for range 2 {
		if err := p.Kill(); err != nil {
			t.Fatalf("Kill after exit: %v", err)
		}
	}

	second := waitResult(t, p)
	if first != second {
		t.Errorf("result changed after Kill: %+v != %+v", first, second)
	}
	if second.ExitCode != 0 || second.Stdout != "ok\n" {
		t.Errorf("unexpected result %+v", second)
	}
}

func TestKillRunningProcess(t *testing.T) {
	sup, dir := newSupervisor(t)

	p, err := sup.Launch(context.Background(), spec(script(t, `exec sleep 30`)))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !p.Running() {
		t.Fatal("expected process to be running")
	}
	if _, err := os.Stat(p.Artifact()); err != nil {
		t.Fatalf("artifact must exist while running: %v", err)
	}

	start := time.Now()
	if err := p.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("second Kill: %v", err)
	}

	res := waitResult(t, p)
	if time.Since(start) > 5*time.Second {
		t.Errorf("kill did not terminate the process promptly")
	}
	if res.ExitCode == 0 {
		t.Errorf("killed process reported exit code 0")
	}
	assertDirEmpty(t, dir)
}

func TestLaunchFailureRemovesArtifact(t *testing.T) {
	sup, dir := newSupervisor(t)

	_, err := sup.Launch(context.Background(), spec(filepath.Join(t.TempDir(), "missing-binary")))
	if !errors.Is(err, pkgerrors.ErrProcess) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	assertDirEmpty(t, dir)

	if _, err := sup.Launch(context.Background(), spec("")); !errors.Is(err, pkgerrors.ErrProcess) {
		t.Errorf("expected ErrProcess for empty executable, got %v", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	sup, _ := newSupervisor(t)

	p, err := sup.Launch(context.Background(), spec(script(t, `exec sleep 30`)))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer func() {
		_ = p.Kill()
		waitResult(t, p)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "test") {
		t.Errorf("error should name the process: %v", err)
	}
}
