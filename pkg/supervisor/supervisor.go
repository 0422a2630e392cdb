package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/output"
	"github.com/absmach/fedtree/pkg/roleconf"
)

const (
	artifactPattern = "fedtree-*.conf"
	// waitDelay bounds the wait for output pipes held open by orphaned children.
	waitDelay = 5 * time.Second
)

// Spec describes one launch: the executable receives the rendered
// configuration path as its first argument, followed by Args.
type Spec struct {
	ID         string
	Executable string
	Config     roleconf.RoleConfig
	Args       []string
	// Env is added to the inherited environment.
	Env map[string]string
}

// Result is captured once, after the process has been reaped.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Log      string        `json:"log"`
	Duration time.Duration `json:"duration"`
}

type Supervisor struct {
	tempDir    string
	normalizer output.Normalizer
	logger     *slog.Logger
}

// New returns a supervisor writing configuration artifacts to tempDir
// (the system default when empty).
func New(tempDir string, normalizer output.Normalizer, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		tempDir:    tempDir,
		normalizer: normalizer,
		logger:     logger,
	}
}

func (s *Supervisor) Launch(ctx context.Context, spec Spec) (*Process, error) {
	if spec.Executable == "" {
		return nil, fmt.Errorf("executable path is required: %w: %w", pkgerrors.ErrProcess, pkgerrors.ErrMissingValue)
	}

	artifact, err := writeArtifact(s.tempDir, spec.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to write configuration artifact: %w: %w", pkgerrors.ErrProcess, err)
	}

	args := append([]string{artifact}, spec.Args...)
	cmd := exec.CommandContext(ctx, spec.Executable, args...)
	cmd.WaitDelay = waitDelay

	p := &Process{
		id:         spec.ID,
		cmd:        cmd,
		artifact:   artifact,
		done:       make(chan struct{}),
		normalizer: s.normalizer,
		logger:     s.logger,
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if spec.Env != nil {
		cmd.Env = os.Environ()
		for key, value := range spec.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	p.started = time.Now()
	if err := cmd.Start(); err != nil {
		p.removeArtifact()

		return nil, fmt.Errorf("failed to start %s: %w: %w", spec.Executable, pkgerrors.ErrProcess, err)
	}

	s.logger.Info("Started training process",
		slog.String("id", spec.ID),
		slog.String("executable", spec.Executable),
		slog.Int("pid", cmd.Process.Pid))

	go p.reap()

	return p, nil
}

func writeArtifact(dir string, cfg roleconf.RoleConfig) (string, error) {
	f, err := os.CreateTemp(dir, artifactPattern)
	if err != nil {
		return "", err
	}

	if _, err := f.WriteString(cfg.Render()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return "", err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())

		return "", err
	}

	return f.Name(), nil
}

type Process struct {
	id         string
	cmd        *exec.Cmd
	artifact   string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	started    time.Time
	done       chan struct{}
	result     Result
	normalizer output.Normalizer
	logger     *slog.Logger
}

func (p *Process) reap() {
	defer close(p.done)
	defer p.removeArtifact()

	waitErr := p.cmd.Wait()

	stdout, stderr := p.stdout.String(), p.stderr.String()
	p.result = Result{
		ExitCode: p.cmd.ProcessState.ExitCode(),
		Stdout:   stdout,
		Stderr:   stderr,
		Log:      p.normalizer.Normalize(stdout, stderr),
		Duration: time.Since(p.started),
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.logger.Error("failed to wait for training process",
			slog.String("id", p.id),
			slog.String("error", waitErr.Error()))
	}

	p.logger.Info("Training process exited",
		slog.String("id", p.id),
		slog.Int("exit_code", p.result.ExitCode),
		slog.Duration("duration", p.result.Duration))
}

func (p *Process) removeArtifact() {
	if err := os.Remove(p.artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Error("failed to remove configuration artifact",
			slog.String("file", p.artifact),
			slog.String("error", err.Error()))
	}
}

// Wait blocks until the process has been reaped and its artifact removed.
func (p *Process) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for %s: %w: %w", p.id, pkgerrors.ErrProcess, ctx.Err())
	}
}

// Kill forcibly terminates the process. It is a no-op once the process has exited.
func (p *Process) Kill() error {
	if !p.Running() {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill %s: %w: %w", p.id, pkgerrors.ErrProcess, err)
	}

	return nil
}

func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) Artifact() string {
	return p.artifact
}
