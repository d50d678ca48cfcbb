// Package runner executes Inkscape commands, either by spawning a fresh
// process per command or by keeping one interactive shell-mode process
// per worker.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/deixis/barnhunt/internal/logging"
	"github.com/deixis/barnhunt/internal/metrics"
)

// Runner executes commands against the external tool.
type Runner interface {
	// Call runs one command. argv does not include the executable.
	Call(ctx context.Context, argv []string) error
	// Close releases any processes held by the runner. It is idempotent.
	Close() error
}

// Strategy names, used in logs and metrics.
const (
	StrategyOneShot = "oneshot"
	StrategyShell   = "shell"
)

// Default values for runner configuration.
const (
	DefaultTimeout   = 60 * time.Second
	DefaultKillGrace = time.Second
	DefaultPrompt    = "\n>"
)

// DefaultShellArgs starts Inkscape in its interactive shell mode.
var DefaultShellArgs = []string{"--shell"}

// Config selects and configures a Runner.
type Config struct {
	ShellMode  bool     // interactive strategy when true, one-shot otherwise
	Executable string   // name of, or path to, the inkscape executable
	ShellArgs  []string // startup arguments for shell mode
	Env        []string // extra KEY=VALUE entries appended to the environment

	Timeout   time.Duration // per command, shell mode only
	KillGrace time.Duration // SIGTERM to SIGKILL delay when stopping a shell
	Prompt    string        // marks the end of a shell response

	// FailurePattern, when set, marks shell output that reports a failed
	// command.
	FailurePattern *regexp.Regexp

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.ShellArgs == nil {
		c.ShellArgs = DefaultShellArgs
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.KillGrace <= 0 {
		c.KillGrace = DefaultKillGrace
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.Logger == nil {
		c.Logger = logging.NewNop()
	}
	return c
}

// toolName is the tag attached to output records.
func (c Config) toolName() string {
	return filepath.Base(c.Executable)
}

// New constructs the Runner selected by cfg.ShellMode.
func New(cfg Config) (Runner, error) {
	if cfg.Executable == "" {
		return nil, fmt.Errorf("empty executable")
	}
	if cfg.ShellMode {
		return NewInteractive(cfg), nil
	}
	return NewOneShot(cfg), nil
}

// Use constructs a Runner, passes it to fn and closes it exactly once
// when fn returns or panics. A Close error is joined with fn's error.
func Use(cfg Config, fn func(Runner) error) (err error) {
	r, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	return fn(r)
}

type workerKey struct{}

// WithWorker tags ctx with the identity of the calling worker. The
// interactive runner keeps one process per worker identity.
func WithWorker(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerFrom returns the worker identity in ctx, or 0 if there is none.
func WorkerFrom(ctx context.Context) int {
	if id, ok := ctx.Value(workerKey{}).(int); ok {
		return id
	}
	return 0
}
