package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/deixis/barnhunt/internal/logging"
	"github.com/deixis/barnhunt/internal/metrics"
)

// OneShot runs every command in a fresh process. It holds no state
// between calls and is safe for concurrent use.
type OneShot struct {
	cfg Config
}

// NewOneShot creates a one-shot runner.
func NewOneShot(cfg Config) *OneShot {
	return &OneShot{cfg: cfg.withDefaults()}
}

// Call runs the executable with argv and waits for it to exit. Output of
// a successful run is logged at INFO. A non-zero exit returns a
// *ProcessError carrying the output, which is not logged. When ctx ends
// first the process is killed and the ctx error is returned wrapped.
func (r *OneShot) Call(ctx context.Context, argv []string) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.cfg.Executable, argv...)
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.cfg.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Children of a killed process may hold the output pipe open.
	cmd.WaitDelay = r.cfg.KillGrace

	runErr := cmd.Run()
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.cfg.Metrics.ObserveCommand(StrategyOneShot, metrics.OutcomeFailure, time.Since(start))
			return fmt.Errorf("inkscape: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			r.cfg.Metrics.ObserveCommand(StrategyOneShot, metrics.OutcomeFailure, time.Since(start))
			return &ProcessError{Argv: argv, ExitStatus: exitErr.ExitCode(), Output: out.Bytes()}
		}
		r.cfg.Metrics.ObserveCommand(StrategyOneShot, metrics.OutcomeSpawnError, time.Since(start))
		return &SpawnError{Executable: r.cfg.Executable, Err: runErr}
	}
	r.cfg.Metrics.ObserveCommand(StrategyOneShot, metrics.OutcomeOK, time.Since(start))

	sink := logging.Output(ctx, r.cfg.Logger, slog.LevelInfo, r.cfg.toolName(),
		slog.Int("worker", WorkerFrom(ctx)))
	_, _ = sink.Write(out.Bytes())
	return sink.Close()
}

// Close is a no-op.
func (r *OneShot) Close() error { return nil }
