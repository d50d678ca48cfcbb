package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/deixis/barnhunt/internal/logging"
	"github.com/deixis/barnhunt/internal/metrics"
)

// Interactive keeps one inkscape shell per worker identity and reuses it
// for every command that worker issues. Workers run fully in parallel;
// the registry lock only covers inserting and removing entries.
//
// Callers that reuse worker identities concurrently, such as two batches
// both numbering workers from 1, share shells and take turns on them.
//
// Close should be called once the workers are drained. A command still in
// flight on a shell delays that shell's shutdown until it completes.
type Interactive struct {
	cfg Config

	mu       sync.Mutex
	children map[int]*child
}

// NewInteractive creates a shell-mode runner. No process is started until
// the first call from a worker.
func NewInteractive(cfg Config) *Interactive {
	return &Interactive{
		cfg:      cfg.withDefaults(),
		children: make(map[int]*child),
	}
}

type childState int

const (
	stateAbsent childState = iota
	stateStarting
	stateReady
	stateDead
)

// child is one shell process. mu is held for the whole of a command, so a
// process never serves two commands at once.
type child struct {
	mu      sync.Mutex
	state   childState
	retired bool // removed from the registry; must not be restarted

	cmd    *exec.Cmd
	stdin  *os.File
	out    *os.File // merged stdout and stderr
	exited chan struct{}
	pid    atomic.Int64
}

// Pid returns the process id of the shell serving the worker in ctx, or 0
// if that worker has none.
func (r *Interactive) Pid(ctx context.Context) int {
	r.mu.Lock()
	c := r.children[WorkerFrom(ctx)]
	r.mu.Unlock()
	if c == nil {
		return 0
	}
	return int(c.pid.Load())
}

// Call sends argv to the worker's shell, starting one first if the worker
// has none or its process has exited. Output is logged at INFO when there
// is any. A timeout kills the shell and returns a *TimeoutError; the next
// call from the worker starts a new one.
func (r *Interactive) Call(ctx context.Context, argv []string) error {
	line, err := encodeCommand(argv)
	if err != nil {
		return err
	}
	worker := WorkerFrom(ctx)
	start := time.Now()

	for {
		c := r.entry(worker)
		c.mu.Lock()
		if c.retired {
			c.mu.Unlock()
			continue
		}
		out, err := r.run(ctx, worker, c, argv, line)
		pid := int(c.pid.Load())
		c.mu.Unlock()

		r.cfg.Metrics.ObserveCommand(StrategyShell, outcomeOf(err), time.Since(start))
		if err != nil {
			return err
		}
		sink := logging.Output(ctx, r.cfg.Logger, slog.LevelInfo, r.cfg.toolName(),
			slog.Int("worker", worker), slog.Int("pid", pid))
		_, _ = sink.Write(out)
		return sink.Close()
	}
}

// Close stops every shell and clears the registry. It is idempotent.
func (r *Interactive) Close() error {
	r.mu.Lock()
	children := r.children
	r.children = make(map[int]*child)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for worker, c := range children {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.mu.Lock()
			defer c.mu.Unlock()
			c.retired = true
			pid := int(c.pid.Load())
			if c.stop(r.cfg.KillGrace) {
				r.cfg.Metrics.ChildGone()
				r.cfg.Logger.Debug("inkscape shell stopped", "worker", worker, "pid", pid)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (r *Interactive) entry(worker int) *child {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[worker]
	if !ok {
		c = &child{}
		r.children[worker] = c
	}
	return c
}

// release stops c and removes it from the registry. c.mu must be held.
func (r *Interactive) release(worker int, c *child) {
	if c.stop(r.cfg.KillGrace) {
		r.cfg.Metrics.ChildGone()
	}
	c.retired = true
	r.mu.Lock()
	if r.children[worker] == c {
		delete(r.children, worker)
	}
	r.mu.Unlock()
}

// run executes one command on c. c.mu must be held.
func (r *Interactive) run(ctx context.Context, worker int, c *child, argv []string, line string) ([]byte, error) {
	if !c.alive() {
		if c.stop(r.cfg.KillGrace) {
			r.cfg.Metrics.ChildGone()
			r.cfg.Logger.Warn("inkscape shell died between commands, restarting", "worker", worker)
		}
		if err := r.start(ctx, worker, c); err != nil {
			r.release(worker, c)
			return nil, err
		}
	}

	deadline := time.Now().Add(r.cfg.Timeout)
	if _, err := io.WriteString(c.stdin, line); err != nil {
		return nil, r.crashed(worker, c, argv, nil)
	}
	out, err := c.read(ctx, deadline, r.cfg.Prompt)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
		pid := int(c.pid.Load())
		r.release(worker, c)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("inkscape shell %d: %w", pid, ctxErr)
		}
		r.cfg.Logger.Warn("inkscape shell timed out, killed", "worker", worker, "pid", pid, "timeout", r.cfg.Timeout)
		return nil, &TimeoutError{Argv: argv, Timeout: r.cfg.Timeout, Pid: pid}
	default:
		return nil, r.crashed(worker, c, argv, out)
	}

	if r.cfg.FailurePattern != nil && r.cfg.FailurePattern.Match(out) {
		return nil, &ProcessError{Argv: argv, ExitStatus: -1, Output: out}
	}
	return out, nil
}

// start launches a shell on c and waits for its first prompt.
func (r *Interactive) start(ctx context.Context, worker int, c *child) error {
	c.state = stateStarting

	cmd := exec.Command(r.cfg.Executable, r.cfg.ShellArgs...)
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.cfg.Env...)
	}
	inR, inW, err := os.Pipe()
	if err != nil {
		return &SpawnError{Executable: r.cfg.Executable, Err: err}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return &SpawnError{Executable: r.cfg.Executable, Err: err}
	}
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = outW

	err = cmd.Start()
	inR.Close()
	outW.Close()
	if err != nil {
		inW.Close()
		outR.Close()
		c.state = stateDead
		return &SpawnError{Executable: r.cfg.Executable, Err: err}
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	c.cmd, c.stdin, c.out, c.exited = cmd, inW, outR, exited
	c.pid.Store(int64(cmd.Process.Pid))
	r.cfg.Metrics.ChildStarted()

	banner, err := c.read(ctx, time.Now().Add(r.cfg.Timeout), r.cfg.Prompt)
	if err != nil {
		pid := int(c.pid.Load())
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("starting inkscape shell: %w", ctxErr)
			}
			return &TimeoutError{Argv: r.cfg.ShellArgs, Timeout: r.cfg.Timeout, Pid: pid}
		}
		return &SpawnError{
			Executable: r.cfg.Executable,
			Err:        fmt.Errorf("exited before first prompt: %s", logging.Decode(banner)),
		}
	}

	c.state = stateReady
	r.cfg.Logger.Debug("inkscape shell started",
		"worker", worker, "pid", cmd.Process.Pid, "banner", logging.Decode(banner))
	return nil
}

// crashed handles a shell that went away mid-command.
func (r *Interactive) crashed(worker int, c *child, argv []string, out []byte) error {
	pid := int(c.pid.Load())
	status := -1
	select {
	case <-c.exited:
		status = c.cmd.ProcessState.ExitCode()
	case <-time.After(r.cfg.KillGrace):
	}
	r.release(worker, c)
	r.cfg.Logger.Warn("inkscape shell exited unexpectedly",
		"worker", worker, "pid", pid, "status", status)
	return &ProcessError{Argv: argv, ExitStatus: status, Output: out}
}

func (c *child) alive() bool {
	if c.state != stateReady {
		return false
	}
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// read collects output until it ends with prompt. It fails with
// os.ErrDeadlineExceeded once deadline passes or ctx is done.
func (c *child) read(ctx context.Context, deadline time.Time, prompt string) ([]byte, error) {
	if err := c.out.SetReadDeadline(deadline); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.out.SetReadDeadline(time.Now())
	})
	defer stop()

	var buf []byte
	chunk := make([]byte, 32<<10)
	for {
		n, err := c.out.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if resp, ok := cutPrompt(buf, prompt); ok {
			return resp, nil
		}
		if err != nil {
			return buf, err
		}
	}
}

// stop ends the process, escalating from closing stdin and SIGTERM to
// SIGKILL after grace, and reaps it. It reports whether there was a
// process to stop.
func (c *child) stop(grace time.Duration) bool {
	if c.cmd == nil {
		return false
	}
	_ = c.stdin.Close()
	select {
	case <-c.exited:
	default:
		if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = c.cmd.Process.Kill()
		}
		select {
		case <-c.exited:
		case <-time.After(grace):
			_ = c.cmd.Process.Kill()
			<-c.exited
		}
	}
	_ = c.out.Close()
	c.cmd, c.stdin, c.out = nil, nil, nil
	c.pid.Store(0)
	c.state = stateDead
	return true
}

func outcomeOf(err error) string {
	var spawnErr *SpawnError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.As(err, &spawnErr):
		return metrics.OutcomeSpawnError
	default:
		return metrics.OutcomeFailure
	}
}
