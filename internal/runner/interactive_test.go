package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/barnhunt/internal/logging/logtest"
	"github.com/deixis/barnhunt/internal/metrics"
)

func TestInteractive_SuccessIsQuiet(t *testing.T) {
	r, rec := newFakeShell(t)

	require.NoError(t, r.Call(context.Background(), []string{"true"}))
	assert.Empty(t, rec.Records(slog.LevelInfo))
}

func TestInteractive_LogsOutput(t *testing.T) {
	r, rec := newFakeShell(t)

	require.NoError(t, r.Call(context.Background(), []string{"echo", "foo"}))

	records := rec.Records(slog.LevelInfo)
	require.Len(t, records, 1)
	assert.Equal(t, slog.LevelInfo, records[0].Level)
	assert.Contains(t, records[0].Message, "foo")
	assert.NotContains(t, records[0].Message, ">")
}

func TestInteractive_QuotesArguments(t *testing.T) {
	r, rec := newFakeShell(t)

	require.NoError(t, r.Call(context.Background(), []string{"echo", "a  b", `it's "x"`}))

	records := rec.Records(slog.LevelInfo)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, `a  b it's "x"`)
}

func TestInteractive_RejectsLineBreaks(t *testing.T) {
	r, _ := newFakeShell(t)

	err := r.Call(context.Background(), []string{"echo", "a\nb"})
	require.Error(t, err)
	assert.Zero(t, r.Pid(context.Background()), "no process should be started")
}

func TestInteractive_PidStableAcrossCalls(t *testing.T) {
	r, _ := newFakeShell(t)
	ctx := WithWorker(context.Background(), 1)

	assert.Zero(t, r.Pid(ctx))

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)
	assert.Positive(t, pid)

	require.NoError(t, r.Call(ctx, []string{"echo", "again"}))
	assert.Equal(t, pid, r.Pid(ctx))

	assert.Zero(t, r.Pid(WithWorker(context.Background(), 2)), "other workers have no process yet")
}

func TestInteractive_OneProcessPerWorker(t *testing.T) {
	r, rec := newFakeShell(t)
	const workers = 16

	var (
		mu   sync.Mutex
		pids = make(map[int]struct{})
		wg   sync.WaitGroup
	)
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := WithWorker(context.Background(), i)
			if err := r.Call(ctx, []string{"true"}); err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			mu.Lock()
			pids[r.Pid(ctx)] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, pids, workers)
	assert.Empty(t, rec.Records(slog.LevelInfo))
}

func TestInteractive_SharedWorkerIsSerialized(t *testing.T) {
	r, _ := newFakeShell(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Call(context.Background(), []string{"echo", "shared"}); err != nil {
				t.Errorf("call: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, r.Pid(context.Background()))
	r.mu.Lock()
	assert.Len(t, r.children, 1)
	r.mu.Unlock()
}

func TestInteractive_CommandFailureKeepsProcess(t *testing.T) {
	r, rec := newFakeShell(t)
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)

	err := r.Call(ctx, []string{"fail"})

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "err = %v", err)
	assert.Equal(t, -1, procErr.ExitStatus)
	assert.Contains(t, string(procErr.Output), "command failed")
	assert.Equal(t, pid, r.Pid(ctx), "shell should survive a failed command")
	assert.Empty(t, rec.Records(slog.LevelInfo))

	require.NoError(t, r.Call(ctx, []string{"true"}))
	assert.Equal(t, pid, r.Pid(ctx))
}

func TestInteractive_TimeoutKillsAndRespawns(t *testing.T) {
	logger, _ := logtest.New()
	cfg := fakeShellConfig(logger)
	cfg.Timeout = 300 * time.Millisecond
	r := NewInteractive(cfg)
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)

	err := r.Call(ctx, []string{"sleep", "5s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "err = %v", err)
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, pid, timeoutErr.Pid)
	assert.Zero(t, r.Pid(ctx), "registry entry should be cleared")

	require.NoError(t, r.Call(ctx, []string{"true"}))
	assert.Positive(t, r.Pid(ctx))
	assert.NotEqual(t, pid, r.Pid(ctx))
}

func TestInteractive_TimeoutOnlyAffectsOneWorker(t *testing.T) {
	logger, _ := logtest.New()
	cfg := fakeShellConfig(logger)
	cfg.Timeout = 300 * time.Millisecond
	r := NewInteractive(cfg)
	t.Cleanup(func() { _ = r.Close() })

	one := WithWorker(context.Background(), 1)
	two := WithWorker(context.Background(), 2)
	require.NoError(t, r.Call(one, []string{"true"}))
	require.NoError(t, r.Call(two, []string{"true"}))
	pidTwo := r.Pid(two)

	err := r.Call(one, []string{"sleep", "5s"})
	assert.True(t, errors.Is(err, ErrTimeout), "err = %v", err)

	assert.Equal(t, pidTwo, r.Pid(two))
	assert.NoError(t, r.Call(two, []string{"true"}))
}

func TestInteractive_ContextCancel(t *testing.T) {
	r, _ := newFakeShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := r.Call(ctx, []string{"sleep", "5s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Zero(t, r.Pid(context.Background()))
}

func TestInteractive_CrashRespawns(t *testing.T) {
	r, _ := newFakeShell(t)
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)

	err := r.Call(ctx, []string{"exit", "3"})

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "err = %v", err)
	assert.Equal(t, 3, procErr.ExitStatus)
	assert.Zero(t, r.Pid(ctx))

	require.NoError(t, r.Call(ctx, []string{"true"}))
	assert.NotEqual(t, pid, r.Pid(ctx))
}

func TestInteractive_ExitBetweenCommandsRespawns(t *testing.T) {
	r, _ := newFakeShell(t)
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)

	// quit exits without printing a prompt, so the call reports a crash.
	err := r.Call(ctx, []string{"quit"})
	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "err = %v", err)
	assert.Equal(t, 0, procErr.ExitStatus)

	require.NoError(t, r.Call(ctx, []string{"echo", "back"}))
	assert.NotEqual(t, pid, r.Pid(ctx))
}

func TestInteractive_Close(t *testing.T) {
	r, _ := newFakeShell(t)
	one := WithWorker(context.Background(), 1)
	two := WithWorker(context.Background(), 2)

	require.NoError(t, r.Call(one, []string{"true"}))
	require.NoError(t, r.Call(two, []string{"true"}))

	require.NoError(t, r.Close())
	assert.Zero(t, r.Pid(one))
	assert.Zero(t, r.Pid(two))

	require.NoError(t, r.Close(), "second Close should be a no-op")
}

func TestInteractive_CallAfterCloseRespawns(t *testing.T) {
	r, _ := newFakeShell(t)
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	pid := r.Pid(ctx)
	require.NoError(t, r.Close())

	require.NoError(t, r.Call(ctx, []string{"true"}))
	assert.NotEqual(t, pid, r.Pid(ctx))
}

func TestInteractive_BinaryNotFound(t *testing.T) {
	r := NewInteractive(Config{ShellMode: true, Executable: "nonexistent-inkscape-xyz-123"})

	err := r.Call(context.Background(), []string{"true"})

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "err = %v", err)
	assert.Zero(t, r.Pid(context.Background()))
}

func TestInteractive_ExitsBeforePrompt(t *testing.T) {
	r := NewInteractive(Config{Executable: lookupOrSkip(t, "true"), ShellArgs: []string{}})
	t.Cleanup(func() { _ = r.Close() })

	err := r.Call(context.Background(), []string{"true"})

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "err = %v", err)
	assert.Contains(t, err.Error(), "before first prompt")
}

func TestInteractive_Metrics(t *testing.T) {
	logger, _ := logtest.New()
	cfg := fakeShellConfig(logger)
	cfg.Metrics = metrics.New(prometheus.NewRegistry())
	r := NewInteractive(cfg)
	ctx := context.Background()

	require.NoError(t, r.Call(ctx, []string{"true"}))
	require.NoError(t, r.Call(ctx, []string{"echo", "x"}))
	require.Error(t, r.Call(ctx, []string{"fail"}))

	m := cfg.Metrics
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues(StrategyShell, metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues(StrategyShell, metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Spawns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Children))

	require.NoError(t, r.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Children))
}
