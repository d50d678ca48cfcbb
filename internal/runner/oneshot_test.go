package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/barnhunt/internal/logging/logtest"
)

func TestOneShot_Success(t *testing.T) {
	logger, rec := logtest.New()
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "true"), Logger: logger})

	require.NoError(t, r.Call(context.Background(), nil))
	assert.Empty(t, rec.Records(slog.LevelInfo))
}

func TestOneShot_FailureIsNotLogged(t *testing.T) {
	logger, rec := logtest.New()
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "false"), Logger: logger})

	err := r.Call(context.Background(), nil)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "err = %v", err)
	assert.NotZero(t, procErr.ExitStatus)
	assert.Empty(t, rec.Records(slog.LevelDebug))
}

func TestOneShot_FailureCarriesOutput(t *testing.T) {
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "sh")})

	err := r.Call(context.Background(), []string{"-c", "echo broken >&2; exit 4"})

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "err = %v", err)
	assert.Equal(t, 4, procErr.ExitStatus)
	assert.Contains(t, string(procErr.Output), "broken")
	assert.Contains(t, procErr.Error(), "exit status 4")
}

func TestOneShot_LogsOutput(t *testing.T) {
	logger, rec := logtest.New()
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "echo"), Logger: logger})

	require.NoError(t, r.Call(context.Background(), []string{"foo"}))

	records := rec.Records(slog.LevelInfo)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, "foo")
}

func TestOneShot_MergesStderr(t *testing.T) {
	logger, rec := logtest.New()
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "sh"), Logger: logger})

	require.NoError(t, r.Call(context.Background(), []string{"-c", "echo out; echo err >&2"}))

	records := rec.Records(slog.LevelInfo)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, "out")
	assert.Contains(t, records[0].Message, "err")
}

func TestOneShot_BinaryNotFound(t *testing.T) {
	r := NewOneShot(Config{Executable: "nonexistent-inkscape-xyz-123"})

	err := r.Call(context.Background(), nil)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "err = %v", err)
	assert.Contains(t, err.Error(), "nonexistent-inkscape-xyz-123")
}

func TestOneShot_Close(t *testing.T) {
	r := NewOneShot(Config{Executable: "inkscape"})
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestOneShot_ContextCanceled(t *testing.T) {
	r := NewOneShot(Config{Executable: lookupOrSkip(t, "sh"), KillGrace: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// The backgrounded sleep keeps the output pipe open after sh is killed.
	err := r.Call(ctx, []string{"-c", "sleep 5 & sleep 5"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	var procErr *ProcessError
	assert.False(t, errors.As(err, &procErr), "cancellation is not a command failure")
	assert.Less(t, time.Since(start), 3*time.Second)
}
