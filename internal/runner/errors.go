package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("timed out waiting for inkscape")

// SpawnError reports that the executable could not be started.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProcessError reports a failed command. ExitStatus is the process exit
// code, or -1 when the process was killed by a signal or when a running
// shell reported the failure in its output.
type ProcessError struct {
	Argv       []string
	ExitStatus int
	Output     []byte // captured output, not logged by the runner
}

func (e *ProcessError) Error() string {
	cmd := strings.Join(e.Argv, " ")
	if e.ExitStatus < 0 {
		return fmt.Sprintf("inkscape %s: command failed", cmd)
	}
	return fmt.Sprintf("inkscape %s: exit status %d", cmd, e.ExitStatus)
}

// TimeoutError reports that a shell did not answer within Timeout. The
// shell process was killed.
type TimeoutError struct {
	Argv    []string
	Timeout time.Duration
	Pid     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("inkscape %s: no response from pid %d within %s", strings.Join(e.Argv, " "), e.Pid, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
