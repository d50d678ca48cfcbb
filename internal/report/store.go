// Package report records the outcome of a rendering batch so that it can
// be inspected after the fact.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of a run.
type Kind string

// Pdfs is a batch that renders course maps to PDF files.
const Pdfs Kind = "pdfs"

// ErrNotFound is returned by a Store that has no result for a run id.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the outcome of one batch.
type RunResult struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Strategy string        `json:"strategy"` // runner strategy, oneshot or shell

	Outputs  []Output  `json:"outputs,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Output is one written PDF file.
type Output struct {
	Path  string `json:"path"`
	Pages []Page `json:"pages"`
}

// Page is one rendered page, in output order.
type Page struct {
	Description string `json:"description"`
}

// Failure is a page that could not be rendered.
type Failure struct {
	Description string `json:"description"`
	Error       string `json:"error"`
	ExitStatus  *int   `json:"exit_status,omitempty"`
	Output      string `json:"output,omitempty"`
}

// New starts a result of the given kind with a fresh id.
func New(kind Kind, strategy string) *RunResult {
	return &RunResult{
		ID:       uuid.NewString(),
		Kind:     kind,
		Started:  time.Now(),
		Strategy: strategy,
	}
}

// Expect returns an error if the run's Kind does not match want.
func (r *RunResult) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// OK reports whether every page rendered.
func (r *RunResult) OK() bool {
	return len(r.Failures) == 0
}

// PageCount returns the number of pages across all outputs.
func (r *RunResult) PageCount() int {
	n := 0
	for _, o := range r.Outputs {
		n += len(o.Pages)
	}
	return n
}
