// Package logtest provides an slog handler that keeps records in memory.
package logtest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Recorder is a slog.Handler that stores every record it handles.
type Recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// New returns a logger backed by a fresh Recorder, enabled at all levels.
func New() (*slog.Logger, *Recorder) {
	r := &Recorder{}
	return slog.New(r), r
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

// WithAttrs and WithGroup are not needed by callers; attributes added
// through them are dropped.
func (r *Recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *Recorder) WithGroup(string) slog.Handler      { return r }

// Records returns the records handled at or above min.
func (r *Recorder) Records(min slog.Level) []slog.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []slog.Record
	for _, rec := range r.records {
		if rec.Level >= min {
			out = append(out, rec)
		}
	}
	return out
}

// Text renders every record as "LEVEL message key=value ..." lines.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, rec := range r.records {
		b.WriteString(rec.Level.String())
		b.WriteByte(' ')
		b.WriteString(rec.Message)
		rec.Attrs(func(a slog.Attr) bool {
			b.WriteByte(' ')
			b.WriteString(a.String())
			return true
		})
		b.WriteByte('\n')
	}
	return b.String()
}
