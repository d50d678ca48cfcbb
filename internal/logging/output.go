package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Sink buffers process output and logs it as a single record when closed.
// It is safe for concurrent use.
type Sink struct {
	ctx    context.Context
	logger *slog.Logger
	level  slog.Level
	name   string
	attrs  []slog.Attr

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// Output returns a Sink bound to name. Every byte written before Close is
// emitted in the record logged by Close, including an unterminated final
// line. Nothing is logged if nothing was written.
func Output(ctx context.Context, logger *slog.Logger, level slog.Level, name string, attrs ...slog.Attr) *Sink {
	return &Sink{ctx: ctx, logger: logger, level: level, name: name, attrs: attrs}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("output %s: %w", s.name, os.ErrClosed)
	}
	return s.buf.Write(p)
}

// Close emits the buffered output. Calling Close more than once is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	text := Decode(s.buf.Bytes())
	s.buf.Reset()
	s.mu.Unlock()

	attrs := append([]slog.Attr{slog.String("tool", s.name)}, s.attrs...)
	s.logger.LogAttrs(s.ctx, s.level, s.name+": "+text, attrs...)
	return nil
}

// Decode turns raw process output into log text: invalid UTF-8 is
// replaced and trailing newlines are dropped.
func Decode(b []byte) string {
	return strings.TrimRight(strings.ToValidUTF8(string(b), "�"), "\r\n")
}
