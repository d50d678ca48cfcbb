package runner

import (
	"strings"
	"testing"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand_RoundTrip(t *testing.T) {
	argv := []string{"/tmp/in 1.svg", "--export-area-page", "--export-pdf=/tmp/out's.pdf"}

	line, err := encodeCommand(argv)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))

	got, err := shellquote.Split(strings.TrimSuffix(line, "\n"))
	require.NoError(t, err)
	assert.Equal(t, argv, got)
}

func TestEncodeCommand_LineBreak(t *testing.T) {
	_, err := encodeCommand([]string{"a\rb"})
	assert.Error(t, err)
}

func TestCutPrompt(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		ok bool
	}{
		{">", "", true},
		{"foo\n>", "foo", true},
		{"foo\nbar\n>", "foo\nbar", true},
		{"foo\n", "", false},
		{"foo>", "", false},
		{"", "", false},
		{"\n>", "", true},
	}
	for _, tt := range tests {
		got, ok := cutPrompt([]byte(tt.in), DefaultPrompt)
		assert.Equal(t, tt.ok, ok, "cutPrompt(%q)", tt.in)
		if ok {
			assert.Equal(t, tt.want, string(got), "cutPrompt(%q)", tt.in)
		}
	}
}
