package runner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// encodeCommand renders argv as one line of shell-mode input. Inkscape
// splits the line with g_shell_parse_argv, which understands POSIX
// quoting.
func encodeCommand(argv []string) (string, error) {
	for _, arg := range argv {
		if strings.ContainsAny(arg, "\r\n") {
			return "", fmt.Errorf("argument %q: line breaks cannot be sent to the inkscape shell", arg)
		}
	}
	return shellquote.Join(argv...) + "\n", nil
}

// cutPrompt reports whether b holds a complete response, i.e. ends with
// prompt, and returns the response without it. The start of b counts as
// the start of a line, so a bare prompt is an empty response.
func cutPrompt(b []byte, prompt string) ([]byte, bool) {
	if bytes.HasSuffix(b, []byte(prompt)) {
		return b[:len(b)-len(prompt)], true
	}
	if bare, ok := strings.CutPrefix(prompt, "\n"); ok && string(b) == bare {
		return b[:0], true
	}
	return nil, false
}
