// Package pdfutil combines rendered pages into output documents.
package pdfutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func init() {
	// pdfcpu otherwise installs a configuration directory under the
	// user's home on first use.
	api.DisableConfigDir()
}

// Concat writes the pages of inputs, in order, to output, creating its
// directory if needed. The result is assembled in a temporary file beside output and renamed into place, so
// readers never see a partial document.
func Concat(inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concatenating %s: no input files", output)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("concatenating %s: %w", output, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+"-*.pdf")
	if err != nil {
		return fmt.Errorf("concatenating %s: %w", output, err)
	}
	defer os.Remove(tmp.Name())

	if len(inputs) == 1 {
		err = copyValid(inputs[0], tmp)
	} else {
		tmp.Close()
		err = api.MergeCreateFile(inputs, tmp.Name(), false, nil)
	}
	if err != nil {
		return fmt.Errorf("concatenating %s: %w", output, err)
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return fmt.Errorf("concatenating %s: %w", output, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	return n, nil
}

// copyValid copies a single validated input to dst and closes dst.
func copyValid(input string, dst *os.File) error {
	defer dst.Close()
	if err := api.ValidateFile(input, nil); err != nil {
		return err
	}
	src, err := os.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}
