// Package export turns a document into a single-page PDF by delegating
// the render to a runner.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/deixis/barnhunt/internal/runner"
)

// Document is anything that can serialize itself as SVG.
type Document interface {
	io.WriterTo
}

// Exporter renders documents with the bound Runner.
type Exporter struct {
	Runner  runner.Runner
	TempDir string // where serialized documents are staged; os.TempDir() if empty
}

// ExportPDF writes a PDF rendering of the page area of doc to outputPath,
// creating missing parent directories. Runner errors are returned
// unchanged.
func (e *Exporter) ExportPDF(ctx context.Context, doc Document, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	svg, err := e.stage(doc)
	if err != nil {
		return err
	}
	defer os.Remove(svg)

	return e.Runner.Call(ctx, Command(svg, outputPath))
}

// Command returns the inkscape arguments that export the page area of svg
// to pdf.
func Command(svg, pdf string) []string {
	return []string{svg, "--export-area-page", "--export-pdf=" + pdf}
}

func (e *Exporter) stage(doc Document) (string, error) {
	f, err := os.CreateTemp(e.TempDir, "barnhunt-*.svg")
	if err != nil {
		return "", fmt.Errorf("staging document: %w", err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("serializing document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("staging document: %w", err)
	}
	return f.Name(), nil
}

// File is a Document backed by an SVG file on disk.
type File string

// WriteTo copies the file to w.
func (f File) WriteTo(w io.Writer) (int64, error) {
	src, err := os.Open(string(f))
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(w, src)
}
