// Package workflow renders batches of course maps. It is consumed by both
// the MCP server and the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deixis/barnhunt/internal/export"
	"github.com/deixis/barnhunt/internal/logging"
	"github.com/deixis/barnhunt/internal/pdfutil"
	"github.com/deixis/barnhunt/internal/report"
	"github.com/deixis/barnhunt/internal/runner"
)

// Exporter renders one document to a PDF file.
// Implemented by *export.Exporter.
type Exporter interface {
	ExportPDF(ctx context.Context, doc export.Document, outputPath string) error
}

// Coursemap is one page to render.
type Coursemap struct {
	Basename    string // output file name without extension; pages sharing it are concatenated
	Description string
	Document    export.Document
}

// FileSource turns SVG files into one Coursemap each, named after the file.
func FileSource(paths []string) []Coursemap {
	maps := make([]Coursemap, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		maps = append(maps, Coursemap{
			Basename:    strings.TrimSuffix(base, filepath.Ext(base)),
			Description: base,
			Document:    export.File(p),
		})
	}
	return maps
}

// Engine holds shared dependencies for batch operations.
//
// Every batch numbers its workers 1..Processes. Batches running at the
// same time on one interactive runner therefore share its shells, and
// their commands take turns on each shell rather than running side by side.
type Engine struct {
	Exporter  Exporter
	Processes int    // concurrent renders; 1 disables concurrency
	OutputDir string // where concatenated PDFs are written
	Strategy  string // runner strategy, recorded in results
	Store     report.Store
	Logger    *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

// Pdfs renders every course map and writes one PDF per basename under
// OutputDir, with pages in input order. The first failure cancels the
// rest of the batch. The returned result describes the batch in both
// cases and is saved to Store when one is set.
func (e *Engine) Pdfs(ctx context.Context, maps []Coursemap) (*report.RunResult, error) {
	rr := report.New(report.Pdfs, e.Strategy)
	defer func() {
		rr.Duration = time.Since(rr.Started)
		if e.Store != nil {
			if err := e.Store.Save(rr); err != nil {
				e.logger().Warn("saving run result", "run", rr.ID, "err", err)
			} else {
				e.logger().Info("saved run result", "run", rr.ID)
			}
		}
	}()

	if len(maps) == 0 {
		return rr, nil
	}

	tmp, err := os.MkdirTemp("", "barnhunt-pdfs-*")
	if err != nil {
		return rr, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	pages := make([]string, len(maps))
	for i := range maps {
		pages[i] = filepath.Join(tmp, fmt.Sprintf("%04d.pdf", i))
	}
	if err := e.render(ctx, rr, maps, pages); err != nil {
		return rr, err
	}
	if err := ctx.Err(); err != nil {
		return rr, err
	}

	for _, out := range group(e.OutputDir, maps) {
		inputs := make([]string, len(out.indexes))
		o := report.Output{Path: out.path}
		for i, idx := range out.indexes {
			inputs[i] = pages[idx]
			o.Pages = append(o.Pages, report.Page{Description: maps[idx].Description})
		}
		if err := pdfutil.Concat(inputs, out.path); err != nil {
			return rr, err
		}
		rr.Outputs = append(rr.Outputs, o)
		e.logger().Warn(fmt.Sprintf("Wrote %d pages to %s", len(inputs), out.path))
	}
	return rr, nil
}

// render exports maps[i] to pages[i] using a pool of workers.
func (e *Engine) render(ctx context.Context, rr *report.RunResult, maps []Coursemap, pages []string) error {
	workers := max(1, min(e.Processes, len(maps)))
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan int)
	g.Go(func() error {
		defer close(jobs)
		for i := range maps {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var mu sync.Mutex
	for id := 1; id <= workers; id++ {
		wctx := runner.WithWorker(gctx, id)
		g.Go(func() error {
			for i := range jobs {
				cm := maps[i]
				err := e.Exporter.ExportPDF(wctx, cm.Document, pages[i])
				if err != nil {
					if gctx.Err() != nil && errors.Is(err, context.Canceled) {
						return err
					}
					mu.Lock()
					rr.Failures = append(rr.Failures, failure(cm, err))
					mu.Unlock()
					return fmt.Errorf("rendering %s: %w", cm.Description, err)
				}
				e.logger().Info("Rendered "+cm.Description, "worker", id)
			}
			return nil
		})
	}
	return g.Wait()
}

func failure(cm Coursemap, err error) report.Failure {
	f := report.Failure{Description: cm.Description, Error: err.Error()}
	var procErr *runner.ProcessError
	if errors.As(err, &procErr) {
		status := procErr.ExitStatus
		f.ExitStatus = &status
		f.Output = logging.Decode(procErr.Output)
	}
	return f
}

type outputFile struct {
	path    string
	indexes []int
}

// group collects map indexes by output file, both in first-seen order.
func group(dir string, maps []Coursemap) []outputFile {
	var files []outputFile
	seen := make(map[string]int)
	for i, cm := range maps {
		path := filepath.Join(dir, cm.Basename+".pdf")
		j, ok := seen[path]
		if !ok {
			j = len(files)
			seen[path] = j
			files = append(files, outputFile{path: path})
		}
		files[j].indexes = append(files[j].indexes, i)
	}
	return files
}
