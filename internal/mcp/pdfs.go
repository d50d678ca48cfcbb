package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/barnhunt/internal/report"
	"github.com/deixis/barnhunt/internal/workflow"
)

type pdfsParams struct {
	Files           []string `json:"files" jsonschema:"SVG course map files to render, one page each"`
	OutputDirectory string   `json:"output_directory,omitempty" jsonschema:"directory for the generated PDF files (default from configuration)"`
}

func (h *handler) pdfsHandler(ctx context.Context, req *mcp.CallToolRequest, params pdfsParams) (*mcp.CallToolResult, any, error) {
	if len(params.Files) == 0 {
		return errorResult("files is required")
	}
	files := make([]string, len(params.Files))
	for i, f := range params.Files {
		files[i] = h.resolve(f)
	}

	eng := *h.engine
	if params.OutputDirectory != "" {
		eng.OutputDir = params.OutputDirectory
	}
	eng.OutputDir = h.resolve(eng.OutputDir)

	rr, err := eng.Pdfs(ctx, workflow.FileSource(files))
	if rr == nil {
		return errorResult(fmt.Sprintf("Rendering failed: %v", err))
	}
	return textResult(formatPdfs(rr, err))
}

func formatPdfs(rr *report.RunResult, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	if err == nil {
		fmt.Fprintf(&b, "Status: PASS\n")
	} else {
		fmt.Fprintf(&b, "Status: FAIL\n")
	}
	fmt.Fprintf(&b, "Strategy: %s\n", rr.Strategy)

	if len(rr.Outputs) > 0 {
		fmt.Fprintf(&b, "\nOutputs:\n")
		for _, o := range rr.Outputs {
			fmt.Fprintf(&b, "  %s (%d pages)\n", o.Path, len(o.Pages))
		}
	}
	if err != nil {
		fmt.Fprintf(&b, "\nError: %v\n", err)
	}
	if len(rr.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailures:\n")
		for _, f := range rr.Failures {
			fmt.Fprintf(&b, "  %s\n", f.Description)
		}
		fmt.Fprintf(&b, "\nUse barnhunt_inspect with run_id %s for Inkscape output.\n", rr.ID)
	}
	return b.String()
}
