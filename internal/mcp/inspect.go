package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/barnhunt/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a barnhunt_pdfs result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	if err := result.Expect(report.Pdfs); err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatInspectOutput(result))
}

func formatInspectOutput(r *report.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", r.ID, r.Kind)
	fmt.Fprintf(&b, "Started: %s\n", r.Started.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(&b, "Pages: %d\n", r.PageCount())

	for _, o := range r.Outputs {
		fmt.Fprintf(&b, "\n%s:\n", o.Path)
		for i, p := range o.Pages {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, p.Description)
		}
	}

	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\nFAIL %s\n", f.Description)
		fmt.Fprintf(&b, "  %s\n", f.Error)
		if f.ExitStatus != nil && *f.ExitStatus >= 0 {
			fmt.Fprintf(&b, "  exit status %d\n", *f.ExitStatus)
		}
		if f.Output != "" {
			fmt.Fprintln(&b, "  Output:")
			for _, line := range strings.Split(strings.TrimRight(f.Output, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	return b.String()
}
