// Package mcp provides the Barnhunt MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/barnhunt"
	"github.com/deixis/barnhunt/internal/report"
	"github.com/deixis/barnhunt/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *workflow.Engine
	store  report.Store

	mu  sync.Mutex
	dir string // relative paths resolve against this; updated from client roots
}

// NewServer creates an MCP server with all Barnhunt tools registered.
// Batches run on engine and their results are saved to store.
func NewServer(engine *workflow.Engine, store report.Store, dir string) *mcp.Server {
	engine.Store = store
	h := &handler{engine: engine, store: store, dir: dir}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateDirFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "barnhunt", Version: barnhunt.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "barnhunt_pdfs",
		Description: `Render SVG course maps to PDF with Inkscape.

Each file becomes one page of <output_directory>/<file name>.pdf. Stops at the
first failure. Results are stored for drill-down via barnhunt_inspect.`,
	}, h.pdfsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "barnhunt_inspect",
		Description: "Show the full record of a barnhunt_pdfs run, including Inkscape output for failed pages.",
	}, h.inspectHandler)

	return s
}

// updateDirFromRoots queries the client for MCP roots and uses the first
// file root as the base directory for relative paths.
func (h *handler) updateDirFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}
	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	h.mu.Lock()
	h.dir = u.Path
	h.mu.Unlock()
}

func (h *handler) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return filepath.Join(h.dir, path)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
