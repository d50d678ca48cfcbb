package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/deixis/barnhunt/internal/export"
	bhmcp "github.com/deixis/barnhunt/internal/mcp"
	"github.com/deixis/barnhunt/internal/report"
	"github.com/deixis/barnhunt/internal/runner"
	"github.com/deixis/barnhunt/internal/workflow"
)

var (
	mcpFlags        runnerFlags
	mcpHTTPAddr     string
	mcpInstructions bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts barnhunt as an MCP server over stdio, or over streamable HTTP
with --http. Inkscape processes stay warm for the lifetime of the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mcpInstructions {
			fmt.Print(bhmcp.Instructions)
			return nil
		}
		e, err := mcpFlags.setup(cmd)
		if err != nil {
			return err
		}
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining working directory: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runner.Use(e.runner, func(r runner.Runner) error {
			engine := &workflow.Engine{
				Exporter:  &export.Exporter{Runner: r},
				Processes: e.cfg.ProcessCount(),
				OutputDir: e.cfg.OutputDir(),
				Strategy:  strategy(e.runner),
				Logger:    e.logger,
			}
			store := report.NewLRUStore(16, report.NewDiskStore(""))
			server := bhmcp.NewServer(engine, store, wd)

			if mcpHTTPAddr != "" {
				return serveHTTP(ctx, e.logger, server, mcpHTTPAddr)
			}
			return server.Run(ctx, &mcpsdk.StdioTransport{})
		})
	},
}

func init() {
	mcpFlags.register(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	mcpCmd.Flags().BoolVar(&mcpInstructions, "instructions", false, "print model instructions and exit")
	rootCmd.AddCommand(mcpCmd)
}

func serveHTTP(ctx context.Context, logger *slog.Logger, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	logger.Warn("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
