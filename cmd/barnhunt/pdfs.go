package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deixis/barnhunt/internal/export"
	"github.com/deixis/barnhunt/internal/report"
	"github.com/deixis/barnhunt/internal/runner"
	"github.com/deixis/barnhunt/internal/workflow"
)

var (
	pdfsFlags     runnerFlags
	pdfsReportDir string
)

var pdfsCmd = &cobra.Command{
	Use:   "pdfs [flags] SVGFILE...",
	Short: "Render SVG course maps to PDF",
	Long: `Render each SVG file to a page of <output-directory>/<file name>.pdf.

Rendering stops at the first page that fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := pdfsFlags.setup(cmd)
		if err != nil {
			return err
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
			if pdfsReportDir != "" {
				engine.Store = report.NewDiskStore(pdfsReportDir)
			}

			if _, err := engine.Pdfs(ctx, workflow.FileSource(args)); err != nil {
				return fmt.Errorf("pdfs: %w", err)
			}
			return nil
		})
	},
}

func init() {
	pdfsFlags.register(pdfsCmd)
	pdfsCmd.Flags().StringVar(&pdfsReportDir, "report-dir", "", "write a JSON record of the run to this directory")
	rootCmd.AddCommand(pdfsCmd)
}
