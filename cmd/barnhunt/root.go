package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deixis/barnhunt/internal/config"
	"github.com/deixis/barnhunt/internal/logging"
	"github.com/deixis/barnhunt/internal/metrics"
	"github.com/deixis/barnhunt/internal/runner"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "barnhunt",
	Short: "Render Barn Hunt course maps to PDF",
	Long: `Barnhunt renders Barn Hunt course maps, drawn as Inkscape SVG files,
to printable PDF files. Inkscape is driven either one process per page or
through long-lived interactive shell processes, one per worker.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v info, -vv debug)")
}

// runnerFlags are the flags shared by commands that drive inkscape.
type runnerFlags struct {
	processes       int
	outputDirectory string
	shellMode       bool
	noShellMode     bool
	timeout         time.Duration
	inkscapeCommand string
	metricsAddr     string
}

func (f *runnerFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVarP(&f.processes, "processes", "p", 0, "number of inkscape processes to run in parallel (default: number of CPUs)")
	fl.StringVarP(&f.outputDirectory, "output-directory", "o", "", "output directory (default: "+config.DefaultOutputDirectory+")")
	fl.BoolVar(&f.shellMode, "shell-mode-inkscape", false, "run inkscape in shell mode (default)")
	fl.BoolVar(&f.noShellMode, "no-shell-mode-inkscape", false, "spawn a new inkscape process for every page")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-command timeout in shell mode (default "+runner.DefaultTimeout.String()+")")
	fl.StringVar(&f.inkscapeCommand, "inkscape-command", "", "inkscape executable (default: $"+config.EnvInkscapeCommand+" or inkscape)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9091)")
	cmd.MarkFlagsMutuallyExclusive("shell-mode-inkscape", "no-shell-mode-inkscape")
}

// env is what a command needs to build runners and engines.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	runner  runner.Config
}

// setup loads the configuration from the working directory, applies the
// command-line overrides and starts the metrics endpoint if requested.
func (f *runnerFlags) setup(cmd *cobra.Command) (*env, error) {
	logger := logging.New(os.Stderr, logging.LevelForVerbosity(verbosity))

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if loaded.Path != "" {
		logger.Debug("loaded config", "path", loaded.Path)
	}

	fl := cmd.Flags()
	if fl.Changed("processes") {
		if f.processes < 1 {
			return nil, errors.New("--processes must be at least 1")
		}
		cfg.Processes = f.processes
	}
	if f.outputDirectory != "" {
		cfg.OutputDirectory = f.outputDirectory
	}
	switch {
	case f.shellMode:
		on := true
		cfg.ShellMode = &on
	case f.noShellMode:
		off := false
		cfg.ShellMode = &off
	}
	if f.timeout > 0 {
		cfg.RawTimeout = f.timeout.String()
	}

	var m *metrics.Metrics
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		go serveMetrics(logger, f.metricsAddr, reg)
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		runner:  cfg.Runner(f.inkscapeCommand, logger, m),
	}, nil
}

func serveMetrics(logger *slog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", "err", err)
	}
}

func strategy(cfg runner.Config) string {
	if cfg.ShellMode {
		return runner.StrategyShell
	}
	return runner.StrategyOneShot
}
