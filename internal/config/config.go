// Package config loads and validates the optional .barnhunt YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/barnhunt/internal/metrics"
	"github.com/deixis/barnhunt/internal/runner"
)

// FileName is the name of the configuration file.
const FileName = ".barnhunt"

// EnvInkscapeCommand overrides the configured inkscape executable.
const EnvInkscapeCommand = "INKSCAPE_COMMAND"

// DefaultOutputDirectory is where PDFs are written when not configured.
const DefaultOutputDirectory = "pdfs"

// Config holds the parsed .barnhunt configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int      `yaml:"version"`
	InkscapeCommand string   `yaml:"inkscape_command"`
	ShellMode       *bool    `yaml:"shell_mode"`
	ShellArgs       []string `yaml:"shell_args"`
	ShellPrompt     string   `yaml:"shell_prompt"`
	FailurePattern  string   `yaml:"failure_pattern"`
	RawTimeout      string   `yaml:"timeout"`    // e.g. "60s", "2m"
	RawKillGrace    string   `yaml:"kill_grace"` // e.g. "1s"
	Processes       int      `yaml:"processes"`
	OutputDirectory string   `yaml:"output_directory"`

	failurePattern *regexp.Regexp
}

// Executable returns the inkscape command. A non-empty override wins,
// then $INKSCAPE_COMMAND, then the file, then the platform default.
func (c *Config) Executable(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(EnvInkscapeCommand); env != "" {
		return env
	}
	if c.InkscapeCommand != "" {
		return c.InkscapeCommand
	}
	if runtime.GOOS == "windows" {
		return "inkscape.exe"
	}
	return "inkscape"
}

// UseShell reports whether the interactive shell strategy is enabled.
// It defaults to true.
func (c *Config) UseShell() bool {
	return c.ShellMode == nil || *c.ShellMode
}

// Timeout returns the configured per-command timeout or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, runner.DefaultTimeout)
}

// KillGrace returns the configured SIGTERM to SIGKILL delay or the default.
func (c *Config) KillGrace() time.Duration {
	return parseDuration(c.RawKillGrace, runner.DefaultKillGrace)
}

// ProcessCount returns the configured parallelism, or the number of CPUs.
func (c *Config) ProcessCount() int {
	if c.Processes > 0 {
		return c.Processes
	}
	return runtime.NumCPU()
}

// OutputDir returns the configured output directory or the default.
func (c *Config) OutputDir() string {
	if c.OutputDirectory != "" {
		return c.OutputDirectory
	}
	return DefaultOutputDirectory
}

// Validate checks values that cannot be defaulted and compiles the
// failure pattern.
func (c *Config) Validate() error {
	if c.Processes < 0 {
		return fmt.Errorf("processes must be at least 1, got %d", c.Processes)
	}
	for name, raw := range map[string]string{"timeout": c.RawTimeout, "kill_grace": c.RawKillGrace} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", name, raw)
		}
	}
	c.failurePattern = nil
	if c.FailurePattern != "" {
		re, err := regexp.Compile(c.FailurePattern)
		if err != nil {
			return fmt.Errorf("failure_pattern: %w", err)
		}
		c.failurePattern = re
	}
	return nil
}

// Runner builds the runner configuration. override is the executable
// given on the command line, if any.
func (c *Config) Runner(override string, logger *slog.Logger, m *metrics.Metrics) runner.Config {
	return runner.Config{
		ShellMode:      c.UseShell(),
		Executable:     c.Executable(override),
		ShellArgs:      c.ShellArgs,
		Timeout:        c.Timeout(),
		KillGrace:      c.KillGrace(),
		Prompt:         c.ShellPrompt,
		FailurePattern: c.failurePattern,
		Logger:         logger,
		Metrics:        m,
	}
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load reads the nearest .barnhunt file, walking upward from dir. If there
// is none, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// find walks upward from dir looking for a configuration file.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
