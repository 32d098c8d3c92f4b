// Package cmd implements the CLI commands for folioscan using Cobra.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/config"
)

// Global flag variables.
var (
	flagConfig    string
	flagEnvFile   string
	flagVerbose   bool
	flagLogFormat string
	flagWorkDir   string
	flagOutputDir string
)

var rootCmd = &cobra.Command{
	Use:   "folioscan",
	Short: "folioscan turns paginated document viewers into searchable PDFs",
	Long: `folioscan downloads the page images of a document you can open in a
paginated web viewer, using your browser session, and compiles them into a
single PDF with an optional invisible text layer.

Usage:
  folioscan init                       write a session file to fill in
  folioscan check                      verify the session cookies
  folioscan convert --url <viewer url> acquire pages and compile a PDF`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd.ErrOrStderr()); err != nil {
			return err
		}
		return config.LoadEnvFile(flagEnvFile)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Session file (default: ./"+config.DefaultFile+" when present)")
	pf.StringVar(&flagEnvFile, "env_file", ".env", "Environment file loaded before the config")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagLogFormat, "log_format", "text", "Log format: text or json")
	pf.StringVar(&flagWorkDir, "work_dir", "", "Directory holding acquired pages (default: "+config.DefaultWorkDir+")")
	pf.StringVar(&flagOutputDir, "output_dir", "", "Directory for compiled PDFs (default: "+config.DefaultOutputDir+")")
}

func setupLogging(w io.Writer) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(flagLogFormat) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown --log_format %q (want text or json)", flagLogFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the session file and applies any flags the user set on
// cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	if flagWorkDir != "" {
		cfg.WorkDir = flagWorkDir
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	applyDocumentFlags(cmd, cfg)
	applyCompileFlags(cmd, cfg)
	return cfg, nil
}
