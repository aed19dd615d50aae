// Package cmd provides the CLI commands for DocAssist.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docassist/docassist/internal/config"
	"github.com/docassist/docassist/internal/logging"
	"github.com/docassist/docassist/pkg/version"
)

var (
	cfgPath   string
	debugMode bool

	cfg            *config.Config
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docassist CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docassist",
		Short: "Question answering over a local PDF document collection",
		Long: `DocAssist indexes the PDF documents in a directory and answers
questions about them using a local Ollama model.

Documents are chunked and embedded into a local index. Questions retrieve
the nearest chunks; when nothing relevant is found, DocAssist says so
instead of guessing.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docassist version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default: docassist.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupConfigAndLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupConfigAndLogging loads the effective configuration and installs the
// process-wide logger.
func setupConfigAndLogging(_ *cobra.Command, _ []string) error {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}

	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = loaded

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	if cfg.Log.File != "" {
		logCfg.FilePath = cfg.Log.File
	}
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the CLI. Interrupts cancel the command context so long
// operations shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
