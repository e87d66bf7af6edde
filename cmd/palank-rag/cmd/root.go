// Package cmd provides the CLI commands for palank-rag.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/PALAN-K/palank-rag/internal/config"
	"github.com/PALAN-K/palank-rag/internal/logging"
	"github.com/PALAN-K/palank-rag/pkg/version"
)

// Persistent flags shared by every command.
var (
	flagDataDir string
	flagNoColor bool
	flagDebug   bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the palank-rag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "palank-rag",
		Short: "Hybrid retrieval knowledge base",
		Long: `palank-rag maintains a local knowledge base of web pages and files,
searchable through fused keyword (BM25) and vector (semantic) retrieval.

Documents are chunked, embedded via the Gemini API, and indexed twice:
full-text for exact terms, vectors for meaning. Queries merge both
rankings with Reciprocal Rank Fusion.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("palank-rag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.palank-rag)")
	cmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes slog to a rotating file under the data directory.
// Failures fall back to the default stderr handler rather than blocking
// the command.
func setupLogging(_ *cobra.Command, _ []string) error {
	dataDir := flagDataDir
	if dataDir == "" {
		if v := os.Getenv("PALANK_DATA_DIR"); v != "" {
			dataDir = v
		} else {
			dataDir = config.DefaultDataDir()
		}
	}

	logCfg := logging.DefaultConfig(dataDir)
	if flagDebug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		slog.Warn("file_logging_unavailable", slog.String("error", err.Error()))
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	slog.Debug("cli_started",
		slog.String("version", version.Version),
		slog.String("data_dir", dataDir))
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
