// Package cli provides the folio command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driven/config/file"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/logger"
)

var (
	configPath  string
	corpusDir   string
	metricsAddr string
	verbose     bool
)

// settings is loaded once per invocation by the root command.
var settings = domain.DefaultSettings()

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Ask questions about a folder of PDF documents",
	Long: `Folio extracts text, tables and images from PDF documents, indexes them,
and answers natural-language questions with the chunks it retrieves.

Build a corpus with 'folio ingest <dir>', then ask with 'folio query'.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"settings file (default: folio.toml, folio.yaml or folio.yml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&corpusDir, "corpus", "", "corpus directory (overrides corpus.dir)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address for long-running commands, e.g. :9090")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

// loadSettings builds the settings for this invocation: file, environment,
// then command line flags.
func loadSettings(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = file.FindSettingsFile(".")
	}

	s, err := file.LoadSettings(path)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if corpusDir != "" {
		s.Corpus.Dir = corpusDir
	}
	if metricsAddr != "" {
		s.Metrics.Addr = metricsAddr
	}

	logger.SetVerbose(verbose || s.Logging.Verbose)
	if err := logger.SetFile(s.Logging.File); err != nil {
		return err
	}
	if path != "" {
		logger.Debug("Settings: %s", path)
	}

	settings = s
	return nil
}
