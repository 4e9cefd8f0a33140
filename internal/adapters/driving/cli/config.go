package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driven/config/file"
	"github.com/custodia-labs/folio/internal/core/domain"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
	Long:  `Create or display the folio settings file (TOML or YAML).`,
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a settings file with the default values",
	Long: `Writes the default settings to path (default: folio.toml). The format is
chosen by extension: .toml, .yaml or .yml. API keys are never written; set
OPENAI_API_KEY or ANTHROPIC_API_KEY in the environment or a .env file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := file.DefaultFileNames[0]
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := file.SaveSettings(path, domain.DefaultSettings()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	s := settings

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Corpus]")
	cmd.Printf("  Directory: %s\n", s.Corpus.Dir)
	cmd.Println()

	cmd.Println("[Ingestion]")
	cmd.Printf("  Mode: %s, workers: %d, text log: %t\n", s.Ingest.Mode, s.Ingest.Workers, s.Ingest.TextLog)
	cmd.Printf("  Chunks: %d chars, %d overlap\n", s.Chunking.MaxChars, s.Chunking.OverlapChars)
	cmd.Printf("  Tables: %t, images: %t (min %dx%d)\n",
		s.Tables.Enabled, s.Images.Enabled, s.Images.MinWidth, s.Images.MinHeight)
	cmd.Printf("  Summarization: %d workers, %.1f req/s, %s timeout\n",
		s.Summarization.Workers, s.Summarization.RequestsPerSecond, s.Summarization.Timeout())
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Decompose above: %d words\n", s.Router.DecomposeThreshold)
	cmd.Printf("  Results: %d direct, %d per sub-query, at most %d sub-queries\n",
		s.Router.DirectK, s.Router.SubQueryK, s.Router.MaxSubQueries)
	cmd.Printf("  Evidence for answers: %d\n", s.Answer.MaxEvidence)
	cmd.Println()

	printProvider(cmd, "Embedding", s.Embedding.Provider, s.Embedding.Model, s.Embedding.BaseURL,
		s.Embedding.APIKey, s.Embedding.IsConfigured())
	cmd.Printf("  Cache: %s\n", s.Embedding.Cache.Backend)
	cmd.Println()
	printProvider(cmd, "LLM", s.LLM.Provider, s.LLM.Model, s.LLM.BaseURL, s.LLM.APIKey, s.LLM.IsConfigured())
	cmd.Println()
	printProvider(cmd, "Vision", s.Vision.Provider, s.Vision.Model, s.Vision.BaseURL, s.Vision.APIKey,
		s.Vision.IsConfigured())
	return nil
}

func printProvider(cmd *cobra.Command, name string, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("[%s]\n", name)
	if !configured {
		cmd.Println("  Status: not configured")
		return
	}
	cmd.Printf("  Provider: %s\n", provider.Description())
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if provider.IsLocal() && baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
	}
	cmd.Println("  Status: configured")
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
