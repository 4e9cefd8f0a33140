package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driven/ai"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// configValidator pings providers. Tests replace it to avoid network calls.
var configValidator driven.AIConfigValidator = ai.NewConfigValidator()

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check settings and model provider connectivity",
	Long: `Validates the loaded settings and pings the configured embedding, LLM and
vision providers. The embedding provider is required; without an LLM
questions are answered with evidence only, and without a vision model image
chunks are stored but not searchable.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cmd.Println(titleStyle.Render("Folio configuration"))
	cmd.Printf("  Corpus: %s\n\n", settings.Corpus.Dir)

	embeddingOK := checkProvider(cmd, "Embedding", settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.IsConfigured(), func() error { return configValidator.ValidateEmbedding(&settings.Embedding) })
	checkProvider(cmd, "LLM", settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.IsConfigured(), func() error { return configValidator.ValidateLLM(&settings.LLM) })
	checkProvider(cmd, "Vision", settings.Vision.Provider, settings.Vision.Model,
		settings.Vision.IsConfigured(), func() error { return configValidator.ValidateVision(&settings.Vision) })

	cmd.Println()
	if !embeddingOK {
		cmd.Println("Run 'folio config init' to create a settings file.")
		return errors.New("embedding provider is not usable")
	}
	cmd.Println(successStyle.Render("Ready."))
	return nil
}

// checkProvider prints the status of one provider and returns whether it is usable.
func checkProvider(
	cmd *cobra.Command,
	name string,
	provider domain.AIProvider,
	model string,
	configured bool,
	validate func() error,
) bool {
	cmd.Printf("[%s]\n", name)
	if !configured {
		cmd.Printf("  Status: %s\n", warningStyle.Render("not configured"))
		return false
	}

	cmd.Printf("  Provider: %s\n", provider.Description())
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if err := validate(); err != nil {
		cmd.Printf("  Status: %s\n", errorStyle.Render("FAILED: "+err.Error()))
		return false
	}
	cmd.Printf("  Status: %s\n", successStyle.Render("OK"))
	return true
}
