package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/core/domain"
)

var (
	searchLimit int
	searchTypes []string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Rank chunks by similarity without answering",
	Long: `Searches the vector index directly and prints the matching chunks with
their similarity scores. No sub-questions are generated and no LLM is called,
which makes this useful for checking what retrieval returns for a text.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", domain.DefaultDirectK, "maximum number of results")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "restrict to chunk types: text, table, image")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 1 {
		return fmt.Errorf("%w: --limit must be at least 1", domain.ErrInvalidInput)
	}

	var filter domain.TypeFilter
	for _, name := range searchTypes {
		t, err := domain.ParseChunkType(name)
		if err != nil {
			return err
		}
		filter = append(filter, t)
	}

	rt, err := bootstrap(cmd.Context(), settings, openLoad)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // read-only

	results, err := rt.Query.Search(cmd.Context(), args[0], searchLimit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(evidenceJSON(results), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	renderEvidence(cmd.OutOrStdout(), results)
	return nil
}
