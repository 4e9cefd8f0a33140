package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the corpus",
	Long: `Answers a natural-language question from the ingested documents.

Short questions are answered with a single retrieval. Longer questions are
split into sub-questions by the LLM, and the evidence of every sub-question
is combined before the answer is written. Without an LLM the retrieved
evidence is printed instead of an answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	rt, err := bootstrap(cmd.Context(), settings, openLoad)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // read-only

	answer, err := rt.Query.Ask(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(answerJSON(answer), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	renderAnswer(cmd.OutOrStdout(), answer)
	return nil
}
