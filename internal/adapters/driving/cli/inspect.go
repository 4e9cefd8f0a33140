package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectDegraded bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show corpus statistics",
	Long: `Prints the embedding model, record counts per chunk type and per source,
and the health of the corpus. With --degraded, lists the ids of image chunks
whose summaries failed and are therefore not searchable.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectDegraded, "degraded", false, "list degraded chunk ids")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context(), settings, openLoad)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // read-only

	stats, err := rt.Corpus.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("inspect failed: %w", err)
	}

	if inspectDegraded {
		renderIDs(cmd.OutOrStdout(), stats.Degraded)
		return nil
	}

	renderStats(cmd.OutOrStdout(), stats)
	return nil
}
