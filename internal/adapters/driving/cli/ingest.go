package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driving/watch"
	"github.com/custodia-labs/folio/internal/core/domain"
)

var (
	ingestAppend bool
	ingestWatch  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Build the corpus from a directory of documents",
	Long: `Extracts text, tables and images from every PDF (and .txt) file in the
directory, summarises images with the vision model, embeds every chunk and
saves the corpus.

By default the corpus is rebuilt from scratch. Use --append to add to an
existing corpus, replacing chunks that share an id.

With --watch the directory is watched after the initial run and changed
documents are re-ingested until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestAppend, "append", "a", false, "add to the existing corpus instead of rebuilding it")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the directory for changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mode := openRebuild
	if ingestAppend || settings.Ingest.Mode == domain.IngestModeAppend {
		mode = openAppend
	}

	rt, err := bootstrap(ctx, settings, mode)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // best effort on exit

	cmd.Printf("Ingesting %s into %s...\n", dir, settings.Corpus.Dir)
	report, err := rt.Ingest.Ingest(ctx, dir)
	if report != nil {
		renderReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if !ingestWatch {
		return nil
	}
	return watchDir(ctx, cmd, rt, dir)
}

// watchDir re-ingests changes under dir until ctx is cancelled.
func watchDir(ctx context.Context, cmd *cobra.Command, rt *runtime, dir string) error {
	if rt.Connector == nil {
		return errors.New("watch requires a connector")
	}
	serveMetrics(ctx, rt, settings.Metrics.Addr)

	w := watch.New(rt.Connector, rt.Ingest, watch.WithReportHandler(func(r *domain.IngestReport) {
		renderReport(cmd.OutOrStdout(), r)
	}))

	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	return w.Run(ctx, dir)
}
