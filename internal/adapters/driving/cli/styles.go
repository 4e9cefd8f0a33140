package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/folio/internal/adapters/driven/corpus"
	"github.com/custodia-labs/folio/internal/core/domain"
)

// Colour palette.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourAccent  = lipgloss.Color("#06B6D4") // Cyan
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess = lipgloss.Color("#A6E3A1") // Green
	colourWarning = lipgloss.Color("#F9E2AF") // Yellow
	colourError   = lipgloss.Color("#F38BA8") // Red
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colourAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	answerStyle  = lipgloss.NewStyle().
			PaddingLeft(1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colourPrimary)
)

// snippetLen is the number of characters of chunk content shown per result.
const snippetLen = 160

// renderAnswer writes an answer followed by the evidence it used.
func renderAnswer(w io.Writer, a *domain.Answer) {
	if a.Text != "" {
		fmt.Fprintln(w, answerStyle.Render(a.Text))
	} else {
		fmt.Fprintln(w, warningStyle.Render("No LLM configured; showing retrieved evidence only."))
	}
	fmt.Fprintln(w)

	strategy := a.Strategy.Description()
	if len(a.SubQueries) > 0 {
		strategy += ": " + strings.Join(a.SubQueries, " | ")
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s, %s", strategy, a.Elapsed.Round(time.Millisecond))))

	if a.Partial != nil {
		fmt.Fprintln(w, warningStyle.Render("Warning: "+a.Partial.Error()))
	}
	fmt.Fprintln(w)

	renderEvidence(w, a.Evidence)
}

// renderEvidence writes one entry per evidence item.
func renderEvidence(w io.Writer, evidence domain.EvidenceSet) {
	if len(evidence) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintln(w, headingStyle.Render("Evidence"))
	for i, e := range evidence {
		fmt.Fprintf(w, "  [%d] %s %s\n", i+1, e.ChunkID, mutedStyle.Render(fmt.Sprintf("(%.2f)", e.Score)))
		if !e.Resolved() {
			fmt.Fprintln(w, "      "+warningStyle.Render("content unavailable"))
			continue
		}
		fmt.Fprintf(w, "      %s, page %d, %s\n", e.Chunk.Source, e.Chunk.PageNumber, e.Chunk.Type)
		fmt.Fprintf(w, "      %s\n", snippet(e.ContextText()))
	}
}

// renderReport writes the outcome of an ingestion run.
func renderReport(w io.Writer, r *domain.IngestReport) {
	fmt.Fprintln(w, titleStyle.Render("Ingestion complete"))
	fmt.Fprintf(w, "  Run:       %s (%s)\n", r.RunID, r.Mode)
	fmt.Fprintf(w, "  Documents: %d ok, %d failed\n", r.Documents, len(r.Failed))
	fmt.Fprintf(w, "  Pages:     %d\n", r.Pages)
	fmt.Fprintf(w, "  Chunks:    %d text, %d table, %d image\n",
		r.Chunks[domain.ChunkTypeText], r.Chunks[domain.ChunkTypeTable], r.Chunks[domain.ChunkTypeImage])
	fmt.Fprintf(w, "  Indexed:   %d\n", r.Indexed)
	if r.ExtractionFailures > 0 {
		fmt.Fprintln(w, "  "+warningStyle.Render(fmt.Sprintf("Skipped:   %d pages, tables or images failed to extract", r.ExtractionFailures)))
	}
	if len(r.Degraded) > 0 {
		fmt.Fprintln(w, "  "+warningStyle.Render(fmt.Sprintf("Degraded:  %d image summaries failed", len(r.Degraded))))
	}
	for _, f := range r.Failed {
		fmt.Fprintln(w, "  "+errorStyle.Render(fmt.Sprintf("Failed:    %s: %s", f.Path, f.Err)))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  Elapsed:   %s", r.Elapsed.Round(time.Millisecond))))
}

// renderStats writes corpus statistics.
func renderStats(w io.Writer, s *corpus.Stats) {
	fmt.Fprintln(w, titleStyle.Render("Corpus"))
	fmt.Fprintf(w, "  Id:         %s\n", s.Manifest.CorpusID)
	fmt.Fprintf(w, "  Model:      %s (%d dimensions)\n", s.Manifest.EmbeddingModel, s.Manifest.Dimensions)
	if !s.Manifest.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Created:    %s\n", s.Manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if s.Manifest.RunID != "" {
		fmt.Fprintf(w, "  Last run:   %s\n", s.Manifest.RunID)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headingStyle.Render("Index records"))
	for _, t := range []domain.ChunkType{domain.ChunkTypeText, domain.ChunkTypeTable, domain.ChunkTypeImage} {
		fmt.Fprintf(w, "  %-8s %d indexed, %d stored\n", t, s.PerType[t], s.Stored[t])
	}
	fmt.Fprintf(w, "  %-8s %d\n", "total", s.Records)
	fmt.Fprintln(w)

	fmt.Fprintln(w, headingStyle.Render("Sources"))
	if len(s.PerSource) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, name := range s.Sources() {
		fmt.Fprintf(w, "  %-24s %d\n", name, s.PerSource[name])
	}
	fmt.Fprintln(w)

	status := successStyle.Render("healthy")
	if len(s.Degraded) > 0 || len(s.Missing) > 0 {
		status = warningStyle.Render(fmt.Sprintf("%d degraded summaries, %d records without content",
			len(s.Degraded), len(s.Missing)))
	}
	fmt.Fprintf(w, "Status: %s\n", status)
}

// renderIDs writes ids one per line, sorted.
func renderIDs(w io.Writer, ids []string) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		fmt.Fprintln(w, id)
	}
}

// snippet collapses whitespace and shortens s for one-line display.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
