// Package watch keeps a corpus in step with its source directory.
package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/core/ports/driving"
	"github.com/custodia-labs/folio/internal/logger"
)

// DefaultDebounce is the quiet period before pending changes are applied.
const DefaultDebounce = 2 * time.Second

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Values below one millisecond are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= time.Millisecond {
			w.debounce = d
		}
	}
}

// WithReportHandler is called after every applied batch of changes.
func WithReportHandler(fn func(*domain.IngestReport)) Option {
	return func(w *Watcher) {
		w.onReport = fn
	}
}

// Watcher re-ingests changed documents and removes deleted ones.
// Bursts of events are coalesced: a file saved three times in a row is
// ingested once, after the directory has been quiet for the debounce period.
type Watcher struct {
	connector driven.Connector
	ingest    driving.IngestService
	debounce  time.Duration
	onReport  func(*domain.IngestReport)

	mu      sync.Mutex
	pending map[string]domain.ChangeType
}

// New creates a watcher.
func New(connector driven.Connector, ingest driving.IngestService, opts ...Option) *Watcher {
	w := &Watcher{
		connector: connector,
		ingest:    ingest,
		debounce:  DefaultDebounce,
		pending:   make(map[string]domain.ChangeType),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled, applying changes under dir.
// Changes still pending at cancellation are discarded.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	changes, err := w.connector.Watch(ctx, dir)
	if err != nil {
		return err
	}
	logger.Info("Watching %s", dir)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			w.add(change)
			timer.Reset(w.debounce)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// add records a change. A later event for the same path replaces the earlier one.
func (w *Watcher) add(change domain.DocumentChange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	logger.Debug("Change: %s %s", change.Type, change.Path)
	w.pending[change.Path] = change.Type
}

// take returns and clears the pending changes, split into upserts and removals.
func (w *Watcher) take() (upserts, removals []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t == domain.ChangeDeleted {
			removals = append(removals, path)
		} else {
			upserts = append(upserts, path)
		}
	}
	w.pending = make(map[string]domain.ChangeType)
	sort.Strings(upserts)
	sort.Strings(removals)
	return upserts, removals
}

// flush applies pending changes. Failures are logged; watching continues.
func (w *Watcher) flush(ctx context.Context) {
	upserts, removals := w.take()

	if len(removals) > 0 {
		if err := w.ingest.Remove(ctx, removals); err != nil {
			logger.Error("Remove %d documents: %v", len(removals), err)
		}
	}

	if len(upserts) == 0 {
		return
	}
	report, err := w.ingest.IngestFiles(ctx, upserts)
	if err != nil {
		logger.Error("Re-ingest %d documents: %v", len(upserts), err)
		return
	}
	if w.onReport != nil {
		w.onReport(report)
	}
}
