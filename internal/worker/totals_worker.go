// Package worker keeps per-user category totals up to date from change events.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/remote"
	"expenses/internal/store"
)

// Summary is the last computed view of one user's expenses.
type Summary struct {
	UserID    string
	Count     int
	Total     decimal.Decimal
	Totals    []core.CategoryAmount
	UpdatedAt time.Time
}

// TotalsWorker recomputes a user's totals whenever one of their documents
// changes. It reads the collection back rather than trusting event payloads,
// so a redelivered or reordered event still converges on the stored state.
type TotalsWorker struct {
	docs       remote.Collection
	collection string
	logger     *log.Logger
	now        func() time.Time

	mu        sync.Mutex
	summaries map[string]Summary
}

func NewTotalsWorker(docs remote.Collection, collection string, logger *log.Logger) *TotalsWorker {
	return &TotalsWorker{
		docs:       docs,
		collection: collection,
		logger:     log.OrDiscard(logger).WithComponent(log.ComponentWorker),
		now:        time.Now,
		summaries:  map[string]Summary{},
	}
}

// HandleChange is an amqp.Handler.
func (w *TotalsWorker) HandleChange(ctx context.Context, e *amqp.ChangeEvent) error {
	if e.Collection != w.collection {
		w.logger.Debug("Ignoring change in another collection", log.FieldCollection, e.Collection)
		return nil
	}
	if e.UserID == "" {
		w.logger.Warn("Change event without owner", log.FieldExpenseID, e.ID, "type", e.Type)
		return nil
	}
	_, err := w.Refresh(ctx, e.UserID)
	return err
}

// Refresh recomputes and stores the summary of userID.
func (w *TotalsWorker) Refresh(ctx context.Context, userID string) (Summary, error) {
	q := remote.Query{}.Where(core.FieldUserID, remote.OpEqual, userID)
	snaps, err := w.docs.Query(ctx, w.collection, q)
	if err != nil {
		return Summary{}, fmt.Errorf("query expenses of %s: %w", userID, err)
	}
	items := store.ExpensesFromSnapshots(snaps)

	s := Summary{
		UserID:    userID,
		Count:     len(items),
		Total:     core.Sum(items),
		Totals:    core.Totals(items),
		UpdatedAt: w.now(),
	}

	w.mu.Lock()
	if s.Count == 0 {
		delete(w.summaries, userID)
	} else {
		w.summaries[userID] = s
	}
	w.mu.Unlock()

	w.logger.Info("Category totals updated", summaryFields(s)...)
	return s, nil
}

func (w *TotalsWorker) Summary(userID string) (Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.summaries[userID]
	return s, ok
}

// Summaries returns every known summary ordered by user id.
func (w *TotalsWorker) Summaries() []Summary {
	w.mu.Lock()
	out := make([]Summary, 0, len(w.summaries))
	for _, s := range w.summaries {
		out = append(out, s)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Run logs every summary each interval until ctx is done.
func (w *TotalsWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summaries := w.Summaries()
			w.logger.Info("Totals report", log.FieldCount, len(summaries))
			for _, s := range summaries {
				w.logger.Info("User totals", summaryFields(s)...)
			}
		}
	}
}

func summaryFields(s Summary) []any {
	fields := []any{
		log.FieldUserID, s.UserID,
		log.FieldCount, s.Count,
		"total", s.Total.StringFixed(2),
	}
	for _, t := range s.Totals {
		fields = append(fields, string(t.Category), t.Amount.StringFixed(2))
	}
	return fields
}
