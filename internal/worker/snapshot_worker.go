package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finplan/internal/amqp"
	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/log"
)

// Snapshotter recomputes and persists a monthly aggregate.
type Snapshotter interface {
	Snapshot(ctx context.Context, m core.Month) (core.MonthlyAggregate, error)
}

// SnapshotWorker keeps the persisted monthly snapshots in step with change
// messages. Expense changes refresh their month right away; income changes
// affect every month, so they mark the months seen so far for the next
// periodic pass, which also refreshes the current month in case a message
// was lost.
type SnapshotWorker struct {
	summary Snapshotter
	bus     *events.Bus
	now     func() time.Time

	mu    sync.Mutex
	known map[core.Month]struct{}
	dirty map[core.Month]struct{}
}

// NewSnapshotWorker returns a worker writing snapshots through summary.
// Handled messages are also republished on bus, when not nil, so local
// caches are invalidated before the snapshot is computed.
func NewSnapshotWorker(summary Snapshotter, bus *events.Bus, now func() time.Time) *SnapshotWorker {
	if now == nil {
		now = time.Now
	}
	return &SnapshotWorker{
		summary: summary,
		bus:     bus,
		now:     now,
		known:   make(map[core.Month]struct{}),
		dirty:   make(map[core.Month]struct{}),
	}
}

// HandleChange processes one change message from AMQP.
func (w *SnapshotWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	e := msg.Event()
	slog.DebugContext(ctx, "Processing change message",
		"message_id", msg.ID, log.FieldEventType, e.Type)

	if w.bus != nil {
		w.bus.Publish(ctx, e)
	}

	switch {
	case e.Type == events.ExpenseUpdated && !e.AllMonths():
		m := core.Month{Year: e.Year, Month: e.Month}
		if err := w.snapshot(ctx, m); err != nil {
			return fmt.Errorf("snapshot %s: %w", m, err)
		}
	case e.Type == events.ExpenseUpdated, e.Type == events.IncomeUpdated:
		w.markAllDirty()
	}
	return nil
}

// ProcessPending refreshes the dirty months and the current month. Months
// that fail stay dirty for the next pass.
func (w *SnapshotWorker) ProcessPending(ctx context.Context) error {
	w.mu.Lock()
	pending := make([]core.Month, 0, len(w.dirty)+1)
	for m := range w.dirty {
		pending = append(pending, m)
	}
	w.dirty = make(map[core.Month]struct{})
	w.mu.Unlock()

	current := core.MonthOf(w.now())
	if !containsMonth(pending, current) {
		pending = append(pending, current)
	}

	var failed int
	for _, m := range pending {
		if err := w.snapshot(ctx, m); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh snapshot", log.FieldMonthKey, m.Key(), log.FieldError, err)
			w.mu.Lock()
			w.dirty[m] = struct{}{}
			w.mu.Unlock()
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed", failed, len(pending))
	}
	slog.DebugContext(ctx, "Snapshots refreshed", "count", len(pending))
	return nil
}

// Pending returns the number of months waiting for a refresh.
func (w *SnapshotWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirty)
}

// Run calls ProcessPending every interval until ctx is done.
func (w *SnapshotWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic snapshot refresh failed", log.FieldError, err)
			}
		}
	}
}

func (w *SnapshotWorker) snapshot(ctx context.Context, m core.Month) error {
	agg, err := w.summary.Snapshot(ctx, m)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.known[m] = struct{}{}
	w.mu.Unlock()

	slog.InfoContext(ctx, "Snapshot refreshed",
		log.FieldMonthKey, m.Key(),
		"total_income", core.FormatAmount(agg.TotalIncome),
		"total_expenses", core.FormatAmount(agg.TotalExpenses))
	return nil
}

func (w *SnapshotWorker) markAllDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for m := range w.known {
		w.dirty[m] = struct{}{}
	}
}

func containsMonth(list []core.Month, m core.Month) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}
