package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finplan/internal/cache"
	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/log"
	"finplan/internal/records"
)

// SummaryService computes monthly aggregates from the stored records and
// caches them until a change event invalidates them.
type SummaryService struct {
	store        *records.Store
	person       string
	cache        *cache.LRU[core.Month, core.MonthlyAggregate]
	unsubscribes []func()

	// gen counts invalidations. An aggregate computed under an older
	// generation is returned but never cached.
	mu  sync.Mutex
	gen uint64
}

// NewSummaryService reports person's own income as the personal income of
// each month. With a non-nil bus the cache follows expense and income changes.
func NewSummaryService(store *records.Store, bus *events.Bus, person string, c *cache.LRU[core.Month, core.MonthlyAggregate]) *SummaryService {
	if person == "" {
		person = core.DefaultPerson
	}
	if c == nil {
		c = cache.NewLRU[core.Month, core.MonthlyAggregate](64, 5*time.Minute)
	}
	s := &SummaryService{store: store, person: person, cache: c}
	if bus != nil {
		s.unsubscribes = append(s.unsubscribes,
			bus.Subscribe(events.ExpenseUpdated, s.onExpenseUpdated),
			// Incomes are global, every cached month depends on them.
			bus.Subscribe(events.IncomeUpdated, func(events.Event) { s.purge() }),
		)
	}
	return s
}

func (s *SummaryService) onExpenseUpdated(e events.Event) {
	if e.AllMonths() {
		s.purge()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Invalidate(core.Month{Year: e.Year, Month: e.Month})
}

func (s *SummaryService) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Purge()
}

func (s *SummaryService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// cacheIfCurrent caches agg unless an invalidation happened since gen was read.
func (s *SummaryService) cacheIfCurrent(m core.Month, agg core.MonthlyAggregate, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Set(m, agg)
	}
}

// Cache exposes the aggregate cache, e.g. for periodic cleanup.
func (s *SummaryService) Cache() *cache.LRU[core.Month, core.MonthlyAggregate] {
	return s.cache
}

// Month returns the aggregate of month m.
func (s *SummaryService) Month(ctx context.Context, m core.Month) (core.MonthlyAggregate, error) {
	if err := m.Validate(); err != nil {
		return core.MonthlyAggregate{}, err
	}
	if agg, ok := s.cache.Get(m); ok {
		return agg, nil
	}

	gen := s.generation()
	agg, err := s.compute(ctx, m)
	if err != nil {
		return core.MonthlyAggregate{}, err
	}
	s.cacheIfCurrent(m, agg, gen)
	return agg, nil
}

func (s *SummaryService) compute(ctx context.Context, m core.Month) (core.MonthlyAggregate, error) {
	incomes, err := s.store.LoadIncome(ctx)
	if err != nil {
		return core.MonthlyAggregate{}, fmt.Errorf("summary %s: %w", m, err)
	}
	expenses, err := s.store.LoadExpenses(ctx, m)
	if err != nil {
		return core.MonthlyAggregate{}, fmt.Errorf("summary %s: %w", m, err)
	}
	return core.Summarize(m, s.person, incomes, expenses), nil
}

// Year returns the twelve monthly aggregates of year, January first. Months
// are computed concurrently; the first failure cancels the rest.
func (s *SummaryService) Year(ctx context.Context, year int) ([]core.MonthlyAggregate, error) {
	out := make([]core.MonthlyAggregate, 12)
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		m := core.Month{Year: year, Month: i}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			agg, err := s.Month(gctx, m)
			if err != nil {
				return err
			}
			out[m.Month] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot recomputes month m and persists the aggregate under its monthly
// data key. The snapshot is informational; Month never reads it.
func (s *SummaryService) Snapshot(ctx context.Context, m core.Month) (core.MonthlyAggregate, error) {
	if err := m.Validate(); err != nil {
		return core.MonthlyAggregate{}, err
	}
	gen := s.generation()
	agg, err := s.compute(ctx, m)
	if err != nil {
		return core.MonthlyAggregate{}, err
	}
	s.cacheIfCurrent(m, agg, gen)
	if err := s.store.SaveSnapshot(ctx, agg); err != nil {
		log.FromContext(ctx, log.ComponentSummary).LogError(ctx, "Failed to save snapshot", err, log.OpSnapshot,
			log.NewFields().WithMonth(m.Key()))
		return core.MonthlyAggregate{}, err
	}
	slog.DebugContext(ctx, "Monthly snapshot saved", log.FieldMonthKey, m.Key(), "savings", core.FormatAmount(agg.Savings))
	return agg, nil
}

// Close detaches the service from the event bus.
func (s *SummaryService) Close() {
	for _, fn := range s.unsubscribes {
		fn()
	}
	s.unsubscribes = nil
}
