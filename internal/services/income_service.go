package services

import (
	"context"
	"fmt"
	"log/slog"

	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/log"
	"finplan/internal/records"
)

// IncomeService maintains income records and their monthly extras.
type IncomeService struct {
	store *records.Store
	bus   *events.Bus
	ids   *core.IDGenerator
}

func NewIncomeService(store *records.Store, bus *events.Bus, ids *core.IDGenerator) *IncomeService {
	if ids == nil {
		ids = core.NewIDGenerator(nil)
	}
	return &IncomeService{store: store, bus: bus, ids: ids}
}

func (s *IncomeService) List(ctx context.Context) ([]core.Income, error) {
	return s.store.LoadIncome(ctx)
}

// Save upserts in by id, minting ids for the income and its sources when unset.
func (s *IncomeService) Save(ctx context.Context, in core.Income) (core.Income, error) {
	if in.ID == 0 {
		in.ID = s.ids.Next()
	}
	for i := range in.Sources {
		if in.Sources[i].ID == 0 {
			in.Sources[i].ID = s.ids.Next()
		}
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	err := s.update(ctx, func(list []core.Income) ([]core.Income, error) {
		for i := range list {
			if list[i].ID == in.ID {
				list[i] = in
				return list, nil
			}
		}
		return append(list, in), nil
	})
	if err != nil {
		return core.Income{}, err
	}
	slog.InfoContext(ctx, "Income saved", log.FieldIncomeID, in.ID, "sources", len(in.Sources))
	return in, nil
}

// Delete removes the income id. Removing an unknown id is not an error.
func (s *IncomeService) Delete(ctx context.Context, id int64) error {
	return s.update(ctx, func(list []core.Income) ([]core.Income, error) {
		kept := list[:0]
		for _, in := range list {
			if in.ID != id {
				kept = append(kept, in)
			}
		}
		return kept, nil
	})
}

// AddExtra adds x to the extras of month m, creating the month entry when
// the income has none yet.
func (s *IncomeService) AddExtra(ctx context.Context, incomeID int64, m core.Month, x core.Extra) (core.Income, error) {
	if err := m.Validate(); err != nil {
		return core.Income{}, err
	}
	if x.Amount < 0 {
		return core.Income{}, core.ErrInvalidAmount
	}
	if x.ID == 0 {
		x.ID = s.ids.Next()
	}

	var saved core.Income
	err := s.withIncome(ctx, incomeID, func(in *core.Income) {
		for i := range in.MonthlyExtras {
			e := &in.MonthlyExtras[i]
			if e.Month == m.Month && e.Year == m.Year {
				e.Extras = append(e.Extras, x)
				saved = *in
				return
			}
		}
		in.MonthlyExtras = append(in.MonthlyExtras, core.MonthlyExtras{
			Month:  m.Month,
			Year:   m.Year,
			Extras: []core.Extra{x},
		})
		saved = *in
	})
	if err != nil {
		return core.Income{}, err
	}
	slog.InfoContext(ctx, "Income extra added", log.FieldIncomeID, incomeID, log.FieldMonthKey, m.Key(), log.FieldAmount, x.Amount)
	return saved, nil
}

// RemoveExtra removes the extra extraID from month m. A month entry left
// without extras is dropped.
func (s *IncomeService) RemoveExtra(ctx context.Context, incomeID int64, m core.Month, extraID int64) (core.Income, error) {
	var saved core.Income
	err := s.withIncome(ctx, incomeID, func(in *core.Income) {
		entries := in.MonthlyExtras[:0]
		for _, e := range in.MonthlyExtras {
			if e.Month == m.Month && e.Year == m.Year {
				extras := make([]core.Extra, 0, len(e.Extras))
				for _, x := range e.Extras {
					if x.ID != extraID {
						extras = append(extras, x)
					}
				}
				if len(extras) == 0 {
					continue
				}
				e.Extras = extras
			}
			entries = append(entries, e)
		}
		in.MonthlyExtras = entries
		saved = *in
	})
	if err != nil {
		return core.Income{}, err
	}
	return saved, nil
}

func (s *IncomeService) withIncome(ctx context.Context, id int64, fn func(in *core.Income)) error {
	return s.update(ctx, func(list []core.Income) ([]core.Income, error) {
		for i := range list {
			if list[i].ID == id {
				fn(&list[i])
				return list, nil
			}
		}
		return nil, fmt.Errorf("income %d: %w", id, records.ErrNotFound)
	})
}

// update runs a read-modify-write of the income collection and publishes
// INCOME_UPDATED once it is saved.
func (s *IncomeService) update(ctx context.Context, fn func([]core.Income) ([]core.Income, error)) error {
	list, err := s.store.LoadIncome(ctx)
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	if err := s.store.SaveIncome(ctx, list); err != nil {
		log.FromContext(ctx, log.ComponentIncome).LogError(ctx, "Failed to save income", err, log.OpUpdate, nil)
		return err
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{Type: events.IncomeUpdated})
	}
	return nil
}
