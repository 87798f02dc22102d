// Package records implements the record store: month-partitioned expense
// lists and the global income and travel collections, JSON-encoded over a
// storage.KV. Records are validated on the way in and on the way out; a
// malformed record is an error, never silently defaulted.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"finplan/internal/core"
	"finplan/internal/log"
	"finplan/internal/storage"
)

const (
	keyExpensesPrefix    = "@expenses_"
	keyMonthlyDataPrefix = "@monthly_data_"
	keyIncome            = "@income"
	keyTravels           = "@travels"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	ErrNotFound      = errors.New("record not found")
)

// Store is the record store. It holds no state besides the KV; concurrent
// read-modify-write sequences on the same key are last-writer-wins.
type Store struct {
	kv  storage.KV
	ids *core.IDGenerator
}

// New returns a store over kv. ids mints the identifiers of imported
// travels; nil uses a wall-clock generator.
func New(kv storage.KV, ids *core.IDGenerator) *Store {
	if ids == nil {
		ids = core.NewIDGenerator(nil)
	}
	return &Store{kv: kv, ids: ids}
}

// ExpensesKey is the KV key holding the expense list of month m.
func ExpensesKey(m core.Month) string {
	return keyExpensesPrefix + m.Key()
}

// SnapshotKey is the KV key holding the persisted aggregate of month m.
func SnapshotKey(m core.Month) string {
	return keyMonthlyDataPrefix + m.Key()
}

func validateAll[T interface{ Validate() error }](kind string, items []T) error {
	var result *multierror.Error
	for i, it := range items {
		if err := it.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s[%d]: %w", kind, i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

func load[T interface{ Validate() error }](ctx context.Context, kv storage.KV, key, kind string) ([]T, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidRecord, kind, err)
	}
	if items == nil {
		items = []T{}
	}
	if err := validateAll(kind, items); err != nil {
		return nil, err
	}
	return items, nil
}

func save[T interface{ Validate() error }](ctx context.Context, kv storage.KV, key, kind string, items []T) error {
	if err := validateAll(kind, items); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	return nil
}

// LoadExpenses returns the expenses recorded in month m; an untouched month
// yields an empty list.
func (s *Store) LoadExpenses(ctx context.Context, m core.Month) ([]core.Expense, error) {
	return load[core.Expense](ctx, s.kv, ExpensesKey(m), "expenses")
}

// SaveExpenses writes the expense list of month m. With appendTo set the list
// is added after the month's existing records instead of replacing them.
func (s *Store) SaveExpenses(ctx context.Context, list []core.Expense, m core.Month, appendTo bool) error {
	if appendTo {
		existing, err := s.LoadExpenses(ctx, m)
		if err != nil {
			return err
		}
		list = append(existing, list...)
	}
	if err := save(ctx, s.kv, ExpensesKey(m), "expenses", list); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Expenses saved", log.FieldMonthKey, m.Key(), "count", len(list), "append", appendTo)
	return nil
}

func (s *Store) LoadIncome(ctx context.Context) ([]core.Income, error) {
	return load[core.Income](ctx, s.kv, keyIncome, "income")
}

func (s *Store) SaveIncome(ctx context.Context, list []core.Income) error {
	return save(ctx, s.kv, keyIncome, "income", list)
}

func (s *Store) LoadTravels(ctx context.Context) ([]core.Travel, error) {
	return load[core.Travel](ctx, s.kv, keyTravels, "travels")
}

// SaveTravels replaces the travel collection. Nil collections are stored as
// empty ones; list itself is left untouched.
func (s *Store) SaveTravels(ctx context.Context, list []core.Travel) error {
	out := make([]core.Travel, len(list))
	for i, t := range list {
		t.Normalize()
		out[i] = t
	}
	return save(ctx, s.kv, keyTravels, "travels", out)
}

// SaveTravel upserts t by id.
func (s *Store) SaveTravel(ctx context.Context, t core.Travel) error {
	travels, err := s.LoadTravels(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range travels {
		if travels[i].ID == t.ID {
			travels[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		travels = append(travels, t)
	}
	return s.SaveTravels(ctx, travels)
}

// FindTravel returns the travel with the given id or ErrNotFound.
func (s *Store) FindTravel(ctx context.Context, id int64) (core.Travel, error) {
	travels, err := s.LoadTravels(ctx)
	if err != nil {
		return core.Travel{}, err
	}
	for _, t := range travels {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Travel{}, fmt.Errorf("travel %d: %w", id, ErrNotFound)
}

// DeleteTravel removes the travel with the given id. Removing an unknown id
// is not an error.
func (s *Store) DeleteTravel(ctx context.Context, id int64) error {
	travels, err := s.LoadTravels(ctx)
	if err != nil {
		return err
	}
	kept := travels[:0]
	for _, t := range travels {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return s.SaveTravels(ctx, kept)
}

// ClearAllData wipes every key in the underlying KV.
func (s *Store) ClearAllData(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	slog.InfoContext(ctx, "All data cleared", log.FieldKeys, len(keys))
	return nil
}

// SaveSnapshot persists a convenience copy of a monthly aggregate. Totals are
// never read back from it.
func (s *Store) SaveSnapshot(ctx context.Context, agg core.MonthlyAggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	m := core.Month{Year: agg.Year, Month: agg.Month}
	if err := s.kv.Set(ctx, SnapshotKey(m), raw); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the last persisted aggregate of month m, if any.
func (s *Store) LoadSnapshot(ctx context.Context, m core.Month) (core.MonthlyAggregate, bool, error) {
	raw, err := s.kv.Get(ctx, SnapshotKey(m))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return core.MonthlyAggregate{}, false, nil
	}
	if err != nil {
		return core.MonthlyAggregate{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var agg core.MonthlyAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return core.MonthlyAggregate{}, false, fmt.Errorf("%w: decode snapshot: %w", ErrInvalidRecord, err)
	}
	return agg, true, nil
}
