package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finplan/internal/cache"
	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/records"
	"finplan/internal/storage/memory"
)

// racingKV runs onRead once, right after the value of key has been read and
// before it is returned, to simulate a write landing mid-computation.
type racingKV struct {
	*memory.Store
	key    string
	onRead func()
}

func (r *racingKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.Store.Get(ctx, key)
	if key == r.key && r.onRead != nil {
		fn := r.onRead
		r.onRead = nil
		fn()
	}
	return raw, err
}

func TestSummaryService_InvalidationDuringComputeIsNotCached(t *testing.T) {
	ctx := context.Background()
	jan := core.Month{Year: 2024, Month: 0}
	kv := &racingKV{Store: memory.New(), key: records.ExpensesKey(jan)}
	store := records.New(kv, nil)
	bus := events.NewBus()
	svc := NewSummaryService(store, bus, core.DefaultPerson, cache.NewLRU[core.Month, core.MonthlyAggregate](16, time.Hour))
	defer svc.Close()

	kv.onRead = func() {
		rent := core.Expense{ID: 1, Category: core.Others, Description: "rent", Amount: 700, Type: core.Fixed}
		if err := store.SaveExpenses(ctx, []core.Expense{rent}, jan, true); err != nil {
			t.Errorf("SaveExpenses() error = %v", err)
		}
		bus.Publish(ctx, events.Event{Type: events.ExpenseUpdated, Year: jan.Year, Month: jan.Month})
	}

	agg, err := svc.Month(ctx, jan)
	if err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	if agg.TotalExpenses != 0 {
		t.Fatalf("first Month() = %+v, want the pre-write aggregate", agg)
	}
	if _, ok := svc.Cache().Get(jan); ok {
		t.Fatal("aggregate computed across an invalidation was cached")
	}

	agg, err = svc.Month(ctx, jan)
	if err != nil || agg.TotalExpenses != 700 {
		t.Errorf("second Month() = %+v, %v, want 700 expenses", agg, err)
	}
}

func TestSummaryService_Month(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mar := core.Month{Year: 2024, Month: 2}

	in := salary(core.DefaultPerson, 3000)
	in.MonthlyExtras = []core.MonthlyExtras{{Month: 2, Year: 2024, Extras: []core.Extra{{ID: 1, Description: "bonus", Amount: 1000}}}}
	partner := salary("Ana", 2000)
	if _, err := NewIncomeService(f.store, nil, nil).Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := NewIncomeService(f.store, nil, nil).Save(ctx, partner); err != nil {
		t.Fatal(err)
	}
	list := []core.Expense{
		{ID: 1, Category: core.Others, Description: "rent", Amount: 100, Type: core.Fixed},
		{ID: 2, Category: core.Snack, Description: "coffee", Amount: 50, Type: core.Variable},
	}
	if err := f.store.SaveExpenses(ctx, list, mar, false); err != nil {
		t.Fatal(err)
	}

	svc := NewSummaryService(f.store, f.bus, "", nil)
	defer svc.Close()

	agg, err := svc.Month(ctx, mar)
	if err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	want := core.MonthlyAggregate{
		Year: 2024, Month: 2,
		TotalIncome: 6000, PersonalIncome: 4000,
		TotalExpenses: 150, FixedExpenses: 100, VariableExpenses: 50,
		Savings: 5850,
	}
	if agg != want {
		t.Errorf("Month() = %+v, want %+v", agg, want)
	}
}

func TestSummaryService_CacheFollowsChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	jan := core.Month{Year: 2024, Month: 0}
	svc := NewSummaryService(f.store, f.bus, core.DefaultPerson, cache.NewLRU[core.Month, core.MonthlyAggregate](16, time.Hour))
	defer svc.Close()

	if agg, err := svc.Month(ctx, jan); err != nil || agg.TotalExpenses != 0 {
		t.Fatalf("Month() = %+v, %v", agg, err)
	}

	expenses := f.expenseService()
	if _, err := expenses.Create(ctx, fixedExpense(300), 3, jan); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		agg, err := svc.Month(ctx, jan.AddMonths(i))
		if err != nil {
			t.Fatal(err)
		}
		if agg.FixedExpenses != 100 {
			t.Errorf("month %d fixed = %v, want 100", i, agg.FixedExpenses)
		}
	}

	if _, err := NewIncomeService(f.store, f.bus, nil).Save(ctx, salary(core.DefaultPerson, 1000)); err != nil {
		t.Fatal(err)
	}
	agg, _ := svc.Month(ctx, jan)
	if agg.TotalIncome != 1000 || agg.Savings != 900 {
		t.Errorf("after income change: %+v", agg)
	}

	if err := NewImportService(f.store, f.bus).Reset(ctx); err != nil {
		t.Fatal(err)
	}
	agg, _ = svc.Month(ctx, jan)
	if agg.TotalIncome != 0 || agg.TotalExpenses != 0 {
		t.Errorf("after reset: %+v", agg)
	}
}

func TestSummaryService_Year(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := NewIncomeService(f.store, nil, nil).Save(ctx, salary(core.DefaultPerson, 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.expenseService().Create(ctx, fixedExpense(1200), 12, core.Month{Year: 2024, Month: 6}); err != nil {
		t.Fatal(err)
	}

	svc := NewSummaryService(f.store, f.bus, "", nil)
	defer svc.Close()
	year, err := svc.Year(ctx, 2024)
	if err != nil {
		t.Fatalf("Year() error = %v", err)
	}
	if len(year) != 12 {
		t.Fatalf("Year() returned %d months", len(year))
	}
	for i, agg := range year {
		if agg.Month != i || agg.Year != 2024 {
			t.Errorf("entry %d is %d/%d", i, agg.Year, agg.Month)
		}
		want := 0.0
		if i >= 6 {
			want = 100
		}
		if agg.TotalExpenses != want || agg.TotalIncome != 1000 {
			t.Errorf("month %d = %+v", i, agg)
		}
	}
}

func TestSummaryService_YearPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.kv.Set(ctx, records.ExpensesKey(core.Month{Year: 2024, Month: 4}), []byte("not json")); err != nil {
		t.Fatal(err)
	}

	svc := NewSummaryService(f.store, nil, "", nil)
	if _, err := svc.Year(ctx, 2024); !errors.Is(err, records.ErrInvalidRecord) {
		t.Errorf("Year() error = %v, want ErrInvalidRecord", err)
	}
}

func TestSummaryService_Snapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	feb := core.Month{Year: 2024, Month: 1}
	if _, err := NewIncomeService(f.store, nil, nil).Save(ctx, salary(core.DefaultPerson, 500)); err != nil {
		t.Fatal(err)
	}

	svc := NewSummaryService(f.store, nil, "", nil)
	agg, err := svc.Snapshot(ctx, feb)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	stored, ok, err := f.store.LoadSnapshot(ctx, feb)
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot() = %v, %v", ok, err)
	}
	if stored != agg || stored.Savings != 500 {
		t.Errorf("snapshot = %+v, want %+v", stored, agg)
	}
}

func TestSummaryService_CloseStopsListening(t *testing.T) {
	f := newFixture(t)
	before := f.bus.Subscribers("EXPENSE_UPDATED")
	svc := NewSummaryService(f.store, f.bus, "", nil)
	if f.bus.Subscribers("EXPENSE_UPDATED") != before+1 {
		t.Fatal("expected a subscription")
	}
	svc.Close()
	if f.bus.Subscribers("EXPENSE_UPDATED") != before {
		t.Error("Close() should unsubscribe")
	}
}
