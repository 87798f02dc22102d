package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finplan/internal/core"
	"finplan/internal/records"
)

func newTravelService(f *fixture) *TravelService {
	now := func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }
	return NewTravelService(f.store, f.bus, core.NewIDGenerator(now), now)
}

func lisbon() core.Travel {
	return core.Travel{
		Name:      "Lisboa",
		StartDate: "2024-07-10",
		EndDate:   "2024-07-15",
		Budget: core.TravelBudget{
			Total:   5000,
			Planned: []core.TravelExpense{{Category: "transport", Description: "flight", Amount: 2000}},
		},
	}
}

func cost(v float64) *float64 { return &v }

func TestTravelService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns ids and discretionary", func(t *testing.T) {
		f := newFixture(t)
		svc := newTravelService(f)

		tr, err := svc.Save(ctx, lisbon())
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if tr.ID == 0 || tr.Budget.Planned[0].ID == 0 {
			t.Errorf("ids not assigned: %+v", tr)
		}
		if tr.Budget.Discretionary != 3000 {
			t.Errorf("discretionary = %v, want 3000", tr.Budget.Discretionary)
		}
		if tr.Expenses == nil {
			t.Error("expenses should be normalized to an empty list")
		}
		if len(f.events) != 1 {
			t.Errorf("events = %d, want 1", len(f.events))
		}
	})

	tests := []struct {
		name    string
		mutate  func(tr *core.Travel)
		wantErr error
	}{
		{name: "zero budget", mutate: func(tr *core.Travel) { tr.Budget.Total = 0 }, wantErr: ErrBudgetNotPositive},
		{name: "planned over budget", mutate: func(tr *core.Travel) { tr.Budget.Total = 1000 }, wantErr: ErrPlannedOverBudget},
		{name: "empty name", mutate: func(tr *core.Travel) { tr.Name = "" }, wantErr: core.ErrEmptyName},
		{name: "dates reversed", mutate: func(tr *core.Travel) { tr.EndDate = "2024-07-01" }, wantErr: core.ErrInvalidDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tr := lisbon()
			tt.mutate(&tr)
			if _, err := newTravelService(f).Save(ctx, tr); !errors.Is(err, tt.wantErr) {
				t.Errorf("Save() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTravelService_Activities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newTravelService(f)
	tr, err := svc.Save(ctx, lisbon())
	if err != nil {
		t.Fatal(err)
	}

	tr, err = svc.AddActivity(ctx, tr.ID, core.TravelActivity{
		Title:         "Belém",
		StartDateTime: "2024-07-10T09:00:00Z",
		Location:      "Torre de Belém",
		EstimatedCost: cost(50),
	})
	if err != nil {
		t.Fatalf("AddActivity() error = %v", err)
	}
	act := tr.Itinerary[0]
	if act.ID == 0 || act.Category != core.Sightseeing {
		t.Errorf("activity = %+v", act)
	}
	if tr.Budget.Discretionary != 2950 {
		t.Errorf("discretionary = %v, want 2950", tr.Budget.Discretionary)
	}

	if _, err := svc.AddActivity(ctx, tr.ID, core.TravelActivity{
		Title: "Porto", StartDateTime: "2024-07-16T09:00:00Z", Location: "Porto",
	}); !errors.Is(err, core.ErrActivityOutOfRange) {
		t.Errorf("AddActivity() out of range error = %v", err)
	}

	tr, err = svc.ToggleActivity(ctx, tr.ID, act.ID)
	if err != nil {
		t.Fatalf("ToggleActivity() error = %v", err)
	}
	toggled := tr.Itinerary[0]
	if !toggled.Completed || toggled.Title != act.Title || *toggled.EstimatedCost != 50 {
		t.Errorf("toggle should only flip completed: %+v", toggled)
	}

	edited := act
	edited.Title = "Mosteiro dos Jerónimos"
	tr, err = svc.UpdateActivity(ctx, tr.ID, edited)
	if err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}
	if tr.Itinerary[0].Title != edited.Title || !tr.Itinerary[0].Completed {
		t.Errorf("updated activity = %+v", tr.Itinerary[0])
	}

	tr, err = svc.RemoveActivity(ctx, tr.ID, act.ID)
	if err != nil {
		t.Fatalf("RemoveActivity() error = %v", err)
	}
	if len(tr.Itinerary) != 0 || tr.Budget.Discretionary != 3000 {
		t.Errorf("after remove: %+v", tr)
	}
	if _, err := svc.RemoveActivity(ctx, tr.ID, act.ID); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("RemoveActivity() error = %v, want ErrNotFound", err)
	}
}

func TestTravelService_Expenses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newTravelService(f)
	tr, err := svc.Save(ctx, lisbon())
	if err != nil {
		t.Fatal(err)
	}

	tr, err = svc.AddExpense(ctx, tr.ID, core.TravelExpense{Description: "dinner", Amount: 120})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	spent := tr.Expenses[0]
	if !spent.IsPaid || spent.Category != "other" || spent.Date != "2024-07-01T12:00:00Z" {
		t.Errorf("expense = %+v", spent)
	}
	if tr.Budget.Discretionary != 2880 {
		t.Errorf("discretionary = %v, want 2880", tr.Budget.Discretionary)
	}

	if _, err := svc.AddExpense(ctx, tr.ID, core.TravelExpense{Description: "", Amount: 1}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("AddExpense() error = %v, want ErrEmptyDescription", err)
	}

	tr, err = svc.AddPlannedExpense(ctx, tr.ID, core.TravelExpense{Description: "hotel", Amount: 1500})
	if err != nil {
		t.Fatalf("AddPlannedExpense() error = %v", err)
	}
	hotel := tr.Budget.Planned[1]
	if hotel.IsPaid || hotel.Category != "transport" {
		t.Errorf("planned = %+v", hotel)
	}
	if _, err := svc.AddPlannedExpense(ctx, tr.ID, core.TravelExpense{Description: "cruise", Amount: 2000}); !errors.Is(err, ErrPlannedOverBudget) {
		t.Errorf("AddPlannedExpense() error = %v, want ErrPlannedOverBudget", err)
	}

	tr, err = svc.RemovePlannedExpense(ctx, tr.ID, hotel.ID)
	if err != nil {
		t.Fatalf("RemovePlannedExpense() error = %v", err)
	}
	if len(tr.Budget.Planned) != 1 || tr.Budget.Discretionary != 2880 {
		t.Errorf("after remove: %+v", tr.Budget)
	}
}

func TestTravelService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newTravelService(f)
	tr, err := svc.Save(ctx, lisbon())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, tr.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, tr.ID); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
