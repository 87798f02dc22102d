package core

import (
	"errors"
	"testing"
)

func cost(v float64) *float64 { return &v }

func sampleTravel() Travel {
	return Travel{
		ID:        1,
		Name:      "Lisboa",
		StartDate: "2024-05-10",
		EndDate:   "2024-05-14",
		Budget: TravelBudget{
			Total:   5000,
			Planned: []TravelExpense{{ID: 1, Description: "Hotel", Amount: 1500}},
		},
		Expenses: []TravelExpense{{ID: 2, Description: "Dinner", Amount: 300}},
		Itinerary: []TravelActivity{
			{ID: 3, Title: "Museum", Category: Sightseeing, StartDateTime: "2024-05-11T14:00", Location: "Belém", EstimatedCost: cost(200)},
			{ID: 4, Title: "Breakfast", Category: Meal, StartDateTime: "2024-05-11T08:30", Location: "Hotel"},
			{ID: 5, Title: "Tram", Category: Transportation, StartDateTime: "2024-05-12T10:00:00Z", Location: "Baixa", EstimatedCost: cost(20)},
		},
	}
}

func TestTravelDerivations(t *testing.T) {
	tr := sampleTravel()
	if got := ItineraryCost(tr); got != 220 {
		t.Fatalf("itinerary cost = %v", got)
	}
	if got := PlannedExpenseTotal(tr); got != 1500 {
		t.Fatalf("planned = %v", got)
	}
	if got := TotalPlanned(tr); got != 1720 {
		t.Fatalf("total planned = %v", got)
	}
	if got := ActualSpent(tr); got != 300 {
		t.Fatalf("actual = %v", got)
	}
	if got := RemainingBudget(tr); got != 3280 {
		t.Fatalf("remaining = %v", got)
	}
	if got := DiscretionaryRemaining(tr); got != 2980 {
		t.Fatalf("discretionary = %v", got)
	}
	if got := PercentageSpent(tr); got != 6 {
		t.Fatalf("percentage = %v", got)
	}

	tr.Recompute()
	if tr.Budget.Discretionary != 2980 {
		t.Fatalf("cached discretionary = %v", tr.Budget.Discretionary)
	}
}

func TestDiscretionaryNonNegativeWithinBudget(t *testing.T) {
	tr := sampleTravel()
	tr.Budget.Total = TotalPlanned(tr) + ActualSpent(tr)
	if got := DiscretionaryRemaining(tr); got < 0 {
		t.Fatalf("expected non-negative discretionary, got %v", got)
	}
}

func TestPercentageSpentClamp(t *testing.T) {
	tests := []struct {
		name   string
		total  float64
		spent  float64
		expect int
	}{
		{"zero budget", 0, 100, 0},
		{"negative budget", -10, 100, 0},
		{"overspent", 100, 250, 100},
		{"half", 200, 100, 50},
		{"rounds", 300, 100, 33},
		{"nothing spent", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Travel{Budget: TravelBudget{Total: tt.total}, Expenses: []TravelExpense{{Amount: tt.spent}}}
			if got := PercentageSpent(tr); got != tt.expect {
				t.Fatalf("got %d, want %d", got, tt.expect)
			}
		})
	}
}

func TestTravelValidate(t *testing.T) {
	if err := sampleTravel().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Travel)
		want   error
	}{
		{"empty name", func(tr *Travel) { tr.Name = "" }, ErrEmptyName},
		{"bad start", func(tr *Travel) { tr.StartDate = "10/05/2024" }, ErrInvalidDate},
		{"reversed", func(tr *Travel) { tr.EndDate = "2024-05-01" }, ErrInvalidDateRange},
		{"negative budget", func(tr *Travel) { tr.Budget.Total = -1 }, ErrInvalidAmount},
		{"activity before start", func(tr *Travel) {
			tr.Itinerary = append(tr.Itinerary, TravelActivity{ID: 9, Title: "x", Category: OtherActivity, StartDateTime: "2024-05-09T23:00", Location: "y"})
		}, ErrActivityOutOfRange},
		{"activity after end", func(tr *Travel) {
			tr.Itinerary = append(tr.Itinerary, TravelActivity{ID: 9, Title: "x", Category: OtherActivity, StartDateTime: "2024-05-15T00:30", Location: "y"})
		}, ErrActivityOutOfRange},
		{"bad activity category", func(tr *Travel) { tr.Itinerary[0].Category = "party" }, ErrActivityCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sampleTravel()
			tt.mutate(&tr)
			if err := tr.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestActivityOnBoundaryDaysIsValid(t *testing.T) {
	tr := sampleTravel()
	first := TravelActivity{ID: 10, Title: "Arrive", Category: Transportation, StartDateTime: "2024-05-10T00:00", Location: "Airport"}
	last := TravelActivity{ID: 11, Title: "Leave", Category: Transportation, StartDateTime: "2024-05-14T23:59", Location: "Airport"}
	for _, a := range []TravelActivity{first, last} {
		if err := tr.ValidateActivity(a); err != nil {
			t.Fatalf("%s: expected ok, got %v", a.Title, err)
		}
	}
}

func TestDaysAndDailyActivities(t *testing.T) {
	tr := sampleTravel()
	days, err := tr.Days()
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 5 || days[0] != "2024-05-10" || days[4] != "2024-05-14" {
		t.Fatalf("unexpected days %v", days)
	}

	acts := tr.DailyActivities("2024-05-11")
	if len(acts) != 2 || acts[0].Title != "Breakfast" || acts[1].Title != "Museum" {
		t.Fatalf("unexpected activities %+v", acts)
	}
	if got := tr.DailyActivities("2024-05-13"); len(got) != 0 {
		t.Fatalf("expected no activities, got %+v", got)
	}
}
