package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/log"
	"finplan/internal/records"
)

var (
	ErrBudgetNotPositive = errors.New("travel budget must be greater than zero")
	ErrPlannedOverBudget = errors.New("planned expenses exceed the travel budget")
)

// Default categories of expenses added without one.
const (
	defaultSpentCategory   = "other"
	defaultPlannedCategory = "transport"
)

// TravelService maintains travels, their budgets and itineraries. Every write
// refreshes the cached discretionary budget and publishes TRAVEL_UPDATED.
type TravelService struct {
	store *records.Store
	bus   *events.Bus
	ids   *core.IDGenerator
	now   func() time.Time
}

func NewTravelService(store *records.Store, bus *events.Bus, ids *core.IDGenerator, now func() time.Time) *TravelService {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = core.NewIDGenerator(now)
	}
	return &TravelService{store: store, bus: bus, ids: ids, now: now}
}

func (s *TravelService) List(ctx context.Context) ([]core.Travel, error) {
	return s.store.LoadTravels(ctx)
}

func (s *TravelService) Get(ctx context.Context, id int64) (core.Travel, error) {
	return s.store.FindTravel(ctx, id)
}

// Save upserts t. The budget must be positive and cover the planned expenses.
func (s *TravelService) Save(ctx context.Context, t core.Travel) (core.Travel, error) {
	if t.Budget.Total <= 0 {
		return core.Travel{}, ErrBudgetNotPositive
	}
	if planned := core.PlannedExpenseTotal(t); planned > t.Budget.Total {
		return core.Travel{}, fmt.Errorf("%w: %s > %s", ErrPlannedOverBudget,
			core.FormatAmount(planned), core.FormatAmount(t.Budget.Total))
	}
	if t.ID == 0 {
		t.ID = s.ids.Next()
	}
	for i := range t.Budget.Planned {
		if t.Budget.Planned[i].ID == 0 {
			t.Budget.Planned[i].ID = s.ids.Next()
		}
	}
	return s.write(ctx, t, log.OpUpdate)
}

// Delete removes the travel id. Removing an unknown id is not an error.
func (s *TravelService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTravel(ctx, id); err != nil {
		return err
	}
	s.publish(ctx)
	slog.InfoContext(ctx, "Travel deleted", log.FieldTravelID, id)
	return nil
}

// AddActivity appends a to the itinerary. a must start within the travel dates.
func (s *TravelService) AddActivity(ctx context.Context, travelID int64, a core.TravelActivity) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		if a.ID == 0 {
			a.ID = s.ids.Next()
		}
		if a.Category == "" {
			a.Category = core.Sightseeing
		}
		if err := t.ValidateActivity(a); err != nil {
			return err
		}
		t.Itinerary = append(t.Itinerary, a)
		return nil
	})
}

// UpdateActivity replaces the activity with a.ID, keeping its completion state.
func (s *TravelService) UpdateActivity(ctx context.Context, travelID int64, a core.TravelActivity) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		i := activityIndex(t.Itinerary, a.ID)
		if i < 0 {
			return fmt.Errorf("activity %d: %w", a.ID, records.ErrNotFound)
		}
		a.Completed = t.Itinerary[i].Completed
		if err := t.ValidateActivity(a); err != nil {
			return err
		}
		t.Itinerary[i] = a
		return nil
	})
}

// ToggleActivity flips the completed flag of an activity and nothing else.
func (s *TravelService) ToggleActivity(ctx context.Context, travelID, activityID int64) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		i := activityIndex(t.Itinerary, activityID)
		if i < 0 {
			return fmt.Errorf("activity %d: %w", activityID, records.ErrNotFound)
		}
		t.Itinerary[i].Completed = !t.Itinerary[i].Completed
		return nil
	})
}

func (s *TravelService) RemoveActivity(ctx context.Context, travelID, activityID int64) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		i := activityIndex(t.Itinerary, activityID)
		if i < 0 {
			return fmt.Errorf("activity %d: %w", activityID, records.ErrNotFound)
		}
		t.Itinerary = append(t.Itinerary[:i], t.Itinerary[i+1:]...)
		return nil
	})
}

// AddExpense records money actually spent on the trip.
func (s *TravelService) AddExpense(ctx context.Context, travelID int64, e core.TravelExpense) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		if err := s.fillExpense(&e, defaultSpentCategory); err != nil {
			return err
		}
		e.IsPaid = true
		t.Expenses = append(t.Expenses, e)
		return nil
	})
}

// AddPlannedExpense adds a budget allocation. The planned total may not
// exceed the budget.
func (s *TravelService) AddPlannedExpense(ctx context.Context, travelID int64, e core.TravelExpense) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		if err := s.fillExpense(&e, defaultPlannedCategory); err != nil {
			return err
		}
		e.IsPaid = false
		t.Budget.Planned = append(t.Budget.Planned, e)
		if planned := core.PlannedExpenseTotal(*t); planned > t.Budget.Total {
			return fmt.Errorf("%w: %s > %s", ErrPlannedOverBudget,
				core.FormatAmount(planned), core.FormatAmount(t.Budget.Total))
		}
		return nil
	})
}

func (s *TravelService) RemovePlannedExpense(ctx context.Context, travelID, expenseID int64) (core.Travel, error) {
	return s.modify(ctx, travelID, func(t *core.Travel) error {
		for i, e := range t.Budget.Planned {
			if e.ID == expenseID {
				t.Budget.Planned = append(t.Budget.Planned[:i], t.Budget.Planned[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("planned expense %d: %w", expenseID, records.ErrNotFound)
	})
}

func (s *TravelService) fillExpense(e *core.TravelExpense, category string) error {
	if strings.TrimSpace(e.Description) == "" {
		return core.ErrEmptyDescription
	}
	if e.Amount <= 0 {
		return core.ErrInvalidAmount
	}
	if e.ID == 0 {
		e.ID = s.ids.Next()
	}
	if e.Category == "" {
		e.Category = category
	}
	if e.Date == "" {
		e.Date = s.now().UTC().Format(time.RFC3339)
	}
	return nil
}

func (s *TravelService) modify(ctx context.Context, travelID int64, fn func(t *core.Travel) error) (core.Travel, error) {
	t, err := s.store.FindTravel(ctx, travelID)
	if err != nil {
		return core.Travel{}, err
	}
	if err := fn(&t); err != nil {
		return core.Travel{}, err
	}
	return s.write(ctx, t, log.OpUpdate)
}

func (s *TravelService) write(ctx context.Context, t core.Travel, op string) (core.Travel, error) {
	t.Normalize()
	t.Recompute()
	if err := t.Validate(); err != nil {
		return core.Travel{}, err
	}
	if err := s.store.SaveTravel(ctx, t); err != nil {
		log.FromContext(ctx, log.ComponentTravel).LogError(ctx, "Failed to save travel", err, op,
			log.LogFields{log.FieldTravelID: t.ID})
		return core.Travel{}, err
	}
	s.publish(ctx)
	slog.DebugContext(ctx, "Travel saved", log.FieldTravelID, t.ID, "discretionary", core.FormatAmount(t.Budget.Discretionary))
	return t, nil
}

func (s *TravelService) publish(ctx context.Context) {
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{Type: events.TravelUpdated})
	}
}

func activityIndex(list []core.TravelActivity, id int64) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}
