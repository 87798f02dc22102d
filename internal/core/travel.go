package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	Sightseeing    ActivityCategory = "passeio"
	Meal           ActivityCategory = "refeicao"
	Transportation ActivityCategory = "transporte"
	Lodging        ActivityCategory = "hospedagem"
	OtherActivity  ActivityCategory = "outro"
)

type (
	ActivityCategory string

	TravelExpense struct {
		ID          int64   `json:"id"`
		Category    string  `json:"category"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Date        string  `json:"date"`
		IsPaid      bool    `json:"isPaid"`
	}

	TravelActivity struct {
		ID            int64            `json:"id"`
		Title         string           `json:"title"`
		Category      ActivityCategory `json:"category"`
		StartDateTime string           `json:"startDateTime"`
		EndDateTime   string           `json:"endDateTime,omitempty"`
		Location      string           `json:"location"`
		Notes         string           `json:"notes,omitempty"`
		EstimatedCost *float64         `json:"estimatedCost,omitempty"`
		Completed     bool             `json:"completed"`
	}

	TravelBudget struct {
		Total         float64         `json:"total"`
		Planned       []TravelExpense `json:"planned"`
		Discretionary float64         `json:"discretionary"`
	}

	Travel struct {
		ID        int64            `json:"id"`
		Name      string           `json:"name"`
		StartDate string           `json:"startDate"`
		EndDate   string           `json:"endDate"`
		Budget    TravelBudget     `json:"budget"`
		Expenses  []TravelExpense  `json:"expenses"`
		Itinerary []TravelActivity `json:"itinerary,omitempty"`
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidDateRange   = errors.New("end date before start date")
	ErrActivityOutOfRange = errors.New("activity starts outside the travel dates")
	ErrEmptyTitle         = errors.New("empty activity title")
	ErrEmptyLocation      = errors.New("empty activity location")
	ErrActivityCategory   = errors.New("invalid activity category")
)

// dateTimeLayouts are tried in order when parsing activity timestamps.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DateLayout,
}

func (c ActivityCategory) IsValid() bool {
	switch c {
	case Sightseeing, Meal, Transportation, Lodging, OtherActivity:
		return true
	default:
		return false
	}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ParseDateTime parses an ISO timestamp, with or without zone or seconds.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Day returns the calendar date the activity starts on.
func (a TravelActivity) Day() (string, error) {
	t, err := ParseDateTime(a.StartDateTime)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

func (a TravelActivity) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(a.Location) == "" {
		return ErrEmptyLocation
	}
	if !a.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrActivityCategory, a.Category)
	}
	start, err := ParseDateTime(a.StartDateTime)
	if err != nil {
		return err
	}
	if a.EndDateTime != "" {
		end, err := ParseDateTime(a.EndDateTime)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return ErrInvalidDateRange
		}
	}
	if a.EstimatedCost != nil && *a.EstimatedCost < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e TravelExpense) Validate() error {
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the travel record, including that every activity starts
// within [StartDate, EndDate] by calendar date.
func (t Travel) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	start, err := ParseDate(t.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := ParseDate(t.EndDate)
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	if t.Budget.Total < 0 {
		return fmt.Errorf("budget: %w", ErrInvalidAmount)
	}
	for _, e := range t.Budget.Planned {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("planned expense %d: %w", e.ID, err)
		}
	}
	for _, e := range t.Expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %d: %w", e.ID, err)
		}
	}
	for _, a := range t.Itinerary {
		if err := t.ValidateActivity(a); err != nil {
			return fmt.Errorf("activity %d: %w", a.ID, err)
		}
	}
	return nil
}

// ValidateActivity validates a and checks it fits within the travel dates.
func (t Travel) ValidateActivity(a TravelActivity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	day, err := a.Day()
	if err != nil {
		return err
	}
	// YYYY-MM-DD strings order the same way as the dates they encode.
	if day < t.StartDate || day > t.EndDate {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrActivityOutOfRange, day, t.StartDate, t.EndDate)
	}
	return nil
}

// Days lists every calendar day of the trip, inclusive.
func (t Travel) Days() ([]string, error) {
	start, err := ParseDate(t.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(t.EndDate)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// DailyActivities returns the activities starting on day, ordered by start time.
func (t Travel) DailyActivities(day string) []TravelActivity {
	type timed struct {
		at time.Time
		a  TravelActivity
	}
	var out []timed
	for _, a := range t.Itinerary {
		at, err := ParseDateTime(a.StartDateTime)
		if err != nil || at.Format(DateLayout) != day {
			continue
		}
		out = append(out, timed{at: at, a: a})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	acts := make([]TravelActivity, len(out))
	for i, o := range out {
		acts[i] = o.a
	}
	return acts
}

// Normalize replaces nil collections with empty ones so records encode
// as [] rather than null.
func (t *Travel) Normalize() {
	if t.Budget.Planned == nil {
		t.Budget.Planned = []TravelExpense{}
	}
	if t.Expenses == nil {
		t.Expenses = []TravelExpense{}
	}
}

// Recompute refreshes the cached discretionary budget.
func (t *Travel) Recompute() {
	t.Budget.Discretionary = DiscretionaryRemaining(*t)
}

// ItineraryCost sums the estimated cost of every activity; missing costs count as 0.
func ItineraryCost(t Travel) float64 {
	var sum float64
	for _, a := range t.Itinerary {
		if a.EstimatedCost != nil {
			sum += *a.EstimatedCost
		}
	}
	return sum
}

func PlannedExpenseTotal(t Travel) float64 {
	var sum float64
	for _, e := range t.Budget.Planned {
		sum += e.Amount
	}
	return sum
}

func TotalPlanned(t Travel) float64 {
	return ItineraryCost(t) + PlannedExpenseTotal(t)
}

func ActualSpent(t Travel) float64 {
	var sum float64
	for _, e := range t.Expenses {
		sum += e.Amount
	}
	return sum
}

// RemainingBudget is what is left to allocate: the budget minus planned costs.
func RemainingBudget(t Travel) float64 {
	return t.Budget.Total - TotalPlanned(t)
}

// DiscretionaryRemaining is the budget left after planned allocations and
// actual spending.
func DiscretionaryRemaining(t Travel) float64 {
	return t.Budget.Total - TotalPlanned(t) - ActualSpent(t)
}

// PercentageSpent returns actual spending as a rounded percentage of the
// budget, clamped to [0, 100]. A non-positive budget yields 0.
func PercentageSpent(t Travel) int {
	if t.Budget.Total <= 0 {
		return 0
	}
	p := math.Round(100 * ActualSpent(t) / t.Budget.Total)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}
