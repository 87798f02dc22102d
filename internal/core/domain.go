package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Fixed    ExpenseType = "fixed"
	Variable ExpenseType = "variable"
)

const (
	Snack    Category = "snack"
	Grocery  Category = "grocery"
	Gas      Category = "gas"
	Pet      Category = "pet"
	Personal Category = "personal"
	Others   Category = "others"
)

// DefaultPerson is the person label the app uses for the primary user.
const DefaultPerson = "Você"

type (
	ExpenseType string

	Category string

	Installments struct {
		Total   int    `json:"total"`
		Current int    `json:"current"`
		GroupID string `json:"groupId"`
	}

	Expense struct {
		ID           int64         `json:"id"`
		Category     Category      `json:"category"`
		Description  string        `json:"description"`
		Amount       float64       `json:"amount"` // per installment for group members
		Type         ExpenseType   `json:"type"`
		Installments *Installments `json:"installments,omitempty"`
	}

	IncomeSource struct {
		ID     int64   `json:"id"`
		Name   string  `json:"name"`
		Icon   string  `json:"icon"`
		Amount float64 `json:"amount"`
		Color  string  `json:"color"`
	}

	Extra struct {
		ID          int64   `json:"id"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
	}

	MonthlyExtras struct {
		Month  int     `json:"month"` // 0-11
		Year   int     `json:"year"`
		Extras []Extra `json:"extras"`
	}

	Income struct {
		ID            int64           `json:"id"`
		Person        string          `json:"person"`
		Sources       []IncomeSource  `json:"sources"`
		MonthlyExtras []MonthlyExtras `json:"monthlyExtras,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidType        = errors.New("invalid expense type")
	ErrInvalidInstallment = errors.New("invalid installments")
	ErrEmptyPerson        = errors.New("empty person")
	ErrNoIncomeSources    = errors.New("at least one income source is required")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrDuplicateExtras    = errors.New("duplicate monthly extras entry")
	ErrExpenseNotFound    = errors.New("expense not found")
)

// Categories lists the expense categories in display order.
func Categories() []Category {
	return []Category{Snack, Grocery, Gas, Pet, Personal, Others}
}

func (c Category) IsValid() bool {
	switch c {
	case Snack, Grocery, Gas, Pet, Personal, Others:
		return true
	default:
		return false
	}
}

func (t ExpenseType) IsValid() bool {
	return t == Fixed || t == Variable
}

// IsInstallment reports whether the expense belongs to an installment group.
func (e Expense) IsInstallment() bool {
	return e.Installments != nil && e.Installments.GroupID != ""
}

func (i Installments) Validate() error {
	if i.Total < 1 {
		return fmt.Errorf("%w: total %d", ErrInvalidInstallment, i.Total)
	}
	if i.Current < 1 || i.Current > i.Total {
		return fmt.Errorf("%w: current %d of %d", ErrInvalidInstallment, i.Current, i.Total)
	}
	if strings.TrimSpace(i.GroupID) == "" {
		return fmt.Errorf("%w: empty group id", ErrInvalidInstallment)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if e.Installments != nil {
		if e.Type != Fixed {
			return fmt.Errorf("%w: only fixed expenses are split, got %q", ErrInvalidInstallment, e.Type)
		}
		if err := e.Installments.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (in Income) Validate() error {
	if strings.TrimSpace(in.Person) == "" {
		return ErrEmptyPerson
	}
	if len(in.Sources) == 0 {
		return ErrNoIncomeSources
	}
	for _, s := range in.Sources {
		if s.Amount < 0 {
			return fmt.Errorf("source %q: %w", s.Name, ErrInvalidAmount)
		}
	}
	seen := make(map[string]struct{}, len(in.MonthlyExtras))
	for _, m := range in.MonthlyExtras {
		if m.Month < 0 || m.Month > 11 {
			return fmt.Errorf("%w: %d", ErrInvalidMonth, m.Month)
		}
		k := KeyFor(m.Year, m.Month)
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateExtras, k)
		}
		seen[k] = struct{}{}
		for _, x := range m.Extras {
			if x.Amount < 0 {
				return fmt.Errorf("extra %q: %w", x.Description, ErrInvalidAmount)
			}
		}
	}
	return nil
}

// ExtrasFor returns the extras entry for the given month, if any.
func (in Income) ExtrasFor(m Month) (MonthlyExtras, bool) {
	for _, e := range in.MonthlyExtras {
		if e.Month == m.Month && e.Year == m.Year {
			return e, true
		}
	}
	return MonthlyExtras{}, false
}
