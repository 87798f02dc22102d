package services

import (
	"fmt"
	"time"

	"finplan/internal/core"
)

// Dated is an expense record bound to the month it is stored in.
type Dated struct {
	Month   core.Month
	Expense core.Expense
}

// Plan describes how an expense, and its installment siblings if any, are
// laid out across months. Planning does no I/O; ExpenseService applies plans.
type Plan struct {
	Anchor core.Month
	// Record is stored in the anchor month.
	Record core.Expense
	// Replace means Record replaces the anchor record with the same id
	// instead of being appended.
	Replace bool
	// Stale months are purged of every record of StaleGroup before Future is written.
	Stale      []core.Month
	StaleGroup string
	Future     []Dated
}

// Months lists every month the plan writes, anchor first, without duplicates.
func (p Plan) Months() []core.Month {
	seen := map[core.Month]struct{}{p.Anchor: {}}
	out := []core.Month{p.Anchor}
	add := func(m core.Month) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	for _, m := range p.Stale {
		add(m)
	}
	for _, d := range p.Future {
		add(d.Month)
	}
	return out
}

// Planner splits expenses into monthly installments.
type Planner struct {
	ids *core.IDGenerator
	now func() time.Time
}

// NewPlanner returns a planner minting ids from ids and group ids from now.
// Nil arguments fall back to the wall clock.
func NewPlanner(ids *core.IDGenerator, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = core.NewIDGenerator(now)
	}
	return &Planner{ids: ids, now: now}
}

// PlanNew lays out a new expense. e.Amount is the full purchase amount; with
// installments > 1 every member of the group carries amount/installments,
// the anchor month holding installment 1. Rounding drift across members is
// left as is. Only fixed expenses are split; any other type is planned as a
// single record.
func (p *Planner) PlanNew(e core.Expense, installments int, anchor core.Month) Plan {
	if e.ID == 0 {
		e.ID = p.ids.Next()
	}
	if installments <= 1 || e.Type != core.Fixed {
		e.Installments = nil
		return Plan{Anchor: anchor, Record: e}
	}

	per := e.Amount / float64(installments)
	group := core.NewGroupID(p.now())

	e.Amount = per
	e.Installments = &core.Installments{Total: installments, Current: 1, GroupID: group}

	plan := Plan{Anchor: anchor, Record: e}
	for i := 2; i <= installments; i++ {
		plan.Future = append(plan.Future, Dated{
			Month:   anchor.AddMonths(i - 1),
			Expense: p.sibling(e, per, installments, i, group),
		})
	}
	return plan
}

// PlanEdit lays out an edit of old, stored in the anchor month, into edited.
// edited.Amount is the full purchase amount. When the result is split, the
// siblings old planned after its own installment are purged and regenerated
// from the edited installment onwards; the group id of old is kept.
// An edit down to a single installment, or to a type other than fixed,
// rewrites the anchor record only.
func (p *Planner) PlanEdit(old, edited core.Expense, installments int, anchor core.Month) (Plan, error) {
	edited.ID = old.ID
	if installments <= 1 || edited.Type != core.Fixed {
		edited.Installments = nil
		return Plan{Anchor: anchor, Record: edited, Replace: true}, nil
	}

	current := 1
	switch {
	case edited.Installments != nil && edited.Installments.Current > 0:
		current = edited.Installments.Current
	case old.Installments != nil && old.Installments.Current > 0:
		current = old.Installments.Current
	}
	if current > installments {
		return Plan{}, fmt.Errorf("%w: current %d of %d", core.ErrInvalidInstallment, current, installments)
	}

	group := ""
	if old.IsInstallment() {
		group = old.Installments.GroupID
	} else {
		group = core.NewGroupID(p.now())
	}

	per := edited.Amount / float64(installments)
	edited.Amount = per
	edited.Installments = &core.Installments{Total: installments, Current: current, GroupID: group}

	plan := Plan{Anchor: anchor, Record: edited, Replace: true}
	if old.IsInstallment() {
		plan.StaleGroup = group
		for i := old.Installments.Current + 1; i <= old.Installments.Total; i++ {
			plan.Stale = append(plan.Stale, anchor.AddMonths(i-old.Installments.Current))
		}
	}
	for i := current + 1; i <= installments; i++ {
		plan.Future = append(plan.Future, Dated{
			Month:   anchor.AddMonths(i - current),
			Expense: p.sibling(edited, per, installments, i, group),
		})
	}
	return plan, nil
}

func (p *Planner) sibling(e core.Expense, per float64, total, current int, group string) core.Expense {
	s := e
	s.ID = p.ids.Next()
	s.Amount = per
	s.Installments = &core.Installments{Total: total, Current: current, GroupID: group}
	return s
}
