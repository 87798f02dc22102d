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

// ExpenseService applies installment plans to the record store.
//
// A plan touching several months is written one month at a time with no
// transaction: when a step fails the remaining steps are skipped and the
// months already written keep their new contents.
type ExpenseService struct {
	store   *records.Store
	bus     *events.Bus
	planner *Planner
}

func NewExpenseService(store *records.Store, bus *events.Bus, planner *Planner) *ExpenseService {
	if planner == nil {
		planner = NewPlanner(nil, nil)
	}
	return &ExpenseService{
		store:   store,
		bus:     bus,
		planner: planner,
	}
}

// List returns the expenses stored in month m.
func (s *ExpenseService) List(ctx context.Context, m core.Month) ([]core.Expense, error) {
	return s.store.LoadExpenses(ctx, m)
}

// Create stores e in the anchor month, split into installments when
// installments > 1, and returns the anchor record.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense, installments int, anchor core.Month) (core.Expense, error) {
	if err := anchor.Validate(); err != nil {
		return core.Expense{}, err
	}
	plan := s.planner.PlanNew(e, installments, anchor)
	if err := plan.Record.Validate(); err != nil {
		return core.Expense{}, err
	}

	written, err := s.apply(ctx, plan, nil)
	s.notify(ctx, written)
	if err != nil {
		log.FromContext(ctx, log.ComponentPlanner).LogError(ctx, "Failed to create expense", err, log.OpCreate,
			log.NewFields().WithMonth(anchor.Key()).WithExpense(plan.Record.ID, e.Amount, groupOf(plan.Record), installments))
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense created",
		log.FieldMonthKey, anchor.Key(),
		log.FieldExpenseID, plan.Record.ID,
		log.FieldGroupID, groupOf(plan.Record),
		log.FieldInstallments, installments)
	return plan.Record, nil
}

// Update replaces the expense id of the anchor month with edited and
// re-plans its future installments. It fails with core.ErrExpenseNotFound,
// before writing anything, when the anchor month has no such record.
func (s *ExpenseService) Update(ctx context.Context, id int64, edited core.Expense, installments int, anchor core.Month) (core.Expense, error) {
	if err := anchor.Validate(); err != nil {
		return core.Expense{}, err
	}
	current, err := s.store.LoadExpenses(ctx, anchor)
	if err != nil {
		return core.Expense{}, err
	}
	idx := indexOf(current, id)
	if idx < 0 {
		return core.Expense{}, fmt.Errorf("%w: id %d in %s", core.ErrExpenseNotFound, id, anchor)
	}

	plan, err := s.planner.PlanEdit(current[idx], edited, installments, anchor)
	if err != nil {
		return core.Expense{}, err
	}
	if err := plan.Record.Validate(); err != nil {
		return core.Expense{}, err
	}

	written, err := s.apply(ctx, plan, current)
	s.notify(ctx, written)
	if err != nil {
		log.FromContext(ctx, log.ComponentPlanner).LogError(ctx, "Failed to update expense", err, log.OpUpdate,
			log.NewFields().WithMonth(anchor.Key()).WithExpense(id, edited.Amount, groupOf(plan.Record), installments))
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense updated",
		log.FieldMonthKey, anchor.Key(),
		log.FieldExpenseID, id,
		log.FieldGroupID, groupOf(plan.Record),
		log.FieldInstallments, installments,
		"purged_months", len(plan.Stale))
	return plan.Record, nil
}

// Delete removes the expense id from month m only. Installment siblings in
// other months are left alone.
func (s *ExpenseService) Delete(ctx context.Context, id int64, m core.Month) error {
	list, err := s.store.LoadExpenses(ctx, m)
	if err != nil {
		return err
	}
	idx := indexOf(list, id)
	if idx < 0 {
		return fmt.Errorf("%w: id %d in %s", core.ErrExpenseNotFound, id, m)
	}
	list = append(list[:idx], list[idx+1:]...)
	if err := s.store.SaveExpenses(ctx, list, m, false); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.notify(ctx, []core.Month{m})

	slog.InfoContext(ctx, "Expense deleted", log.FieldMonthKey, m.Key(), log.FieldExpenseID, id)
	return nil
}

// apply writes plan and returns the months it changed, also on failure.
// Stale months are purged first, then future installments are appended to
// their months, and the anchor month is written last. anchorList is the
// anchor month as loaded by the caller; nil means it is loaded here.
func (s *ExpenseService) apply(ctx context.Context, plan Plan, anchorList []core.Expense) ([]core.Month, error) {
	var written []core.Month

	for _, m := range plan.Stale {
		if err := s.purgeGroup(ctx, m, plan.StaleGroup); err != nil {
			return written, err
		}
		written = append(written, m)
	}

	for _, d := range plan.Future {
		if err := s.store.SaveExpenses(ctx, []core.Expense{d.Expense}, d.Month, true); err != nil {
			return written, fmt.Errorf("save installment %d/%d in %s: %w",
				d.Expense.Installments.Current, d.Expense.Installments.Total, d.Month, err)
		}
		written = append(written, d.Month)
	}

	if !plan.Replace {
		if err := s.store.SaveExpenses(ctx, []core.Expense{plan.Record}, plan.Anchor, true); err != nil {
			return written, fmt.Errorf("save expense in %s: %w", plan.Anchor, err)
		}
		return append(written, plan.Anchor), nil
	}

	if anchorList == nil {
		var err error
		if anchorList, err = s.store.LoadExpenses(ctx, plan.Anchor); err != nil {
			return written, err
		}
	}
	replaced := make([]core.Expense, len(anchorList))
	for i, e := range anchorList {
		if e.ID == plan.Record.ID {
			e = plan.Record
		}
		replaced[i] = e
	}
	if err := s.store.SaveExpenses(ctx, replaced, plan.Anchor, false); err != nil {
		return written, fmt.Errorf("save expense in %s: %w", plan.Anchor, err)
	}
	return append(written, plan.Anchor), nil
}

// purgeGroup rewrites month m without the records of group.
func (s *ExpenseService) purgeGroup(ctx context.Context, m core.Month, group string) error {
	list, err := s.store.LoadExpenses(ctx, m)
	if err != nil {
		return err
	}
	kept := make([]core.Expense, 0, len(list))
	for _, e := range list {
		if e.IsInstallment() && e.Installments.GroupID == group {
			continue
		}
		kept = append(kept, e)
	}
	if err := s.store.SaveExpenses(ctx, kept, m, false); err != nil {
		return fmt.Errorf("purge group %s from %s: %w", group, m, err)
	}
	slog.DebugContext(ctx, "Installment group purged", log.FieldOperation, log.OpPurge,
		log.FieldMonthKey, m.Key(), log.FieldGroupID, group, "removed", len(list)-len(kept))
	return nil
}

func (s *ExpenseService) notify(ctx context.Context, months []core.Month) {
	if s.bus == nil {
		return
	}
	seen := make(map[core.Month]struct{}, len(months))
	for _, m := range months {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		s.bus.Publish(ctx, events.Event{Type: events.ExpenseUpdated, Year: m.Year, Month: m.Month})
	}
}

func indexOf(list []core.Expense, id int64) int {
	for i, e := range list {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func groupOf(e core.Expense) string {
	if e.Installments == nil {
		return ""
	}
	return e.Installments.GroupID
}
