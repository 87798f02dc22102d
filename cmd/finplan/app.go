package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finplan/internal/cache"
	"finplan/internal/config"
	"finplan/internal/core"
	"finplan/internal/events"
	"finplan/internal/records"
	"finplan/internal/services"
	"finplan/internal/storage"
)

const usage = `usage: finplan <command> [flags]

commands:
  summary   -year Y -month M          totals of one month (M is 1-12)
  year      -year Y                   totals of every month of a year
  expense   -description D -amount A  record an expense; -type fixed allows -installments N
  income    list|add|extra|remove-extra|delete
                                      maintain income sources and monthly extras
  travels                             budget overview of every travel
  import    -file F                   merge travels from an exported JSON file
  reset     -yes                      delete every stored record
`

var errUsage = errors.New("invalid usage")

// app wires the services over one store.
type app struct {
	out      io.Writer
	now      func() time.Time
	bus      *events.Bus
	expenses *services.ExpenseService
	incomes  *services.IncomeService
	travels  *services.TravelService
	imports  *services.ImportService
	summary  *services.SummaryService
}

func newApp(kv storage.KV, cfg *config.Config, bus *events.Bus, out io.Writer, now func() time.Time) *app {
	if now == nil {
		now = time.Now
	}
	ids := core.NewIDGenerator(now)
	store := records.New(kv, ids)
	return &app{
		out:      out,
		now:      now,
		bus:      bus,
		expenses: services.NewExpenseService(store, bus, services.NewPlanner(ids, now)),
		incomes:  services.NewIncomeService(store, bus, ids),
		travels:  services.NewTravelService(store, bus, ids, now),
		imports:  services.NewImportService(store, bus),
		summary: services.NewSummaryService(store, bus, cfg.PrimaryPerson,
			cache.NewLRU[core.Month, core.MonthlyAggregate](cfg.CacheSize, cfg.CacheTTL)),
	}
}

func (a *app) close() {
	a.summary.Close()
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "summary":
		return a.runSummary(ctx, rest)
	case "year":
		return a.runYear(ctx, rest)
	case "expense":
		return a.runExpense(ctx, rest)
	case "income":
		return a.runIncome(ctx, rest)
	case "travels":
		return a.runTravels(ctx)
	case "import":
		return a.runImport(ctx, rest)
	case "reset":
		return a.runReset(ctx, rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// monthFlag parses a 1-12 month flag into a core.Month.
func monthFlag(year, month int) (core.Month, error) {
	m := core.Month{Year: year, Month: month - 1}
	if err := m.Validate(); err != nil {
		return core.Month{}, fmt.Errorf("-month must be between 1 and 12: %w", err)
	}
	return m, nil
}

func (a *app) runSummary(ctx context.Context, args []string) error {
	current := core.MonthOf(a.now())
	fs := a.flags("summary")
	year := fs.Int("year", current.Year, "year")
	month := fs.Int("month", current.Month+1, "month, 1-12")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	m, err := monthFlag(*year, *month)
	if err != nil {
		return err
	}

	agg, err := a.summary.Month(ctx, m)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Month\t%s\n", m)
	fmt.Fprintf(w, "Total income\t%s\n", core.FormatAmount(agg.TotalIncome))
	fmt.Fprintf(w, "Your income\t%s\n", core.FormatAmount(agg.PersonalIncome))
	fmt.Fprintf(w, "Fixed expenses\t%s\n", core.FormatAmount(agg.FixedExpenses))
	fmt.Fprintf(w, "Variable expenses\t%s\n", core.FormatAmount(agg.VariableExpenses))
	fmt.Fprintf(w, "Total expenses\t%s\n", core.FormatAmount(agg.TotalExpenses))
	fmt.Fprintf(w, "Savings\t%s\n", core.FormatAmount(agg.Savings))
	return w.Flush()
}

func (a *app) runYear(ctx context.Context, args []string) error {
	fs := a.flags("year")
	year := fs.Int("year", a.now().Year(), "year")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	months, err := a.summary.Year(ctx, *year)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Month\tIncome\tFixed\tVariable\tSavings\t")
	var income, expenses float64
	for _, agg := range months {
		m := core.Month{Year: agg.Year, Month: agg.Month}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", m,
			core.FormatAmount(agg.TotalIncome),
			core.FormatAmount(agg.FixedExpenses),
			core.FormatAmount(agg.VariableExpenses),
			core.FormatAmount(agg.Savings))
		income += agg.TotalIncome
		expenses += agg.TotalExpenses
	}
	fmt.Fprintf(w, "Total\t%s\t\t%s\t%s\t\n", core.FormatAmount(income),
		core.FormatAmount(expenses), core.FormatAmount(core.Savings(income, expenses)))
	return w.Flush()
}

func (a *app) runExpense(ctx context.Context, args []string) error {
	current := core.MonthOf(a.now())
	fs := a.flags("expense")
	description := fs.String("description", "", "what was bought (required)")
	amount := fs.String("amount", "", "total amount, e.g. 1200,50 (required)")
	category := fs.String("category", string(core.Others), "one of snack, grocery, gas, pet, personal, others")
	typ := fs.String("type", string(core.Variable), "fixed or variable")
	installments := fs.Int("installments", 1, "number of monthly installments")
	year := fs.Int("year", current.Year, "year of the first installment")
	month := fs.Int("month", current.Month+1, "month of the first installment, 1-12")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if strings.TrimSpace(*description) == "" || *amount == "" {
		return fmt.Errorf("%w: -description and -amount are required", errUsage)
	}
	if *installments > 1 && core.ExpenseType(*typ) != core.Fixed {
		return fmt.Errorf("%w: only -type fixed expenses can be split into installments", core.ErrInvalidInstallment)
	}

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	m, err := monthFlag(*year, *month)
	if err != nil {
		return err
	}
	e := core.Expense{
		Category:    core.Category(*category),
		Description: *description,
		Amount:      value,
		Type:        core.ExpenseType(*typ),
	}
	rec, err := a.expenses.Create(ctx, e, *installments, m)
	if err != nil {
		return err
	}

	if rec.Installments != nil {
		fmt.Fprintf(a.out, "Recorded %q in %d installments of %s starting %s\n",
			rec.Description, rec.Installments.Total, core.FormatAmount(rec.Amount), m)
		return nil
	}
	fmt.Fprintf(a.out, "Recorded %q: %s in %s\n", rec.Description, core.FormatAmount(rec.Amount), m)
	return nil
}

func (a *app) runIncome(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: income needs one of list, add, extra, remove-extra, delete", errUsage)
	}
	action, rest := args[0], args[1:]
	switch action {
	case "list":
		return a.listIncome(ctx)
	case "add":
		return a.addIncomeSource(ctx, rest)
	case "extra":
		return a.addIncomeExtra(ctx, rest)
	case "remove-extra":
		return a.removeIncomeExtra(ctx, rest)
	case "delete":
		fs := a.flags("income delete")
		id := fs.Int64("id", 0, "income id (required)")
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		if *id == 0 {
			return fmt.Errorf("%w: -id is required", errUsage)
		}
		if err := a.incomes.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted income %d\n", *id)
		return nil
	default:
		return fmt.Errorf("%w: unknown income action %q", errUsage, action)
	}
}

func (a *app) listIncome(ctx context.Context) error {
	list, err := a.incomes.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No income")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPerson\tSource\tAmount")
	for _, in := range list {
		for _, s := range in.Sources {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", in.ID, in.Person, s.Name, core.FormatAmount(s.Amount))
		}
		for _, m := range in.MonthlyExtras {
			for _, x := range m.Extras {
				fmt.Fprintf(w, "%d\t%s\textra %d %s (%s)\t%s\n", in.ID, in.Person, x.ID, x.Description,
					core.Month{Year: m.Year, Month: m.Month}, core.FormatAmount(x.Amount))
			}
		}
	}
	return w.Flush()
}

// addIncomeSource adds a source to income -id, or creates a new income for
// -person when no id is given.
func (a *app) addIncomeSource(ctx context.Context, args []string) error {
	fs := a.flags("income add")
	id := fs.Int64("id", 0, "income to add the source to; empty creates a new income")
	person := fs.String("person", core.DefaultPerson, "whose income this is")
	name := fs.String("name", "", "source name, e.g. salary (required)")
	amount := fs.String("amount", "", "monthly amount (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if strings.TrimSpace(*name) == "" || *amount == "" {
		return fmt.Errorf("%w: -name and -amount are required", errUsage)
	}
	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}

	in := core.Income{Person: *person}
	if *id != 0 {
		list, err := a.incomes.List(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, existing := range list {
			if existing.ID == *id {
				in, found = existing, true
				break
			}
		}
		if !found {
			return fmt.Errorf("income %d: %w", *id, records.ErrNotFound)
		}
	}
	in.Sources = append(in.Sources, core.IncomeSource{Name: *name, Amount: value})

	saved, err := a.incomes.Save(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Income %d of %s: %d sources\n", saved.ID, saved.Person, len(saved.Sources))
	return nil
}

func (a *app) addIncomeExtra(ctx context.Context, args []string) error {
	current := core.MonthOf(a.now())
	fs := a.flags("income extra")
	id := fs.Int64("id", 0, "income id (required)")
	description := fs.String("description", "", "what the extra is for")
	amount := fs.String("amount", "", "extra amount (required)")
	year := fs.Int("year", current.Year, "year")
	month := fs.Int("month", current.Month+1, "month, 1-12")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *id == 0 || *amount == "" {
		return fmt.Errorf("%w: -id and -amount are required", errUsage)
	}
	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	m, err := monthFlag(*year, *month)
	if err != nil {
		return err
	}

	if _, err := a.incomes.AddExtra(ctx, *id, m, core.Extra{Description: *description, Amount: value}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added extra of %s to income %d in %s\n", core.FormatAmount(value), *id, m)
	return nil
}

func (a *app) removeIncomeExtra(ctx context.Context, args []string) error {
	current := core.MonthOf(a.now())
	fs := a.flags("income remove-extra")
	id := fs.Int64("id", 0, "income id (required)")
	extra := fs.Int64("extra", 0, "extra id (required)")
	year := fs.Int("year", current.Year, "year")
	month := fs.Int("month", current.Month+1, "month, 1-12")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *id == 0 || *extra == 0 {
		return fmt.Errorf("%w: -id and -extra are required", errUsage)
	}
	m, err := monthFlag(*year, *month)
	if err != nil {
		return err
	}

	if _, err := a.incomes.RemoveExtra(ctx, *id, m, *extra); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed extra %d from income %d in %s\n", *extra, *id, m)
	return nil
}

func (a *app) runTravels(ctx context.Context) error {
	list, err := a.travels.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No travels")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Travel\tDates\tBudget\tPlanned\tSpent\tFree\tUsed")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s..%s\t%s\t%s\t%s\t%s\t%d%%\n",
			t.Name, t.StartDate, t.EndDate,
			core.FormatAmount(t.Budget.Total),
			core.FormatAmount(core.TotalPlanned(t)),
			core.FormatAmount(core.ActualSpent(t)),
			core.FormatAmount(core.DiscretionaryRemaining(t)),
			core.PercentageSpent(t))
	}
	return w.Flush()
}

func (a *app) runImport(ctx context.Context, args []string) error {
	fs := a.flags("import")
	file := fs.String("file", "", "JSON file to import (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	res := a.imports.Import(ctx, string(raw))
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintf(a.out, "%s (%d travels)\n", res.Message, res.Imported)
	return nil
}

func (a *app) runReset(ctx context.Context, args []string) error {
	fs := a.flags("reset")
	yes := fs.Bool("yes", false, "confirm deleting every record")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if !*yes {
		return fmt.Errorf("%w: reset deletes every record, pass -yes to confirm", errUsage)
	}
	if err := a.imports.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All data deleted")
	return nil
}
