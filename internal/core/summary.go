package core

// MonthlyAggregate is the derived summary of one calendar month. It is always
// recomputed from the stored records.
type MonthlyAggregate struct {
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	TotalIncome      float64 `json:"totalIncome"`
	PersonalIncome   float64 `json:"income"`
	TotalExpenses    float64 `json:"totalExpenses"`
	FixedExpenses    float64 `json:"fixedExpenses"`
	VariableExpenses float64 `json:"variableExpenses"`
	Savings          float64 `json:"savings"`
}

func incomeTotal(in Income, m Month) float64 {
	var sum float64
	for _, s := range in.Sources {
		sum += s.Amount
	}
	if extras, ok := in.ExtrasFor(m); ok {
		for _, x := range extras.Extras {
			sum += x.Amount
		}
	}
	return sum
}

// TotalIncome sums every income's sources plus its extras for month/year.
func TotalIncome(incomes []Income, month, year int) float64 {
	m := Month{Year: year, Month: month}
	var sum float64
	for _, in := range incomes {
		sum += incomeTotal(in, m)
	}
	return sum
}

// IncomeFor is TotalIncome restricted to the incomes of one person.
func IncomeFor(person string, incomes []Income, month, year int) float64 {
	m := Month{Year: year, Month: month}
	var sum float64
	for _, in := range incomes {
		if in.Person == person {
			sum += incomeTotal(in, m)
		}
	}
	return sum
}

func sumByType(expenses []Expense, t ExpenseType) float64 {
	var sum float64
	for _, e := range expenses {
		if e.Type == t {
			sum += e.Amount
		}
	}
	return sum
}

func FixedExpenseTotal(expenses []Expense) float64 {
	return sumByType(expenses, Fixed)
}

func VariableExpenseTotal(expenses []Expense) float64 {
	return sumByType(expenses, Variable)
}

func ExpenseTotal(expenses []Expense) float64 {
	return FixedExpenseTotal(expenses) + VariableExpenseTotal(expenses)
}

// Savings may be negative.
func Savings(totalIncome, totalExpenses float64) float64 {
	return totalIncome - totalExpenses
}

// Summarize builds the aggregate for month m from already loaded records.
// person selects whose income is reported as PersonalIncome.
func Summarize(m Month, person string, incomes []Income, expenses []Expense) MonthlyAggregate {
	total := TotalIncome(incomes, m.Month, m.Year)
	fixed := FixedExpenseTotal(expenses)
	variable := VariableExpenseTotal(expenses)
	return MonthlyAggregate{
		Year:             m.Year,
		Month:            m.Month,
		TotalIncome:      total,
		PersonalIncome:   IncomeFor(person, incomes, m.Month, m.Year),
		TotalExpenses:    fixed + variable,
		FixedExpenses:    fixed,
		VariableExpenses: variable,
		Savings:          Savings(total, fixed+variable),
	}
}
