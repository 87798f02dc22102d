package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldError        = "error"
	FieldMonthKey     = "month_key"
	FieldExpenseID    = "expense_id"
	FieldGroupID      = "group_id"
	FieldInstallments = "installments"
	FieldAmount       = "amount"
	FieldIncomeID     = "income_id"
	FieldTravelID     = "travel_id"
	FieldEventType    = "event_type"
	FieldKeys         = "keys"
)

// Component names
const (
	ComponentApp     = "app"
	ComponentPlanner = "planner"
	ComponentIncome  = "income"
	ComponentTravel  = "travel"
	ComponentSummary = "summary"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpImport   = "import"
	OpPurge    = "purge"
	OpSnapshot = "snapshot"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error field when err is not nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithMonth(key string) LogFields {
	f[FieldMonthKey] = key
	return f
}

// WithExpense adds the id and amount of an expense, plus its installment
// group when it has one.
func (f LogFields) WithExpense(id int64, amount float64, groupID string, installments int) LogFields {
	f[FieldExpenseID] = id
	f[FieldAmount] = amount
	if groupID != "" {
		f[FieldGroupID] = groupID
		f[FieldInstallments] = installments
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
