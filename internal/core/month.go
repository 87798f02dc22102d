package core

import (
	"fmt"
	"time"
)

// Month identifies a calendar month. Month is 0-based (0 = January).
type Month struct {
	Year  int
	Month int
}

// KeyFor returns the storage key of a calendar month.
func KeyFor(year, month int) string {
	return fmt.Sprintf("%d_%d", year, month)
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month()) - 1}
}

func (m Month) Key() string {
	return KeyFor(m.Year, m.Month)
}

// AddMonths moves n months forward (or backward when n is negative),
// rolling over year boundaries.
func (m Month) AddMonths(n int) Month {
	total := m.Year*12 + m.Month + n
	y, mo := total/12, total%12
	if mo < 0 {
		mo += 12
		y--
	}
	return Month{Year: y, Month: mo}
}

func (m Month) Validate() error {
	if m.Month < 0 || m.Month > 11 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, m.Month)
	}
	return nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month+1)
}
