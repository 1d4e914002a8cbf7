package core

import (
	"fmt"
	"time"
)

// CategoryBucket is the total of all records sharing one label.
type CategoryBucket struct {
	Label string
	Total Money
}

// MonthKey identifies a calendar month. The zero key collects records
// whose date is missing or could not be parsed.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthBucket holds both collections' totals for one month.
type MonthBucket struct {
	Key     MonthKey
	Income  Money
	Expense Money
}

// Totals is derived from the collections and never stored.
type Totals struct {
	Income  Money
	Expense Money
	Balance Money
}

// MonthOf truncates a date to its month.
func MonthOf(d Date) MonthKey {
	if d.IsEmpty() {
		return MonthKey{}
	}
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

func (k MonthKey) Unknown() bool {
	return k.Year == 0 && k.Month == 0
}

// Before orders keys chronologically; the unknown key sorts last.
func (k MonthKey) Before(o MonthKey) bool {
	switch {
	case k.Unknown():
		return false
	case o.Unknown():
		return true
	case k.Year != o.Year:
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// String renders "Jan-2024", or "unknown" for the fallback bucket.
func (k MonthKey) String() string {
	if k.Unknown() {
		return "unknown"
	}
	return fmt.Sprintf("%s-%d", k.Month.String()[:3], k.Year)
}

// Net is income minus expense for the month.
func (b MonthBucket) Net() Money {
	return b.Income.Sub(b.Expense)
}
