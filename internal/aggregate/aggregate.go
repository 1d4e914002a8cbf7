// Package aggregate folds record collections into category buckets, month
// buckets and totals. Every function is pure and works in integer cents.
package aggregate

import (
	"sort"

	"fintrack/internal/core"
)

// GroupByCategory sums amounts per label. Labels are compared exactly, so
// "Food" and "food" are different buckets. Output is sorted by label.
func GroupByCategory(records []core.Record) []core.CategoryBucket {
	idx := make(map[string]int, len(records))
	out := make([]core.CategoryBucket, 0)
	for _, r := range records {
		i, ok := idx[r.Label]
		if !ok {
			i = len(out)
			idx[r.Label] = i
			out = append(out, core.CategoryBucket{Label: r.Label})
		}
		out[i].Total = out[i].Total.Add(r.Amount)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out
}

// GroupByMonth merges both collections into one bucket per calendar month,
// sorted chronologically. Records without a usable date land in the
// unknown bucket, which sorts last.
func GroupByMonth(income, expense []core.Record) []core.MonthBucket {
	buckets := make(map[core.MonthKey]*core.MonthBucket)
	get := func(k core.MonthKey) *core.MonthBucket {
		b, ok := buckets[k]
		if !ok {
			b = &core.MonthBucket{Key: k}
			buckets[k] = b
		}
		return b
	}
	for _, r := range income {
		b := get(core.MonthOf(r.Date))
		b.Income = b.Income.Add(r.Amount)
	}
	for _, r := range expense {
		b := get(core.MonthOf(r.Date))
		b.Expense = b.Expense.Add(r.Amount)
	}

	out := make([]core.MonthBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Before(out[j].Key) })
	return out
}

// ComputeTotals sums each collection; balance is income minus expense.
func ComputeTotals(income, expense []core.Record) core.Totals {
	t := core.Totals{
		Income:  Sum(income),
		Expense: Sum(expense),
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// Sum adds up the amounts of records.
func Sum(records []core.Record) core.Money {
	var total core.Money
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}
