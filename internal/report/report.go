// Package report composes store snapshots and the aggregation engine into
// the dashboard and analytics views, with amounts formatted for display.
package report

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Source is a record store as seen by reports.
type Source interface {
	Snapshot() []core.Record
	List(ctx context.Context) error
}

type Amount struct {
	Cents   int64  `json:"cents"`
	Value   string `json:"value"`
	Display string `json:"display"`
}

type Category struct {
	Label string `json:"label"`
	Total Amount `json:"total"`
}

type Month struct {
	Label   string `json:"label"`
	Income  Amount `json:"income"`
	Expense Amount `json:"expense"`
	Net     Amount `json:"net"`
}

type Totals struct {
	Income  Amount `json:"total_income"`
	Expense Amount `json:"total_expense"`
	Balance Amount `json:"balance"`
}

type Dashboard struct {
	Totals            Totals     `json:"totals"`
	ExpenseByCategory []Category `json:"expense_by_category"`
	IncomeByMonth     []Month    `json:"income_by_month"`
}

type Analytics struct {
	Totals     Totals     `json:"totals"`
	Categories []Category `json:"categories"`
	Months     []Month    `json:"months"`
}

type Model struct {
	income  Source
	expense Source
	format  Formatter
	logger  *log.Logger
}

func New(income, expense Source, f Formatter, logger *log.Logger) *Model {
	if f == nil {
		f = INR{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Model{
		income:  income,
		expense: expense,
		format:  f,
		logger:  logger.WithComponent(log.ComponentReport),
	}
}

// Refresh lists both stores concurrently. Neither waits for nor cancels the
// other; a failing store keeps its previous snapshot. Both failures are
// returned joined, so callers can look for any error type among them.
func (m *Model) Refresh(ctx context.Context) error {
	var (
		g                     errgroup.Group
		incomeErr, expenseErr error
	)
	g.Go(func() error {
		incomeErr = m.income.List(ctx)
		return nil
	})
	g.Go(func() error {
		expenseErr = m.expense.List(ctx)
		return nil
	})
	_ = g.Wait()
	if err := errors.Join(incomeErr, expenseErr); err != nil {
		m.logger.WarnContext(ctx, "Report refresh incomplete", log.FieldError, err.Error())
		return err
	}
	return nil
}

// Dashboard shows where money goes and how income evolves.
func (m *Model) Dashboard() Dashboard {
	income, expense := m.income.Snapshot(), m.expense.Snapshot()
	return Dashboard{
		Totals:            m.totals(aggregate.ComputeTotals(income, expense)),
		ExpenseByCategory: m.categories(aggregate.GroupByCategory(expense)),
		IncomeByMonth:     m.months(aggregate.GroupByMonth(income, nil)),
	}
}

func (m *Model) Analytics() Analytics {
	income, expense := m.income.Snapshot(), m.expense.Snapshot()
	return Analytics{
		Totals:     m.totals(aggregate.ComputeTotals(income, expense)),
		Categories: m.categories(aggregate.GroupByCategory(expense)),
		Months:     m.months(aggregate.GroupByMonth(income, expense)),
	}
}

// MonthBuckets returns the raw combined month buckets, used for export.
func (m *Model) MonthBuckets() []core.MonthBucket {
	return aggregate.GroupByMonth(m.income.Snapshot(), m.expense.Snapshot())
}

func (m *Model) Amount(v core.Money) Amount {
	return Amount{Cents: v.Cents, Value: v.String(), Display: m.format.Format(v)}
}

func (m *Model) totals(t core.Totals) Totals {
	return Totals{
		Income:  m.Amount(t.Income),
		Expense: m.Amount(t.Expense),
		Balance: m.Amount(t.Balance),
	}
}

func (m *Model) categories(in []core.CategoryBucket) []Category {
	out := make([]Category, 0, len(in))
	for _, b := range in {
		out = append(out, Category{Label: b.Label, Total: m.Amount(b.Total)})
	}
	return out
}

func (m *Model) months(in []core.MonthBucket) []Month {
	out := make([]Month, 0, len(in))
	for _, b := range in {
		out = append(out, Month{
			Label:   b.Key.String(),
			Income:  m.Amount(b.Income),
			Expense: m.Amount(b.Expense),
			Net:     m.Amount(b.Net()),
		})
	}
	return out
}
