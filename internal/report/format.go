package report

import (
	"strings"

	"fintrack/internal/core"
)

// Formatter renders money for display in one fixed currency.
type Formatter interface {
	Format(m core.Money) string
}

// INR formats rupees with Indian digit grouping, e.g. ₹1,23,456.50.
type INR struct{}

func (INR) Format(m core.Money) string {
	neg := m.Cents < 0
	if neg {
		m.Cents = -m.Cents
	}
	fixed := m.Decimal().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	s := "₹" + groupIndian(whole) + "." + frac
	if neg {
		return "-" + s
	}
	return s
}

// groupIndian puts a comma before the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}
