package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Kind describes one record collection served by the remote ledger.
	Kind struct {
		Name       string   // "income" or "expense"
		Path       string   // collection endpoint
		Collection string   // key wrapping the list response
		LabelField string   // wire name of the label: "source" or "category"
		Required   []string // fields that must be present before a save
		Tagged     bool     // whether records carry a tag (emoji)
	}

	Record struct {
		ID     string // assigned by the remote ledger
		Kind   Kind
		Label  string // source for income, category for expenses
		Amount Money
		Note   string
		Date   Date
		Tag    string // expense only
	}

	// Draft is a record as the user typed it, before coercion.
	Draft struct {
		Kind   Kind
		Label  string
		Amount string
		Note   string
		Date   string
		Tag    string
	}

	Account struct {
		Username string
		Email    string
	}

	// AccountUpdate changes the profile. A blank Password leaves it unchanged.
	AccountUpdate struct {
		Username string
		Email    string
		Password string
	}
)

const FieldAmount = "amount"

var (
	Income = Kind{
		Name:       "income",
		Path:       "/api/income",
		Collection: "incomes",
		LabelField: "source",
		Required:   []string{"source", FieldAmount},
	}
	Expense = Kind{
		Name:       "expense",
		Path:       "/api/expenses",
		Collection: "expenses",
		LabelField: "category",
		Required:   []string{"category", FieldAmount},
		Tagged:     true,
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrUnknownKind   = errors.New("unknown record kind")
)

// Is reports whether k and other describe the same collection.
func (k Kind) Is(other Kind) bool {
	return k.Name != "" && k.Name == other.Name
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC3339 timestamps and plain calendar dates.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the fields the kind requires and that amount and date
// can be coerced. Missing fields are reported together.
func (d Draft) Validate() error {
	if d.Kind.Name == "" {
		return ErrUnknownKind
	}
	var missing []string
	for _, f := range d.Kind.Required {
		if strings.TrimSpace(d.field(f)) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if _, err := ParseAmount(d.Amount); err != nil {
		return &ValidationError{Fields: []string{FieldAmount}, Invalid: true}
	}
	if strings.TrimSpace(d.Date) != "" {
		if _, err := ParseDate(d.Date); err != nil {
			return &ValidationError{Fields: []string{"date"}, Invalid: true}
		}
	}
	return nil
}

// Normalize trims input, fills a blank date with now and drops the tag
// for kinds that do not carry one.
func (d Draft) Normalize(now time.Time) Draft {
	d.Label = strings.TrimSpace(d.Label)
	d.Amount = strings.TrimSpace(d.Amount)
	d.Note = strings.TrimSpace(d.Note)
	d.Date = strings.TrimSpace(d.Date)
	if d.Date == "" {
		d.Date = now.UTC().Format(time.RFC3339)
	}
	if !d.Kind.Tagged {
		d.Tag = ""
	}
	return d
}

// Record coerces a valid draft into a record without an ID.
func (d Draft) Record() (Record, error) {
	if err := d.Validate(); err != nil {
		return Record{}, err
	}
	amount, _ := ParseAmount(d.Amount)
	var date Date
	if strings.TrimSpace(d.Date) != "" {
		date, _ = ParseDate(d.Date)
	}
	r := Record{
		Kind:   d.Kind,
		Label:  strings.TrimSpace(d.Label),
		Amount: amount,
		Note:   strings.TrimSpace(d.Note),
		Date:   date,
	}
	if d.Kind.Tagged {
		r.Tag = d.Tag
	}
	return r, nil
}

func (d Draft) field(name string) string {
	switch name {
	case d.Kind.LabelField:
		return d.Label
	case FieldAmount:
		return d.Amount
	case "note":
		return d.Note
	case "date":
		return d.Date
	}
	return ""
}

func (a AccountUpdate) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(a.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// ChangesPassword reports whether the update carries a new password.
func (a AccountUpdate) ChangesPassword() bool {
	return strings.TrimSpace(a.Password) != ""
}
