package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// wireRecord is the JSON shape used by the remote ledger:
// { _id, category|source, amount, note?, date, emoji? }.
type wireRecord struct {
	ID       string      `json:"_id,omitempty"`
	Source   string      `json:"source,omitempty"`
	Category string      `json:"category,omitempty"`
	Amount   json.Number `json:"amount,omitempty"`
	Note     string      `json:"note,omitempty"`
	Date     string      `json:"date,omitempty"`
	Emoji    string      `json:"emoji,omitempty"`
}

func (w *wireRecord) setLabel(k Kind, label string) {
	if k.LabelField == Income.LabelField {
		w.Source = label
		return
	}
	w.Category = label
}

// label picks the label for k, falling back to whichever field is set.
func (w wireRecord) label(k Kind) (string, Kind) {
	switch {
	case k.Is(Income):
		return w.Source, k
	case k.Is(Expense):
		return w.Category, k
	case w.Source != "":
		return w.Source, Income
	case w.Category != "":
		return w.Category, Expense
	}
	return "", k
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		ID:     r.ID,
		Amount: json.Number(r.Amount.String()),
		Note:   r.Note,
	}
	w.setLabel(r.Kind, r.Label)
	if !r.Date.IsEmpty() {
		w.Date = r.Date.UTC().Format(time.RFC3339)
	}
	if r.Kind.Tagged {
		w.Emoji = r.Tag
	}
	return json.Marshal(w)
}

// UnmarshalJSON keeps a preset Kind; otherwise the kind is inferred from
// the label field present. Missing or unparseable dates decode as zero.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	label, kind := w.label(r.Kind)
	amount := Money{}
	if w.Amount != "" {
		d, err := decimal.NewFromString(w.Amount.String())
		if err != nil {
			return ErrInvalidAmount
		}
		if amount, err = MoneyFromDecimal(d); err != nil {
			return err
		}
	}
	date, err := ParseDate(w.Date)
	if err != nil {
		date = Date{}
	}
	*r = Record{
		ID:     w.ID,
		Kind:   kind,
		Label:  label,
		Amount: amount,
		Note:   w.Note,
		Date:   date,
	}
	if kind.Tagged {
		r.Tag = w.Emoji
	}
	return nil
}

// MarshalJSON sends the coerced draft; amount goes out as a JSON number.
func (d Draft) MarshalJSON() ([]byte, error) {
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return nil, err
	}
	w := wireRecord{
		Amount: json.Number(amount.String()),
		Note:   d.Note,
		Date:   d.Date,
	}
	w.setLabel(d.Kind, d.Label)
	if d.Kind.Tagged {
		w.Emoji = d.Tag
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a submitted record body. The amount is kept as text
// so a missing amount can be told apart from zero.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	label, kind := w.label(d.Kind)
	*d = Draft{
		Kind:   kind,
		Label:  label,
		Amount: w.Amount.String(),
		Note:   w.Note,
		Date:   w.Date,
		Tag:    w.Emoji,
	}
	return nil
}
