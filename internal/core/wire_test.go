package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecordUnmarshalInfersKind(t *testing.T) {
	var r Record
	body := `{"_id":"a1","category":"Food","amount":100.5,"date":"2024-01-20T00:00:00.000Z","emoji":"🍕"}`
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Kind.Is(Expense) || r.Label != "Food" || r.Amount.Cents != 10050 || r.Tag != "🍕" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.Date.Year() != 2024 {
		t.Fatalf("date not parsed: %v", r.Date)
	}
}

func TestRecordUnmarshalBadDateIsZero(t *testing.T) {
	r := Record{Kind: Income}
	if err := json.Unmarshal([]byte(`{"_id":"x","source":"Gift","amount":"20","date":"not a date"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Date.IsEmpty() {
		t.Fatalf("expected zero date, got %v", r.Date)
	}
	if r.Amount.Cents != 2000 {
		t.Fatalf("string amount not coerced: %d", r.Amount.Cents)
	}
}

func TestRecordUnmarshalRejectsNegativeAmount(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"source":"Gift","amount":-1}`), &r); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestDraftMarshalSendsNumber(t *testing.T) {
	d := Draft{Kind: Income, Label: "Salary", Amount: "5000", Date: "2024-01-15T00:00:00Z", Tag: "x"}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"amount":5000.00`) {
		t.Fatalf("amount not sent as number: %s", s)
	}
	if !strings.Contains(s, `"source":"Salary"`) || strings.Contains(s, "category") {
		t.Fatalf("wrong label field: %s", s)
	}
	if strings.Contains(s, "emoji") {
		t.Fatalf("income must not carry emoji: %s", s)
	}
}

func TestDraftMarshalRejectsBadAmount(t *testing.T) {
	if _, err := json.Marshal(Draft{Kind: Expense, Label: "Food", Amount: "abc"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDraftUnmarshalKeepsMissingAmount(t *testing.T) {
	d := Draft{Kind: Expense}
	if err := json.Unmarshal([]byte(`{"category":"Food"}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Amount != "" {
		t.Fatalf("expected empty amount, got %q", d.Amount)
	}
	if err := d.Validate(); err == nil || err.Error() != "amount is required" {
		t.Fatalf("unexpected validation: %v", err)
	}
}
