package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

func TestConfigEnabled(t *testing.T) {
	cases := []struct {
		cfg  Config
		want bool
	}{
		{Config{}, false},
		{Config{SpreadsheetID: "id"}, false},
		{Config{CredentialsJSON: "{}"}, false},
		{Config{SpreadsheetID: "id", CredentialsJSON: "{}"}, true},
		{Config{SpreadsheetID: "id", CredentialsFile: "/sa.json"}, true},
	}
	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("%+v: got %v, want %v", tc.cfg, got, tc.want)
		}
	}
}

func TestNewSheetsRequiresSpreadsheet(t *testing.T) {
	if _, err := NewSheets(context.Background(), Config{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewSheets(context.Background(), Config{SpreadsheetID: "id"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without credentials, got %v", err)
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]core.MonthBucket{
		{Key: core.MonthKey{Year: 2024, Month: time.January}, Income: core.Money{Cents: 100000}, Expense: core.Money{Cents: 40000}},
		{Income: core.Money{Cents: 5}},
	})
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	want := []any{"Jan-2024", "1000.00", "400.00", "600.00"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("row 1 = %v, want %v", rows[1], want)
		}
	}
	if rows[2][0] != "unknown" {
		t.Fatalf("undated bucket label = %v", rows[2][0])
	}
}

func TestWriteMonths(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		sent  struct {
			Values [][]string `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &sent); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	s, err := NewSheets(context.Background(), Config{SpreadsheetID: "sheet-id", SheetName: "Months"}, nil,
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rng, err := s.WriteMonths(context.Background(), []core.MonthBucket{
		{Key: core.MonthKey{Year: 2024, Month: time.March}, Income: core.Money{Cents: 250}, Expense: core.Money{Cents: 100}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if rng != "Months!A1:D2" {
		t.Fatalf("unexpected range %q", rng)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || !strings.HasPrefix(calls[0], "POST ") || !strings.HasSuffix(calls[0], ":clear") || !strings.HasPrefix(calls[1], "PUT ") {
		t.Fatalf("unexpected calls %v", calls)
	}
	if !strings.Contains(calls[1], "/v4/spreadsheets/sheet-id/values/") {
		t.Fatalf("unexpected path %s", calls[1])
	}
	if len(sent.Values) != 2 || sent.Values[1][0] != "Mar-2024" || sent.Values[1][3] != "1.50" {
		t.Fatalf("unexpected values %v", sent.Values)
	}
}
