package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/ledgerdev"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/session"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExporter struct {
	mu     sync.Mutex
	months []core.MonthBucket
}

func (f *fakeExporter) WriteMonths(_ context.Context, months []core.MonthBucket) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.months = months
	return "Summary!A1:D2", nil
}

type harness struct {
	srv    *Server
	sess   *session.Service
	ledger *httptest.Server
}

type harnessOption func(*Deps)

// newHarness wires the client server to a development ledger over HTTP,
// with a real session directory.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	dev := ledgerdev.New(storage.NewMemoryRepository(), nil, ledgerdev.Config{
		JWTSecret:          "test-secret-0123456789",
		LoginRatePerMinute: 100,
	}, nil)
	lsrv := httptest.NewServer(dev.Handler())

	sess, err := session.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() {
		sess.Close()
		lsrv.Close()
		dev.Close()
	})

	client := ledger.New(lsrv.URL, ledger.Options{Credentials: sess})
	d := Deps{
		Session: sess,
		Auth:    client,
		Income:  store.NewRecords(core.Income, client.Records(core.Income), nil, store.WithMessages(ledger.Message)),
		Expense: store.NewRecords(core.Expense, client.Records(core.Expense), nil, store.WithMessages(ledger.Message)),
		Profile: store.NewProfile(client, nil, store.WithMessages(ledger.Message)),
	}
	for _, o := range opts {
		o(&d)
	}
	return &harness{srv: NewServer(d), sess: sess, ledger: lsrv}
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

// login registers asha and logs in through the client routes.
func (h *harness) login(t *testing.T) {
	t.Helper()
	h.loginAs(t, "asha", "asha@example.com")
}

func (h *harness) loginAs(t *testing.T, username, email string) {
	t.Helper()
	body := `{"username":"` + username + `","email":"` + email + `","password":"secret123"}`
	if rec := h.do(t, http.MethodPost, "/signup", body); rec.Code != http.StatusSeeOther {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body)
	}
	if rec := h.do(t, http.MethodPost, "/login", `{"email":"`+email+`","password":"secret123"}`); rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body)
	}
	if h.sess.State() != session.Authenticated {
		t.Fatal("login did not store the credential")
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGuestIsSentToLogin(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		method   string
		target   string
		status   int
		location string
	}{
		{http.MethodGet, "/dashboard", http.StatusFound, "/login?from=%2Fdashboard"},
		{http.MethodGet, "/dashboard/expenses?x=1", http.StatusFound, "/login?from=%2Fdashboard%2Fexpenses%3Fx%3D1"},
		{http.MethodPost, "/dashboard/income", http.StatusSeeOther, "/login?from=%2Fdashboard%2Fincome"},
		{http.MethodGet, "/dashboard/account", http.StatusFound, "/login?from=%2Fdashboard%2Faccount"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := h.do(t, tt.method, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Location"); got != tt.location {
				t.Fatalf("Location = %q, want %q", got, tt.location)
			}
			if rec.Body.Len() != 0 {
				t.Fatalf("redirect rendered a body: %q", rec.Body)
			}
		})
	}
}

func TestAuthenticatedIsSentToDashboard(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.Set("any-credential"); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/login", http.StatusFound},
		{http.MethodGet, "/signup", http.StatusFound},
		{http.MethodPost, "/login", http.StatusSeeOther},
	} {
		rec := h.do(t, tt.method, tt.target, "")
		if rec.Code != tt.status || rec.Header().Get("Location") != "/dashboard" {
			t.Fatalf("%s %s: status = %d, Location = %q", tt.method, tt.target, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestSignupAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/signup", `{"username":"asha","email":"asha@example.com","password":"secret123"}`)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("signup: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = h.do(t, http.MethodPost, "/signup", `{"username":"asha","email":"asha@example.com","password":"secret123"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}
	if msg := decode[messageBody](t, rec).Message; msg != "User already exists" {
		t.Fatalf("duplicate signup message = %q", msg)
	}

	rec = h.do(t, http.MethodPost, "/signup", `{"email":"x@example.com"}`)
	if body := decode[messageBody](t, rec); rec.Code != http.StatusBadRequest || strings.Join(body.Fields, ",") != "username,password" {
		t.Fatalf("incomplete signup: %d %+v", rec.Code, body)
	}

	rec = h.do(t, http.MethodPost, "/login?from=%2Fdashboard%2Fincome", `{"email":"asha@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized || decode[messageBody](t, rec).Message != "Invalid credentials" {
		t.Fatalf("bad login: %d %s", rec.Code, rec.Body)
	}
	if h.sess.State() != session.Guest {
		t.Fatal("failed login must not store a credential")
	}

	rec = h.do(t, http.MethodPost, "/login?from=%2Fdashboard%2Fincome", `{"email":"asha@example.com","password":"secret123"}`)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/income" {
		t.Fatalf("login: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if h.sess.State() != session.Authenticated {
		t.Fatal("credential not stored")
	}

	page := decode[pageView](t, h.do(t, http.MethodGet, "/", ""))
	if !page.Authenticated || page.Username != "asha" {
		t.Fatalf("landing page = %+v", page)
	}
}

func TestLoginFromIgnoresForeignTargets(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/signup", `{"username":"asha","email":"asha@example.com","password":"secret123"}`)

	form := url.Values{"email": {"asha@example.com"}, "password": {"secret123"}, "from": {"//evil.example/"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("login: %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginFormCarriesFrom(t *testing.T) {
	h := newHarness(t)
	form := decode[formView](t, h.do(t, http.MethodGet, "/login?from=%2Fdashboard%2Fanalytics", ""))
	if form.Form != "login" || form.From != "/dashboard/analytics" {
		t.Fatalf("form = %+v", form)
	}
}

func TestRecordsCRUD(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.do(t, http.MethodPost, "/dashboard/income", `{"source":"Salary","amount":5000,"date":"2024-01-15"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	created := decode[recordsView](t, rec)
	if created.Message != "Income added!" || created.Record == nil || len(created.Records) != 1 {
		t.Fatalf("create view = %+v", created)
	}
	got := created.Records[0]
	if got.Label != "Salary" || got.Amount.Cents != 500000 || got.Amount.Display != "₹5,000.00" {
		t.Fatalf("record = %+v", got)
	}
	id := got.ID

	rec = h.do(t, http.MethodPut, "/dashboard/income/"+id, `{"source":"Salary","amount":"5200.50","date":"2024-01-15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	if v := decode[recordsView](t, rec); v.Records[0].Amount.Cents != 520050 || v.Total.Display != "₹5,200.50" {
		t.Fatalf("update view = %+v", v)
	}

	rec = h.do(t, http.MethodDelete, "/dashboard/income/"+id, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete: %d", rec.Code)
	}
	if v := decode[confirmView](t, rec); !v.Confirm || v.Message != "Are you sure you want to delete this income?" {
		t.Fatalf("confirm view = %+v", v)
	}
	if v := decode[recordsView](t, h.do(t, http.MethodGet, "/dashboard/income", "")); len(v.Records) != 1 {
		t.Fatal("unconfirmed delete removed the record")
	}

	rec = h.do(t, http.MethodDelete, "/dashboard/income/"+id+"?confirm=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body)
	}
	if v := decode[recordsView](t, rec); len(v.Records) != 0 || v.Message != "Income deleted successfully" {
		t.Fatalf("delete view = %+v", v)
	}

	rec = h.do(t, http.MethodDelete, "/dashboard/income/"+id, `{"confirm":true}`)
	if rec.Code != http.StatusNotFound || decode[recordsView](t, rec).Message != "Record not found" {
		t.Fatalf("second delete: %d %s", rec.Code, rec.Body)
	}
}

func TestCreateValidationMakesNoChange(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.do(t, http.MethodPost, "/dashboard/expenses", `{"amount":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Message string   `json:"message"`
		Fields  []string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "Category is required" || strings.Join(body.Fields, ",") != "category" {
		t.Fatalf("body = %+v", body)
	}
}

func TestFormEncodedCreate(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	form := url.Values{"category": {"Food"}, "amount": {"12,50"}, "emoji": {"🍔"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/expenses", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	v := decode[recordsView](t, rec)
	if v.Record.Label != "Food" || v.Record.Amount.Cents != 1250 || v.Record.Tag != "🍔" || v.Record.Date == "" {
		t.Fatalf("record = %+v", v.Record)
	}
}

func TestDashboardAndAnalytics(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.do(t, http.MethodPost, "/dashboard/income", `{"source":"Salary","amount":1000,"date":"2024-01-15"}`)
	h.do(t, http.MethodPost, "/dashboard/expenses", `{"category":"Rent","amount":400,"date":"2024-01-20"}`)

	rec := h.do(t, http.MethodGet, "/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d", rec.Code)
	}
	dash := decode[dashboardView](t, rec)
	if dash.Username != "asha" || dash.Totals.Balance.Display != "₹600.00" {
		t.Fatalf("dashboard = %+v", dash)
	}
	if len(dash.ExpenseByCategory) != 1 || dash.ExpenseByCategory[0].Label != "Rent" {
		t.Fatalf("categories = %+v", dash.ExpenseByCategory)
	}
	if len(dash.IncomeByMonth) != 1 || dash.IncomeByMonth[0].Label != "Jan-2024" || dash.IncomeByMonth[0].Expense.Cents != 0 {
		t.Fatalf("income by month = %+v", dash.IncomeByMonth)
	}

	an := decode[analyticsView](t, h.do(t, http.MethodGet, "/dashboard/analytics", ""))
	if len(an.Months) != 1 || an.Months[0].Income.Cents != 100000 || an.Months[0].Expense.Cents != 40000 || an.Months[0].Net.Cents != 60000 {
		t.Fatalf("analytics months = %+v", an.Months)
	}
}

func TestRejectedCredentialClearsSession(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.Set("forged-credential"); err != nil {
		t.Fatal(err)
	}

	rec := h.do(t, http.MethodGet, "/dashboard/income", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login?from=%2Fdashboard%2Fincome" {
		t.Fatalf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if h.sess.State() != session.Guest {
		t.Fatal("rejected credential was kept")
	}
}

func TestLedgerUnreachableKeepsSnapshot(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.do(t, http.MethodPost, "/dashboard/expenses", `{"category":"Rent","amount":400}`)
	h.ledger.Close()

	rec := h.do(t, http.MethodGet, "/dashboard/expenses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	v := decode[recordsView](t, rec)
	if v.Notice != "Could not reach the ledger, please try again" || len(v.Records) != 1 {
		t.Fatalf("stale view = %+v", v)
	}

	rec = h.do(t, http.MethodPost, "/dashboard/expenses", `{"category":"Food","amount":10}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("create status = %d", rec.Code)
	}
	if v := decode[recordsView](t, rec); len(v.Records) != 1 || v.Message == "" {
		t.Fatalf("failed create view = %+v", v)
	}
	if h.sess.State() != session.Authenticated {
		t.Fatal("network failure must not log the user out")
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.sess.Set("credential")
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := h.do(t, method, "/logout", "")
		if rec.Header().Get("Location") != "/" {
			t.Fatalf("%s /logout: Location = %q", method, rec.Header().Get("Location"))
		}
		if h.sess.State() != session.Guest {
			t.Fatal("logout kept the credential")
		}
	}
}

func TestAccount(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	v := decode[accountView](t, h.do(t, http.MethodGet, "/dashboard/account", ""))
	if v.Username != "asha" || v.Email != "asha@example.com" {
		t.Fatalf("account = %+v", v)
	}

	rec := h.do(t, http.MethodPut, "/dashboard/account", `{"username":"asha.k","email":"asha@example.com","password":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	v = decode[accountView](t, rec)
	if v.Message != "Profile updated successfully" || v.Username != "asha.k" {
		t.Fatalf("update view = %+v", v)
	}

	rec = h.do(t, http.MethodPut, "/dashboard/account", `{"username":"","email":""}`)
	if rec.Code != http.StatusBadRequest || decode[messageBody](t, rec).Message != "Username and email are required" {
		t.Fatalf("invalid update: %d %s", rec.Code, rec.Body)
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	if rec := h.do(t, http.MethodPost, "/dashboard/analytics/export", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured export: %d", rec.Code)
	}

	exp := &fakeExporter{}
	h = newHarness(t, func(d *Deps) { d.Exporter = exp })
	h.login(t)
	h.do(t, http.MethodPost, "/dashboard/income", `{"source":"Salary","amount":1000,"date":"2024-01-15"}`)

	rec := h.do(t, http.MethodPost, "/dashboard/analytics/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body)
	}
	v := decode[exportView](t, rec)
	if v.Range != "Summary!A1:D2" || v.Months != 1 || len(exp.months) != 1 {
		t.Fatalf("export view = %+v, months = %+v", v, exp.months)
	}
}

func TestLoginRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.PerMinute(1))
	t.Cleanup(limiter.Stop)
	h := newHarness(t, func(d *Deps) { d.LoginLimiter = limiter })

	h.do(t, http.MethodPost, "/login", `{"email":"a@b.c","password":"x"}`)
	rec := h.do(t, http.MethodPost, "/login", `{"email":"a@b.c","password":"x"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || decode[messageBody](t, rec).Message != "not found" {
		t.Fatalf("not found: %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("middleware headers missing")
	}

	if rec := h.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	for _, p := range []string{"/", "/about", "/contact"} {
		page := decode[pageView](t, h.do(t, http.MethodGet, p, ""))
		if page.Authenticated || page.Page == "" {
			t.Fatalf("%s = %+v", p, page)
		}
	}
}

func TestNextUserNeverSeesPreviousUserData(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	if rec := h.do(t, http.MethodPost, "/dashboard/expenses", `{"category":"Asha-Private","amount":999}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	h.do(t, http.MethodGet, "/dashboard/account", "")
	h.do(t, http.MethodGet, "/dashboard", "")
	h.do(t, http.MethodPost, "/logout", "")

	h.loginAs(t, "bob", "bob@example.com")
	h.ledger.Close()

	expenses := h.do(t, http.MethodGet, "/dashboard/expenses", "")
	if v := decode[recordsView](t, expenses); len(v.Records) != 0 || v.Total.Cents != 0 || v.Notice == "" {
		t.Fatalf("expenses view = %+v", v)
	}

	dash := h.do(t, http.MethodGet, "/dashboard", "")
	if strings.Contains(dash.Body.String(), "Asha-Private") {
		t.Fatalf("dashboard leaked previous data: %s", dash.Body)
	}
	if v := decode[dashboardView](t, dash); v.Username != "bob" || v.Totals.Balance.Cents != 0 {
		t.Fatalf("dashboard = %+v", v)
	}

	account := h.do(t, http.MethodGet, "/dashboard/account", "")
	if strings.Contains(account.Body.String(), "asha") {
		t.Fatalf("account leaked previous profile: %s", account.Body)
	}
	if v := decode[accountView](t, account); v.Notice != "Failed to load user data" {
		t.Fatalf("account = %+v", v)
	}
}

func TestCredentialSwapEmptiesViews(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.do(t, http.MethodPost, "/dashboard/income", `{"source":"Salary","amount":5000}`)

	// Another process replaces the credential without a logout in between.
	if err := h.sess.Set("someone-else"); err != nil {
		t.Fatal(err)
	}
	h.ledger.Close()

	v := decode[recordsView](t, h.do(t, http.MethodGet, "/dashboard/income", ""))
	if len(v.Records) != 0 {
		t.Fatalf("records kept across credentials: %+v", v.Records)
	}
}
