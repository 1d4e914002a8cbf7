// Package http serves the local web client. Every page is a JSON view
// model; navigation happens through redirects decided by the session gates.
package http

import (
	"context"
	"net/http"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/gate"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/report"
	"fintrack/internal/session"
	"fintrack/internal/store"
)

const (
	homePath      = "/"
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// Session is the persisted credential as the server uses it.
type Session interface {
	Credential() (string, bool)
	State() session.State
	Set(token string) error
	Clear() error
	Claims() session.Claims
}

// Auth performs the unauthenticated ledger calls.
type Auth interface {
	Login(ctx context.Context, email, password string) (ledger.LoginResult, error)
	Register(ctx context.Context, username, email, password string) (string, error)
}

// Exporter pushes month buckets somewhere outside the client.
type Exporter interface {
	WriteMonths(ctx context.Context, months []core.MonthBucket) (string, error)
}

type Deps struct {
	Session Session
	Auth    Auth
	Income  *store.Records
	Expense *store.Records
	Profile *store.Profile
	// Exporter is nil when export is not configured.
	Exporter Exporter
	// LoginLimiter throttles POST /login and /signup when set.
	LoginLimiter *ratelimit.Limiter
	Logger       *log.Logger
}

type Server struct {
	session  Session
	auth     Auth
	income   *store.Records
	expense  *store.Records
	profile  *store.Profile
	exporter Exporter
	report   *report.Model
	logger   *log.Logger

	authGate  *gate.Gate
	guestGate *gate.Gate

	// owner is the credential the cached views were filled under.
	ownerMu sync.Mutex
	owner   string

	handler http.Handler
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		session:   d.Session,
		auth:      d.Auth,
		income:    d.Income,
		expense:   d.Expense,
		profile:   d.Profile,
		exporter:  d.Exporter,
		report:    report.New(d.Income, d.Expense, report.INR{}, logger),
		logger:    logger.WithComponent(log.ComponentHTTP),
		authGate:  gate.AuthRequired(d.Session, loginPath),
		guestGate: gate.GuestOnly(d.Session, dashboardPath),
	}

	ips := security.NewIPResolver()
	mux := http.NewServeMux()

	guest := s.guestGate.Guard
	private := func(h http.Handler) http.Handler { return s.authGate.Guard(s.ownViews(h)) }
	limited := func(h http.Handler) http.Handler { return h }
	if d.LoginLimiter != nil {
		limited = d.LoginLimiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
		})
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /{$}", s.handlePage("home"))
	mux.HandleFunc("GET /about", s.handlePage("about"))
	mux.HandleFunc("GET /contact", s.handlePage("contact"))
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /login", guest(http.HandlerFunc(s.handleLoginForm)))
	mux.Handle("POST /login", guest(limited(http.HandlerFunc(s.handleLogin))))
	mux.Handle("GET /signup", guest(http.HandlerFunc(s.handleSignupForm)))
	mux.Handle("POST /signup", guest(limited(http.HandlerFunc(s.handleSignup))))

	mux.Handle("GET /dashboard", private(http.HandlerFunc(s.handleDashboard)))
	for _, rr := range []recordRoutes{
		{s: s, kind: core.Income, st: d.Income, base: "/dashboard/income", noun: "Income"},
		{s: s, kind: core.Expense, st: d.Expense, base: "/dashboard/expenses", noun: "Expense"},
	} {
		mux.Handle("GET "+rr.base, private(http.HandlerFunc(rr.list)))
		mux.Handle("POST "+rr.base, private(http.HandlerFunc(rr.create)))
		mux.Handle("PUT "+rr.base+"/{id}", private(http.HandlerFunc(rr.update)))
		mux.Handle("DELETE "+rr.base+"/{id}", private(http.HandlerFunc(rr.remove)))
	}
	mux.Handle("GET /dashboard/analytics", private(http.HandlerFunc(s.handleAnalytics)))
	mux.Handle("POST /dashboard/analytics/export", private(http.HandlerFunc(s.handleExport)))
	mux.Handle("GET /dashboard/account", private(http.HandlerFunc(s.handleAccount)))
	mux.Handle("PUT /dashboard/account", private(http.HandlerFunc(s.handleAccountUpdate)))

	mux.HandleFunc("/", handleNotFound)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.handler = trace.NewMiddleware(logger, ips.ClientIP).Middleware(headers.Middleware(mux))
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, "not found")
}

// ownViews empties the stores whenever the credential differs from the
// one they were filled under, including changes made by another process.
func (s *Server) ownViews(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, _ := s.session.Credential()
		s.claimViews(cred)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) claimViews(cred string) {
	s.ownerMu.Lock()
	defer s.ownerMu.Unlock()
	if cred == s.owner {
		return
	}
	s.owner = cred
	s.income.Reset()
	s.expense.Reset()
	s.profile.Reset()
}

// expire drops a rejected credential and sends the user to login.
func (s *Server) expire(w http.ResponseWriter, r *http.Request) {
	s.claimViews("")
	if err := s.session.Clear(); err != nil {
		log.FromContext(r.Context()).Error("Failed to clear session",
			log.NewFields().WithError(err, log.ErrorTypeInternal).ToSlice()...)
	}
	log.FromContext(r.Context()).Info("Credential rejected, session cleared", log.FieldPath, r.URL.Path)
	gate.Redirect(w, r, gate.LoginURL(loginPath, r.URL.RequestURI()))
}
