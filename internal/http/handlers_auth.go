package http

import (
	"net/http"
	"strings"

	"fintrack/internal/gate"
	"fintrack/internal/log"
	"fintrack/internal/session"
)

type pageView struct {
	Page          string `json:"page"`
	Title         string `json:"title"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

var pageTitles = map[string]string{
	"home":    "Track your income and expenses",
	"about":   "About",
	"contact": "Contact",
}

// handlePage answers the public pages; they render for everyone.
func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := pageView{Page: name, Title: pageTitles[name]}
		if s.session.State() == session.Authenticated {
			v.Authenticated = true
			v.Username = s.session.Claims().Username
		}
		writeJSON(w, http.StatusOK, v)
	}
}

type formView struct {
	Form   string   `json:"form"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
	From   string   `json:"from,omitempty"`
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formView{
		Form:   "login",
		Action: loginPath,
		Fields: []string{"email", "password"},
		From:   gate.ReturnTo(r.URL.Query().Get("from"), ""),
	})
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formView{
		Form:   "signup",
		Action: "/signup",
		Fields: []string{"username", "email", "password"},
	})
}

// handleLogin stores the credential and returns the user to where the
// login gate stopped them.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	email, password := strings.TrimSpace(f["email"]), f["password"]
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, messageBody{
			Message: "Email and password are required",
			Fields:  missing(map[string]string{"email": email, "password": password}, "email", "password"),
		})
		return
	}

	logger := log.FromContext(r.Context())
	res, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		logger.Warn("Login failed", log.NewFields().WithOperation(log.OpLogin).WithError(err, errorType(err)).ToSlice()...)
		writeJSON(w, statusFor(err), errorBody(err))
		return
	}
	if err := s.session.Set(res.Credential); err != nil {
		logger.Error("Failed to store credential", log.NewFields().WithOperation(log.OpLogin).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		writeMessage(w, http.StatusInternalServerError, "Could not save your session, please try again")
		return
	}
	logger.Info("Logged in", log.FieldOperation, log.OpLogin)

	from := r.URL.Query().Get("from")
	if from == "" {
		from = f["from"]
	}
	gate.Redirect(w, r, gate.ReturnTo(from, dashboardPath))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	username, email, password := strings.TrimSpace(f["username"]), strings.TrimSpace(f["email"]), f["password"]
	if username == "" || email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, messageBody{
			Message: "Username, email and password are required",
			Fields: missing(map[string]string{"username": username, "email": email, "password": password},
				"username", "email", "password"),
		})
		return
	}

	if _, err := s.auth.Register(r.Context(), username, email, password); err != nil {
		log.FromContext(r.Context()).Warn("Signup failed",
			log.NewFields().WithOperation(log.OpRegister).WithError(err, errorType(err)).ToSlice()...)
		writeJSON(w, statusFor(err), errorBody(err))
		return
	}
	gate.Redirect(w, r, loginPath)
}

// handleLogout clears the credential whatever the current state.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.claimViews("")
	if err := s.session.Clear(); err != nil {
		log.FromContext(r.Context()).Error("Failed to clear session",
			log.NewFields().WithOperation(log.OpLogout).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		writeMessage(w, http.StatusInternalServerError, "Could not log out, please try again")
		return
	}
	gate.Redirect(w, r, homePath)
}

func missing(values map[string]string, order ...string) []string {
	var out []string
	for _, k := range order {
		if values[k] == "" {
			out = append(out, k)
		}
	}
	return out
}
