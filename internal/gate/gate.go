// Package gate decides, from the session state, whether a route may render
// or must redirect.
package gate

import (
	"net/http"
	"net/url"

	"fintrack/internal/log"
	"fintrack/internal/session"
)

// Checker reports the current credential state without blocking.
type Checker interface {
	State() session.State
}

// Decision is what a gate does for one state.
type Decision struct {
	Render   bool
	Location string // redirect target when Render is false
}

type variant int

const (
	guestOnly variant = iota
	authRequired
)

type Gate struct {
	checker Checker
	variant variant
	target  string
}

// GuestOnly keeps authenticated users away from login and signup, sending
// them to landing instead.
func GuestOnly(checker Checker, landing string) *Gate {
	return &Gate{checker: checker, variant: guestOnly, target: landing}
}

// AuthRequired sends guests to login, remembering where they were going.
func AuthRequired(checker Checker, login string) *Gate {
	return &Gate{checker: checker, variant: authRequired, target: login}
}

func (g *Gate) Check(*http.Request) session.State {
	return g.checker.State()
}

// Decide is the pure decision for st.
func (g *Gate) Decide(st session.State) Decision {
	switch g.variant {
	case guestOnly:
		if st == session.Authenticated {
			return Decision{Location: g.target}
		}
	case authRequired:
		if st == session.Guest {
			return Decision{Location: g.target}
		}
	}
	return Decision{Render: true}
}

// Guard renders next or redirects without writing a body.
func (g *Gate) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(g.Check(r))
		if d.Render {
			next.ServeHTTP(w, r)
			return
		}
		location := d.Location
		if g.variant == authRequired {
			location = LoginURL(d.Location, r.URL.RequestURI())
		}
		log.FromContext(r.Context()).Debug("Gate redirect",
			log.FieldPath, r.URL.Path,
			"location", location)
		Redirect(w, r, location)
	})
}

// LoginURL appends the originating location as the from parameter.
func LoginURL(login, from string) string {
	if from == "" || from == "/" {
		return login
	}
	return login + "?" + url.Values{"from": {from}}.Encode()
}

// Redirect uses 302 for GET and HEAD and 303 otherwise, so a rejected form
// submission is retried as a GET on the target.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	status := http.StatusSeeOther
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		status = http.StatusFound
	}
	w.Header().Set("Location", location)
	w.WriteHeader(status)
}

// ReturnTo returns a safe local path taken from the from parameter, or fallback.
func ReturnTo(from, fallback string) string {
	if from == "" {
		return fallback
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' {
		return fallback
	}
	if len(from) > 1 && (from[1] == '/' || from[1] == '\\') {
		return fallback
	}
	return u.RequestURI()
}
