package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

type accountView struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

func (s *Server) accountView() accountView {
	a, _ := s.profile.Account()
	return accountView{Username: a.Username, Email: a.Email}
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	err := s.profile.Load(r.Context())
	if err != nil && ledger.IsAuth(err) {
		s.expire(w, r)
		return
	}
	v := s.accountView()
	if err != nil {
		v.Notice = "Failed to load user data"
	}
	writeJSON(w, http.StatusOK, v)
}

// handleAccountUpdate saves the profile; a blank password keeps the
// current one.
func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	upd := core.AccountUpdate{Username: f["username"], Email: f["email"], Password: f["password"]}
	err = s.profile.Save(r.Context(), upd)
	if err != nil && ledger.IsAuth(err) {
		s.expire(w, r)
		return
	}
	if !store.Applied(err) {
		log.FromContext(r.Context()).Warn("Account update failed",
			log.NewFields().WithOperation(log.OpAccount).WithError(err, errorType(err)).ToSlice()...)
		writeJSON(w, statusFor(err), errorBody(err))
		return
	}
	v := s.accountView()
	v.Message = "Profile updated successfully"
	if err != nil {
		v.Notice = ledger.Message(err)
	}
	writeJSON(w, http.StatusOK, v)
}
