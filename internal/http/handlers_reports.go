package http

import (
	"net/http"

	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

type dashboardView struct {
	Username string `json:"username,omitempty"`
	report.Dashboard
	Notice string `json:"notice,omitempty"`
}

type analyticsView struct {
	report.Analytics
	Notice string `json:"notice,omitempty"`
}

type exportView struct {
	Message string `json:"message"`
	Range   string `json:"range"`
	Months  int    `json:"months"`
}

// refresh re-reads both stores. It reports false after answering with a
// login redirect; otherwise the notice describes any failed read.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) (string, bool) {
	err := s.report.Refresh(r.Context())
	if err == nil {
		return "", true
	}
	if ledger.IsAuth(err) {
		s.expire(w, r)
		return "", false
	}
	return ledger.Message(err), true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	notice, ok := s.refresh(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboardView{
		Username:  s.session.Claims().Username,
		Dashboard: s.report.Dashboard(),
		Notice:    notice,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	notice, ok := s.refresh(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analyticsView{Analytics: s.report.Analytics(), Notice: notice})
}

// handleExport writes the current month buckets to the configured sheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Sheets export is not configured")
		return
	}
	notice, ok := s.refresh(w, r)
	if !ok {
		return
	}
	if notice != "" {
		writeMessage(w, http.StatusBadGateway, notice)
		return
	}

	months := s.report.MonthBuckets()
	rng, err := s.exporter.WriteMonths(r.Context(), months)
	if err != nil {
		log.FromContext(r.Context()).Error("Export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		writeMessage(w, http.StatusBadGateway, "Export to Google Sheets failed, please try again")
		return
	}
	log.FromContext(r.Context()).Info("Exported month summary", log.FieldSheetRange, rng)
	writeJSON(w, http.StatusOK, exportView{Message: "Exported to Google Sheets", Range: rng, Months: len(months)})
}
