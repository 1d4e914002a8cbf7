package http

import (
	"net/http"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/store"
)

type recordView struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Amount report.Amount `json:"amount"`
	Note   string        `json:"note,omitempty"`
	Date   string        `json:"date,omitempty"`
	Tag    string        `json:"tag,omitempty"`
}

type recordsView struct {
	Kind       string        `json:"kind"`
	LabelField string        `json:"label_field"`
	Records    []recordView  `json:"records"`
	Total      report.Amount `json:"total"`
	Message    string        `json:"message,omitempty"`
	Notice     string        `json:"notice,omitempty"`
	Record     *recordView   `json:"record,omitempty"`
}

type confirmView struct {
	Message string `json:"message"`
	Confirm bool   `json:"confirm"`
}

// recordRoutes serves one kind's page from its store.
type recordRoutes struct {
	s    *Server
	kind core.Kind
	st   *store.Records
	base string
	noun string
}

func (rr recordRoutes) view(notice string) recordsView {
	snap := rr.st.Snapshot()
	v := recordsView{
		Kind:       rr.kind.Name,
		LabelField: rr.kind.LabelField,
		Records:    make([]recordView, 0, len(snap)),
		Total:      rr.s.report.Amount(aggregate.Sum(snap)),
		Notice:     notice,
	}
	for _, rec := range snap {
		v.Records = append(v.Records, rr.recordView(rec))
	}
	return v
}

func (rr recordRoutes) recordView(rec core.Record) recordView {
	v := recordView{
		ID:     rec.ID,
		Label:  rec.Label,
		Amount: rr.s.report.Amount(rec.Amount),
		Note:   rec.Note,
		Tag:    rec.Tag,
	}
	if !rec.Date.IsEmpty() {
		v.Date = rec.Date.UTC().Format(time.RFC3339)
	}
	return v
}

// list re-reads the collection. A failed read still renders the previous
// snapshot with a notice.
func (rr recordRoutes) list(w http.ResponseWriter, r *http.Request) {
	notice := ""
	if err := rr.st.List(r.Context()); err != nil {
		if ledger.IsAuth(err) {
			rr.s.expire(w, r)
			return
		}
		notice = ledger.Message(err)
	}
	writeJSON(w, http.StatusOK, rr.view(notice))
}

func (rr recordRoutes) create(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	rec, err := rr.st.Create(r.Context(), draftFrom(rr.kind, f))
	rr.answer(w, r, log.OpCreate, rec, err, http.StatusCreated, rr.noun+" added!")
}

func (rr recordRoutes) update(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	rec, err := rr.st.Update(r.Context(), r.PathValue("id"), draftFrom(rr.kind, f))
	rr.answer(w, r, log.OpUpdate, rec, err, http.StatusOK, rr.noun+" updated!")
}

// remove only reaches the store once the request is confirmed.
func (rr recordRoutes) remove(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if !confirmed(r, f) {
		writeJSON(w, http.StatusConflict, confirmView{
			Message: "Are you sure you want to delete this " + rr.kind.Name + "?",
			Confirm: true,
		})
		return
	}
	err = rr.st.Remove(r.Context(), r.PathValue("id"))
	rr.answer(w, r, log.OpDelete, core.Record{}, err, http.StatusOK, rr.noun+" deleted successfully")
}

// answer renders a mutation result. When the mutation itself succeeded but
// the re-read failed, the success stands and the failure becomes a notice.
func (rr recordRoutes) answer(w http.ResponseWriter, r *http.Request, op string, rec core.Record, err error, okStatus int, okMsg string) {
	if err != nil && ledger.IsAuth(err) {
		rr.s.expire(w, r)
		return
	}
	if !store.Applied(err) {
		log.FromContext(r.Context()).Warn("Record operation failed",
			log.NewFields().
				WithOperation(op).
				WithRecord(rr.kind.Name, r.PathValue("id"), 0).
				WithError(err, errorType(err)).
				ToSlice()...)
		v := rr.view("")
		body := errorBody(err)
		v.Message = body.Message
		writeJSON(w, statusFor(err), struct {
			recordsView
			Fields []string `json:"fields,omitempty"`
		}{v, body.Fields})
		return
	}

	notice := ""
	if err != nil {
		notice = ledger.Message(err)
	}
	v := rr.view(notice)
	v.Message = okMsg
	if rec.ID != "" {
		rv := rr.recordView(rec)
		v.Record = &rv
	}
	writeJSON(w, okStatus, v)
}
