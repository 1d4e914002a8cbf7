package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("request body could not be read")

// readFields flattens a JSON object or a form body into strings, so the
// same handlers serve both.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	out := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, errBadBody
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				out[k] = sanitizeInput(t)
			case json.Number:
				out[k] = t.String()
			case bool:
				out[k] = strconv.FormatBool(t)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errBadBody
	}
	for k := range r.PostForm {
		out[k] = sanitizeInput(r.PostForm.Get(k))
	}
	return out, nil
}

// sanitizeInput drops control characters other than tab and newlines.
// Trimming is left to the domain so passwords stay untouched.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// draftFrom builds a draft of kind. The label may arrive under the kind's
// own field name or as "label"; the tag as "emoji" or "tag".
func draftFrom(kind core.Kind, f map[string]string) core.Draft {
	return core.Draft{
		Kind:   kind,
		Label:  firstOf(f, kind.LabelField, "label"),
		Amount: f[core.FieldAmount],
		Note:   f["note"],
		Date:   f["date"],
		Tag:    firstOf(f, "emoji", "tag"),
	}
}

func firstOf(f map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := f[k]; v != "" {
			return v
		}
	}
	return ""
}

// confirmed reports whether a destructive request carries confirm=true in
// its query or body.
func confirmed(r *http.Request, f map[string]string) bool {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); ok {
		return true
	}
	ok, _ := strconv.ParseBool(f["confirm"])
	return ok
}
