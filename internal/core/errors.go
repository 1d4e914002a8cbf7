package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationError reports fields that block a save before any network call.
type ValidationError struct {
	Fields  []string
	Invalid bool // fields are present but cannot be coerced
}

func (e *ValidationError) Error() string {
	names := joinFields(e.Fields)
	if e.Invalid {
		return "invalid " + names
	}
	if len(e.Fields) == 1 {
		return names + " is required"
	}
	return names + " are required"
}

func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return "fields"
	case 1:
		return fields[0]
	}
	return strings.Join(fields[:len(fields)-1], ", ") + " and " + fields[len(fields)-1]
}

// Capitalize upper-cases the first rune of s, turning an error text into a
// sentence fit for a notice.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
