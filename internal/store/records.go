package store

import (
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Records is the store instantiated for ledger records.
type Records = Store[core.Record, core.Draft]

// NewRecords returns the store for one kind of record.
func NewRecords(kind core.Kind, remote Remote[core.Record, core.Draft], logger *log.Logger, opts ...Option) *Records {
	return New[core.Record, core.Draft](kind.Name, remote, logger, opts...)
}
