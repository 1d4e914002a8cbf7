// Package backend builds the development ledger's storage and event
// publisher from configuration.
package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/storage"
)

// Publisher receives record events; *amqp.Client implements it.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, e *amqp.RecordEvent) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds what the factory built. Events is nil when no broker is
// configured or it could not be reached.
type Result struct {
	Repo    storage.Repository
	Events  Publisher
	Cleanup CleanupFunc
}

// Type represents the type of backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{SQLiteBackend, MemoryBackend}
}
