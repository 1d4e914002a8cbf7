// Package storage persists users and records for the development ledger.
package storage

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository is implemented by every storage backend. Records are always
// scoped to their owner; another user's id behaves as not found.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, u User) error

	ListRecords(ctx context.Context, userID string, kind core.Kind) ([]core.Record, error)
	CreateRecord(ctx context.Context, userID string, r core.Record) (core.Record, error)
	UpdateRecord(ctx context.Context, userID string, r core.Record) (core.Record, error)
	DeleteRecord(ctx context.Context, userID string, kind core.Kind, id string) error

	Close() error
}

func encodeDate(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.UTC().Format(time.RFC3339Nano)
}

func decodeDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}
