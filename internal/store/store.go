// Package store keeps a local snapshot of a remote record collection in
// sync. Every mutation is followed by a full re-read, so the snapshot is
// always the last successful list and never a locally patched guess.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"fintrack/internal/log"
)

// Draft is user input that can check itself and fill its defaults.
type Draft[D any] interface {
	Validate() error
	Normalize(now time.Time) D
}

// Remote is the collaborator holding the authoritative collection.
type Remote[R any, D any] interface {
	List(ctx context.Context) ([]R, error)
	Create(ctx context.Context, d D) (R, error)
	Update(ctx context.Context, id string, d D) (R, error)
	Delete(ctx context.Context, id string) error
}

type Option func(*options)

type options struct {
	now      func() time.Time
	describe func(error) string
}

// WithClock sets the clock used to fill blank dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMessages sets how errors are turned into user-facing text.
func WithMessages(describe func(error) string) Option {
	return func(o *options) { o.describe = describe }
}

func buildOptions(opts []Option) options {
	o := options{
		now: time.Now,
		describe: func(err error) string {
			if err == nil {
				return ""
			}
			return err.Error()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the synchronization controller for one collection. Operations
// on a store are strictly sequenced; separate stores share nothing.
type Store[R any, D Draft[D]] struct {
	name   string
	remote Remote[R, D]
	logger *log.Logger
	opts   options

	op sync.Mutex // serializes each operation with its trailing re-read

	mu       sync.RWMutex
	snapshot []R
	loaded   bool
	loading  int
	err      error
	gen      uint64 // bumped by Reset; older results are dropped
}

func New[R any, D Draft[D]](name string, remote Remote[R, D], logger *log.Logger, opts ...Option) *Store[R, D] {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store[R, D]{
		name:   name,
		remote: remote,
		logger: logger.WithComponent(log.ComponentStore).With(log.FieldKind, name),
		opts:   buildOptions(opts),
	}
}

func (s *Store[R, D]) Name() string { return s.name }

// Snapshot returns a copy of the last successful list.
func (s *Store[R, D]) Snapshot() []R {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]R(nil), s.snapshot...)
}

// Loaded reports whether at least one list has succeeded.
func (s *Store[R, D]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store[R, D]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Err is the failure of the last remote operation, cleared by a
// successful list.
func (s *Store[R, D]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store[R, D]) Message() string {
	return s.opts.describe(s.Err())
}

// Reset forgets the snapshot and the last error, as when the credential
// the store was filled under goes away. Calls still in flight keep running
// but their results are dropped.
func (s *Store[R, D]) Reset() {
	s.mu.Lock()
	s.gen++
	s.snapshot = nil
	s.loaded = false
	s.err = nil
	s.mu.Unlock()
}

func (s *Store[R, D]) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// List replaces the snapshot with the remote collection. On failure the
// previous snapshot stays in place.
func (s *Store[R, D]) List(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()
	done := s.begin()
	defer done()
	return s.list(ctx)
}

// Create validates d locally, saves it and re-reads the collection.
func (s *Store[R, D]) Create(ctx context.Context, d D) (R, error) {
	var zero R
	if err := d.Validate(); err != nil {
		return zero, err
	}
	d = d.Normalize(s.opts.now())

	s.op.Lock()
	defer s.op.Unlock()
	done := s.begin()
	defer done()
	gen := s.generation()

	created, err := s.remote.Create(ctx, d)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if err != nil {
		s.fail(ctx, gen, log.OpCreate, err)
		return zero, err
	}
	s.logger.InfoContext(ctx, "Record created", log.FieldOperation, log.OpCreate)
	return created, refreshed(s.list(ctx))
}

// Update replaces the record id with d and re-reads the collection.
func (s *Store[R, D]) Update(ctx context.Context, id string, d D) (R, error) {
	var zero R
	if err := d.Validate(); err != nil {
		return zero, err
	}
	d = d.Normalize(s.opts.now())

	s.op.Lock()
	defer s.op.Unlock()
	done := s.begin()
	defer done()
	gen := s.generation()

	updated, err := s.remote.Update(ctx, id, d)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if err != nil {
		s.fail(ctx, gen, log.OpUpdate, err)
		return zero, err
	}
	s.logger.InfoContext(ctx, "Record updated", log.FieldOperation, log.OpUpdate, log.FieldRecordID, id)
	return updated, refreshed(s.list(ctx))
}

// Remove deletes id and re-reads the collection. Asking the user for
// confirmation is the caller's job.
func (s *Store[R, D]) Remove(ctx context.Context, id string) error {
	s.op.Lock()
	defer s.op.Unlock()
	done := s.begin()
	defer done()
	gen := s.generation()

	err := s.remote.Delete(ctx, id)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		s.fail(ctx, gen, log.OpDelete, err)
		return err
	}
	s.logger.InfoContext(ctx, "Record removed", log.FieldOperation, log.OpDelete, log.FieldRecordID, id)
	return refreshed(s.list(ctx))
}

// RefreshError means a mutation was applied but re-reading the collection
// afterwards failed; the snapshot is stale.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "refresh after save: " + e.Err.Error() }

func (e *RefreshError) Unwrap() error { return e.Err }

// Applied reports whether err still means the mutation went through.
func Applied(err error) bool {
	var rerr *RefreshError
	return err == nil || errors.As(err, &rerr)
}

func refreshed(err error) error {
	// The caller's own context ending is a discard, not a refresh failure.
	if err == nil || err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return &RefreshError{Err: err}
}

// list must be called with op held. A result arriving after ctx is done,
// or after a Reset, is dropped without touching state.
func (s *Store[R, D]) list(ctx context.Context) error {
	gen := s.generation()
	items, err := s.remote.List(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		s.fail(ctx, gen, log.OpList, err)
		return err
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.snapshot = items
	s.loaded = true
	s.err = nil
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Records listed", log.FieldOperation, log.OpList, log.FieldRecords, len(items))
	return nil
}

func (s *Store[R, D]) begin() func() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}
}

func (s *Store[R, D]) fail(ctx context.Context, gen uint64, op string, err error) {
	s.mu.Lock()
	if s.gen == gen {
		s.err = err
	}
	s.mu.Unlock()
	s.logger.WarnContext(ctx, "Ledger operation failed",
		log.FieldOperation, op,
		log.FieldError, err.Error())
}
