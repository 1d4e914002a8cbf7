package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type storedRecord struct {
	owner string
	rec   core.Record
}

// MemoryRepository keeps everything in process memory, in insertion order.
type MemoryRepository struct {
	mu      sync.Mutex
	users   []User
	records []storedRecord
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return User{}, ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryRepository) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryRepository) UserByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryRepository) UpdateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, existing := range m.users {
		if existing.ID == u.ID {
			idx = i
			continue
		}
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrConflict
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	u.CreatedAt = m.users[idx].CreatedAt
	m.users[idx] = u
	return nil
}

func (m *MemoryRepository) ListRecords(_ context.Context, userID string, kind core.Kind) ([]core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Record, 0)
	for _, s := range m.records {
		if s.owner == userID && s.rec.Kind.Is(kind) {
			out = append(out, s.rec)
		}
	}
	return out, nil
}

func (m *MemoryRepository) CreateRecord(_ context.Context, userID string, r core.Record) (core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.records = append(m.records, storedRecord{owner: userID, rec: r})
	return r, nil
}

func (m *MemoryRepository) UpdateRecord(_ context.Context, userID string, r core.Record) (core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.records {
		if s.owner == userID && s.rec.ID == r.ID && s.rec.Kind.Is(r.Kind) {
			m.records[i].rec = r
			return r, nil
		}
	}
	return core.Record{}, ErrNotFound
}

func (m *MemoryRepository) DeleteRecord(_ context.Context, userID string, kind core.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.records {
		if s.owner == userID && s.rec.ID == id && s.rec.Kind.Is(kind) {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) Close() error { return nil }
