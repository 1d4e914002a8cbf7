package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps sqlite from answering SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite repository ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash)
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return r.UserByID(ctx, u.ID)
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.userWhere(ctx, "email = ?", email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

func (r *SQLiteRepository) userWhere(ctx context.Context, cond string, arg any) (User, error) {
	var (
		u       User
		created any
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+cond, arg)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = scanTime(created)
	return u, nil
}

// scanTime accepts both the driver's parsed time and sqlite's text form.
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, u.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string, kind core.Kind) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, amount_cents, note, occurred_at, tag
		   FROM records
		  WHERE user_id = ? AND kind = ?
		  ORDER BY rowid`,
		userID, kind.Name)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]core.Record, 0)
	for rows.Next() {
		rec := core.Record{Kind: kind}
		var date string
		if err := rows.Scan(&rec.ID, &rec.Label, &rec.Amount.Cents, &rec.Note, &date, &rec.Tag); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Date = decodeDate(date)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, userID string, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, user_id, kind, label, amount_cents, note, occurred_at, tag)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, userID, rec.Kind.Name, rec.Label, rec.Amount.Cents, rec.Note, encodeDate(rec.Date), rec.Tag)
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}
	r.logger.DebugContext(ctx, "Record saved to SQLite",
		log.FieldKind, rec.Kind.Name,
		log.FieldRecordID, rec.ID,
		log.FieldAmount, rec.Amount.Cents)
	return rec, nil
}

func (r *SQLiteRepository) UpdateRecord(ctx context.Context, userID string, rec core.Record) (core.Record, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records
		    SET label = ?, amount_cents = ?, note = ?, occurred_at = ?, tag = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND user_id = ? AND kind = ?`,
		rec.Label, rec.Amount.Cents, rec.Note, encodeDate(rec.Date), rec.Tag, rec.ID, userID, rec.Kind.Name)
	if err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, userID string, kind core.Kind, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND user_id = ? AND kind = ?`, id, userID, kind.Name)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
