package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CapsuleError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const selectColumns = `
	SELECT id, recipient_name, recipient_contact, message,
		scheduled_date, scheduled_time, created_at, due, due_at
	FROM capsules
`

// Store is the ordered capsule collection backed by an in-memory database.
// Instants are stored as Unix milliseconds and read back in loc.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// NewStore wraps an opened database. A nil loc means time.Local.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc}
}

// OpenStore opens a fresh in-memory database and wraps it.
func OpenStore(loc *time.Location) (*Store, error) {
	database, err := Open()
	if err != nil {
		return nil, err
	}
	return NewStore(database, loc), nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database; the collection is gone afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends a capsule to the end of the collection.
func (s *Store) Insert(ctx context.Context, c *capsule.Capsule) error {
	var dueAt sql.NullInt64
	if c.DueAt != nil {
		dueAt = sql.NullInt64{Int64: c.DueAt.UnixMilli(), Valid: true}
	}

	query := `
		INSERT INTO capsules (
			id, recipient_name, recipient_contact, message,
			scheduled_date, scheduled_time, created_at, due, due_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.RecipientName, c.RecipientContact, c.Message,
		c.ScheduledDate, c.ScheduledTime, c.CreatedAt.UnixMilli(), boolToInt(c.Due), dueAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Get retrieves a capsule by ID.
func (s *Store) Get(ctx context.Context, id string) (*capsule.Capsule, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	c, err := s.scanCapsule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// List returns every capsule in insertion order.
func (s *Store) List(ctx context.Context) ([]*capsule.Capsule, error) {
	return s.query(ctx, selectColumns+" ORDER BY seq ASC")
}

// ListPending returns capsules that are not yet due, in insertion order.
func (s *Store) ListPending(ctx context.Context) ([]*capsule.Capsule, error) {
	return s.query(ctx, selectColumns+" WHERE due = 0 ORDER BY seq ASC")
}

// query reads all rows before returning so the single pooled connection is
// free for follow-up statements.
func (s *Store) query(ctx context.Context, query string, args ...any) ([]*capsule.Capsule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	items := make([]*capsule.Capsule, 0)
	for rows.Next() {
		c, err := s.scanCapsule(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// Count returns the number of capsules.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM capsules").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// MarkDue flips the due flag and stamps due_at, but only if the capsule is
// still scheduled. It reports whether this call performed the flip.
func (s *Store) MarkDue(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE capsules SET due = 1, due_at = ? WHERE id = ? AND due = 0`,
		at.UnixMilli(), id,
	)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected == 1, nil
}

// Delete removes a capsule and reports whether it existed.
// The remaining rows keep their sequence numbers, so order is unchanged.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id)
	if err != nil {
		return false, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanCapsule scans a single row into a Capsule struct.
func (s *Store) scanCapsule(row scanner) (*capsule.Capsule, error) {
	var (
		c         capsule.Capsule
		createdAt int64
		due       int
		dueAt     sql.NullInt64
	)

	err := row.Scan(
		&c.ID, &c.RecipientName, &c.RecipientContact, &c.Message,
		&c.ScheduledDate, &c.ScheduledTime, &createdAt, &due, &dueAt,
	)
	if err != nil {
		return nil, err
	}

	c.CreatedAt = time.UnixMilli(createdAt).In(s.loc)
	c.Due = due != 0
	if dueAt.Valid {
		t := time.UnixMilli(dueAt.Int64).In(s.loc)
		c.DueAt = &t
	}

	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
