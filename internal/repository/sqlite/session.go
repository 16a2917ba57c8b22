package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

var errSessionNotFound = &apperror.AppError{Err: apperror.ErrNotFound, Message: "session not found"}

// CreateSession stores a new browser session.
func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.ExpiresAt.Unix(),
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

// FindSession returns the session if it exists and has not expired.
// Expired rows are treated exactly like missing ones.
func (db *DB) FindSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s         model.Session
		expiresAt int64
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = ? AND expires_at > ?`,
		id, time.Now().Unix(),
	).Scan(&s.ID, &s.UserID, &expiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errSessionNotFound
		}
		return nil, fmt.Errorf("sqlite: finding session: %w", err)
	}

	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &s, nil
}

// DeleteSession removes a session. Deleting an unknown id is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions past their expiry and returns how
// many rows were removed. Called once at startup.
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
