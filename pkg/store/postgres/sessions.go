package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// CreateSession implements [store.SessionStore]. The session ID is a fresh
// UUID generated here rather than by the database so the caller can use it
// immediately.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (store.Session, error) {
	sess := store.Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}

	const q = `
		INSERT INTO conversation_sessions (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q, sess.ID, sess.UserID, sess.Title).
		Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return store.Session{}, fmt.Errorf("sessions: create: %w", err)
	}
	return sess, nil
}

// GetSession implements [store.SessionStore].
func (s *Store) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	const q = `
		SELECT id, user_id, title, created_at, updated_at
		FROM   conversation_sessions
		WHERE  id = $1`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get: %w", err)
	}
	return sess, nil
}

// LatestSession implements [store.SessionStore].
func (s *Store) LatestSession(ctx context.Context, userID string) (*store.Session, error) {
	const q = `
		SELECT id, user_id, title, created_at, updated_at
		FROM   conversation_sessions
		WHERE  user_id = $1
		ORDER  BY updated_at DESC
		LIMIT  1`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: latest: %w", err)
	}
	return sess, nil
}

// ListSessions implements [store.SessionStore].
func (s *Store) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	const q = `
		SELECT id, user_id, title, created_at, updated_at
		FROM   conversation_sessions
		WHERE  user_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("sessions: list: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Session, error) {
		var sess store.Session
		err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
		return sess, err
	})
	if err != nil {
		return nil, fmt.Errorf("sessions: scan rows: %w", err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return sessions, nil
}

// RenameSession implements [store.SessionStore].
func (s *Store) RenameSession(ctx context.Context, sessionID, title string) error {
	const q = `
		UPDATE conversation_sessions
		SET    title = $2, updated_at = now()
		WHERE  id = $1`

	if _, err := s.pool.Exec(ctx, q, sessionID, title); err != nil {
		return fmt.Errorf("sessions: rename: %w", err)
	}
	return nil
}

// TouchSession implements [store.SessionStore].
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	const q = `
		UPDATE conversation_sessions
		SET    updated_at = now()
		WHERE  id = $1`

	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("sessions: touch: %w", err)
	}
	return nil
}

// scanSession scans a single session row.
func scanSession(row pgx.Row) (*store.Session, error) {
	var sess store.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// normalizeTime substitutes time.Now for a zero timestamp. Shared by the
// Save* methods so callers may leave CreatedAt unset.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
