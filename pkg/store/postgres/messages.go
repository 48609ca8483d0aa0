package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// SaveMessage implements [store.MessageStore].
func (s *Store) SaveMessage(ctx context.Context, msg store.Message) error {
	const q = `
		INSERT INTO messages (session_id, user_id, content, sender, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q,
		msg.SessionID,
		msg.UserID,
		msg.Content,
		msg.Sender,
		normalizeTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("messages: save: %w", err)
	}
	return nil
}

// ListMessages implements [store.MessageStore]. Messages are returned in
// chronological order (oldest first) so the caller can replay the transcript.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]store.Message, error) {
	const q = `
		SELECT session_id, user_id, content, sender, created_at
		FROM   messages
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("messages: list: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Message, error) {
		var m store.Message
		err := row.Scan(&m.SessionID, &m.UserID, &m.Content, &m.Sender, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("messages: scan rows: %w", err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return msgs, nil
}
