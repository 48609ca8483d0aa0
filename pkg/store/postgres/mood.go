package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// SaveMoodEntry implements [store.MoodStore].
func (s *Store) SaveMoodEntry(ctx context.Context, entry store.MoodEntry) error {
	const q = `
		INSERT INTO mood_journal (user_id, mood_emoji, mood_name, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q,
		entry.UserID,
		entry.Emoji,
		entry.MoodName,
		normalizeTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("mood journal: save: %w", err)
	}
	return nil
}

// ListMoodEntryTimes implements [store.MoodStore].
func (s *Store) ListMoodEntryTimes(ctx context.Context, userID string) ([]time.Time, error) {
	const q = `
		SELECT created_at
		FROM   mood_journal
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("mood journal: list times: %w", err)
	}
	times, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (time.Time, error) {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("mood journal: scan rows: %w", err)
	}
	if times == nil {
		times = []time.Time{}
	}
	return times, nil
}
