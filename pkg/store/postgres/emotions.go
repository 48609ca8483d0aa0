package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// SaveEmotionLog implements [store.EmotionStore].
func (s *Store) SaveEmotionLog(ctx context.Context, log store.EmotionLog) error {
	const q = `
		INSERT INTO emotion_logs
		    (user_id, emotion_type, intensity_score, hidden_emotion, cognitive_distortion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, q,
		log.UserID,
		log.Emotion,
		log.Intensity,
		log.HiddenEmotion,
		log.Distortion,
		normalizeTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("emotion logs: save: %w", err)
	}
	return nil
}

// ListEmotionLogs implements [store.EmotionStore].
func (s *Store) ListEmotionLogs(ctx context.Context, userID string) ([]store.EmotionLog, error) {
	const q = `
		SELECT user_id, emotion_type, intensity_score, hidden_emotion, cognitive_distortion, created_at
		FROM   emotion_logs
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("emotion logs: list: %w", err)
	}
	return collectEmotionLogs(rows)
}

// ListEmotionLogsSince implements [store.EmotionStore].
func (s *Store) ListEmotionLogsSince(ctx context.Context, userID string, since time.Time) ([]store.EmotionLog, error) {
	const q = `
		SELECT user_id, emotion_type, intensity_score, hidden_emotion, cognitive_distortion, created_at
		FROM   emotion_logs
		WHERE  user_id = $1
		  AND  created_at >= $2
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID, since)
	if err != nil {
		return nil, fmt.Errorf("emotion logs: list since: %w", err)
	}
	return collectEmotionLogs(rows)
}

// collectEmotionLogs scans pgx rows into a slice of EmotionLog values.
func collectEmotionLogs(rows pgx.Rows) ([]store.EmotionLog, error) {
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.EmotionLog, error) {
		var l store.EmotionLog
		err := row.Scan(&l.UserID, &l.Emotion, &l.Intensity, &l.HiddenEmotion, &l.Distortion, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("emotion logs: scan rows: %w", err)
	}
	if logs == nil {
		logs = []store.EmotionLog{}
	}
	return logs, nil
}
