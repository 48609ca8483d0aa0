package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// SaveCrisisLog implements [store.CrisisStore].
func (s *Store) SaveCrisisLog(ctx context.Context, log store.CrisisLog) error {
	keywords := log.TriggerKeywords
	if keywords == nil {
		keywords = []string{}
	}

	const q = `
		INSERT INTO crisis_logs (user_id, risk_score, trigger_keywords, action_taken, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q,
		log.UserID,
		log.RiskScore,
		keywords,
		log.ActionTaken,
		normalizeTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("crisis logs: save: %w", err)
	}
	return nil
}

// ListCrisisLogs implements [store.CrisisStore].
func (s *Store) ListCrisisLogs(ctx context.Context, userID string) ([]store.CrisisLog, error) {
	const q = `
		SELECT user_id, risk_score, trigger_keywords, action_taken, created_at
		FROM   crisis_logs
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("crisis logs: list: %w", err)
	}
	logs, err := pgx.CollectRows(rows, scanCrisisLog)
	if err != nil {
		return nil, fmt.Errorf("crisis logs: scan rows: %w", err)
	}
	if logs == nil {
		logs = []store.CrisisLog{}
	}
	return logs, nil
}

// LatestCrisisLog implements [store.CrisisStore].
func (s *Store) LatestCrisisLog(ctx context.Context, userID string) (*store.CrisisLog, error) {
	const q = `
		SELECT user_id, risk_score, trigger_keywords, action_taken, created_at
		FROM   crisis_logs
		WHERE  user_id = $1
		ORDER  BY created_at DESC
		LIMIT  1`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("crisis logs: latest: %w", err)
	}
	log, err := pgx.CollectOneRow(rows, scanCrisisLog)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("crisis logs: latest: %w", err)
	}
	return &log, nil
}

// scanCrisisLog scans a single crisis log row.
func scanCrisisLog(row pgx.CollectableRow) (store.CrisisLog, error) {
	var l store.CrisisLog
	err := row.Scan(&l.UserID, &l.RiskScore, &l.TriggerKeywords, &l.ActionTaken, &l.CreatedAt)
	return l, err
}
