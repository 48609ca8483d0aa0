// Package postgres provides a PostgreSQL-backed implementation of the
// MindMate persistence interfaces ([store.Store]).
//
// All tables share a single [pgxpool.Pool] connection pool. [Migrate] creates
// the schema idempotently and is safe to run on every application start.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveMessage(ctx, msg)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    title       TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_updated
    ON conversation_sessions (user_id, updated_at DESC);
`

const ddlMessages = `
CREATE TABLE IF NOT EXISTS messages (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES conversation_sessions (id) ON DELETE CASCADE,
    user_id     TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    sender      TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session_id, created_at);
`

const ddlEmotionLogs = `
CREATE TABLE IF NOT EXISTS emotion_logs (
    id                   BIGSERIAL    PRIMARY KEY,
    user_id              TEXT         NOT NULL,
    emotion_type         TEXT         NOT NULL,
    intensity_score      DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    hidden_emotion       TEXT         NOT NULL DEFAULT '',
    cognitive_distortion TEXT         NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_emotion_logs_user_created
    ON emotion_logs (user_id, created_at DESC);
`

const ddlCrisisLogs = `
CREATE TABLE IF NOT EXISTS crisis_logs (
    id               BIGSERIAL    PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    risk_score       DOUBLE PRECISION NOT NULL,
    trigger_keywords TEXT[]       NOT NULL DEFAULT '{}',
    action_taken     TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_crisis_logs_user_created
    ON crisis_logs (user_id, created_at DESC);
`

const ddlMoodJournal = `
CREATE TABLE IF NOT EXISTS mood_journal (
    id          BIGSERIAL    PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    mood_emoji  TEXT         NOT NULL DEFAULT '',
    mood_name   TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mood_journal_user_created
    ON mood_journal (user_id, created_at DESC);
`

// Migrate creates or ensures all required tables and indexes exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlSessions,
		ddlMessages,
		ddlEmotionLogs,
		ddlCrisisLogs,
		ddlMoodJournal,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
