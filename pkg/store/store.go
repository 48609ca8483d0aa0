// Package store defines the persistence interfaces for MindMate conversation
// and wellbeing data.
//
// Five record families are kept, each keyed by an opaque user identifier
// and/or session identifier:
//
//   - conversation sessions ([Session]): one row per chat conversation
//   - messages ([Message]): the persisted transcript of a session
//   - emotion logs ([EmotionLog]): one analysis record per user turn
//   - crisis logs ([CrisisLog]): written only when the crisis policy fires
//   - mood journal ([MoodEntry]): explicit daily mood check-ins
//
// All writes are best-effort from the conversation flow's perspective: callers
// log and swallow persistence errors rather than aborting an exchange.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"time"
)

// Senders recorded on a [Message].
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Session is one chat conversation owned by a user. The json tags match the
// field names the API serves to clients.
type Session struct {
	// ID is the unique session identifier (a UUID).
	ID string `json:"id"`

	// UserID is the opaque identifier of the owning user.
	UserID string `json:"user_id"`

	// Title is the display title. New sessions start as "New Conversation"
	// and are renamed from the first user message.
	Title string `json:"title"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is bumped on every persisted message.
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single persisted transcript entry.
type Message struct {
	// SessionID is the session this message belongs to.
	SessionID string `json:"session_id"`

	// UserID is the opaque identifier of the owning user.
	UserID string `json:"user_id"`

	// Content is the message text.
	Content string `json:"content"`

	// Sender is [SenderUser] or [SenderBot].
	Sender string `json:"sender"`

	// CreatedAt is when the message was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// EmotionLog is the structured emotional assessment of one user turn.
type EmotionLog struct {
	// UserID is the opaque identifier of the owning user.
	UserID string

	// Emotion is the primary emotion label (e.g., "sadness", "joy").
	Emotion string

	// Intensity is the emotion intensity in [0, 1].
	Intensity float64

	// HiddenEmotion is an optional secondary emotion. Empty when absent.
	HiddenEmotion string

	// Distortion is an optional cognitive-distortion label. Empty when absent.
	Distortion string

	// CreatedAt is when the log was recorded.
	CreatedAt time.Time
}

// CrisisLog records one firing of the crisis policy. Write-once.
type CrisisLog struct {
	// UserID is the opaque identifier of the owning user.
	UserID string

	// RiskScore is the risk score that triggered the policy.
	RiskScore float64

	// TriggerKeywords are the crisis-indicator keywords found in the
	// triggering user message. May be empty.
	TriggerKeywords []string

	// ActionTaken is a fixed label describing the response taken.
	ActionTaken string

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time
}

// MoodEntry is an explicit mood check-in from the journal widget.
type MoodEntry struct {
	// UserID is the opaque identifier of the owning user.
	UserID string

	// Emoji is the mood emoji chosen by the user.
	Emoji string

	// MoodName is the mood label (e.g., "calm", "stressed").
	MoodName string

	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time
}

// SessionStore manages conversation sessions.
type SessionStore interface {
	// CreateSession inserts a new session and returns it with timestamps set.
	CreateSession(ctx context.Context, userID, title string) (Session, error)

	// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// LatestSession returns the most recently updated session for userID, or
	// (nil, nil) when the user has none.
	LatestSession(ctx context.Context, userID string) (*Session, error)

	// ListSessions returns all of userID's sessions, most recently
	// updated first. Returns an empty (non-nil) slice when none exist.
	ListSessions(ctx context.Context, userID string) ([]Session, error)

	// RenameSession updates the session title and bumps UpdatedAt.
	RenameSession(ctx context.Context, sessionID, title string) error

	// TouchSession bumps the session's UpdatedAt to now.
	TouchSession(ctx context.Context, sessionID string) error
}

// MessageStore manages persisted transcript messages.
type MessageStore interface {
	// SaveMessage appends a message. A zero CreatedAt means now.
	SaveMessage(ctx context.Context, msg Message) error

	// ListMessages returns all messages of a session in chronological order
	// (oldest first). Returns an empty (non-nil) slice when none exist.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// EmotionStore manages emotion logs.
type EmotionStore interface {
	// SaveEmotionLog appends an emotion log. A zero CreatedAt means now.
	SaveEmotionLog(ctx context.Context, log EmotionLog) error

	// ListEmotionLogs returns all of userID's emotion logs, newest first.
	// Returns an empty (non-nil) slice when none exist.
	ListEmotionLogs(ctx context.Context, userID string) ([]EmotionLog, error)

	// ListEmotionLogsSince returns userID's emotion logs recorded at or after
	// since, newest first. Returns an empty (non-nil) slice when none exist.
	ListEmotionLogsSince(ctx context.Context, userID string, since time.Time) ([]EmotionLog, error)
}

// CrisisStore manages crisis logs.
type CrisisStore interface {
	// SaveCrisisLog appends a crisis log. A zero CreatedAt means now.
	SaveCrisisLog(ctx context.Context, log CrisisLog) error

	// ListCrisisLogs returns all of userID's crisis logs, newest first.
	// Returns an empty (non-nil) slice when none exist.
	ListCrisisLogs(ctx context.Context, userID string) ([]CrisisLog, error)

	// LatestCrisisLog returns the most recent crisis log for userID, or
	// (nil, nil) when the user has none.
	LatestCrisisLog(ctx context.Context, userID string) (*CrisisLog, error)
}

// MoodStore manages mood journal entries.
type MoodStore interface {
	// SaveMoodEntry appends a mood entry. A zero CreatedAt means now.
	SaveMoodEntry(ctx context.Context, entry MoodEntry) error

	// ListMoodEntryTimes returns the timestamps of all of userID's mood
	// entries, newest first. Used for check-in streak computation.
	// Returns an empty (non-nil) slice when none exist.
	ListMoodEntryTimes(ctx context.Context, userID string) ([]time.Time, error)
}

// Store is the full persistence surface consumed by the orchestrator, crisis
// policy, and dashboard.
type Store interface {
	SessionStore
	MessageStore
	EmotionStore
	CrisisStore
	MoodStore
}
