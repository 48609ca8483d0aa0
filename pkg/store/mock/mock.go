// Package mock provides an in-memory [store.Store] implementation for tests.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate-app/mindmate/pkg/store"
)

// Store is an in-memory implementation of [store.Store]. Every method can be
// made to fail by setting the corresponding Err field, which lets tests
// exercise best-effort persistence paths.
type Store struct {
	mu sync.Mutex

	Sessions    []store.Session
	Messages    []store.Message
	EmotionLogs []store.EmotionLog
	CrisisLogs  []store.CrisisLog
	MoodEntries []store.MoodEntry

	CreateSessionErr  error
	GetSessionErr     error
	LatestSessionErr  error
	ListSessionsErr   error
	RenameSessionErr  error
	TouchSessionErr   error
	SaveMessageErr    error
	ListMessagesErr   error
	SaveEmotionErr    error
	ListEmotionsErr   error
	SaveCrisisErr     error
	ListCrisisErr     error
	LatestCrisisErr   error
	SaveMoodErr       error
	ListMoodTimesErr  error
}

var _ store.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) CreateSession(ctx context.Context, userID, title string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateSessionErr != nil {
		return store.Session{}, s.CreateSessionErr
	}
	now := time.Now()
	sess := store.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Sessions = append(s.Sessions, sess)
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetSessionErr != nil {
		return nil, s.GetSessionErr
	}
	for i := range s.Sessions {
		if s.Sessions[i].ID == sessionID {
			sess := s.Sessions[i]
			return &sess, nil
		}
	}
	return nil, nil
}

func (s *Store) LatestSession(ctx context.Context, userID string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LatestSessionErr != nil {
		return nil, s.LatestSessionErr
	}
	var latest *store.Session
	for i := range s.Sessions {
		if s.Sessions[i].UserID != userID {
			continue
		}
		if latest == nil || s.Sessions[i].UpdatedAt.After(latest.UpdatedAt) {
			sess := s.Sessions[i]
			latest = &sess
		}
	}
	return latest, nil
}

func (s *Store) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListSessionsErr != nil {
		return nil, s.ListSessionsErr
	}
	sessions := []store.Session{}
	for _, sess := range s.Sessions {
		if sess.UserID == userID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *Store) RenameSession(ctx context.Context, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RenameSessionErr != nil {
		return s.RenameSessionErr
	}
	for i := range s.Sessions {
		if s.Sessions[i].ID == sessionID {
			s.Sessions[i].Title = title
			s.Sessions[i].UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TouchSessionErr != nil {
		return s.TouchSessionErr
	}
	for i := range s.Sessions {
		if s.Sessions[i].ID == sessionID {
			s.Sessions[i].UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *Store) SaveMessage(ctx context.Context, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveMessageErr != nil {
		return s.SaveMessageErr
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListMessagesErr != nil {
		return nil, s.ListMessagesErr
	}
	msgs := []store.Message{}
	for _, m := range s.Messages {
		if m.SessionID == sessionID {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

func (s *Store) SaveEmotionLog(ctx context.Context, log store.EmotionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveEmotionErr != nil {
		return s.SaveEmotionErr
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.EmotionLogs = append(s.EmotionLogs, log)
	return nil
}

func (s *Store) ListEmotionLogs(ctx context.Context, userID string) ([]store.EmotionLog, error) {
	return s.ListEmotionLogsSince(ctx, userID, time.Time{})
}

func (s *Store) ListEmotionLogsSince(ctx context.Context, userID string, since time.Time) ([]store.EmotionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListEmotionsErr != nil {
		return nil, s.ListEmotionsErr
	}
	logs := []store.EmotionLog{}
	for _, l := range s.EmotionLogs {
		if l.UserID == userID && !l.CreatedAt.Before(since) {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

func (s *Store) SaveCrisisLog(ctx context.Context, log store.CrisisLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveCrisisErr != nil {
		return s.SaveCrisisErr
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.CrisisLogs = append(s.CrisisLogs, log)
	return nil
}

func (s *Store) ListCrisisLogs(ctx context.Context, userID string) ([]store.CrisisLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListCrisisErr != nil {
		return nil, s.ListCrisisErr
	}
	logs := []store.CrisisLog{}
	for _, l := range s.CrisisLogs {
		if l.UserID == userID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

func (s *Store) LatestCrisisLog(ctx context.Context, userID string) (*store.CrisisLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LatestCrisisErr != nil {
		return nil, s.LatestCrisisErr
	}
	var latest *store.CrisisLog
	for i := range s.CrisisLogs {
		if s.CrisisLogs[i].UserID != userID {
			continue
		}
		if latest == nil || s.CrisisLogs[i].CreatedAt.After(latest.CreatedAt) {
			l := s.CrisisLogs[i]
			latest = &l
		}
	}
	return latest, nil
}

func (s *Store) SaveMoodEntry(ctx context.Context, entry store.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveMoodErr != nil {
		return s.SaveMoodErr
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.MoodEntries = append(s.MoodEntries, entry)
	return nil
}

func (s *Store) ListMoodEntryTimes(ctx context.Context, userID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListMoodTimesErr != nil {
		return nil, s.ListMoodTimesErr
	}
	times := []time.Time{}
	for _, e := range s.MoodEntries {
		if e.UserID == userID {
			times = append(times, e.CreatedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return times, nil
}
