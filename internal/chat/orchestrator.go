package chat

import (
	"context"
	"sync"

	"github.com/mindmate-app/mindmate/internal/analysis"
	"github.com/mindmate-app/mindmate/internal/crisis"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/store"
)

// DefaultSessionTitle is the placeholder title given to a fresh session. It
// is replaced by a snippet of the first user message.
const DefaultSessionTitle = "New Conversation"

// titleSnippetLen is how many characters of the first message become the
// session title.
const titleSnippetLen = 40

// WelcomeMessage opens every new conversation. It is shown by the client and
// never persisted, so it does not count as a transcript turn.
const WelcomeMessage = "Hello! I'm MindMate, your compassionate AI companion. 🌟 " +
	"I'm here to listen and support you. Feel free to share what's on your mind."

// ApologyReply is the backstop message shown when the exchange pipeline fails
// unexpectedly. It is not a designed error path; every anticipated failure
// resolves to a fallback result before reaching it.
const ApologyReply = "I apologize, but I encountered an error. Please try again. 💙"

// Exchange is the outcome of one user message.
type Exchange struct {
	// Reply is the companion's response text.
	Reply string

	// Result is the structured assessment behind the reply.
	Result analysis.Result

	// CrisisFired reports whether the crisis policy engaged for this message.
	CrisisFired bool
}

// sessionState holds the in-memory conversation state of one active session.
// Its mutex serializes exchanges so at most one is in flight per session.
type sessionState struct {
	mu         sync.Mutex
	transcript Transcript
}

// Orchestrator owns all active session transcripts and runs the exchange
// pipeline: append user turn, persist, analyze, append assistant turn,
// persist, bump session recency, log emotion, maybe rename the session,
// maybe fire the crisis policy. Every persistence step is best-effort;
// failures are logged and
// never abort subsequent steps.
type Orchestrator struct {
	store    store.Store
	analyzer *analysis.Analyzer
	policy   *crisis.Policy
	metrics  *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewOrchestrator creates an [Orchestrator] over the given collaborators.
func NewOrchestrator(st store.Store, analyzer *analysis.Analyzer, policy *crisis.Policy, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{
		store:    st,
		analyzer: analyzer,
		policy:   policy,
		metrics:  metrics,
		sessions: make(map[string]*sessionState),
	}
}

// StartSession creates a new persisted session with the placeholder title and
// a fresh transcript.
func (o *Orchestrator) StartSession(ctx context.Context, userID string) (store.Session, error) {
	sess, err := o.store.CreateSession(ctx, userID, DefaultSessionTitle)
	if err != nil {
		return store.Session{}, err
	}

	o.mu.Lock()
	o.sessions[sess.ID] = &sessionState{}
	o.mu.Unlock()

	return sess, nil
}

// LatestOrStartSession resumes the user's most recently updated session, or
// starts a new one when they have none.
func (o *Orchestrator) LatestOrStartSession(ctx context.Context, userID string) (store.Session, error) {
	latest, err := o.store.LatestSession(ctx, userID)
	if err != nil {
		return store.Session{}, err
	}
	if latest != nil {
		sess, err := o.ResumeSession(ctx, userID, latest.ID)
		if err != nil {
			return store.Session{}, err
		}
		if sess != nil {
			return *sess, nil
		}
	}
	return o.StartSession(ctx, userID)
}

// ResumeSession loads a persisted session's message history into a fresh
// transcript so the next exchange has its context. Resuming a session that is
// already in memory keeps its live transcript. Returns the session, or
// (nil, nil) when it does not exist or belongs to another user.
func (o *Orchestrator) ResumeSession(ctx context.Context, userID, sessionID string) (*store.Session, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID {
		return nil, nil
	}

	msgs, err := o.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := &sessionState{}
	for _, m := range msgs {
		role := analysis.RoleUser
		if m.Sender == store.SenderBot {
			role = analysis.RoleModel
		}
		state.transcript.Append(role, m.Content)
	}

	o.mu.Lock()
	if _, ok := o.sessions[sessionID]; !ok {
		o.sessions[sessionID] = state
	}
	o.mu.Unlock()

	return sess, nil
}

// CloseSession drops the in-memory state of a session. Persisted history is
// unaffected; the session can be resumed later.
func (o *Orchestrator) CloseSession(sessionID string) {
	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()
}

// HandleMessage runs the full exchange pipeline for one user message and
// always produces a usable [Exchange]. notify, when non-nil, receives the
// delayed safety message if the crisis policy fires.
//
// Exchanges on the same session are serialized; concurrent sends queue behind
// the in-flight one.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, sessionID, message string, notify func(string)) (ex Exchange) {
	ctx, span := observe.StartSpan(ctx, "chat.HandleMessage")
	defer span.End()

	// Backstop: an unexpected panic anywhere in the pipeline degrades to the
	// apology reply instead of tearing down the connection.
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("exchange pipeline panicked", "panic", r)
			ex = Exchange{
				Reply: ApologyReply,
				Result: analysis.Result{
					Reply:          ApologyReply,
					PrimaryEmotion: analysis.EmotionNeutral,
					Intensity:      analysis.DefaultIntensity,
				},
			}
		}
	}()

	state := o.state(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	log := observe.Logger(ctx).With("session_id", sessionID)
	firstMessage := state.transcript.Len() == 0

	// 1. Append and persist the user turn.
	state.transcript.Append(analysis.RoleUser, message)
	if err := o.store.SaveMessage(ctx, store.Message{
		SessionID: sessionID,
		UserID:    userID,
		Content:   message,
		Sender:    store.SenderUser,
	}); err != nil {
		log.Error("failed to persist user message", "error", err)
	}

	// 2. Analyze. Never fails; the window excludes the turn just appended
	// because the analyzer adds the current message itself.
	window := state.transcript.Turns()
	window = window[:len(window)-1]
	res := o.analyzer.Analyze(ctx, message, window)

	// 3. Append and persist the assistant turn.
	state.transcript.Append(analysis.RoleModel, res.Reply)
	if err := o.store.SaveMessage(ctx, store.Message{
		SessionID: sessionID,
		UserID:    userID,
		Content:   res.Reply,
		Sender:    store.SenderBot,
	}); err != nil {
		log.Error("failed to persist assistant message", "error", err)
	}

	// 4. Bump the session's recency so latest-session resume and the
	// history sidebar order by last activity, not creation.
	if err := o.store.TouchSession(ctx, sessionID); err != nil {
		log.Error("failed to bump session recency", "error", err)
	}

	// 5. Persist the emotion log.
	if err := o.store.SaveEmotionLog(ctx, store.EmotionLog{
		UserID:        userID,
		Emotion:       string(res.PrimaryEmotion),
		Intensity:     res.Intensity,
		HiddenEmotion: res.HiddenEmotion,
		Distortion:    res.Distortion,
	}); err != nil {
		log.Error("failed to persist emotion log", "error", err)
	}

	// 6. Rename the session after its first message.
	if firstMessage {
		o.maybeRenameSession(ctx, sessionID, message)
	}

	// 7. Crisis policy last, after all persistence requests are issued.
	fired := o.policy.Evaluate(ctx, userID, res, message, notify)

	return Exchange{Reply: res.Reply, Result: res, CrisisFired: fired}
}

// state returns the in-memory state for sessionID, creating it on first use.
// A session spoken to without StartSession or ResumeSession gets an empty
// transcript.
func (o *Orchestrator) state(sessionID string) *sessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		o.sessions[sessionID] = st
	}
	return st
}

// maybeRenameSession replaces the placeholder title with a snippet of the
// first user message. Best-effort.
func (o *Orchestrator) maybeRenameSession(ctx context.Context, sessionID, message string) {
	log := observe.Logger(ctx).With("session_id", sessionID)

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Error("failed to load session for rename", "error", err)
		return
	}
	if sess == nil || sess.Title != DefaultSessionTitle {
		return
	}

	title := message
	if runes := []rune(title); len(runes) > titleSnippetLen {
		title = string(runes[:titleSnippetLen]) + "..."
	}
	if err := o.store.RenameSession(ctx, sessionID, title); err != nil {
		log.Error("failed to rename session", "error", err)
	}
}
