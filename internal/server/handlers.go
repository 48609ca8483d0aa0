package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mindmate-app/mindmate/internal/auth"
	"github.com/mindmate-app/mindmate/internal/chat"
	"github.com/mindmate-app/mindmate/internal/crisis"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/store"
)

// maxBodyBytes bounds request body size for the JSON endpoints.
const maxBodyBytes = 64 << 10

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Reply          string   `json:"reply"`
	PrimaryEmotion string   `json:"primary_emotion"`
	Intensity      float64  `json:"intensity"`
	HiddenEmotion  string   `json:"hidden_emotion,omitempty"`
	RiskScore      float64  `json:"risk_score"`
	Distortion     string   `json:"distortion,omitempty"`
	CrisisFired    bool     `json:"crisis_fired"`
	SafetyMessage  string   `json:"safety_message,omitempty"`
}

type saveMoodRequest struct {
	Emoji    string `json:"emoji"`
	MoodName string `json:"mood_name"`
}

// sessionListItem is a session annotated with the history-sidebar bucket it
// belongs to.
type sessionListItem struct {
	store.Session
	Group string `json:"group"`
}

// sessionGroup buckets a session by the age of its last activity.
func sessionGroup(updated, now time.Time) string {
	day := func(t time.Time) string { return t.Format(time.DateOnly) }
	switch {
	case day(updated) == day(now):
		return "today"
	case day(updated) == day(now.AddDate(0, 0, -1)):
		return "yesterday"
	case now.Sub(updated) < 7*24*time.Hour:
		return "last_week"
	default:
		return "older"
	}
}

// sessionEnvelope pairs a session with the welcome line the client shows
// before the first exchange.
type sessionEnvelope struct {
	Session store.Session `json:"session"`
	Welcome string        `json:"welcome_message"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sess, err := s.orch.StartSession(r.Context(), id.UserID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionEnvelope{Session: sess, Welcome: chat.WelcomeMessage})
}

// handleLatestSession implements the client's load-or-create startup flow:
// the most recent session is resumed, or a fresh one is created.
func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sess, err := s.orch.LatestOrStartSession(r.Context(), id.UserID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to load latest session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load latest session")
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sess, Welcome: chat.WelcomeMessage})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sessions, err := s.store.ListSessions(r.Context(), id.UserID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	now := time.Now()
	items := make([]sessionListItem, len(sessions))
	for i, sess := range sessions {
		items[i] = sessionListItem{Session: sess, Group: sessionGroup(sess.UpdatedAt, now)}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sess, ok := s.ownedSession(w, r, id)
	if !ok {
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), sess.ID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handleSendMessage is the synchronous REST variant of the chat exchange.
// The delayed safety display of the WebSocket path does not apply here; when
// the crisis policy fires, the safety message is carried inline instead.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sess, ok := s.ownedSession(w, r, id)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ex := s.orch.HandleMessage(r.Context(), id.UserID, sess.ID, req.Content, nil)

	resp := sendMessageResponse{
		Reply:          ex.Reply,
		PrimaryEmotion: string(ex.Result.PrimaryEmotion),
		Intensity:      ex.Result.Intensity,
		HiddenEmotion:  ex.Result.HiddenEmotion,
		RiskScore:      ex.Result.RiskScore,
		Distortion:     ex.Result.Distortion,
		CrisisFired:    ex.CrisisFired,
	}
	if ex.CrisisFired {
		resp.SafetyMessage = crisis.SafetyMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sum, err := s.dash.Load(r.Context(), id.UserID, id.Name)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to load dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSaveMood(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req saveMoodRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Emoji == "" || req.MoodName == "" {
		writeError(w, http.StatusBadRequest, "emoji and mood_name are required")
		return
	}

	err := s.store.SaveMoodEntry(r.Context(), store.MoodEntry{
		UserID:   id.UserID,
		Emoji:    req.Emoji,
		MoodName: req.MoodName,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("failed to save mood entry", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save mood entry")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "logged"})
}

// ownedSession resolves the {id} path value to a session owned by the caller,
// resuming its transcript if it is not already in memory. Writes the error
// response and reports ok=false on failure.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request, id auth.Identity) (*store.Session, bool) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return nil, false
	}
	sess, err := s.orch.ResumeSession(r.Context(), id.UserID, sessionID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// readJSON decodes the request body into v, rejecting unknown fields. Writes
// the error response and reports false on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
