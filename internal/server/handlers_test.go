package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/mindmate-app/mindmate/internal/analysis"
	"github.com/mindmate-app/mindmate/internal/auth"
	"github.com/mindmate-app/mindmate/internal/chat"
	"github.com/mindmate-app/mindmate/internal/config"
	"github.com/mindmate-app/mindmate/internal/crisis"
	"github.com/mindmate-app/mindmate/internal/dashboard"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/provider/llm"
	llmmock "github.com/mindmate-app/mindmate/pkg/provider/llm/mock"
	"github.com/mindmate-app/mindmate/pkg/store"
	storemock "github.com/mindmate-app/mindmate/pkg/store/mock"
)

// newTestServer wires a full server over the in-memory store and mock model
// provider, with the shared token "testtoken".
func newTestServer(t *testing.T, st *storemock.Store, p llm.Provider) http.Handler {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	analyzer := analysis.NewAnalyzer(p, analysis.NewResponder(), m, analysis.Settings{HistoryWindow: 10})
	policy := crisis.NewPolicy(st, m, 0.7, crisis.WithSafetyDelay(0))
	orch := chat.NewOrchestrator(st, analyzer, policy, m)
	dash := dashboard.NewService(st)
	verifier := auth.NewTokenVerifier("testtoken")

	srv := New(config.ServerConfig{ListenAddr: ":0"}, verifier, orch, dash, st, m)
	return srv.Handler()
}

func authedRequest(method, target string, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set("Authorization", "Bearer testtoken")
	r.Header.Set(auth.HeaderUserID, "u1")
	r.Header.Set(auth.HeaderUserName, "Alex")
	return r
}

func defaultProvider() *llmmock.Provider {
	return &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"reply":"I'm listening.","primary_emotion":"neutral","intensity":0.5}`,
		},
	}
}

func TestCreateSession(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions", ""))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
	var env sessionEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Session.ID == "" || env.Session.Title != chat.DefaultSessionTitle {
		t.Errorf("session = %+v", env.Session)
	}
	if env.Welcome != chat.WelcomeMessage {
		t.Errorf("Welcome = %q", env.Welcome)
	}
}

func TestLatestSession_ResumesMostRecent(t *testing.T) {
	st := storemock.NewStore()
	_, _ = st.CreateSession(context.Background(), "u1", "older")
	recent, _ := st.CreateSession(context.Background(), "u1", "recent")
	_ = st.TouchSession(context.Background(), recent.ID)
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/sessions/latest", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var env sessionEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Session.ID != recent.ID {
		t.Errorf("resumed session %q, want the most recent %q", env.Session.ID, recent.ID)
	}
}

func TestLatestSession_CreatesWhenNoneExist(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/sessions/latest", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var env sessionEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Session.Title != chat.DefaultSessionTitle {
		t.Errorf("Title = %q, want a fresh session", env.Session.Title)
	}
	if len(st.Sessions) != 1 {
		t.Errorf("persisted sessions = %d, want 1", len(st.Sessions))
	}
}

func TestListSessions(t *testing.T) {
	st := storemock.NewStore()
	_, _ = st.CreateSession(context.Background(), "u1", "one")
	_, _ = st.CreateSession(context.Background(), "u2", "other user")
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/sessions", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sessions []sessionListItem
	if err := json.NewDecoder(rec.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "one" {
		t.Errorf("sessions = %+v", sessions)
	}
	if sessions[0].Group != "today" {
		t.Errorf("Group = %q, want today", sessions[0].Group)
	}
}

func TestSessionWireFormatUsesSnakeCase(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions", ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var sess map[string]json.RawMessage
	if err := json.Unmarshal(env["session"], &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	for _, key := range []string{"id", "user_id", "title", "created_at", "updated_at"} {
		if _, ok := sess[key]; !ok {
			t.Errorf("session body missing key %q (got %s)", key, env["session"])
		}
	}
}

func TestSessionGroup(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		updated time.Time
		want    string
	}{
		{"this morning", now.Add(-2 * time.Hour), "today"},
		{"late last night", time.Date(2025, 6, 9, 23, 50, 0, 0, time.UTC), "yesterday"},
		{"four days ago", now.AddDate(0, 0, -4), "last_week"},
		{"two weeks ago", now.AddDate(0, 0, -14), "older"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sessionGroup(tc.updated, now); got != tc.want {
				t.Errorf("sessionGroup = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSendMessage(t *testing.T) {
	st := storemock.NewStore()
	sess, _ := st.CreateSession(context.Background(), "u1", chat.DefaultSessionTitle)
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions/"+sess.ID+"/messages", `{"content":"long day"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var resp sendMessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "I'm listening." {
		t.Errorf("Reply = %q", resp.Reply)
	}
	if resp.CrisisFired || resp.SafetyMessage != "" {
		t.Errorf("unexpected crisis fields: %+v", resp)
	}
	if len(st.Messages) != 2 {
		t.Errorf("persisted messages = %d, want 2", len(st.Messages))
	}
}

func TestSendMessage_CrisisCarriesSafetyMessage(t *testing.T) {
	st := storemock.NewStore()
	sess, _ := st.CreateSession(context.Background(), "u1", chat.DefaultSessionTitle)
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"reply":"Please stay with me.","primary_emotion":"sadness","intensity":0.9,"risk_score":0.95}`,
		},
	}
	h := newTestServer(t, st, p)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions/"+sess.ID+"/messages", `{"content":"I want to die"}`))

	var resp sendMessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.CrisisFired {
		t.Error("CrisisFired = false")
	}
	if resp.SafetyMessage != crisis.SafetyMessage {
		t.Errorf("SafetyMessage = %q", resp.SafetyMessage)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	st := storemock.NewStore()
	sess, _ := st.CreateSession(context.Background(), "u1", chat.DefaultSessionTitle)
	h := newTestServer(t, st, defaultProvider())

	tests := []struct {
		name string
		body string
	}{
		{"empty content", `{"content":""}`},
		{"unknown field", `{"content":"hi","extra":true}`},
		{"not json", `hello`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, authedRequest("POST", "/api/sessions/"+sess.ID+"/messages", tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSendMessage_UnknownSession(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions/nope/messages", `{"content":"hi"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSendMessage_OtherUsersSession(t *testing.T) {
	st := storemock.NewStore()
	sess, _ := st.CreateSession(context.Background(), "someone-else", "private")
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/sessions/"+sess.ID+"/messages", `{"content":"hi"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's session", rec.Code)
	}
}

func TestListMessages(t *testing.T) {
	st := storemock.NewStore()
	sess, _ := st.CreateSession(context.Background(), "u1", "chat")
	_ = st.SaveMessage(context.Background(), store.Message{SessionID: sess.ID, UserID: "u1", Content: "hi", Sender: store.SenderUser})
	_ = st.SaveMessage(context.Background(), store.Message{SessionID: sess.ID, UserID: "u1", Content: "Hello!", Sender: store.SenderBot})
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/sessions/"+sess.ID+"/messages", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"session_id"`) || !strings.Contains(body, `"created_at"`) {
		t.Errorf("message body keys are not snake_case: %s", body)
	}
	var msgs []store.Message
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestDashboard(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/dashboard", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum dashboard.Summary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(sum.Greeting, "Alex") {
		t.Errorf("Greeting = %q, want the display name used", sum.Greeting)
	}
	if sum.Affirmation == "" {
		t.Error("empty affirmation")
	}
}

func TestDashboard_StoreError(t *testing.T) {
	st := storemock.NewStore()
	st.ListEmotionsErr = errors.New("db down")
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/api/dashboard", ""))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSaveMood(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/mood", `{"emoji":"😌","mood_name":"calm"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	if len(st.MoodEntries) != 1 {
		t.Fatalf("mood entries = %d, want 1", len(st.MoodEntries))
	}
	if st.MoodEntries[0].MoodName != "calm" || st.MoodEntries[0].UserID != "u1" {
		t.Errorf("entry = %+v", st.MoodEntries[0])
	}
}

func TestSaveMood_MissingFields(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/api/mood", `{"emoji":"😌"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	tests := []struct {
		name   string
		mutate func(*http.Request)
	}{
		{"no credentials", func(r *http.Request) {
			r.Header.Del("Authorization")
			r.Header.Del(auth.HeaderUserID)
		}},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer wrong")
		}},
		{"no user id", func(r *http.Request) {
			r.Header.Del(auth.HeaderUserID)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest("GET", "/api/sessions", "")
			tc.mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestHealthEndpointsUnauthenticated(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	st := storemock.NewStore()
	h := newTestServer(t, st, defaultProvider())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
