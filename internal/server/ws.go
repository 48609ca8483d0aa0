package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/mindmate-app/mindmate/internal/auth"
	"github.com/mindmate-app/mindmate/internal/observe"
)

// WebSocket frame types exchanged on /ws/chat.
const (
	frameMessage = "message" // client → server: user message
	frameReply   = "reply"   // server → client: companion reply + assessment
	frameSafety  = "safety"  // server → client: delayed safety resources
	frameError   = "error"   // server → client: protocol error
)

// wsFrame is the envelope for every frame in either direction.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// Reply-only fields.
	PrimaryEmotion string  `json:"primary_emotion,omitempty"`
	Intensity      float64 `json:"intensity,omitempty"`
	RiskScore      float64 `json:"risk_score,omitempty"`
	CrisisFired    bool    `json:"crisis_fired,omitempty"`
}

// wsConn serializes writes to one WebSocket connection. The safety
// notification fires from its own goroutine, so replies and safety frames can
// race without this.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(ctx context.Context, frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// handleChatSocket runs the interactive chat loop for one session. The
// session_id query parameter must name a session owned by the caller; its
// transcript is resumed before the first exchange.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := s.orch.ResumeSession(r.Context(), id.UserID, sessionID)
	if err != nil {
		observe.Logger(r.Context()).Error("failed to resume session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resume session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	raw, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	log := observe.Logger(ctx).With("session_id", sessionID)

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)
	log.Info("chat connection opened")
	defer log.Info("chat connection closed")

	for {
		_, data, err := raw.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return
			}
			log.Warn("websocket read failed", "error", err)
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != frameMessage || frame.Content == "" {
			if err := conn.send(ctx, wsFrame{Type: frameError, Content: "expected a message frame with content"}); err != nil {
				return
			}
			continue
		}

		notify := func(text string) {
			if err := conn.send(ctx, wsFrame{Type: frameSafety, Content: text}); err != nil {
				log.Warn("failed to deliver safety message", "error", err)
			}
		}

		ex := s.orch.HandleMessage(ctx, id.UserID, sessionID, frame.Content, notify)

		reply := wsFrame{
			Type:           frameReply,
			Content:        ex.Reply,
			PrimaryEmotion: string(ex.Result.PrimaryEmotion),
			Intensity:      ex.Result.Intensity,
			RiskScore:      ex.Result.RiskScore,
			CrisisFired:    ex.CrisisFired,
		}
		if err := conn.send(ctx, reply); err != nil {
			log.Warn("failed to write reply", "error", err)
			return
		}
	}
}
