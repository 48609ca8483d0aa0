// Package server exposes the MindMate HTTP and WebSocket API: session
// management, the chat exchange pipeline, the dashboard summary, and the mood
// journal.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mindmate-app/mindmate/internal/auth"
	"github.com/mindmate-app/mindmate/internal/chat"
	"github.com/mindmate-app/mindmate/internal/config"
	"github.com/mindmate-app/mindmate/internal/dashboard"
	"github.com/mindmate-app/mindmate/internal/health"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/store"
)

// Server is the MindMate API server.
type Server struct {
	cfg      config.ServerConfig
	verifier auth.Verifier
	orch     *chat.Orchestrator
	dash     *dashboard.Service
	store    store.Store
	metrics  *observe.Metrics

	httpSrv *http.Server
}

// New creates a [Server] over the given collaborators.
func New(cfg config.ServerConfig, verifier auth.Verifier, orch *chat.Orchestrator, dash *dashboard.Service, st store.Store, metrics *observe.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		verifier: verifier,
		orch:     orch,
		dash:     dash,
		store:    st,
		metrics:  metrics,
	}
}

// Handler builds the full route table wrapped in the observability
// middleware.
func (s *Server) Handler(checkers ...health.Checker) http.Handler {
	mux := http.NewServeMux()

	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/sessions", s.withAuth(s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions", s.withAuth(s.handleListSessions))
	mux.HandleFunc("GET /api/sessions/latest", s.withAuth(s.handleLatestSession))
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.withAuth(s.handleListMessages))
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.withAuth(s.handleSendMessage))
	mux.HandleFunc("GET /api/dashboard", s.withAuth(s.handleDashboard))
	mux.HandleFunc("POST /api/mood", s.withAuth(s.handleSaveMood))
	mux.HandleFunc("GET /ws/chat", s.withAuth(s.handleChatSocket))

	return observe.Middleware(s.metrics)(mux)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, checkers ...health.Checker) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(checkers...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS != nil {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// withAuth verifies the request identity and passes it to next.
func (s *Server) withAuth(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.Verify(r)
		if err != nil {
			slog.Debug("rejected unauthenticated request", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, id)
	}
}
