package httpchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
)

// maxTextBytes bounds incoming message text. Oversized inputs are rejected
// before they reach matching, where they would hit every regex pattern.
const maxTextBytes = 4096

// Engine is the conversation entrypoint the server exposes.
type Engine interface {
	Handle(ctx context.Context, ev domain.Event) ([]domain.Envelope, error)
	Reset(ctx context.Context, subscriberID string) error
}

// SessionReader exposes stored sessions for inspection endpoints.
type SessionReader interface {
	Load(ctx context.Context, subscriberID string) (*domain.Session, error)
	Delete(ctx context.Context, subscriberID string) error
	List(ctx context.Context) ([]string, error)
}

// Server exposes the engine as a webhook-style JSON API.
type Server struct {
	engine   Engine
	sessions SessionReader
	logger   *slog.Logger
	metrics  http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a metrics handler (typically promhttp) at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler builds the HTTP handler for the engine.
func NewHandler(engine Engine, sessions SessionReader, opts ...Option) http.Handler {
	server := &Server{
		engine:   engine,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()

	r.Get("/healthz", server.health)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", server.handleEvent)
		r.Get("/sessions", server.listSessions)
		r.Get("/sessions/{subscriberID}", server.getSession)
		r.Delete("/sessions/{subscriberID}", server.deleteSession)
		r.Post("/sessions/{subscriberID}/reset", server.resetSession)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventResponse is the webhook reply: the ordered envelope batch.
type EventResponse struct {
	Envelopes []domain.Envelope `json:"envelopes"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("event: invalid request body", "err", err)
		return
	}
	if ev.SubscriberID == "" {
		http.Error(w, "subscriber_id is required", http.StatusBadRequest)
		return
	}
	if len(ev.Text) > maxTextBytes {
		http.Error(w, "text too large", http.StatusBadRequest)
		s.logger.Warn("event: text rejected", "subscriber_id", ev.SubscriberID, "size", len(ev.Text))
		return
	}

	envelopes, err := s.engine.Handle(r.Context(), ev)
	if err != nil {
		http.Error(w, fmt.Sprintf("Event error: %v", err), http.StatusInternalServerError)
		s.logger.Error("event handling failed", "subscriber_id", ev.SubscriberID, "err", err)
		return
	}
	if envelopes == nil {
		envelopes = []domain.Envelope{}
	}

	s.writeJSON(w, EventResponse{Envelopes: envelopes})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session list failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, map[string][]string{"subscribers": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberID")

	sess, err := s.sessions.Load(r.Context(), subscriberID)
	if err != nil {
		if err == domain.ErrSessionNotFound {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session load failed", "subscriber_id", subscriberID, "err", err)
		return
	}

	s.writeJSON(w, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberID")

	if err := s.sessions.Delete(r.Context(), subscriberID); err != nil {
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session delete failed", "subscriber_id", subscriberID, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberID")

	if err := s.engine.Reset(r.Context(), subscriberID); err != nil {
		if err == domain.ErrSessionNotFound {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Reset error: %v", err), http.StatusInternalServerError)
		s.logger.Error("session reset failed", "subscriber_id", subscriberID, "err", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
