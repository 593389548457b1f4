package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/internal/presentation/graph"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/observability"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the session API.
type Server struct {
	Manager *session.Manager
	Streams *observability.Broadcaster

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithBroadcaster enables GET /sessions/{id}/stream.
// The broadcaster's hooks must be registered on the manager.
func WithBroadcaster(b *observability.Broadcaster) Option {
	return func(s *Server) { s.Streams = b }
}

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler creates a new HTTP handler for the manager.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Manager: mgr,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.EndSession)
			r.Post("/events", s.SubmitEvent)
			r.Post("/check", s.Check)
			r.Post("/decisions", s.RecordDecision)
			r.Get("/graph", s.GetGraph)
			r.Get("/stream", s.Stream)
		})
	})
	return r
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

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	ScopeID      string `json:"scope_id"`
	SessionID    string `json:"session_id,omitempty"`
	InitialAgent string `json:"initial_agent,omitempty"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	CurrentNode string `json:"current_node"`
}

// EventRequest is the body of POST /sessions/{id}/events.
type EventRequest struct {
	Type   domain.EventType `json:"type"`
	Data   map[string]any   `json:"data,omitempty"`
	Source string           `json:"source,omitempty"`
}

// EventResponse echoes the stored event and where the session stands after it.
type EventResponse struct {
	Event       domain.Event `json:"event"`
	CurrentNode string       `json:"current_node"`
}

// DecisionRequest is the body of POST /sessions/{id}/decisions.
type DecisionRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.ScopeID == "" {
		s.fail(w, fmt.Errorf("%w: scope_id is required", errBadRequest))
		return
	}

	o, err := s.Manager.CreateSession(r.Context(), body.ScopeID, body.SessionID, body.InitialAgent)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, SessionResponse{SessionID: o.SessionID(), CurrentNode: o.CurrentNode()})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string][]string{"sessions": s.Manager.List()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Manager.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, snap)
}

// EndSession handles DELETE /sessions/{id}.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.EndSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitEvent handles POST /sessions/{id}/events.
func (s *Server) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body EventRequest
	if !s.decode(w, r, &body) {
		return
	}

	stored, err := s.Manager.Submit(r.Context(), id, domain.Event{
		Type:   body.Type,
		Data:   body.Data,
		Source: body.Source,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	node, err := s.Manager.GetCurrentNode(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, EventResponse{Event: stored, CurrentNode: node})
}

// Check handles POST /sessions/{id}/check.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	out, err := s.Manager.CheckAndExecuteTransition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, out)
}

// RecordDecision handles POST /sessions/{id}/decisions.
func (s *Server) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Key == "" {
		s.fail(w, fmt.Errorf("%w: key is required", errBadRequest))
		return
	}
	if err := s.Manager.RecordDecision(chi.URLParam(r, "id"), body.Key, body.Value); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /sessions/{id}/graph, rendering Mermaid with the session overlay.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	o, err := s.Manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	g := o.Graph()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(g.Nodes(), g.Edges(), graph.OverlayFromContext(o.Snapshot())))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"app":     "handoff-http",
		"version": strings.TrimSpace(handoff.Version),
	})
}

// Stream handles GET /sessions/{id}/stream (SSE).
// Each notification is followed by the diff of the session context since the previous frame.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	if s.Streams == nil {
		http.Error(w, "Streaming not configured", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	last, err := s.Manager.Snapshot(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	notifications := s.Streams.Subscribe(r.Context(), id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	s.writeFrame(w, "snapshot", domain.Diff(nil, last))
	flusher.Flush()

	s.logger.Info("SSE: subscribed", "session_id", id)
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "session_id", id)
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			current, err := s.Manager.Snapshot(id)
			if err != nil {
				fmt.Fprintf(w, "event: end\ndata: {\"session_id\":%q}\n\n", id)
				flusher.Flush()
				return
			}
			diff := domain.Diff(last, current)
			last = current
			switch {
			case !diff.IsEmpty():
				s.writeFrame(w, string(n.Kind), diff)
			case n.Kind == observability.NotifyOutcome:
				s.writeFrame(w, string(n.Kind), n)
			}
			if n.Event != nil && n.Event.Type == domain.EventSessionEnded {
				fmt.Fprintf(w, "event: end\ndata: {\"session_id\":%q}\n\n", id)
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeFrame(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("SSE: encode failed", "err", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// -- Helpers --

var errBadRequest = errors.New("bad request")

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.fail(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	var gerr *domain.GraphIntegrityError
	var merr *domain.TargetMaterializationError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrScopeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.As(err, &gerr):
		return http.StatusBadRequest
	case errors.As(err, &merr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
