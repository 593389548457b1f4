package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/handoff"
	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/internal/presentation/graph"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionResponse is returned by every session tool and provides a unified structure across adapters.
type SessionResponse struct {
	SessionID   string          `json:"session_id" jsonschema_description:"The session identifier"`
	CurrentNode string          `json:"current_node,omitempty" jsonschema_description:"The active agent after the call"`
	Outcome     *domain.Outcome `json:"outcome,omitempty" jsonschema_description:"Result of a transition check"`
	Event       *domain.Event   `json:"event,omitempty" jsonschema_description:"The recorded event"`
}

// Server wraps the session manager and exposes it as an MCP Server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager:   mgr,
		mcpServer: server.NewMCPServer("handoff-mcp", strings.TrimSpace(handoff.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier"))

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a session over the agent graph of a scope and materialize its first agent."),
		mcp.WithString("scope_id", mcp.Required(), mcp.Description("Scope whose agents and transitions are loaded")),
		mcp.WithString("session_id", mcp.Description("Session identifier (generated when omitted)")),
		mcp.WithString("initial_agent", mcp.Description("Entry agent (first agent of the scope when omitted)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	s.mcpServer.AddTool(mcp.NewTool("submit_event",
		mcp.WithDescription("Record an event on the session. User messages, tool results and agent messages trigger a transition check."),
		sessionArg,
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type, e.g. user_message or tool_result")),
		mcp.WithString("data", mcp.Description("JSON object with the event payload")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSubmitEvent))

	s.mcpServer.AddTool(mcp.NewTool("record_decision",
		mcp.WithDescription("Store an agent decision, e.g. transition_to, for agent_decision conditions."),
		sessionArg,
		mcp.WithString("key", mcp.Required(), mcp.Description("Decision key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Decision value (JSON or plain string)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleRecordDecision))

	s.mcpServer.AddTool(mcp.NewTool("check_transition",
		mcp.WithDescription("Evaluate the outgoing transitions of the active agent and hand off on the first match."),
		sessionArg,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleCheckTransition))

	s.mcpServer.AddTool(mcp.NewTool("get_current_node",
		mcp.WithDescription("Return the active agent of the session."),
		sessionArg,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetCurrentNode))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End the session and close its active agent."),
		sessionArg,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleEndSession))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the session's agent graph as a Mermaid flowchart."),
		sessionArg,
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["session_id"].(string)
		o, err := s.manager.Get(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		g := o.Graph()
		return mcp.NewToolResultText(graph.GenerateMermaid(g.Nodes(), g.Edges(), graph.OverlayFromContext(o.Snapshot()))), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleCreateSession(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	scope, _ := args["scope_id"].(string)
	if scope == "" {
		return SessionResponse{}, fmt.Errorf("scope_id is required")
	}
	id, _ := args["session_id"].(string)
	initial, _ := args["initial_agent"].(string)

	o, err := s.manager.CreateSession(ctx, scope, id, initial)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("create failed: %w", err)
	}
	return SessionResponse{SessionID: o.SessionID(), CurrentNode: o.CurrentNode()}, nil
}

func (s *Server) handleSubmitEvent(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	typ, _ := args["type"].(string)

	data := map[string]any{}
	switch raw := args["data"].(type) {
	case string:
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return SessionResponse{}, fmt.Errorf("data must be a JSON object: %w", err)
			}
		}
	case map[string]interface{}:
		data = raw
	}

	stored, err := s.manager.Submit(ctx, id, domain.Event{
		Type:   domain.EventType(typ),
		Data:   data,
		Source: domain.SourceHost,
	})
	if err != nil {
		s.logger.Warn("MCP submit_event rejected", "session_id", id, "err", err)
		return SessionResponse{}, fmt.Errorf("submit failed: %w", err)
	}
	node, err := s.manager.GetCurrentNode(id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{SessionID: id, CurrentNode: node, Event: &stored}, nil
}

func (s *Server) handleRecordDecision(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	key, _ := args["key"].(string)
	if key == "" {
		return SessionResponse{}, fmt.Errorf("key is required")
	}

	var value any = args["value"]
	if raw, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			value = decoded
		}
	}

	if err := s.manager.RecordDecision(id, key, value); err != nil {
		return SessionResponse{}, fmt.Errorf("record failed: %w", err)
	}
	node, err := s.manager.GetCurrentNode(id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{SessionID: id, CurrentNode: node}, nil
}

func (s *Server) handleCheckTransition(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	out, err := s.manager.CheckAndExecuteTransition(ctx, id)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("check failed: %w", err)
	}
	node, err := s.manager.GetCurrentNode(id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{SessionID: id, CurrentNode: node, Outcome: &out}, nil
}

func (s *Server) handleGetCurrentNode(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	node, err := s.manager.GetCurrentNode(id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{SessionID: id, CurrentNode: node}, nil
}

func (s *Server) handleEndSession(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	if err := s.manager.EndSession(ctx, id); err != nil {
		return SessionResponse{}, fmt.Errorf("end failed: %w", err)
	}
	return SessionResponse{SessionID: id}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: handoff://sessions
	s.mcpServer.AddResource(mcp.NewResource("handoff://sessions", "Live Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.manager.List())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "handoff://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
