package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/observability"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *session.Manager) {
	t.Helper()
	cfg := memory.NewConfigStore()
	cfg.Put("support",
		[]domain.AgentNode{{ID: "triage"}, {ID: "billing"}},
		[]domain.TransitionEdge{
			{From: "triage", To: "billing", Kind: domain.ConditionUserInput, Condition: map[string]any{"pattern": "invoice"}},
		},
	)

	streams := observability.NewBroadcaster()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	mgr := session.NewManager(cfg, memory.NewFactory(),
		session.WithInterval(0),
		session.WithHooks(streams.Hooks().Merge(metrics.Hooks())),
	)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	return NewHandler(mgr, WithBroadcaster(streams), WithGatherer(reg)), mgr
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	rr = do(t, h, "GET", "/info", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "handoff-http", resp["app"])
	assert.NotEmpty(t, resp["version"])
}

func TestSessionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := do(t, h, "POST", "/sessions", CreateSessionRequest{ScopeID: "support", SessionID: "s1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, SessionResponse{SessionID: "s1", CurrentNode: "triage"}, created)

	rr = do(t, h, "POST", "/sessions", CreateSessionRequest{ScopeID: "support", SessionID: "s1"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, "GET", "/sessions", nil)
	assert.JSONEq(t, `{"sessions":["s1"]}`, rr.Body.String())

	rr = do(t, h, "POST", "/sessions/s1/events", EventRequest{Type: domain.EventUserMessage, Data: map[string]any{"message": "my invoice"}})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var ev EventResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ev))
	assert.Equal(t, "billing", ev.CurrentNode)
	assert.Equal(t, domain.EventUserMessage, ev.Event.Type)

	rr = do(t, h, "GET", "/sessions/s1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap domain.SessionContext
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "billing", snap.CurrentNodeID)
	assert.Equal(t, "triage", snap.PreviousNodeID)

	rr = do(t, h, "POST", "/sessions/s1/check", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"no_transition"}`, rr.Body.String())

	rr = do(t, h, "POST", "/sessions/s1/decisions", DecisionRequest{Key: "transition_to", Value: "human"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, "GET", "/sessions/s1/graph", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "class billing current;")
	assert.Contains(t, rr.Body.String(), "class triage visited;")

	rr = do(t, h, "DELETE", "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, "GET", "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"Malformed Body", "POST", "/sessions", "{", http.StatusBadRequest},
		{"Missing Scope", "POST", "/sessions", CreateSessionRequest{}, http.StatusBadRequest},
		{"Unknown Scope", "POST", "/sessions", CreateSessionRequest{ScopeID: "ghost"}, http.StatusNotFound},
		{"Unknown Agent", "POST", "/sessions", CreateSessionRequest{ScopeID: "support", InitialAgent: "ghost"}, http.StatusBadRequest},
		{"Unknown Session", "POST", "/sessions/nope/check", nil, http.StatusNotFound},
		{"Decision Without Key", "POST", "/sessions/nope/decisions", DecisionRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	rr := do(t, h, "POST", "/sessions", CreateSessionRequest{ScopeID: "support", SessionID: "s1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, h, "POST", "/sessions/s1/events", EventRequest{Type: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	do(t, h, "POST", "/sessions", CreateSessionRequest{ScopeID: "support", SessionID: "s1"})
	do(t, h, "POST", "/sessions/s1/events", EventRequest{Type: domain.EventUserMessage, Data: map[string]any{"message": "invoice"}})

	rr := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `handoff_transitions_total{from="triage",kind="user_input",to="billing"} 1`)
}

func TestStream(t *testing.T) {
	h, mgr := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := mgr.CreateSession(context.Background(), "support", "s1", "triage")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/sessions/s1/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(substr string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", substr)
				}
				if strings.Contains(line, substr) {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", substr)
			}
		}
	}

	waitFor("data: connected")
	waitFor(`"current_node_id":"triage"`)

	// A check that changes nothing still yields an outcome frame and keeps the stream open.
	out, err := mgr.CheckAndExecuteTransition(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.NoTransition(), out)
	waitFor(`"status":"no_transition"`)

	_, err = mgr.Submit(context.Background(), "s1", domain.NewEvent(domain.EventUserMessage, domain.SourceHost, map[string]any{"message": "invoice"}))
	require.NoError(t, err)
	waitFor(`"current_node_id":"billing"`)

	require.NoError(t, mgr.EndSession(context.Background(), "s1"))
	waitFor("event: end")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGone, StatusFor(domain.ErrSessionClosed))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&domain.TargetMaterializationError{NodeID: "a"}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(io.EOF))
}
