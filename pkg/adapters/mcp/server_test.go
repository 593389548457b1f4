package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/handoff/pkg/adapters/memory"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := memory.NewConfigStore()
	cfg.Put("support",
		[]domain.AgentNode{{ID: "triage"}, {ID: "billing"}, {ID: "sales"}},
		[]domain.TransitionEdge{
			{From: "triage", To: "billing", Kind: domain.ConditionToolResult, ToolID: "classify", Condition: map[string]any{"result_key": "topic", "expected_value": "billing"}},
			{From: "triage", To: "sales", Kind: domain.ConditionAgentDecision, Condition: map[string]any{"expected_value": "sales"}},
		},
	)
	mgr := session.NewManager(cfg, memory.NewFactory(), session.WithInterval(0))
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	return NewServer(mgr)
}

func TestTools_SessionFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleCreateSession(ctx, req, map[string]interface{}{"scope_id": "support", "session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "triage", resp.CurrentNode)

	resp, err = s.handleSubmitEvent(ctx, req, map[string]interface{}{
		"session_id": "s1",
		"type":       "tool_result",
		"data":       `{"tool_name":"classify","tool_result":{"topic":"billing"}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", resp.CurrentNode, "tool results trigger a reactive check")
	require.NotNil(t, resp.Event)
	assert.Equal(t, domain.EventToolResult, resp.Event.Type)

	resp, err = s.handleGetCurrentNode(ctx, req, map[string]interface{}{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "billing", resp.CurrentNode)

	resp, err = s.handleCheckTransition(ctx, req, map[string]interface{}{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoTransition, resp.Outcome.Status)

	_, err = s.handleEndSession(ctx, req, map[string]interface{}{"session_id": "s1"})
	require.NoError(t, err)

	_, err = s.handleGetCurrentNode(ctx, req, map[string]interface{}{"session_id": "s1"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestTools_RecordDecision(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleCreateSession(ctx, req, map[string]interface{}{"scope_id": "support", "session_id": "s1"})
	require.NoError(t, err)

	_, err = s.handleRecordDecision(ctx, req, map[string]interface{}{"session_id": "s1", "key": "transition_to", "value": "sales"})
	require.NoError(t, err)

	resp, err := s.handleCheckTransition(ctx, req, map[string]interface{}{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.Success("sales"), *resp.Outcome)
	assert.Equal(t, "sales", resp.CurrentNode)
}

func TestTools_Validation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleCreateSession(ctx, req, map[string]interface{}{})
	assert.Error(t, err)

	_, err = s.handleSubmitEvent(ctx, req, map[string]interface{}{"session_id": "s1", "type": "user_message", "data": "not json"})
	assert.Error(t, err)

	_, err = s.handleRecordDecision(ctx, req, map[string]interface{}{"session_id": "s1"})
	assert.Error(t, err)
}
