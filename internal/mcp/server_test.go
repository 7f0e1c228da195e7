package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"fleet-assist/backend/internal/auth"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/schema"
	"fleet-assist/backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	env   flow.Env
	input map[string]any
	out   map[string]any
	err   error
}

func (f *fakeRunner) Flows() []services.FlowInfo {
	return []services.FlowInfo{{
		Name:        "suggestRoute",
		Description: "Suggest a voyage route",
		Modality:    flow.ModalityText,
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"startPort"},
			"properties": map[string]any{
				"startPort": map[string]any{"type": "string"},
			},
		},
	}}
}

func (f *fakeRunner) RunFlow(_ context.Context, env flow.Env, _ string, input map[string]any) (map[string]any, error) {
	f.env, f.input = env, input
	return f.out, f.err
}

type rpcResult struct {
	Result struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

func call(t *testing.T, s *Server, ctx context.Context, msg string) rpcResult {
	t.Helper()
	resp := s.GetMCPServer().HandleMessage(ctx, json.RawMessage(msg))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var out rpcResult
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestServer_ListsFlowsAsTools(t *testing.T) {
	s, err := NewServer(&fakeRunner{}, "test", logging.Nop())
	require.NoError(t, err)

	res := call(t, s, context.Background(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	require.Len(t, res.Result.Tools, 1)
	tool := res.Result.Tools[0]
	assert.Equal(t, "suggestRoute", tool.Name)
	assert.Equal(t, "Suggest a voyage route", tool.Description)
	assert.Equal(t, []any{"startPort"}, tool.InputSchema["required"])
}

func TestServer_CallTool(t *testing.T) {
	runner := &fakeRunner{out: map[string]any{"suggestedRoute": "via Skagerrak"}}
	s, err := NewServer(runner, "test", logging.Nop())
	require.NoError(t, err)
	ctx := auth.WithTenant(context.Background(), "tenant-1")

	res := call(t, s, ctx, `{"jsonrpc":"2.0","id":2,"method":"tools/call",
		"params":{"name":"suggestRoute","arguments":{"startPort":"Oslo"}}}`)

	require.False(t, res.Result.IsError)
	require.Len(t, res.Result.Content, 1)
	assert.JSONEq(t, `{"suggestedRoute":"via Skagerrak"}`, res.Result.Content[0].Text)
	assert.Equal(t, "tenant-1", runner.env.TenantID)
	assert.Equal(t, map[string]any{"startPort": "Oslo"}, runner.input)
}

func TestServer_CallToolWithoutTenant(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewServer(runner, "test", logging.Nop())
	require.NoError(t, err)

	res := call(t, s, context.Background(), `{"jsonrpc":"2.0","id":3,"method":"tools/call",
		"params":{"name":"suggestRoute","arguments":{}}}`)

	assert.True(t, res.Result.IsError)
	assert.Nil(t, runner.input)
}

func TestServer_CallToolFlowError(t *testing.T) {
	runner := &fakeRunner{err: &flow.Error{
		Kind: flow.KindValidation,
		Flow: "suggestRoute",
		Violations: []schema.Violation{
			{Path: "startPort", Message: "is required"},
		},
	}}
	s, err := NewServer(runner, "test", logging.Nop())
	require.NoError(t, err)
	ctx := auth.WithTenant(context.Background(), "tenant-1")

	res := call(t, s, ctx, `{"jsonrpc":"2.0","id":4,"method":"tools/call",
		"params":{"name":"suggestRoute","arguments":{}}}`)

	require.True(t, res.Result.IsError)
	require.Len(t, res.Result.Content, 1)
	assert.Contains(t, res.Result.Content[0].Text, "ValidationError")
	assert.Contains(t, res.Result.Content[0].Text, "startPort")
}
