// ABOUTME: Tests for the OpenAI streaming client against a local SSE server
// ABOUTME: Covers token forwarding, tool-call assembly, usage, and error classification

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer replays the given chunk payloads as an OpenAI-style event stream
// and records the decoded request body.
func sseServer(t *testing.T, chunks []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(body, captured))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: url + "/v1"}, nil)
}

func TestOpenAIClient_StreamsText(t *testing.T) {
	var req map[string]any
	srv := sseServer(t, []string{
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Sha"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lom!"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`,
	}, &req)

	var tokens []string
	resp, err := newTestClient(srv.URL).ChatStream(context.Background(), Request{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: RoleSystem, Content: "be kind"},
			{Role: RoleUser, Content: "hi"},
		},
	}, func(tok string) { tokens = append(tokens, tok) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Sha", "lom!"}, tokens)
	assert.Equal(t, "Shalom!", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3}, resp.Usage)

	assert.Equal(t, true, req["stream"])
	assert.Equal(t, "gpt-4o", req["model"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIClient_AssemblesToolCalls(t *testing.T) {
	var req map[string]any
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_meals","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"get_schedule","arguments":"{\"Gra"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"date\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"2025-03-03\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"de\":\"11\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}, &req)

	resp, err := newTestClient(srv.URL).ChatStream(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: RoleUser, Content: "meals and schedule?"}},
		Tools: []ToolDefinition{{
			Name:        "get_meals",
			Description: "Get the school meal menu.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, []ToolCall{
		{ID: "call_a", Name: "get_meals", Arguments: `{"date":"2025-03-03"}`},
		{ID: "call_b", Name: "get_schedule", Arguments: `{"Grade":"11"}`},
	}, resp.ToolCalls)

	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_meals", fn["name"])
}

func TestOpenAIClient_SendsToolHistory(t *testing.T) {
	var req map[string]any
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
	}, &req)

	_, err := newTestClient(srv.URL).ChatStream(context.Background(), Request{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: RoleUser, Content: "lunch?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "get_meals", Arguments: "{}"}}},
			{Role: RoleTool, ToolCallID: "call_1", Name: "get_meals", Content: "Rice"},
		},
	}, nil)
	require.NoError(t, err)

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
	tool := msgs[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "call_1", tool["tool_call_id"])
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"test_error"}}`)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).ChatStream(context.Background(), Request{Model: "gpt-4o"}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProvider)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestOpenAIClient_ContextCanceled(t *testing.T) {
	srv := sseServer(t, []string{`{"choices":[{"index":0,"delta":{"content":"x"}}]}`}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).ChatStream(ctx, Request{Model: "gpt-4o"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}
