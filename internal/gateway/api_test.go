// ABOUTME: Tests for the chat, login, and chat log HTTP handlers
// ABOUTME: Drives the full handler stack with a scripted model, MockStore, and a seeded SQLite directory

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/missionlink-gateway/internal/agent"
	"github.com/2389/missionlink-gateway/internal/auth"
	"github.com/2389/missionlink-gateway/internal/config"
	"github.com/2389/missionlink-gateway/internal/directory"
	"github.com/2389/missionlink-gateway/internal/llm"
	"github.com/2389/missionlink-gateway/internal/store"
)

// scriptedModel replays one reply per call. Calls beyond the script repeat the last reply.
type scriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
}

type scriptedReply struct {
	tokens    []string
	toolCalls []llm.ToolCall
	err       error
}

func (m *scriptedModel) ChatStream(ctx context.Context, req llm.Request, cb llm.StreamCallback) (*llm.ChatResponse, error) {
	m.mu.Lock()
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return &llm.ChatResponse{}, nil
	}
	idx := m.calls
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.calls++
	reply := m.replies[idx]
	m.mu.Unlock()

	if reply.err != nil {
		return nil, reply.err
	}
	var full strings.Builder
	for _, tok := range reply.tokens {
		cb(tok)
		full.WriteString(tok)
	}
	return &llm.ChatResponse{Content: full.String(), ToolCalls: reply.toolCalls, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

const testSecret = "test-secret-that-is-long-enough"

type testEnv struct {
	gw    *Gateway
	store *store.MockStore
	jwt   *auth.JWTVerifier
}

func newTestEnv(t *testing.T, model llm.Client, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	cfg.Auth.JWTSecret = testSecret
	cfg.Prompt.Location = time.FixedZone("KST", 9*60*60)
	for _, m := range mutate {
		m(cfg)
	}

	dir, err := directory.OpenSQLite(filepath.Join(t.TempDir(), "directory.db"), nil)
	require.NoError(t, err)
	require.NoError(t, dir.Seed(context.Background(), &directory.SeedData{
		Meals: []directory.Meal{{Date: "2025-03-03", DayOfWeek: "Monday", Menu: "Bibimbap", Summary: "Rice bowl"}},
	}))

	s := store.NewMockStore()
	gw, err := build(cfg, deps{
		store:     s,
		directory: dir,
		model:     model,
		closers:   []namedCloser{{"directory close", dir.Close}},
		now:       func() time.Time { return time.Date(2025, 3, 3, 0, 30, 0, 0, time.UTC) },
	}, testLogger())
	require.NoError(t, err)

	return &testEnv{gw: gw, store: s, jwt: auth.NewJWTVerifier([]byte(testSecret))}
}

// account creates an account and returns a session token for it.
func (e *testEnv) account(t *testing.T, a store.Account) string {
	t.Helper()
	require.NoError(t, e.store.CreateAccount(context.Background(), &a))
	token, err := e.jwt.Generate(a.ID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) activeToken(t *testing.T) string {
	return e.account(t, store.Account{
		ID: "acct-1", Email: "hana@example.org", Nickname: "hana", PreferredName: "Hana",
		Grade: "11", Status: store.AccountStatusActive, AIEnabled: true,
	})
}

// drainAudit closes the recorder so every queued chat log is written.
func (e *testEnv) drainAudit(t *testing.T) []store.ChatLog {
	t.Helper()
	require.NoError(t, e.gw.recorder.Close(context.Background()))
	logs, err := e.store.ListChatLogs(context.Background(), store.ChatLogFilter{})
	require.NoError(t, err)
	return logs
}

func chatRequest(token, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type sseEvent struct {
	name string
	data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data))
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func eventNames(events []sseEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.name
	}
	return names
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHandleChat_StreamsToolRunAndAnswer(t *testing.T) {
	model := &scriptedModel{replies: []scriptedReply{
		{toolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_meals", Arguments: "{}"}}},
		{tokens: []string{"Lunch is ", "bibimbap."}},
	}}
	env := newTestEnv(t, model)
	token := env.activeToken(t)

	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, chatRequest(token, `{"messages":[{"role":"user","content":"What's for lunch?"}]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"started", "tool_use", "tool_result", "text", "text", "done"}, eventNames(events))

	assert.Equal(t, "get_meals", events[1].data["name"])
	assert.Contains(t, events[2].data["output"], "Bibimbap")
	assert.Equal(t, false, events[2].data["is_error"])

	var streamed strings.Builder
	for _, e := range events {
		if e.name == "text" {
			streamed.WriteString(e.data["text"].(string))
		}
	}
	done := events[len(events)-1].data
	assert.Equal(t, streamed.String(), done["full_response"])
	assert.Equal(t, "Lunch is bibimbap.", done["full_response"])
	assert.Equal(t, "success", done["status"])

	logs := env.drainAudit(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "acct-1", logs[0].UserID)
	assert.Equal(t, "What's for lunch?", logs[0].Query)
	assert.Equal(t, "Lunch is bibimbap.", logs[0].Response)
	assert.Equal(t, []string{"get_meals"}, logs[0].ToolsCalled)
	assert.Equal(t, store.ChatStatusSuccess, logs[0].Status)
}

func TestHandleChat_AcceptsCookieSession(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{replies: []scriptedReply{{tokens: []string{"Hi"}}}})
	token := env.activeToken(t)

	req := chatRequest("", `{"text":"hello"}`)
	req.AddCookie(&http.Cookie{Name: config.DefaultSessionCookie, Value: token})
	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, "done", events[len(events)-1].name)
}

func TestHandleChat_Rejections(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	active := env.activeToken(t)
	pending := env.account(t, store.Account{ID: "acct-2", Email: "p@example.org", Status: store.AccountStatusPending, AIEnabled: true})
	disabled := env.account(t, store.Account{ID: "acct-3", Email: "d@example.org", Status: store.AccountStatusActive})
	orphan, err := env.jwt.Generate("acct-gone", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no token", "", `{"text":"hi"}`, http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", `{"text":"hi"}`, http.StatusUnauthorized},
		{"account missing", orphan, `{"text":"hi"}`, http.StatusForbidden},
		{"inactive account", pending, `{"text":"hi"}`, http.StatusForbidden},
		{"feature disabled", disabled, `{"text":"hi"}`, http.StatusForbidden},
		{"invalid json", active, `{"messages":`, http.StatusBadRequest},
		{"no messages", active, `{}`, http.StatusBadRequest},
		{"bad role", active, `{"messages":[{"role":"robot","content":"hi"}]}`, http.StatusBadRequest},
		{"no user turn", active, `{"messages":[{"role":"assistant","content":"hello"}]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.gw.Handler().ServeHTTP(rec, chatRequest(tt.token, tt.body))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}

	assert.Empty(t, env.drainAudit(t), "rejected requests must not be audited")
}

func TestHandleChat_WarnPolicyAdmitsInactive(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{replies: []scriptedReply{{tokens: []string{"ok"}}}}, func(c *config.Config) {
		c.Auth.InactivePolicy = config.InactivePolicyWarn
	})
	token := env.account(t, store.Account{ID: "acct-2", Email: "p@example.org", Status: store.AccountStatusSuspended, AIEnabled: true})

	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, chatRequest(token, `{"text":"hi"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "started", events[0].name)
	assert.Contains(t, events[0].data["warning"], "suspended")
}

func TestHandleChat_ProviderFailure(t *testing.T) {
	model := &scriptedModel{replies: []scriptedReply{{err: &llm.ProviderError{StatusCode: http.StatusBadRequest, Err: errors.New("bad request")}}}}
	env := newTestEnv(t, model)
	token := env.activeToken(t)

	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, chatRequest(token, `{"text":"hi"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{"started", "error"}, eventNames(events))
	assert.Equal(t, agent.ProviderFailureMessage, events[1].data["error"])

	logs := env.drainAudit(t)
	require.Len(t, logs, 1)
	assert.Equal(t, store.ChatStatusError, logs[0].Status)
	assert.NotEmpty(t, logs[0].Error)
}

func TestHandleChat_StepCapTruncates(t *testing.T) {
	model := &scriptedModel{replies: []scriptedReply{
		{toolCalls: []llm.ToolCall{{Name: "get_meals", Arguments: "{}"}}},
	}}
	env := newTestEnv(t, model, func(c *config.Config) { c.Model.StepCap = 2 })
	token := env.activeToken(t)

	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, chatRequest(token, `{"text":"loop forever"}`))

	events := parseSSE(t, rec.Body.String())
	done := events[len(events)-1]
	require.Equal(t, "done", done.name)
	assert.Equal(t, "truncated", done.data["status"])
	assert.Equal(t, agent.TruncatedFallback, done.data["full_response"])
	assert.Equal(t, 2, model.calls)

	logs := env.drainAudit(t)
	require.Len(t, logs, 1)
	assert.Equal(t, store.ChatStatusTruncated, logs[0].Status)
	assert.Equal(t, []string{"get_meals", "get_meals"}, logs[0].ToolsCalled)
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	token := env.activeToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ai/chat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	env.account(t, store.Account{ID: "acct-1", Email: "hana@example.org", Nickname: "hana", Status: store.AccountStatusActive, AIEnabled: true, PasswordHash: hash})

	t.Run("success by nickname", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"login":"hana","password":"correct horse"}`))
		rec := httptest.NewRecorder()
		env.gw.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp LoginResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "acct-1", resp.AccountID)

		sub, err := env.jwt.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "acct-1", sub)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, config.DefaultSessionCookie, cookies[0].Name)
		assert.Equal(t, resp.Token, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"login":"HANA@example.org","password":"nope"}`))
		rec := httptest.NewRecorder()
		env.gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid credentials", decodeError(t, rec))
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		env.gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListLogs_OnlyOwnLogs(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	token := env.activeToken(t)

	ctx := context.Background()
	base := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)
	require.NoError(t, env.store.AppendChatLog(ctx, &store.ChatLog{UserID: "acct-1", Query: "first", Status: store.ChatStatusSuccess, CreatedAt: base}))
	require.NoError(t, env.store.AppendChatLog(ctx, &store.ChatLog{UserID: "acct-1", Query: "second", Status: store.ChatStatusError, Error: "boom", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, env.store.AppendChatLog(ctx, &store.ChatLog{UserID: "someone-else", Query: "private", Status: store.ChatStatusSuccess, CreatedAt: base}))

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/logs"+query, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.gw.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := get("")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListChatLogsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "second", resp.Logs[0].Query)
	assert.Equal(t, "first", resp.Logs[1].Query)
	assert.Equal(t, []string{}, resp.Logs[1].ToolsCalled)

	rec = get("?status=error")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ListChatLogsResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "boom", resp.Logs[0].Error)

	assert.Equal(t, http.StatusBadRequest, get("?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("?status=weird").Code)
}

func TestHandleListLogs_InactiveAccountCanReadOwnLogs(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	token := env.account(t, store.Account{ID: "acct-9", Email: "x@example.org", Status: store.AccountStatusSuspended})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleListTools(t *testing.T) {
	env := newTestEnv(t, &scriptedModel{})
	token := env.activeToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListToolsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	names := make([]string, len(resp.Tools))
	for i, tool := range resp.Tools {
		names[i] = tool.Name
		assert.Equal(t, "builtin:school", tool.Pack)
		assert.True(t, json.Valid(tool.InputSchema), "schema for %s", tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_meals", "get_upcoming_birthdays", "get_stats", "get_schedule", "get_upcoming_events"}, names)

	unauth := httptest.NewRecorder()
	env.gw.Handler().ServeHTTP(unauth, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)
}

func TestResponseToSSEEvent_Malformed(t *testing.T) {
	gw := &Gateway{logger: testLogger()}

	ev := gw.responseToSSEEvent(&agent.Response{Event: agent.EventToolUse})
	assert.Equal(t, "error", ev.Event)

	ev = gw.responseToSSEEvent(&agent.Response{Event: agent.EventToolResult})
	assert.Equal(t, "error", ev.Event)
}
