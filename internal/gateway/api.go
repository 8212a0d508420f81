// ABOUTME: HTTP API handlers for the assistant chat, login, and chat log listing
// ABOUTME: Provides POST /api/ai/chat which streams the orchestration loop over SSE

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/missionlink-gateway/internal/agent"
	"github.com/2389/missionlink-gateway/internal/auth"
	"github.com/2389/missionlink-gateway/internal/conversation"
	"github.com/2389/missionlink-gateway/internal/store"
)

// LoginRequest is the JSON request body for POST /api/auth/login.
type LoginRequest struct {
	Login    string `json:"login"` // email or nickname
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /api/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
}

// ChatLogResponse is one entry in the GET /api/logs response.
type ChatLogResponse struct {
	ID          string   `json:"id"`
	Query       string   `json:"query"`
	Response    string   `json:"response"`
	ToolsCalled []string `json:"tools_called"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// ListChatLogsResponse is the JSON response for GET /api/logs.
type ListChatLogsResponse struct {
	Logs []ChatLogResponse `json:"logs"`
}

// ToolInfo describes one retrieval tool in the GET /api/tools response.
type ToolInfo struct {
	Name        string          `json:"name"`
	Pack        string          `json:"pack"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ListToolsResponse is the JSON response for GET /api/tools.
type ListToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// handleChat handles POST /api/ai/chat requests.
// The caller has already been authorized and admitted by the middleware.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := auth.FromContext(r.Context())
	if id == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "request body too large or unreadable")
		return
	}

	msgs, err := conversation.ParseBody(body)
	if err == nil {
		err = conversation.RequireUserTurn(msgs)
	}
	if err != nil {
		g.logger.Debug("rejecting chat payload", "account_id", id.AccountID, "error", err)
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before sending (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	requestID := uuid.NewString()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Request-ID", requestID)

	started := map[string]string{"request_id": requestID}
	if id.Warning != "" {
		started["warning"] = id.Warning
	}
	g.writeSSEEvent(w, "started", started)
	flusher.Flush()

	// Text tokens arrive from the provider stream while tool events come
	// from the loop, so writes are serialized.
	var mu sync.Mutex
	emit := func(resp *agent.Response) {
		event := g.responseToSSEEvent(resp)
		mu.Lock()
		defer mu.Unlock()
		g.writeSSEEvent(w, event.Event, event.Data)
		flusher.Flush()
	}

	_, err = g.conversation.Chat(r.Context(), conversation.ChatRequest{
		RequestID: requestID,
		Identity:  id,
		Messages:  msgs,
	}, emit)
	if err != nil {
		g.logger.Warn("chat ended with error", "request_id", requestID, "account_id", id.AccountID, "error", err)
	}
}

// responseToSSEEvent converts an agent response to an SSE event.
func (g *Gateway) responseToSSEEvent(resp *agent.Response) SSEEvent {
	switch resp.Event {
	case agent.EventText:
		return SSEEvent{
			Event: "text",
			Data:  map[string]string{"text": resp.Text},
		}
	case agent.EventToolUse:
		if resp.ToolUse == nil {
			return SSEEvent{Event: "error", Data: map[string]string{"error": "malformed tool_use event"}}
		}
		return SSEEvent{
			Event: "tool_use",
			Data: map[string]string{
				"id":         resp.ToolUse.ID,
				"name":       resp.ToolUse.Name,
				"input_json": resp.ToolUse.InputJSON,
			},
		}
	case agent.EventToolResult:
		if resp.ToolResult == nil {
			return SSEEvent{Event: "error", Data: map[string]string{"error": "malformed tool_result event"}}
		}
		return SSEEvent{
			Event: "tool_result",
			Data: map[string]interface{}{
				"id":       resp.ToolResult.ID,
				"name":     resp.ToolResult.Name,
				"output":   resp.ToolResult.Output,
				"is_error": resp.ToolResult.IsError,
			},
		}
	case agent.EventDone:
		return SSEEvent{
			Event: "done",
			Data: map[string]string{
				"full_response": resp.Text,
				"status":        string(resp.Status),
			},
		}
	case agent.EventError:
		return SSEEvent{
			Event: "error",
			Data:  map[string]string{"error": resp.Error},
		}
	default:
		return SSEEvent{
			Event: "unknown",
			Data:  map[string]string{"text": resp.Text},
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a 200 JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// handleLogin handles POST /api/auth/login requests.
// On success the token is returned in the body and set as the session cookie.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, acct, err := g.authenticator.Login(r.Context(), req.Login, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		g.logger.Error("login failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	expires := time.Now().Add(g.config.Auth.TokenTTL)
	http.SetCookie(w, &http.Cookie{
		Name:     g.config.Auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	g.logger.Info("session issued", "account_id", acct.ID)
	g.sendJSON(w, LoginResponse{
		Token:     token,
		AccountID: acct.ID,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}

// handleListLogs handles GET /api/logs requests.
// Callers only ever see their own exchanges.
// Supports optional ?limit=N and ?status=success|error|truncated.
func (g *Gateway) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := auth.FromContext(r.Context())
	if id == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := store.ChatLogFilter{UserID: &id.AccountID}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := store.ChatStatus(raw)
		switch status {
		case store.ChatStatusSuccess, store.ChatStatusError, store.ChatStatusTruncated:
			filter.Status = &status
		default:
			g.sendJSONError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
	}

	logs, err := g.store.ListChatLogs(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list chat logs", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ListChatLogsResponse{Logs: make([]ChatLogResponse, 0, len(logs))}
	for _, l := range logs {
		tools := l.ToolsCalled
		if tools == nil {
			tools = []string{}
		}
		resp.Logs = append(resp.Logs, ChatLogResponse{
			ID:          l.ID,
			Query:       l.Query,
			Response:    l.Response,
			ToolsCalled: tools,
			Status:      string(l.Status),
			Error:       l.Error,
			CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	g.sendJSON(w, resp)
}

// handleListTools handles GET /api/tools requests.
// It returns the tools the assistant may call, in registration order.
func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	packOf := make(map[string]string)
	for _, p := range g.packRegistry.ListBuiltinPacks() {
		for _, name := range p.ToolNames {
			packOf[name] = p.ID
		}
	}

	defs := g.packRegistry.Definitions()
	resp := ListToolsResponse{Tools: make([]ToolInfo, 0, len(defs))}
	for _, d := range defs {
		schema, _ := d.Parameters.(json.RawMessage)
		resp.Tools = append(resp.Tools, ToolInfo{
			Name:        d.Name,
			Pack:        packOf[d.Name],
			Description: d.Description,
			InputSchema: schema,
		})
	}

	g.logger.Debug("tools listed", "count", len(resp.Tools))
	g.sendJSON(w, resp)
}
