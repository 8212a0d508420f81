// ABOUTME: Chat service tying identity, prompt, orchestration loop and audit together
// ABOUTME: Every exchange that reaches the loop is recorded exactly once, whatever its outcome

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/missionlink-gateway/internal/agent"
	"github.com/2389/missionlink-gateway/internal/auth"
	"github.com/2389/missionlink-gateway/internal/llm"
	"github.com/2389/missionlink-gateway/internal/prompt"
	"github.com/2389/missionlink-gateway/internal/store"
)

// Runner drives one conversation. *agent.Loop implements it.
type Runner interface {
	Run(ctx context.Context, req agent.Request, emit agent.Emitter) (*agent.Result, error)
}

// Auditor accepts finished exchanges without blocking. *audit.Recorder implements it.
type Auditor interface {
	Record(l store.ChatLog) bool
}

// Config contains configuration options for the Service.
type Config struct {
	Runner       Runner
	Auditor      Auditor
	Template     prompt.Template
	Location     *time.Location
	DailyContent bool
	Now          func() time.Time
	Logger       *slog.Logger
}

// Service is the chat layer between the HTTP handler and the orchestration loop.
type Service struct {
	runner   Runner
	auditor  Auditor
	template prompt.Template
	loc      *time.Location
	daily    bool
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a new Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tpl := cfg.Template
	if tpl == "" {
		tpl = prompt.DefaultTemplate
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		runner:   cfg.Runner,
		auditor:  cfg.Auditor,
		template: tpl,
		loc:      loc,
		daily:    cfg.DailyContent,
		now:      now,
		logger:   logger.With("component", "conversation"),
	}
}

// ChatRequest is one authorized chat call.
type ChatRequest struct {
	RequestID string
	Identity  *auth.Identity
	Messages  []Message
}

// SystemPrompt renders the prompt for id at the current time.
func (s *Service) SystemPrompt(id *auth.Identity) string {
	now := s.now()
	c := prompt.Context{
		Now:         now,
		Location:    s.loc,
		DisplayName: id.DisplayName,
		Grade:       id.Grade,
	}
	if s.daily {
		c.Daily = prompt.DailyContentFor(now, s.loc)
	}
	return prompt.Build(s.template, c)
}

// Chat runs one exchange, streaming events to emit, and queues its audit
// record. Messages that do not end with a user turn are rejected with
// ErrBadRequest before anything runs and are not audited.
func (s *Service) Chat(ctx context.Context, req ChatRequest, emit agent.Emitter) (*agent.Result, error) {
	if req.Identity == nil {
		return nil, fmt.Errorf("chat without identity")
	}
	if err := RequireUserTurn(req.Messages); err != nil {
		return nil, err
	}

	s.logger.Debug("chat started",
		"request_id", req.RequestID,
		"account_id", req.Identity.AccountID,
		"messages", len(req.Messages),
	)

	result, err := s.runner.Run(ctx, agent.Request{
		ID:           req.RequestID,
		SystemPrompt: s.SystemPrompt(req.Identity),
		Messages:     toHistory(req.Messages),
	}, emit)

	s.record(req, result, err)
	return result, err
}

// record builds the audit entry for a finished run and hands it off.
func (s *Service) record(req ChatRequest, result *agent.Result, runErr error) {
	if s.auditor == nil {
		return
	}

	entry := store.ChatLog{
		UserID: req.Identity.AccountID,
		Query:  LastUserQuery(req.Messages),
		Status: store.ChatStatusError,
	}
	if result != nil {
		entry.Response = result.Text
		entry.ToolsCalled = result.ToolsCalled
		entry.Steps = len(result.Steps)
		entry.InputTokens = result.Usage.InputTokens
		entry.OutputTokens = result.Usage.OutputTokens
		entry.Status = chatStatus(result.Status)
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
	}
	if runErr != nil {
		entry.Status = store.ChatStatusError
		entry.Error = runErr.Error()
	}

	if !s.auditor.Record(entry) {
		s.logger.Warn("chat log not queued", "request_id", req.RequestID, "account_id", entry.UserID)
	}
}

func chatStatus(st agent.Status) store.ChatStatus {
	switch st {
	case agent.StatusSuccess:
		return store.ChatStatusSuccess
	case agent.StatusTruncated:
		return store.ChatStatusTruncated
	default:
		return store.ChatStatusError
	}
}

// toHistory converts canonical messages into model history, preserving order.
func toHistory(msgs []Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: string(m.Role), Content: m.Text}
	}
	return out
}
