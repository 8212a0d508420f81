// ABOUTME: OpenAI chat completions client with streaming and tool-call assembly
// ABOUTME: Converts provider-neutral messages to go-openai types and back

package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string       // empty uses the public API
	HTTPClient *http.Client // nil uses the library default
}

// OpenAIClient implements Client over the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client from cfg.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		logger: logger.With("component", "llm", "provider", "openai"),
	}
}

// ChatStream implements Client.
func (c *OpenAIClient) ChatStream(ctx context.Context, req Request, callback StreamCallback) (*ChatResponse, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, toOpenAIRequest(req))
	if err != nil {
		return nil, wrapProviderError(err)
	}
	defer stream.Close()

	var (
		content strings.Builder
		calls   = newToolCallAssembler()
		resp    = &ChatResponse{}
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, wrapProviderError(err)
		}

		if chunk.Usage != nil {
			resp.Usage = Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if delta := choice.Delta.Content; delta != "" {
			content.WriteString(delta)
			if callback != nil {
				callback(delta)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			calls.add(tc)
		}
		if choice.FinishReason != "" {
			resp.FinishReason = string(choice.FinishReason)
		}
	}

	resp.Content = content.String()
	resp.ToolCalls = calls.result()

	c.logger.Debug("model call finished",
		"model", req.Model,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func toOpenAIRequest(req Request) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:         req.Model,
		Messages:      make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		MaxTokens:     req.MaxTokens,
	}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// toolCallAssembler stitches streamed tool-call fragments together by index.
// The first fragment for an index carries the ID and name; later fragments
// append to the argument string.
type toolCallAssembler struct {
	byIndex map[int]*ToolCall
	next    int
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{byIndex: make(map[int]*ToolCall)}
}

func (a *toolCallAssembler) add(tc openai.ToolCall) {
	idx := a.next
	if tc.Index != nil {
		idx = *tc.Index
	} else {
		a.next++
	}

	call, ok := a.byIndex[idx]
	if !ok {
		call = &ToolCall{}
		a.byIndex[idx] = call
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Function.Name != "" {
		call.Name = tc.Function.Name
	}
	call.Arguments += tc.Function.Arguments
}

func (a *toolCallAssembler) result() []ToolCall {
	if len(a.byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *a.byIndex[i])
	}
	return out
}
