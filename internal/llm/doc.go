// ABOUTME: Package llm talks to hosted language models
// ABOUTME: Streams tokens and assembles tool calls behind a provider-neutral Client

// Package llm provides the model client used by the orchestration loop.
//
// The Client interface is deliberately narrow: one streaming call that
// forwards text tokens to a callback and returns the assembled response,
// including any tool calls the model requested. OpenAIClient implements it
// over the OpenAI chat completions API. RetryClient wraps any Client and
// retries a call once, with backoff, when the failure is transient and no
// token reached the caller yet.
package llm
