// ABOUTME: Retry wrapper for model clients
// ABOUTME: Repeats a call once after backoff on transient failure, only if nothing was streamed yet

package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryClient retries a failed call once when the error is transient and the
// failed attempt did not deliver any token to the caller.
type RetryClient struct {
	next    Client
	backoff time.Duration
	logger  *slog.Logger
}

// NewRetryClient wraps next with a single backoff retry.
func NewRetryClient(next Client, backoff time.Duration, logger *slog.Logger) *RetryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{
		next:    next,
		backoff: backoff,
		logger:  logger.With("component", "llm_retry"),
	}
}

// ChatStream implements Client.
func (r *RetryClient) ChatStream(ctx context.Context, req Request, callback StreamCallback) (*ChatResponse, error) {
	streamed := false
	tracking := func(token string) {
		streamed = true
		if callback != nil {
			callback(token)
		}
	}

	resp, err := r.next.ChatStream(ctx, req, tracking)
	if err == nil || streamed || !IsTransient(err) {
		return resp, err
	}

	r.logger.Warn("model call failed, retrying", "error", err, "backoff", r.backoff)

	timer := time.NewTimer(r.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return r.next.ChatStream(ctx, req, callback)
}
