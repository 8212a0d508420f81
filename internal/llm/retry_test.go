// ABOUTME: Tests for the single-retry model client wrapper
// ABOUTME: Covers transient retry, no retry after streaming, permanent errors, and cancellation

package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns one scripted outcome per call.
type scriptedClient struct {
	attempts []attempt
	calls    int
}

type attempt struct {
	tokens []string
	resp   *ChatResponse
	err    error
}

func (s *scriptedClient) ChatStream(_ context.Context, _ Request, cb StreamCallback) (*ChatResponse, error) {
	a := s.attempts[s.calls]
	s.calls++
	for _, tok := range a.tokens {
		cb(tok)
	}
	return a.resp, a.err
}

func transientErr() error {
	return &ProviderError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("overloaded")}
}

func TestRetryClient_RetriesTransientOnce(t *testing.T) {
	next := &scriptedClient{attempts: []attempt{
		{err: transientErr()},
		{tokens: []string{"hi"}, resp: &ChatResponse{Content: "hi"}},
	}}
	r := NewRetryClient(next, time.Millisecond, nil)

	var got []string
	resp, err := r.ChatStream(context.Background(), Request{}, func(tok string) { got = append(got, tok) })
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, []string{"hi"}, got)
	assert.Equal(t, 2, next.calls)
}

func TestRetryClient_GivesUpAfterSecondFailure(t *testing.T) {
	next := &scriptedClient{attempts: []attempt{
		{err: transientErr()},
		{err: transientErr()},
	}}
	r := NewRetryClient(next, time.Millisecond, nil)

	_, err := r.ChatStream(context.Background(), Request{}, nil)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 2, next.calls)
}

func TestRetryClient_NoRetryAfterTokens(t *testing.T) {
	next := &scriptedClient{attempts: []attempt{
		{tokens: []string{"par"}, err: transientErr()},
		{resp: &ChatResponse{Content: "never"}},
	}}
	r := NewRetryClient(next, time.Millisecond, nil)

	_, err := r.ChatStream(context.Background(), Request{}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestRetryClient_NoRetryOnPermanentError(t *testing.T) {
	next := &scriptedClient{attempts: []attempt{
		{err: &ProviderError{StatusCode: http.StatusBadRequest, Err: errors.New("bad")}},
		{resp: &ChatResponse{}},
	}}
	r := NewRetryClient(next, time.Millisecond, nil)

	_, err := r.ChatStream(context.Background(), Request{}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestRetryClient_CanceledDuringBackoff(t *testing.T) {
	next := &scriptedClient{attempts: []attempt{
		{err: transientErr()},
		{resp: &ChatResponse{}},
	}}
	r := NewRetryClient(next, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.ChatStream(ctx, Request{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.True(t, IsTransient(transientErr()))
	assert.True(t, IsTransient(&ProviderError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}))
	assert.False(t, IsTransient(&ProviderError{StatusCode: http.StatusNotFound, Err: errors.New("no model")}))
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 1, OutputTokens: 2}
	u.Add(Usage{InputTokens: 10, OutputTokens: 20})
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 22}, u)
}
