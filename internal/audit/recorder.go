// ABOUTME: Fire-and-forget audit recorder for finished chat exchanges
// ABOUTME: A bounded queue feeds one worker; write failures are logged and never reach the request path

package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/missionlink-gateway/internal/store"
)

// Defaults for Config fields left at zero.
const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 5 * time.Second
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("audit recorder closed")

// Writer persists one chat log. store.ChatLogStore implements it.
type Writer interface {
	AppendChatLog(ctx context.Context, l *store.ChatLog) error
}

// Config contains configuration options for the Recorder.
type Config struct {
	Writer       Writer
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Recorder writes chat logs on a background worker. Record never blocks;
// when the queue is full the entry is dropped with a warning.
type Recorder struct {
	writer  Writer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	queue  chan store.ChatLog
	closed bool
	done   chan struct{}

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewRecorder creates a Recorder and starts its worker.
func NewRecorder(cfg Config) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		writer:  cfg.Writer,
		timeout: timeout,
		logger:  logger.With("component", "audit"),
		queue:   make(chan store.ChatLog, size),
		done:    make(chan struct{}),
	}
	go r.work()
	return r
}

// Record queues l for writing and reports whether it was accepted.
func (r *Recorder) Record(l store.ChatLog) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		r.logger.Warn("audit recorder closed, dropping chat log", "user_id", l.UserID, "status", l.Status)
		return false
	}

	select {
	case r.queue <- l:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping chat log",
			"user_id", l.UserID,
			"status", l.Status,
			"queue_size", cap(r.queue),
		)
		return false
	}
}

// Close stops accepting entries and waits for queued ones to be written,
// or for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
		r.logger.Info("audit recorder drained",
			"written", r.written.Load(),
			"failed", r.failed.Load(),
			"dropped", r.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining audit queue: %w", ctx.Err())
	}
}

// Stats returns counts of written, failed and dropped entries.
func (r *Recorder) Stats() (written, failed, dropped int64) {
	return r.written.Load(), r.failed.Load(), r.dropped.Load()
}

func (r *Recorder) work() {
	defer close(r.done)
	for l := range r.queue {
		r.write(l)
	}
}

// write persists one entry under its own timeout. Panics from the writer
// are recovered so one bad entry cannot stop the worker.
func (r *Recorder) write(l store.ChatLog) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			r.failed.Add(1)
			r.logger.Error("audit writer panicked", "user_id", l.UserID, "panic", p)
		}
	}()

	if err := r.writer.AppendChatLog(ctx, &l); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to save chat log",
			"error", err,
			"user_id", l.UserID,
			"status", l.Status,
		)
		return
	}
	r.written.Add(1)
	r.logger.Debug("chat log saved", "id", l.ID, "user_id", l.UserID, "status", l.Status)
}
