// Package audit records a summary of every finished chat exchange.
//
// Recording is fire-and-forget: Record queues the entry and returns at
// once, and a single worker writes entries in order with a per-write
// timeout detached from the request. Failed writes, writer panics and
// entries dropped because the queue is full are logged and counted, never
// returned to the request path. Close drains the queue on shutdown.
package audit
