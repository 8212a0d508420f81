// Package cache provides a small in-memory TTL cache with a size bound.
// Entries expire after a fixed TTL; when full, the least recently written
// entry is evicted.
package cache
