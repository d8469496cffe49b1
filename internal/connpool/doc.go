// Package connpool caches open per-owner SQLite store handles.
//
// The pool is the single owner of storage-handle lifetime: handles are
// opened lazily on first Acquire, shared across a conversation's turns via
// reference counting, and closed only by LRU eviction at capacity, the TTL
// sweeper, or Clear at shutdown. The soft capacity cap may be exceeded when
// every cached handle is in use.
package connpool
