// Package store provides per-owner message persistence using SQLite.
//
// Each owner has exactly one database file holding every conversation that
// owner participates in. Messages are append-only: they are never mutated or
// deleted after insert, and retrieval order within a conversation is strictly
// by timestamp ascending. The synthetic system prompt returned by History is
// generated at read time and never written to disk.
//
// Handles returned by Open are owned by the connection pool (internal/connpool),
// which decides when they are closed. Storage errors propagate to the caller
// unchanged; there is no retry at this layer.
package store
