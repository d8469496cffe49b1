// Package gateway wires parley's components together and owns their
// lifecycle.
//
// # Overview
//
// The gateway sits between the messaging platform and the response
// pipeline. Platform glue hands it inbound messages; the gateway routes
// each one through the per-conversation queue, the orchestrator, and the
// owner's database handle, then delivers the reply through a callback.
//
// # Lifecycle
//
//	cfg, err := config.Load(path)
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run starts the pool's idle-handle sweeper and blocks. Cancellation
// drains in-flight turns, drops queued-but-unstarted messages, and
// closes every open database handle. Nothing is lost that cannot be
// rebuilt from disk: conversation history is persisted per turn.
//
// # Inbound messages
//
// HandleInbound never blocks on model latency; replies arrive through
// the supplied callback once the conversation's worker finishes the
// turn. Messages within one conversation are answered strictly in
// arrival order. Platform redeliveries carrying a message ID already
// seen within the dedupe window are dropped.
package gateway
