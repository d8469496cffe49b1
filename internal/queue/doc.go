// Package queue serializes conversation turns.
//
// Each active conversation gets exactly one worker goroutine draining an
// unbounded FIFO of inbound messages; turn N+1 begins only after turn N's
// orchestration, including any tool round-trip and persistence, has fully
// completed. Workers for distinct conversations run independently with no
// cross-conversation ordering.
//
// The worker is the last line of defense: orchestration errors become a
// fixed user-visible failure reply and the loop moves on. The only
// cancellation primitive is the per-conversation stop signal, observed
// between items; it never interrupts an in-flight turn.
package queue
