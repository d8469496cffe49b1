// Package orchestrator produces a reply for one conversation turn.
//
// A turn flows: acquire the owner's storage handle, fetch history, persist
// the user message, call the model, interpret the classified outcome, run
// the search tool round-trip when requested, persist the assistant reply,
// release the handle. The handle reference is released on every exit path,
// including errors.
//
// Tool calling is structurally bounded: the follow-up call after tool
// execution has tools disabled, so the model cannot request another round.
package orchestrator
