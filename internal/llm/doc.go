// Package llm is the boundary to the chat completion service.
//
// The client converts normalized Message values into the OpenAI SDK's
// message unions, applies a retry policy around the call, and extracts the
// response into a Result exactly once. Classify turns a Result into a
// tagged Outcome (empty, filtered, tool calls, or answer) so downstream
// code switches on the kind instead of duck-typing the response shape.
//
// Error taxonomy: 429 and 5xx-class API errors are transient and retried;
// a rate limit that survives the retry budget is normalized to
// ErrRateLimited; every other error is surfaced unchanged.
package llm
