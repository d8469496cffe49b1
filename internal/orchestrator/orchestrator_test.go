// ABOUTME: Tests for turn orchestration against a real pool and fake model/search clients
// ABOUTME: Covers outcome scenarios, tool round-trips, rollback, and handle release

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/connpool"
	"github.com/parley-chat/parley/internal/llm"
	"github.com/parley-chat/parley/internal/search"
	"github.com/parley-chat/parley/internal/store"
)

// fakeModel replays queued results or errors and records every request.
type fakeModel struct {
	results  []*llm.Result
	errs     []error
	requests []llm.Request
}

func (f *fakeModel) Complete(_ context.Context, req llm.Request) (*llm.Result, error) {
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

// fakeSearcher records queries and returns a fixed result set or error.
type fakeSearcher struct {
	queries []string
	results *search.Results
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ search.Options) (*search.Results, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func answer(content string) *llm.Result {
	return &llm.Result{Choices: []llm.Choice{{Content: content, FinishReason: "stop"}}}
}

func setup(t *testing.T, model ChatClient, searcher Searcher) (*Orchestrator, *connpool.Pool) {
	t.Helper()
	pool := connpool.New(t.TempDir(), 10, nil)
	t.Cleanup(pool.Clear)

	o := New(Options{
		Pool:         pool,
		Model:        model,
		Searcher:     searcher,
		ModelName:    "test-model",
		SystemPrompt: "be helpful",
	})
	return o, pool
}

func historyOf(t *testing.T, pool *connpool.Pool, owner, conversation string) []*store.Message {
	t.Helper()
	handle, err := pool.Acquire(owner)
	require.NoError(t, err)
	defer pool.Release(owner)

	messages, err := handle.History(context.Background(), conversation, "sys")
	require.NoError(t, err)
	return messages
}

func TestRespond_NormalAnswer(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{answer("hello back")}}
	o, pool := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)

	// Request carried the system prompt and the new user turn
	require.Len(t, model.requests, 1)
	msgs := model.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleSystem, msgs[0].Role)
	assert.Equal(t, "be helpful", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	// Both turns persisted
	history := historyOf(t, pool, "alice", "conv-1")
	require.Len(t, history, 3)
	assert.Equal(t, store.RoleUser, history[1].Role)
	assert.Equal(t, store.RoleAssistant, history[2].Role)
	assert.Equal(t, "hello back", history[2].Content)
}

func TestRespond_EmptyChoices(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{{}}}
	o, pool := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "No response was generated", reply)

	history := historyOf(t, pool, "alice", "conv-1")
	require.Len(t, history, 3)
	assert.Equal(t, "No response was generated", history[2].Content)
}

func TestRespond_ContentFiltered(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{FinishReason: "content_filter"}}},
	}}
	o, _ := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Content was filtered", reply)
}

func TestRespond_ToolCallsWithoutSearcher(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: search.ToolName, Arguments: `{"query":"go"}`},
		}}}},
	}}
	o, _ := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Tool calls requested but no tool clients available", reply)

	// No tools offered and no second model call without a searcher
	require.Len(t, model.requests, 1)
	assert.Empty(t, model.requests[0].Tools)
}

func TestRespond_ReasoningWrappedAheadOfContent(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{Content: "the answer", Reasoning: "step by step", FinishReason: "stop"}}},
	}}
	o, _ := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "💭 step by step\n\nthe answer", reply)
}

func TestRespond_NoUsableContent(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{Reasoning: "only reasoning", FinishReason: "stop"}}},
	}}
	o, _ := setup(t, model, nil)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "💭 only reasoning\n\nNo valid response was generated", reply)
}

func TestRespond_ToolRoundTrip(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: search.ToolName, Arguments: `{"query":"go generics"}`},
		}}}},
		answer("generics arrived in Go 1.18"),
	}}
	searcher := &fakeSearcher{results: &search.Results{Results: []search.Result{
		{Title: "Go 1.18 notes", URL: "https://go.dev/doc/go1.18"},
	}}}
	o, pool := setup(t, model, searcher)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "when did go get generics?", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "generics arrived in Go 1.18", reply)
	assert.Equal(t, []string{"go generics"}, searcher.queries)

	require.Len(t, model.requests, 2)
	// First call offers the search tool, the follow-up disables it
	require.Len(t, model.requests[0].Tools, 1)
	assert.Empty(t, model.requests[1].Tools)

	// Follow-up request carries the assistant tool-call turn and the tool result
	followUp := model.requests[1].Messages
	assistant := followUp[len(followUp)-2]
	toolMsg := followUp[len(followUp)-1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, store.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)

	// Persisted tool message round-trips to the original structure
	history := historyOf(t, pool, "alice", "conv-1")
	require.Len(t, history, 4)
	assert.Equal(t, store.RoleTool, history[2].Role)
	assert.Equal(t, "call_1", history[2].ToolCallID)

	var stored search.Results
	require.NoError(t, json.Unmarshal([]byte(history[2].Content), &stored))
	assert.Equal(t, *searcher.results, stored)
}

func TestRespond_UnrecognizedToolSkipped(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "launch_rocket", Arguments: `{}`},
			{ID: "call_2", Name: search.ToolName, Arguments: `{"query":"go"}`},
		}}}},
		answer("done"),
	}}
	searcher := &fakeSearcher{results: &search.Results{Results: []search.Result{}}}
	o, pool := setup(t, model, searcher)

	_, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err)

	// Only the recognized call produced a tool message
	assert.Equal(t, []string{"go"}, searcher.queries)
	history := historyOf(t, pool, "alice", "conv-1")
	var toolMessages []*store.Message
	for _, m := range history {
		if m.Role == store.RoleTool {
			toolMessages = append(toolMessages, m)
		}
	}
	require.Len(t, toolMessages, 1)
	assert.Equal(t, "call_2", toolMessages[0].ToolCallID)
}

func TestRespond_SearchFailureDegradesToErrorPayload(t *testing.T) {
	model := &fakeModel{results: []*llm.Result{
		{Choices: []llm.Choice{{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: search.ToolName, Arguments: `{"query":"go"}`},
		}}}},
		answer("sorry, search is down"),
	}}
	searcher := &fakeSearcher{err: errors.New("provider unavailable")}
	o, _ := setup(t, model, searcher)

	reply, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.NoError(t, err, "a failed tool call must not abort the turn")
	assert.Equal(t, "sorry, search is down", reply)

	// The tool message folded back an in-band error payload
	toolMsg := model.requests[1].Messages[len(model.requests[1].Messages)-1]
	var payload struct {
		Error   string            `json:"error"`
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	assert.Contains(t, payload.Error, "provider unavailable")
	assert.Empty(t, payload.Results)
}

func TestRespond_ModelErrorPropagates(t *testing.T) {
	model := &fakeModel{errs: []error{llm.ErrRateLimited}}
	o, pool := setup(t, model, nil)

	_, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	assert.ErrorIs(t, err, llm.ErrRateLimited)

	// No assistant turn was persisted
	history := historyOf(t, pool, "alice", "conv-1")
	require.Len(t, history, 2)
	assert.Equal(t, store.RoleUser, history[1].Role)
}

func TestComplete_RollsBackPendingUserTurn(t *testing.T) {
	model := &fakeModel{errs: []error{llm.ErrRateLimited}}
	o, _ := setup(t, model, nil)

	messages := []llm.Message{
		{Role: store.RoleSystem, Content: "be helpful"},
		{Role: store.RoleUser, Content: "earlier turn"},
		{Role: store.RoleUser, Content: "unsent turn"},
	}

	_, err := o.complete(context.Background(), &messages, false)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	require.Len(t, messages, 2, "the unsent user turn is removed on failure")
	assert.Equal(t, "earlier turn", messages[1].Content)
}

func TestRespond_ReleasesHandleOnErrorPaths(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("model exploded")}}
	pool := connpool.New(t.TempDir(), 1, nil)
	t.Cleanup(pool.Clear)
	o := New(Options{Pool: pool, Model: model, ModelName: "m", SystemPrompt: "sys"})

	_, err := o.Respond(context.Background(), "alice", "conv-1", "hello", time.Now())
	require.Error(t, err)

	// Alice's handle must be evictable again: acquiring a second owner at
	// capacity 1 evicts it instead of overrunning the soft cap.
	_, err = pool.Acquire("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Len())
}

func TestNewConversationID_Unique(t *testing.T) {
	pool := connpool.New(t.TempDir(), 1, nil)
	t.Cleanup(pool.Clear)

	handle, err := pool.Acquire("alice")
	require.NoError(t, err)
	defer pool.Release("alice")

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := NewConversationID(context.Background(), handle)
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
