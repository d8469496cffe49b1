// ABOUTME: Tool invoker - executes requested search calls and folds results back
// ABOUTME: Issues one follow-up model call with tools disabled to bound recursion

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parley-chat/parley/internal/llm"
	"github.com/parley-chat/parley/internal/search"
	"github.com/parley-chat/parley/internal/store"
)

// toolErrorPayload is stored in place of results when a search call fails
// past its retry budget. The turn degrades instead of aborting.
type toolErrorPayload struct {
	Error   string          `json:"error"`
	Results []search.Result `json:"results"`
}

// invokeTools executes the requested tool calls, appends one tool message
// per processed call (persisted and in-memory), then asks the model for the
// final answer with tools disabled.
func (o *Orchestrator) invokeTools(ctx context.Context, handle *store.SQLiteStore, conversationID string, messages []llm.Message, calls []llm.ToolCall) (string, error) {
	// The assistant's tool-call turn must precede the tool responses in the
	// follow-up request; it is not persisted, only the tool results are.
	messages = append(messages, llm.Message{Role: store.RoleAssistant, ToolCalls: calls})

	for _, call := range calls {
		if call.Name != search.ToolName {
			o.logger.Warn("skipping unrecognized tool call", "tool", call.Name, "call_id", call.ID)
			continue
		}

		content := o.runSearchCall(ctx, call)

		messages = append(messages, llm.Message{
			Role:       store.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
		if err := handle.AppendMessage(ctx, conversationID, store.RoleTool, content, call.ID, time.Now()); err != nil {
			return "", fmt.Errorf("persisting tool result: %w", err)
		}
	}

	// Tools disabled: the follow-up cannot request another round
	result, err := o.model.Complete(ctx, llm.Request{
		Model:    o.modelName,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	outcome := llm.Classify(result)
	switch outcome.Kind {
	case llm.OutcomeEmpty:
		return replyNoResponse, nil
	case llm.OutcomeFiltered:
		return replyFiltered, nil
	case llm.OutcomeToolCalls:
		return replyNoToolClients, nil
	default:
		return formatReply(outcome), nil
	}
}

// runSearchCall executes one search tool call and returns the JSON payload
// to fold back into the conversation. Failures degrade to an in-band error
// payload rather than failing the turn.
func (o *Orchestrator) runSearchCall(ctx context.Context, call llm.ToolCall) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		o.logger.Warn("malformed tool call arguments", "call_id", call.ID, "error", err)
		return marshalToolError(fmt.Errorf("invalid arguments: %w", err))
	}

	results, err := o.searcher.Search(ctx, args.Query, o.searchOpts)
	if err != nil {
		o.logger.Warn("search call failed after retries", "query", args.Query, "error", err)
		return marshalToolError(err)
	}

	raw, err := json.Marshal(results)
	if err != nil {
		return marshalToolError(err)
	}
	return string(raw)
}

// marshalToolError encodes a failed tool call as {error, results: []}.
func marshalToolError(err error) string {
	raw, marshalErr := json.Marshal(toolErrorPayload{
		Error:   err.Error(),
		Results: []search.Result{},
	})
	if marshalErr != nil {
		return `{"error":"search failed","results":[]}`
	}
	return string(raw)
}
