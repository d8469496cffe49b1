// ABOUTME: Turn orchestration - history, model call, classification, persistence
// ABOUTME: Produces the final reply text for one user turn with guaranteed handle release

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/connpool"
	"github.com/parley-chat/parley/internal/llm"
	"github.com/parley-chat/parley/internal/search"
	"github.com/parley-chat/parley/internal/store"
)

// Fixed reply strings for degenerate model outcomes.
const (
	replyNoResponse      = "No response was generated"
	replyFiltered        = "Content was filtered"
	replyNoToolClients   = "Tool calls requested but no tool clients available"
	replyNoValidResponse = "No valid response was generated"
)

// ChatClient is what the orchestrator needs from the model boundary.
type ChatClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Result, error)
}

// Searcher is what the tool invoker needs from the search provider.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.Results, error)
}

// Orchestrator turns one inbound user message into a persisted reply.
// A nil Searcher disables tool calling entirely.
type Orchestrator struct {
	pool       *connpool.Pool
	model      ChatClient
	searcher   Searcher
	modelName  string
	system     string
	searchOpts search.Options
	logger     *slog.Logger
}

// Options configure the orchestrator.
type Options struct {
	Pool         *connpool.Pool
	Model        ChatClient
	Searcher     Searcher
	ModelName    string
	SystemPrompt string
	SearchOpts   search.Options
	Logger       *slog.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		pool:       opts.Pool,
		model:      opts.Model,
		searcher:   opts.Searcher,
		modelName:  opts.ModelName,
		system:     opts.SystemPrompt,
		searchOpts: opts.SearchOpts,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Respond processes one user turn: fetch history, persist the user message,
// call the model, interpret the outcome (invoking the search tool if
// requested), persist the assistant reply, and return it. The storage
// handle reference is released on every exit path.
func (o *Orchestrator) Respond(ctx context.Context, ownerID, conversationID, userText string, ts time.Time) (string, error) {
	handle, err := o.pool.Acquire(ownerID)
	if err != nil {
		return "", fmt.Errorf("acquiring storage for owner %s: %w", ownerID, err)
	}
	defer o.pool.Release(ownerID)

	history, err := handle.History(ctx, conversationID, o.system)
	if err != nil {
		return "", fmt.Errorf("fetching history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: userText})

	if err := handle.AppendMessage(ctx, conversationID, store.RoleUser, userText, "", ts); err != nil {
		return "", fmt.Errorf("persisting user turn: %w", err)
	}

	result, err := o.complete(ctx, &messages, o.searcher != nil)
	if err != nil {
		return "", err
	}

	var reply string
	outcome := llm.Classify(result)
	switch outcome.Kind {
	case llm.OutcomeEmpty:
		reply = replyNoResponse
	case llm.OutcomeFiltered:
		reply = replyFiltered
	case llm.OutcomeToolCalls:
		if o.searcher == nil {
			reply = replyNoToolClients
		} else {
			reply, err = o.invokeTools(ctx, handle, conversationID, messages, outcome.ToolCalls)
			if err != nil {
				return "", err
			}
		}
	case llm.OutcomeAnswer:
		reply = formatReply(outcome)
	}

	if err := handle.AppendMessage(ctx, conversationID, store.RoleAssistant, reply, "", time.Now()); err != nil {
		return "", fmt.Errorf("persisting assistant turn: %w", err)
	}

	o.logger.Debug("turn completed",
		"owner", ownerID,
		"conversation", conversationID,
		"outcome", outcome.Kind)
	return reply, nil
}

// complete runs one model call. On failure the pending user turn is removed
// from the in-memory message list before the error propagates, so a retried
// later turn does not resend text the service never saw.
func (o *Orchestrator) complete(ctx context.Context, messages *[]llm.Message, withTools bool) (*llm.Result, error) {
	req := llm.Request{
		Model:    o.modelName,
		Messages: *messages,
	}
	if withTools {
		req.Tools = []llm.ToolDef{search.ToolDef()}
	}

	result, err := o.model.Complete(ctx, req)
	if err != nil {
		*messages = (*messages)[:len(*messages)-1]
		return nil, err
	}
	return result, nil
}

// formatReply renders an answer outcome. Reasoning, when present, is set
// off ahead of the primary content.
func formatReply(out llm.Outcome) string {
	content := out.Content
	if content == "" {
		content = replyNoValidResponse
	}
	if out.Reasoning != "" {
		return fmt.Sprintf("💭 %s\n\n%s", out.Reasoning, content)
	}
	return content
}

// NewConversationID generates a conversation identifier that is unique
// within the owner's store, regenerating on collision.
func NewConversationID(ctx context.Context, handle *store.SQLiteStore) (string, error) {
	for {
		id := uuid.New().String()
		exists, err := handle.ConversationExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("checking conversation id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
}
