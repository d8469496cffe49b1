// ABOUTME: Chat completion client wrapping the OpenAI SDK with retry and error taxonomy
// ABOUTME: Converts normalized messages to SDK unions and responses back to Result

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parley-chat/parley/internal/retry"
)

// ErrRateLimited is the normalized error for rate-limit responses that
// survive the retry budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Client calls a chat completion service. Transient failures (429 and
// 5xx-class) are retried with exponential backoff; everything else is
// surfaced unchanged.
type Client struct {
	client openai.Client
	policy retry.Policy
	logger *slog.Logger
}

// Options configure the chat completion client.
type Options struct {
	BaseURL string
	APIKey  string
	Policy  retry.Policy
	Logger  *slog.Logger
}

// DefaultPolicy is the retry budget applied to model calls when the caller
// does not supply one.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Retryable:    IsTransient,
	}
}

// NewClient creates a chat completion client. The SDK's built-in retries
// are disabled: the retry policy is the single attempt budget, so one
// policy attempt is exactly one HTTP request.
func NewClient(opts Options) *Client {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}

	return &Client{
		client: openai.NewClient(reqOpts...),
		policy: policy,
		logger: logger.With("component", "llm"),
	}
}

// Complete issues one chat completion call under the retry policy and
// normalizes the response. An exhausted rate-limit budget is reported as
// ErrRateLimited; other errors are returned unchanged.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	params := buildParams(req)

	var resp *openai.ChatCompletion
	err := c.policy.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.Chat.Completions.New(ctx, params)
		if callErr != nil {
			c.logger.Warn("model call failed", "model", req.Model, "error", callErr)
		}
		return callErr
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, ErrRateLimited
		}
		return nil, err
	}

	return normalize(resp), nil
}

// IsTransient reports whether an error is a rate-limit or 5xx-class
// service error worth retrying.
func IsTransient(err error) bool {
	status, ok := statusOf(err)
	if !ok {
		return false
	}
	return status == 429 || status >= 500
}

// IsRateLimit reports whether an error is a rate-limit response.
func IsRateLimit(err error) bool {
	status, ok := statusOf(err)
	return ok && status == 429
}

// statusOf extracts the HTTP status from an SDK API error. The SDK raises
// error-shaped response bodies the same way as transport failures, so this
// covers both.
func statusOf(err error) (int, bool) {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode, true
	}
	return 0, false
}

// buildParams converts a normalized request into SDK parameters, attaching
// assistant tool calls and their tool responses the way the API expects.
func buildParams(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "user":
			messages = append(messages, openai.UserMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case "tool":
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			if m.Content != "" {
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    req.Model,
	}
	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// normalize extracts the fields the relay inspects from the SDK response.
func normalize(resp *openai.ChatCompletion) *Result {
	result := &Result{
		Choices: make([]Choice, len(resp.Choices)),
	}
	for i, ch := range resp.Choices {
		choice := Choice{
			Content:      ch.Message.Content,
			Refusal:      ch.Message.Refusal,
			Reasoning:    reasoningOf(ch.Message),
			FinishReason: ch.FinishReason,
		}
		for _, tc := range ch.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		result.Choices[i] = choice
	}
	return result
}

// reasoningOf pulls the provider-specific reasoning channel out of the raw
// response. Providers disagree on the field name, so both spellings are
// accepted.
func reasoningOf(msg openai.ChatCompletionMessage) string {
	for _, key := range []string{"reasoning_content", "reasoning"} {
		field, ok := msg.JSON.ExtraFields[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal([]byte(field.Raw()), &text); err != nil {
			continue
		}
		if text != "" {
			return text
		}
	}
	return ""
}
