// ABOUTME: Classification of a chat completion response into a tagged outcome
// ABOUTME: Decided once per response; callers switch on Kind and never re-inspect

package llm

// OutcomeKind identifies the terminal interpretation of a response.
type OutcomeKind int

const (
	// OutcomeEmpty means no choices were returned.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeFiltered means the content was blocked by the provider's filter.
	OutcomeFiltered
	// OutcomeToolCalls means the model requested one or more tool invocations.
	OutcomeToolCalls
	// OutcomeAnswer is a normal answer, possibly with a reasoning channel.
	OutcomeAnswer
)

// Outcome is the classified interpretation of one response. Exactly one of
// the four kinds applies; the other fields are only meaningful for the kind
// that carries them.
type Outcome struct {
	Kind      OutcomeKind
	Content   string
	Reasoning string
	ToolCalls []ToolCall
}

// Classify interprets a normalized response.
//
// A refusal supersedes both content and reasoning. When the first choice
// carries reasoning but no content, the remaining choices are scanned for
// the answer - some providers deliver reasoning and answer as separate
// choices. An Answer outcome with empty Content means no usable text was
// found anywhere.
func Classify(res *Result) Outcome {
	if len(res.Choices) == 0 {
		return Outcome{Kind: OutcomeEmpty}
	}

	first := res.Choices[0]

	if first.FinishReason == "content_filter" {
		return Outcome{Kind: OutcomeFiltered}
	}

	if len(first.ToolCalls) > 0 {
		return Outcome{Kind: OutcomeToolCalls, ToolCalls: first.ToolCalls}
	}

	if first.Refusal != "" {
		return Outcome{Kind: OutcomeAnswer, Content: first.Refusal}
	}

	content := first.Content
	if content == "" && first.Reasoning != "" {
		for _, ch := range res.Choices[1:] {
			if ch.Content != "" {
				content = ch.Content
				break
			}
		}
	}

	return Outcome{Kind: OutcomeAnswer, Content: content, Reasoning: first.Reasoning}
}
