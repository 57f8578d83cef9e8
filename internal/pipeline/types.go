package pipeline

import "strings"

// TurnPart is one piece of a conversation turn. Only text parts are accepted
// from callers; structured tool parts are synthesized inside the pipeline.
type TurnPart struct {
	Text string `json:"text"`
}

// Turn is a single entry in the caller's conversation.
type Turn struct {
	Role  string     `json:"role"`
	Parts []TurnPart `json:"parts"`
}

// ConversationRequest is the validated inbound conversation. It is owned by
// a single request and never shared across requests.
type ConversationRequest struct {
	Turns             []Turn `json:"chatHistory"`
	SystemInstruction string `json:"systemPrompt,omitempty"`
}

// PipelineResult is the final artifact of a completed pipeline run.
type PipelineResult struct {
	Text   string
	Rounds int
}

// ValidationError reports a malformed conversation. It is produced before
// any authentication or network work.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Reason }

// Validate checks the conversation shape: at least one turn, the
// final turn from the user, known roles, and non-empty text in every turn.
func (r ConversationRequest) Validate() error {
	if len(r.Turns) == 0 {
		return &ValidationError{Reason: "conversation is empty"}
	}
	for _, turn := range r.Turns {
		if turn.Role != "user" && turn.Role != "model" {
			return &ValidationError{Reason: "unknown role in conversation"}
		}
		if len(turn.Parts) == 0 {
			return &ValidationError{Reason: "turn has no content"}
		}
		hasText := false
		for _, p := range turn.Parts {
			if strings.TrimSpace(p.Text) != "" {
				hasText = true
			}
		}
		if !hasText {
			return &ValidationError{Reason: "turn has no content"}
		}
	}
	if r.Turns[len(r.Turns)-1].Role != "user" {
		return &ValidationError{Reason: "conversation must end with a user turn"}
	}
	return nil
}

// LastUserText returns the text of the final user turn, the request the
// writer stage answers.
func (r ConversationRequest) LastUserText() string {
	last := r.Turns[len(r.Turns)-1]
	var b strings.Builder
	for _, p := range last.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
