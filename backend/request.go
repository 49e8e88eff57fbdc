package backend

import (
	"encoding/json"
	"strings"

	"github.com/omnirun/omnirun/stream"
)

// Message is one role-tagged input item.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request describes one run. Input is either Prompt or Messages; when both
// are set, Messages wins. Cancellation flows through the call context.
type Request struct {
	OutputSchema interface{}
	ExtraEnv     map[string]string
	Prompt       string
	Messages     []Message
}

// PromptText flattens the input into a single prompt string for backends
// that take one-shot text.
func (r Request) PromptText() string {
	if len(r.Messages) == 0 {
		return r.Prompt
	}
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role != "" && m.Role != "user" {
			b.WriteString(m.Role)
			b.WriteString(": ")
		}
		b.WriteString(m.Text)
	}
	return b.String()
}

// Result is the outcome of a non-streamed run, tied to the thread's
// (possibly updated) identity.
type Result struct {
	Structured json.RawMessage
	Raw        json.RawMessage
	Usage      *stream.Usage
	Text       string
	ThreadID   string
}
