package stream

import (
	"encoding/json"
	"time"
)

// Kind discriminates between unified event variants.
type Kind string

const (
	// KindInit carries the backend-assigned thread identity. At most one
	// per run, always first.
	KindInit Kind = "init"
	// KindMessage carries assistant or user text. Partial marks streaming
	// deltas that must not be treated as final text.
	KindMessage Kind = "message"
	// KindToolUse marks a tool invocation starting.
	KindToolUse Kind = "tool_use"
	// KindToolResult carries a tool invocation's output.
	KindToolResult Kind = "tool_result"
	// KindProgress carries unrecognized native events verbatim so backend
	// upgrades never drop information.
	KindProgress Kind = "progress"
	// KindPermission surfaces a backend request to approve a tool.
	KindPermission Kind = "permission"
	// KindFileChange reports a file created, modified, or deleted.
	KindFileChange Kind = "file_change"
	// KindPlanUpdate carries the backend's current plan entries.
	KindPlanUpdate Kind = "plan_update"
	// KindUsage carries token and cost statistics.
	KindUsage Kind = "usage"
	// KindError reports a backend-signalled failure. Terminal.
	KindError Kind = "error"
	// KindCancelled reports the run was interrupted. Terminal.
	KindCancelled Kind = "cancelled"
	// KindDone marks clean completion. Terminal.
	KindDone Kind = "done"
)

// Terminal reports whether the kind closes a run's stream. No events may
// follow a terminal event, except that Cancelled may be followed by one
// Error with code "interrupted" for callers that only check errors.
func (k Kind) Terminal() bool {
	switch k {
	case KindDone, KindError, KindCancelled:
		return true
	}
	return false
}

// Usage holds token and cost statistics for a run.
type Usage struct {
	InputTokens     int     `json:"inputTokens,omitempty"`
	OutputTokens    int     `json:"outputTokens,omitempty"`
	CacheReadTokens int     `json:"cacheReadTokens,omitempty"`
	TotalTokens     int     `json:"totalTokens,omitempty"`
	CostUSD         float64 `json:"costUSD,omitempty"`
}

// PlanEntry is one step of a backend-reported plan.
type PlanEntry struct {
	Step   string `json:"step"`
	Status string `json:"status,omitempty"`
}

// Event is the unified tagged variant all backends map into. Variant fields
// are flattened and omitempty so the wire shape stays one flat JSON object
// per line.
type Event struct {
	Type     Kind   `json:"type"`
	Provider string `json:"provider"`
	TS       int64  `json:"ts"`

	// init
	ThreadID string `json:"threadId,omitempty"`
	Model    string `json:"model,omitempty"`

	// message
	Role    string `json:"role,omitempty"`
	Text    string `json:"text,omitempty"`
	Partial bool   `json:"partial,omitempty"`

	// tool_use / tool_result / permission
	ToolName string                 `json:"toolName,omitempty"`
	CallID   string                 `json:"callId,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Output   string                 `json:"output,omitempty"`
	ExitCode *int                   `json:"exitCode,omitempty"`

	// file_change
	Path       string `json:"path,omitempty"`
	ChangeKind string `json:"changeKind,omitempty"`

	// plan_update
	Plan []PlanEntry `json:"plan,omitempty"`

	// usage
	Usage *Usage `json:"usage,omitempty"`

	// error / cancelled
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Original is the untranslated backend event for audit/debugging.
	Original json.RawMessage `json:"originalItem,omitempty"`
}

// now is swappable in tests.
var now = time.Now

func base(kind Kind, provider string, original []byte) Event {
	return Event{
		Type:     kind,
		Provider: provider,
		TS:       now().UnixMilli(),
		Original: json.RawMessage(original),
	}
}

// Init builds an init event announcing the backend-assigned thread id.
func Init(provider, threadID, model string, original []byte) Event {
	ev := base(KindInit, provider, original)
	ev.ThreadID = threadID
	ev.Model = model
	return ev
}

// Message builds a message event. partial marks a streaming delta.
func Message(provider, role, text string, partial bool, original []byte) Event {
	ev := base(KindMessage, provider, original)
	ev.Role = role
	ev.Text = text
	ev.Partial = partial
	return ev
}

// ToolUse builds a tool invocation event.
func ToolUse(provider, name, callID string, args map[string]interface{}, original []byte) Event {
	ev := base(KindToolUse, provider, original)
	ev.ToolName = name
	ev.CallID = callID
	ev.Args = args
	return ev
}

// ToolResult builds a tool completion event. exitCode may be nil for tools
// without exit semantics.
func ToolResult(provider, name, callID, output string, exitCode *int, original []byte) Event {
	ev := base(KindToolResult, provider, original)
	ev.ToolName = name
	ev.CallID = callID
	ev.Output = output
	ev.ExitCode = exitCode
	return ev
}

// Progress wraps an unrecognized native event. The payload rides on
// Original; Message carries the native type tag when known.
func Progress(provider, note string, original []byte) Event {
	ev := base(KindProgress, provider, original)
	ev.Message = note
	return ev
}

// Permission builds a permission-request event.
func Permission(provider, toolName, callID string, args map[string]interface{}, original []byte) Event {
	ev := base(KindPermission, provider, original)
	ev.ToolName = toolName
	ev.CallID = callID
	ev.Args = args
	return ev
}

// FileChange builds a file change event. changeKind is one of "create",
// "modify", "delete" as reported by the backend.
func FileChange(provider, path, changeKind string, original []byte) Event {
	ev := base(KindFileChange, provider, original)
	ev.Path = path
	ev.ChangeKind = changeKind
	return ev
}

// PlanUpdate builds a plan update event.
func PlanUpdate(provider string, entries []PlanEntry, original []byte) Event {
	ev := base(KindPlanUpdate, provider, original)
	ev.Plan = entries
	return ev
}

// UsageStats builds a usage event.
func UsageStats(provider string, usage Usage, original []byte) Event {
	ev := base(KindUsage, provider, original)
	ev.Usage = &usage
	return ev
}

// Failure builds a terminal error event.
func Failure(provider, message, code string, original []byte) Event {
	ev := base(KindError, provider, original)
	ev.Message = message
	ev.Code = code
	return ev
}

// Cancelled builds a cancellation event.
func Cancelled(provider, reason string) Event {
	ev := base(KindCancelled, provider, nil)
	ev.Reason = reason
	return ev
}

// Done builds the terminal completion event.
func Done(provider string, original []byte) Event {
	return base(KindDone, provider, original)
}
