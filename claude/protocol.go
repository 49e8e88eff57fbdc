package claude

import (
	"encoding/json"
)

// messageType discriminates the NDJSON lines the CLI writes in
// stream-json mode.
type messageType string

const (
	messageTypeSystem         messageType = "system"
	messageTypeAssistant      messageType = "assistant"
	messageTypeUser           messageType = "user"
	messageTypeResult         messageType = "result"
	messageTypeStreamEvent    messageType = "stream_event"
	messageTypeControlRequest messageType = "control_request"
)

// systemMessage carries session initialization and system events.
type systemMessage struct {
	Type      messageType `json:"type"`
	Subtype   string      `json:"subtype"`
	SessionID string      `json:"session_id"`
	Model     string      `json:"model,omitempty"`
	CWD       string      `json:"cwd,omitempty"`
	Tools     []string    `json:"tools,omitempty"`
}

// contentBlockType identifies the kind of content block.
type contentBlockType string

const (
	contentBlockTypeText       contentBlockType = "text"
	contentBlockTypeThinking   contentBlockType = "thinking"
	contentBlockTypeToolUse    contentBlockType = "tool_use"
	contentBlockTypeToolResult contentBlockType = "tool_result"
)

// contentBlock is one structured block of an assistant or user message.
type contentBlock struct {
	Type      contentBlockType       `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   flexibleContent        `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

// flexibleContent is either a plain string or an array of content blocks;
// the CLI uses both shapes for the same field.
type flexibleContent struct {
	raw json.RawMessage
}

func (fc *flexibleContent) UnmarshalJSON(data []byte) error {
	fc.raw = data
	return nil
}

func (fc flexibleContent) MarshalJSON() ([]byte, error) {
	if fc.raw == nil {
		return []byte("null"), nil
	}
	return fc.raw, nil
}

// text flattens the content into a single string regardless of shape.
func (fc flexibleContent) text() string {
	if len(fc.raw) == 0 {
		return ""
	}
	if fc.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(fc.raw, &s); err == nil {
			return s
		}
		return ""
	}
	var blocks []contentBlock
	if err := json.Unmarshal(fc.raw, &blocks); err != nil {
		return ""
	}
	var out string
	for _, b := range blocks {
		if b.Type == contentBlockTypeText {
			out += b.Text
		}
	}
	return out
}

// chatMessage is the shared shape of assistant and user lines.
type chatMessage struct {
	Type      messageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   struct {
		Role    string         `json:"role"`
		Model   string         `json:"model,omitempty"`
		Content []contentBlock `json:"content"`
	} `json:"message"`
}

// resultUsage is the token accounting attached to a result line.
type resultUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// resultMessage closes a turn with metrics.
type resultMessage struct {
	Type         messageType `json:"type"`
	Subtype      string      `json:"subtype"`
	SessionID    string      `json:"session_id"`
	Result       string      `json:"result"`
	IsError      bool        `json:"is_error"`
	Usage        resultUsage `json:"usage"`
	TotalCostUSD float64     `json:"total_cost_usd"`
	NumTurns     int         `json:"num_turns"`
	DurationMs   int64       `json:"duration_ms"`
}

// streamEvent wraps incremental model output.
type streamEvent struct {
	Type      messageType     `json:"type"`
	SessionID string          `json:"session_id"`
	Event     json.RawMessage `json:"event"`
}

// deltaText extracts text from a content_block_delta event. The second
// return distinguishes a non-delta event from an empty delta.
func (e streamEvent) deltaText() (string, bool) {
	var inner struct {
		Type  string `json:"type"`
		Delta struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Thinking string `json:"thinking"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(e.Event, &inner); err != nil {
		return "", false
	}
	if inner.Type != "content_block_delta" {
		return "", false
	}
	switch inner.Delta.Type {
	case "text_delta":
		return inner.Delta.Text, true
	case "thinking_delta":
		return inner.Delta.Thinking, true
	}
	return "", false
}

// controlRequest is an inbound request the CLI blocks on until answered.
type controlRequest struct {
	Type      messageType     `json:"type"`
	RequestID string          `json:"request_id"`
	Request   json.RawMessage `json:"request"`
}

// canUseToolRequest asks permission for one tool invocation.
type canUseToolRequest struct {
	Subtype  string                 `json:"subtype"`
	ToolName string                 `json:"tool_name"`
	Input    map[string]interface{} `json:"input"`
}

// parseCanUseTool returns the inner request when the control request is a
// can_use_tool, nil for every other subtype.
func (m controlRequest) parseCanUseTool() *canUseToolRequest {
	var r canUseToolRequest
	if err := json.Unmarshal(m.Request, &r); err != nil {
		return nil
	}
	if r.Subtype != "can_use_tool" {
		return nil
	}
	return &r
}

// userTextMessage is the prompt line we write to the CLI's stdin.
type userTextMessage struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func newUserTextMessage(text string) userTextMessage {
	var m userTextMessage
	m.Type = "user"
	m.Message.Role = "user"
	m.Message.Content = text
	return m
}

// controlRequestOut is a control request we send to the CLI.
type controlRequestOut struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	Request   interface{} `json:"request"`
}

func newInterruptRequest(requestID string) controlRequestOut {
	return controlRequestOut{
		Type:      "control_request",
		RequestID: requestID,
		Request:   map[string]string{"subtype": "interrupt"},
	}
}

// controlResponseOut answers an inbound control request.
type controlResponseOut struct {
	Type     string `json:"type"`
	Response struct {
		Subtype   string      `json:"subtype"`
		RequestID string      `json:"request_id"`
		Response  interface{} `json:"response,omitempty"`
	} `json:"response"`
}

// permissionAllow grants tool execution. The wire format forbids a null
// updatedInput, so the original input is echoed back.
func permissionAllow(requestID string, input map[string]interface{}) controlResponseOut {
	if input == nil {
		input = map[string]interface{}{}
	}
	var m controlResponseOut
	m.Type = "control_response"
	m.Response.Subtype = "success"
	m.Response.RequestID = requestID
	m.Response.Response = map[string]interface{}{
		"behavior":     "allow",
		"updatedInput": input,
	}
	return m
}

// permissionDeny blocks tool execution with a reason.
func permissionDeny(requestID, message string) controlResponseOut {
	var m controlResponseOut
	m.Type = "control_response"
	m.Response.Subtype = "success"
	m.Response.RequestID = requestID
	m.Response.Response = map[string]interface{}{
		"behavior": "deny",
		"message":  message,
	}
	return m
}
