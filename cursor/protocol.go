package cursor

import "encoding/json"

// systemInitMessage opens a session.
// {"type":"system","subtype":"init","session_id":"...","model":"...","cwd":"..."}
type systemInitMessage struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	CWD       string `json:"cwd"`
}

// assistantMessage carries a chunk of assistant text.
// {"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"..."}]},"session_id":"..."}
type assistantMessage struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	SessionID string `json:"session_id"`
}

func (m assistantMessage) text() string {
	var out string
	for _, block := range m.Message.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// toolCallMessage reports a tool call starting or completing. The tool_call
// field is a single-key map: tool name to its detail object.
// {"type":"tool_call","subtype":"started","call_id":"...","tool_call":{"Read":{"args":{...}}},"session_id":"..."}
type toolCallMessage struct {
	Type      string                            `json:"type"`
	Subtype   string                            `json:"subtype"`
	CallID    string                            `json:"call_id"`
	ToolCall  map[string]map[string]interface{} `json:"tool_call"`
	SessionID string                            `json:"session_id"`
}

// toolCallDetail is the flattened name/args/result of a tool call.
type toolCallDetail struct {
	Name   string
	Args   map[string]interface{}
	Result interface{}
}

func (m toolCallMessage) detail() (toolCallDetail, bool) {
	for name, raw := range m.ToolCall {
		d := toolCallDetail{Name: name}
		if args, ok := raw["args"].(map[string]interface{}); ok {
			d.Args = args
		}
		if result, ok := raw["result"]; ok {
			d.Result = result
		}
		return d, true
	}
	return toolCallDetail{}, false
}

// resultExitCode digs an exit code out of a tool result, which arrives as
// either a bare number or an object with an exitCode/exit_code field.
func resultExitCode(result interface{}) *int {
	obj, ok := result.(map[string]interface{})
	if !ok {
		return nil
	}
	for _, key := range []string{"exitCode", "exit_code"} {
		if v, ok := obj[key].(float64); ok {
			code := int(v)
			return &code
		}
	}
	return nil
}

// resultText renders a tool result for the unified output field.
func resultText(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// resultMessage closes the session.
// {"type":"result","subtype":"success","duration_ms":1234,"is_error":false,"result":"...","session_id":"..."}
type resultMessage struct {
	Type          string `json:"type"`
	Subtype       string `json:"subtype"`
	DurationMs    int64  `json:"duration_ms"`
	DurationAPIMs int64  `json:"duration_api_ms"`
	IsError       bool   `json:"is_error"`
	Result        string `json:"result"`
	SessionID     string `json:"session_id"`
}
