package claude

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/stream"
)

// responder writes control traffic back to the CLI; nil when the run has no
// control channel (should not happen for this backend, but the normalizer
// tolerates it).
type responder interface {
	WriteMessage(msg interface{}) error
}

// normalizer maps the CLI's stream-json vocabulary into unified events. One
// instance serves one run.
type normalizer struct {
	th      *backend.Thread
	respond func() responder
	logger  *slog.Logger

	sawInit  bool
	terminal bool
	raw      []byte
}

func newNormalizer(th *backend.Thread, respond func() responder, logger *slog.Logger) *normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &normalizer{th: th, respond: respond, logger: logger}
}

func (n *normalizer) Map(line []byte) []stream.Event {
	if n.terminal {
		return nil
	}

	msgType, err := jsonparser.GetString(line, "type")
	if err != nil {
		n.logger.Warn("dropping malformed backend line", "backend", providerName, "error", err)
		return nil
	}

	// The CLI may rotate the session id mid-run (context compaction); the
	// thread follows whatever id the latest line carries.
	if sid, err := jsonparser.GetString(line, "session_id"); err == nil && sid != "" {
		n.th.SetID(sid)
	}

	switch messageType(msgType) {
	case messageTypeSystem:
		return n.mapSystem(line)
	case messageTypeAssistant:
		return n.mapChat(line, "assistant")
	case messageTypeUser:
		return n.mapChat(line, "user")
	case messageTypeStreamEvent:
		return n.mapStreamEvent(line)
	case messageTypeResult:
		return n.mapResult(line)
	case messageTypeControlRequest:
		return n.mapControlRequest(line)
	default:
		return []stream.Event{stream.Progress(providerName, msgType, line)}
	}
}

func (n *normalizer) Finish() []stream.Event {
	if n.terminal {
		return nil
	}
	n.terminal = true
	return []stream.Event{stream.Done(providerName, nil)}
}

func (n *normalizer) mapSystem(line []byte) []stream.Event {
	var msg systemMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable system message", "backend", providerName, "error", err)
		return nil
	}
	if msg.Subtype != "init" || n.sawInit {
		return []stream.Event{stream.Progress(providerName, "system:"+msg.Subtype, line)}
	}
	n.sawInit = true
	return []stream.Event{stream.Init(providerName, msg.SessionID, msg.Model, line)}
}

func (n *normalizer) mapChat(line []byte, role string) []stream.Event {
	var msg chatMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable chat message", "backend", providerName, "role", role, "error", err)
		return nil
	}

	var evs []stream.Event
	for _, block := range msg.Message.Content {
		switch block.Type {
		case contentBlockTypeText:
			evs = append(evs, stream.Message(providerName, role, block.Text, false, line))
		case contentBlockTypeThinking:
			evs = append(evs, stream.Progress(providerName, "thinking", line))
		case contentBlockTypeToolUse:
			evs = append(evs, stream.ToolUse(providerName, block.Name, block.ID, block.Input, line))
		case contentBlockTypeToolResult:
			if block.IsError {
				evs = append(evs, stream.ToolResult(providerName, "", block.ToolUseID,
					block.Content.text(), intPtr(1), line))
			} else {
				evs = append(evs, stream.ToolResult(providerName, "", block.ToolUseID,
					block.Content.text(), nil, line))
			}
		}
	}
	return evs
}

func (n *normalizer) mapStreamEvent(line []byte) []stream.Event {
	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		n.logger.Warn("dropping unparseable stream event", "backend", providerName, "error", err)
		return nil
	}
	if text, ok := ev.deltaText(); ok {
		if text == "" {
			return nil
		}
		return []stream.Event{stream.Message(providerName, "assistant", text, true, line)}
	}
	// Start/stop bookkeeping events carry no text; surface them as
	// progress so nothing disappears from the stream.
	return []stream.Event{stream.Progress(providerName, "stream_event", line)}
}

func (n *normalizer) mapResult(line []byte) []stream.Event {
	var msg resultMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable result message", "backend", providerName, "error", err)
		return nil
	}
	n.terminal = true
	n.raw = line

	// The CLI marks failures with is_error, but some terminal conditions
	// ship only an error-prefixed subtype (error_max_turns).
	if msg.IsError || strings.HasPrefix(msg.Subtype, "error") {
		return []stream.Event{stream.Failure(providerName, msg.Result, msg.Subtype, line)}
	}

	usage := stream.Usage{
		InputTokens:     msg.Usage.InputTokens,
		OutputTokens:    msg.Usage.OutputTokens,
		CacheReadTokens: msg.Usage.CacheReadInputTokens,
		TotalTokens:     msg.Usage.InputTokens + msg.Usage.OutputTokens,
		CostUSD:         msg.TotalCostUSD,
	}
	return []stream.Event{
		stream.UsageStats(providerName, usage, line),
		stream.Done(providerName, line),
	}
}

// mapControlRequest surfaces can_use_tool as a permission event and answers
// it from the thread's permission mode so the CLI is never left blocked.
func (n *normalizer) mapControlRequest(line []byte) []stream.Event {
	var msg controlRequest
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable control request", "backend", providerName, "error", err)
		return nil
	}
	req := msg.parseCanUseTool()
	if req == nil {
		return []stream.Event{stream.Progress(providerName, "control_request", line)}
	}

	n.answerPermission(msg.RequestID, req)
	return []stream.Event{stream.Permission(providerName, req.ToolName, msg.RequestID, req.Input, line)}
}

func (n *normalizer) answerPermission(requestID string, req *canUseToolRequest) {
	r := n.respond()
	if r == nil {
		return
	}

	mode := n.th.Options().PermissionMode
	var reply interface{}
	if mode == backend.PermissionModeBypass {
		reply = permissionAllow(requestID, req.Input)
	} else {
		reply = permissionDeny(requestID,
			fmt.Sprintf("tool %s not permitted in %s mode", req.ToolName, mode))
	}
	if err := r.WriteMessage(reply); err != nil {
		n.logger.Warn("failed to answer permission request",
			"backend", providerName, "request_id", requestID, "error", err)
	}
}

func intPtr(v int) *int { return &v }
