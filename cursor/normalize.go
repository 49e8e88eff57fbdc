package cursor

import (
	"encoding/json"
	"log/slog"

	"github.com/buger/jsonparser"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/stream"
)

// normalizer maps the Cursor Agent CLI's NDJSON vocabulary into unified
// events. One instance serves one run.
type normalizer struct {
	th     *backend.Thread
	logger *slog.Logger

	// open tool calls by call id, so completed events can name the tool.
	open map[string]string

	sawInit  bool
	terminal bool
}

func newNormalizer(th *backend.Thread, logger *slog.Logger) *normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &normalizer{th: th, logger: logger, open: map[string]string{}}
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

	if sid, err := jsonparser.GetString(line, "session_id"); err == nil && sid != "" {
		n.th.SetID(sid)
	}

	switch msgType {
	case "system":
		return n.mapSystem(line)
	case "assistant":
		return n.mapAssistant(line)
	case "tool_call":
		return n.mapToolCall(line)
	case "result":
		return n.mapResult(line)
	default:
		// Unknown shapes ("user", "thinking", future additions) ride
		// through as progress.
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
	var msg systemInitMessage
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

func (n *normalizer) mapAssistant(line []byte) []stream.Event {
	var msg assistantMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable assistant message", "backend", providerName, "error", err)
		return nil
	}
	text := msg.text()
	if text == "" {
		return nil
	}
	return []stream.Event{stream.Message(providerName, "assistant", text, false, line)}
}

func (n *normalizer) mapToolCall(line []byte) []stream.Event {
	var msg toolCallMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable tool_call message", "backend", providerName, "error", err)
		return nil
	}
	d, ok := msg.detail()
	if !ok {
		n.logger.Warn("tool_call with no entries", "backend", providerName, "call_id", msg.CallID)
		return nil
	}

	switch msg.Subtype {
	case "started":
		n.open[msg.CallID] = d.Name
		return []stream.Event{stream.ToolUse(providerName, d.Name, msg.CallID, d.Args, line)}
	case "completed":
		name := d.Name
		if prior, ok := n.open[msg.CallID]; ok {
			name = prior
			delete(n.open, msg.CallID)
		}
		return []stream.Event{stream.ToolResult(providerName, name, msg.CallID,
			resultText(d.Result), resultExitCode(d.Result), line)}
	default:
		return []stream.Event{stream.Progress(providerName, "tool_call:"+msg.Subtype, line)}
	}
}

func (n *normalizer) mapResult(line []byte) []stream.Event {
	var msg resultMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable result message", "backend", providerName, "error", err)
		return nil
	}
	n.terminal = true

	if msg.IsError {
		return []stream.Event{stream.Failure(providerName, msg.Result, msg.Subtype, line)}
	}
	return []stream.Event{stream.Done(providerName, line)}
}
