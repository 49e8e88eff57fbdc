package codex

import (
	"encoding/json"
	"log/slog"

	"github.com/buger/jsonparser"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/stream"
)

// normalizer maps proto notifications into unified events. One instance
// serves one run.
type normalizer struct {
	th     *backend.Thread
	logger *slog.Logger

	sawInit   bool
	terminal  bool
	usage     *tokenUsage
	lastFinal string
}

func newNormalizer(th *backend.Thread, logger *slog.Logger) *normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &normalizer{th: th, logger: logger}
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

	switch msgType {
	case "thread.started":
		return n.mapThreadStarted(line)
	case "agent_message.delta":
		return n.mapDelta(line)
	case "item.started", "item.completed":
		return n.mapItem(line, msgType)
	case "token_count":
		return n.mapTokenCount(line)
	case "turn.completed":
		return n.mapTurnCompleted(line)
	case "turn.failed":
		return n.mapTurnFailed(line)
	case "error":
		return n.mapError(line)
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

// Structured returns the final agent message when it is a JSON document.
// With an output schema in force the backend emits the payload as the final
// message; the caller only consults this when a schema was given.
func (n *normalizer) Structured() json.RawMessage {
	if n.lastFinal == "" || !json.Valid([]byte(n.lastFinal)) {
		return nil
	}
	return json.RawMessage(n.lastFinal)
}

func (n *normalizer) mapThreadStarted(line []byte) []stream.Event {
	var msg threadStartedMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable thread.started", "backend", providerName, "error", err)
		return nil
	}
	if msg.ThreadID != "" {
		n.th.SetID(msg.ThreadID)
	}
	if n.sawInit {
		return []stream.Event{stream.Progress(providerName, msg.Type, line)}
	}
	n.sawInit = true
	return []stream.Event{stream.Init(providerName, msg.ThreadID, msg.Model, line)}
}

func (n *normalizer) mapDelta(line []byte) []stream.Event {
	var msg agentMessageDeltaMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable delta", "backend", providerName, "error", err)
		return nil
	}
	if msg.Delta == "" {
		return nil
	}
	return []stream.Event{stream.Message(providerName, "assistant", msg.Delta, true, line)}
}

func (n *normalizer) mapItem(line []byte, msgType string) []stream.Event {
	var msg itemMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable item", "backend", providerName, "error", err)
		return nil
	}
	completed := msgType == "item.completed"

	switch msg.Item.Type {
	case "agent_message":
		if !completed {
			return nil
		}
		n.lastFinal = msg.Item.Text
		return []stream.Event{stream.Message(providerName, "assistant", msg.Item.Text, false, line)}

	case "reasoning":
		return []stream.Event{stream.Progress(providerName, "reasoning", line)}

	case "command_execution":
		if completed {
			return []stream.Event{stream.ToolResult(providerName, "shell", msg.Item.ID,
				msg.Item.Output, msg.Item.ExitCode, line)}
		}
		args := map[string]interface{}{"command": msg.Item.Command}
		if msg.Item.CWD != "" {
			args["cwd"] = msg.Item.CWD
		}
		return []stream.Event{stream.ToolUse(providerName, "shell", msg.Item.ID, args, line)}

	case "file_change":
		if !completed {
			return nil
		}
		evs := make([]stream.Event, 0, len(msg.Item.Changes))
		for _, ch := range msg.Item.Changes {
			evs = append(evs, stream.FileChange(providerName, ch.Path, changeKind(ch.Kind), line))
		}
		return evs

	case "plan_update", "todo_list":
		entries := make([]stream.PlanEntry, 0, len(msg.Item.Plan))
		for _, p := range msg.Item.Plan {
			entries = append(entries, stream.PlanEntry{Step: p.Step, Status: p.Status})
		}
		return []stream.Event{stream.PlanUpdate(providerName, entries, line)}

	default:
		return []stream.Event{stream.Progress(providerName, "item:"+msg.Item.Type, line)}
	}
}

func changeKind(kind string) string {
	switch kind {
	case "add":
		return "create"
	case "update":
		return "modify"
	case "delete":
		return "delete"
	}
	return kind
}

func (n *normalizer) mapTokenCount(line []byte) []stream.Event {
	var msg tokenCountMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable token_count", "backend", providerName, "error", err)
		return nil
	}
	u := msg.Info.TotalTokenUsage
	n.usage = &u
	return []stream.Event{stream.UsageStats(providerName, toUsage(u), line)}
}

func (n *normalizer) mapTurnCompleted(line []byte) []stream.Event {
	var msg turnCompletedMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable turn.completed", "backend", providerName, "error", err)
		return nil
	}
	n.terminal = true

	var evs []stream.Event
	if msg.Usage != (tokenUsage{}) {
		evs = append(evs, stream.UsageStats(providerName, toUsage(msg.Usage), line))
	} else if n.usage != nil {
		evs = append(evs, stream.UsageStats(providerName, toUsage(*n.usage), line))
	}
	return append(evs, stream.Done(providerName, line))
}

func (n *normalizer) mapTurnFailed(line []byte) []stream.Event {
	var msg turnFailedMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable turn.failed", "backend", providerName, "error", err)
		return nil
	}
	n.terminal = true
	return []stream.Event{stream.Failure(providerName, msg.Error.Message, "turn_failed", line)}
}

func (n *normalizer) mapError(line []byte) []stream.Event {
	var msg errorMsg
	if err := json.Unmarshal(line, &msg); err != nil {
		n.logger.Warn("dropping unparseable error", "backend", providerName, "error", err)
		return nil
	}
	n.terminal = true
	return []stream.Event{stream.Failure(providerName, msg.Message, "", line)}
}

func toUsage(u tokenUsage) stream.Usage {
	return stream.Usage{
		InputTokens:     u.InputTokens,
		OutputTokens:    u.OutputTokens,
		CacheReadTokens: u.CachedInputTokens,
		TotalTokens:     u.TotalTokens,
	}
}
