package codex

// Submissions are the JSONL ops we write to the proto subprocess; each
// carries a unique id so the backend can correlate acknowledgements.
type submission struct {
	ID string       `json:"id"`
	Op submissionOp `json:"op"`
}

type submissionOp struct {
	Type  string           `json:"type"`
	Items []submissionItem `json:"items,omitempty"`
}

type submissionItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newUserInput(id, prompt string) submission {
	return submission{
		ID: id,
		Op: submissionOp{
			Type:  "user_input",
			Items: []submissionItem{{Type: "text", Text: prompt}},
		},
	}
}

func newInterrupt(id string) submission {
	return submission{ID: id, Op: submissionOp{Type: "interrupt"}}
}

// Notification shapes read back from the subprocess. Type tags:
// thread.started, turn.started, agent_message.delta, item.started,
// item.completed, token_count, turn.completed, turn.failed, error.

type threadStartedMsg struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Model    string `json:"model"`
}

type agentMessageDeltaMsg struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// itemMsg covers item.started and item.completed; the item payload is a
// tagged union over item.type.
type itemMsg struct {
	Type string `json:"type"`
	Item struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Command  string `json:"command,omitempty"`
		CWD      string `json:"cwd,omitempty"`
		Output   string `json:"aggregated_output,omitempty"`
		ExitCode *int   `json:"exit_code,omitempty"`
		Changes  []struct {
			Path string `json:"path"`
			Kind string `json:"kind"`
		} `json:"changes,omitempty"`
		Plan []struct {
			Step   string `json:"step"`
			Status string `json:"status"`
		} `json:"plan,omitempty"`
	} `json:"item"`
}

type tokenUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	TotalTokens       int `json:"total_tokens"`
}

type tokenCountMsg struct {
	Type string `json:"type"`
	Info struct {
		TotalTokenUsage tokenUsage `json:"total_token_usage"`
		LastTokenUsage  tokenUsage `json:"last_token_usage"`
	} `json:"info"`
}

type turnCompletedMsg struct {
	Type  string     `json:"type"`
	Usage tokenUsage `json:"usage"`
}

type turnFailedMsg struct {
	Type  string `json:"type"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
