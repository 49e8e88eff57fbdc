package codex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/stream"
)

func newTestNormalizer(t *testing.T) (*normalizer, *backend.Thread) {
	t.Helper()
	th := backend.NewThread(providerName, "", false, backend.Options{})
	return newNormalizer(th, nil), th
}

func TestNormalizeThreadStarted(t *testing.T) {
	n, th := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"thread.started","thread_id":"t-1","model":"gpt-5"}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindInit, evs[0].Type)
	assert.Equal(t, "t-1", evs[0].ThreadID)
	assert.Equal(t, "gpt-5", evs[0].Model)
	assert.Equal(t, "t-1", th.ID())

	evs = n.Map([]byte(`{"type":"thread.started","thread_id":"t-1"}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindProgress, evs[0].Type, "only the first init is an init")
}

func TestNormalizeAgentMessageDelta(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"agent_message.delta","delta":"chunk"}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindMessage, evs[0].Type)
	assert.True(t, evs[0].Partial)
	assert.Equal(t, "chunk", evs[0].Text)

	assert.Nil(t, n.Map([]byte(`{"type":"agent_message.delta","delta":""}`)))
}

func TestNormalizeAgentMessageCompleted(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"final answer"}}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindMessage, evs[0].Type)
	assert.False(t, evs[0].Partial)
	assert.Equal(t, "final answer", evs[0].Text)
}

func TestNormalizeCommandExecution(t *testing.T) {
	n, _ := newTestNormalizer(t)

	started := `{"type":"item.started","item":{"id":"c1","type":"command_execution","command":"go test ./...","cwd":"/repo"}}`
	evs := n.Map([]byte(started))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolUse, evs[0].Type)
	assert.Equal(t, "shell", evs[0].ToolName)
	assert.Equal(t, "c1", evs[0].CallID)
	assert.Equal(t, "go test ./...", evs[0].Args["command"])
	assert.Equal(t, "/repo", evs[0].Args["cwd"])

	completed := `{"type":"item.completed","item":{"id":"c1","type":"command_execution","aggregated_output":"ok","exit_code":0}}`
	evs = n.Map([]byte(completed))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolResult, evs[0].Type)
	assert.Equal(t, "ok", evs[0].Output)
	require.NotNil(t, evs[0].ExitCode)
	assert.Equal(t, 0, *evs[0].ExitCode)
}

func TestNormalizeFileChange(t *testing.T) {
	n, _ := newTestNormalizer(t)

	line := `{"type":"item.completed","item":{"id":"f1","type":"file_change","changes":[` +
		`{"path":"a.go","kind":"add"},{"path":"b.go","kind":"update"},{"path":"c.go","kind":"delete"}]}}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 3)
	assert.Equal(t, stream.KindFileChange, evs[0].Type)
	assert.Equal(t, "a.go", evs[0].Path)
	assert.Equal(t, "create", evs[0].ChangeKind)
	assert.Equal(t, "modify", evs[1].ChangeKind)
	assert.Equal(t, "delete", evs[2].ChangeKind)
}

func TestNormalizePlanUpdate(t *testing.T) {
	n, _ := newTestNormalizer(t)

	line := `{"type":"item.completed","item":{"id":"p1","type":"plan_update","plan":[` +
		`{"step":"write tests","status":"completed"},{"step":"fix bug","status":"in_progress"}]}}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindPlanUpdate, evs[0].Type)
	require.Len(t, evs[0].Plan, 2)
	assert.Equal(t, "write tests", evs[0].Plan[0].Step)
	assert.Equal(t, "in_progress", evs[0].Plan[1].Status)
}

func TestNormalizeTokenCountAndTurnCompleted(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"token_count","info":{"total_token_usage":` +
		`{"input_tokens":100,"cached_input_tokens":20,"output_tokens":50,"total_tokens":150}}}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindUsage, evs[0].Type)
	assert.Equal(t, 100, evs[0].Usage.InputTokens)
	assert.Equal(t, 20, evs[0].Usage.CacheReadTokens)

	// turn.completed without its own usage falls back to the last count.
	evs = n.Map([]byte(`{"type":"turn.completed"}`))
	require.Len(t, evs, 2)
	assert.Equal(t, stream.KindUsage, evs[0].Type)
	assert.Equal(t, 150, evs[0].Usage.TotalTokens)
	assert.Equal(t, stream.KindDone, evs[1].Type)

	assert.Nil(t, n.Map([]byte(`{"type":"agent_message.delta","delta":"late"}`)))
	assert.Nil(t, n.Finish())
}

func TestNormalizeTurnFailed(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"turn.failed","error":{"message":"model refused"}}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindError, evs[0].Type)
	assert.Equal(t, "model refused", evs[0].Message)
	assert.Equal(t, "turn_failed", evs[0].Code)
}

func TestNormalizeReasoningIsProgress(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"item.completed","item":{"id":"r1","type":"reasoning","text":"..."}}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindProgress, evs[0].Type)
}

func TestStructuredPayload(t *testing.T) {
	n, _ := newTestNormalizer(t)

	n.Map([]byte(`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"{\"answer\":42}"}}`))
	payload := n.Structured()
	require.NotNil(t, payload)
	assert.JSONEq(t, `{"answer":42}`, string(payload))
}

func TestStructuredAbsentForProse(t *testing.T) {
	n, _ := newTestNormalizer(t)

	n.Map([]byte(`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"plain prose"}}`))
	assert.Nil(t, n.Structured())
}

func TestNormalizeFinishSynthesizesDone(t *testing.T) {
	n, _ := newTestNormalizer(t)

	n.Map([]byte(`{"type":"thread.started","thread_id":"t"}`))
	evs := n.Finish()
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindDone, evs[0].Type)
}
