package cursor

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

func TestNormalizeInit(t *testing.T) {
	n, th := newTestNormalizer(t)

	line := `{"type":"system","subtype":"init","session_id":"abc","model":"composer","cwd":"/tmp"}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindInit, evs[0].Type)
	assert.Equal(t, "abc", evs[0].ThreadID)
	assert.Equal(t, "composer", evs[0].Model)
	assert.Equal(t, "abc", th.ID())
}

func TestNormalizeAssistantChunks(t *testing.T) {
	n, _ := newTestNormalizer(t)

	line := `{"type":"assistant","message":{"role":"assistant","content":[` +
		`{"type":"text","text":"part one "},{"type":"text","text":"part two"}]},"session_id":"abc"}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindMessage, evs[0].Type)
	assert.Equal(t, "part one part two", evs[0].Text)
	assert.False(t, evs[0].Partial)
}

func TestNormalizeToolCallLifecycle(t *testing.T) {
	n, _ := newTestNormalizer(t)

	started := `{"type":"tool_call","subtype":"started","call_id":"c1",` +
		`"tool_call":{"Shell":{"args":{"command":"ls"}}},"session_id":"abc"}`
	evs := n.Map([]byte(started))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolUse, evs[0].Type)
	assert.Equal(t, "Shell", evs[0].ToolName)
	assert.Equal(t, "c1", evs[0].CallID)
	assert.Equal(t, "ls", evs[0].Args["command"])

	completed := `{"type":"tool_call","subtype":"completed","call_id":"c1",` +
		`"tool_call":{"Shell":{"args":{"command":"ls"},"result":{"stdout":"file.txt","exitCode":0}}},"session_id":"abc"}`
	evs = n.Map([]byte(completed))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindToolResult, evs[0].Type)
	assert.Equal(t, "Shell", evs[0].ToolName)
	assert.Equal(t, "c1", evs[0].CallID)
	assert.Contains(t, evs[0].Output, "file.txt")
	require.NotNil(t, evs[0].ExitCode)
	assert.Equal(t, 0, *evs[0].ExitCode)
}

func TestNormalizeToolResultStringResult(t *testing.T) {
	n, _ := newTestNormalizer(t)

	completed := `{"type":"tool_call","subtype":"completed","call_id":"c2",` +
		`"tool_call":{"Read":{"result":"contents here"}},"session_id":"abc"}`
	evs := n.Map([]byte(completed))
	require.Len(t, evs, 1)
	assert.Equal(t, "contents here", evs[0].Output)
	assert.Nil(t, evs[0].ExitCode)
}

func TestNormalizeResultSuccess(t *testing.T) {
	n, _ := newTestNormalizer(t)

	line := `{"type":"result","subtype":"success","duration_ms":1234,"is_error":false,` +
		`"result":"done","session_id":"abc"}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindDone, evs[0].Type)

	assert.Nil(t, n.Map([]byte(line)), "nothing maps after the terminal event")
	assert.Nil(t, n.Finish())
}

func TestNormalizeResultError(t *testing.T) {
	n, _ := newTestNormalizer(t)

	line := `{"type":"result","subtype":"error","is_error":true,"result":"ran out of budget","session_id":"abc"}`
	evs := n.Map([]byte(line))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindError, evs[0].Type)
	assert.Equal(t, "ran out of budget", evs[0].Message)
}

func TestNormalizeUnknownAndMalformed(t *testing.T) {
	n, _ := newTestNormalizer(t)

	evs := n.Map([]byte(`{"type":"thinking","text":"..."}`))
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindProgress, evs[0].Type)

	assert.Nil(t, n.Map([]byte(`{{{`)))
}

func TestNormalizeFinishWithoutResult(t *testing.T) {
	n, _ := newTestNormalizer(t)

	n.Map([]byte(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]},"session_id":"abc"}`))
	evs := n.Finish()
	require.Len(t, evs, 1)
	assert.Equal(t, stream.KindDone, evs[0].Type)
}

func TestBuildArgs(t *testing.T) {
	th := backend.NewThread(providerName, "", false, backend.Options{})
	args := buildArgs(th, backend.Options{Model: "composer", PermissionMode: backend.PermissionModeBypass}, "hello")

	assert.Equal(t, []string{
		"chat", "-p", "hello",
		"--output-format", "stream-json",
		"--model", "composer",
		"--force",
	}, args)
}

func TestBuildArgsResume(t *testing.T) {
	th := backend.NewThread(providerName, "abc", true, backend.Options{})
	args := buildArgs(th, backend.Options{}, "hi")
	assert.Contains(t, args, "--resume")
	assert.Contains(t, args, "abc")
}
