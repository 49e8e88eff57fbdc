package codex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirun/omnirun/backend"
	"github.com/omnirun/omnirun/run"
	"github.com/omnirun/omnirun/stream"
)

// fakeSource replays notification lines as an in-process source.
type fakeSource struct {
	events chan []byte
	err    error
}

func newFakeSource(lines ...string) *fakeSource {
	s := &fakeSource{events: make(chan []byte, len(lines))}
	for _, l := range lines {
		s.events <- []byte(l)
	}
	close(s.events)
	return s
}

func (s *fakeSource) Events() <-chan []byte { return s.events }
func (s *fakeSource) Err() error            { return s.err }

type fakeClient struct {
	req RunRequest
	src run.Source
}

func (c *fakeClient) Run(ctx context.Context, req RunRequest) (run.Source, error) {
	c.req = req
	return c.src, nil
}

func TestRunCollectsResult(t *testing.T) {
	client := &fakeClient{src: newFakeSource(
		`{"type":"thread.started","thread_id":"t-9","model":"gpt-5"}`,
		`{"type":"agent_message.delta","delta":"wor"}`,
		`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"working"}}`,
		`{"type":"token_count","info":{"total_token_usage":{"input_tokens":10,"output_tokens":4,"total_tokens":14}}}`,
		`{"type":"turn.completed"}`,
	)}
	a := newAdapter(client)
	th := a.StartThread(backend.WithModel("gpt-5"))

	res, err := a.Run(context.Background(), th, backend.Request{Prompt: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "working", res.Text)
	assert.Equal(t, "t-9", res.ThreadID)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 14, res.Usage.TotalTokens)

	assert.Equal(t, "do it", client.req.Prompt, "schema is delivered natively, never injected")
	assert.Equal(t, "gpt-5", client.req.Model)
	assert.Empty(t, client.req.SchemaJSON)
}

func TestRunNativeSchema(t *testing.T) {
	client := &fakeClient{src: newFakeSource(
		`{"type":"thread.started","thread_id":"t-1"}`,
		`{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"{\"ok\":true}"}}`,
		`{"type":"turn.completed"}`,
	)}
	a := newAdapter(client)
	th := a.StartThread()

	res, err := a.Run(context.Background(), th, backend.Request{
		Prompt:       "report",
		OutputSchema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	assert.NotContains(t, client.req.Prompt, "JSON Schema", "native mode leaves the prompt alone")
	assert.JSONEq(t, `{"type":"object"}`, string(client.req.SchemaJSON))
	require.NotNil(t, res.Structured)
	assert.JSONEq(t, `{"ok":true}`, string(res.Structured))
}

func TestRunResumePassesThreadID(t *testing.T) {
	client := &fakeClient{src: newFakeSource(
		`{"type":"thread.started","thread_id":"t-old"}`,
		`{"type":"turn.completed"}`,
	)}
	a := newAdapter(client)
	th := a.ResumeThread("t-old")

	_, err := a.Run(context.Background(), th, backend.Request{Prompt: "continue"})
	require.NoError(t, err)
	assert.Equal(t, "t-old", client.req.ThreadID)
}

func TestRunStreamEvents(t *testing.T) {
	client := &fakeClient{src: newFakeSource(
		`{"type":"thread.started","thread_id":"t-2"}`,
		`{"type":"item.started","item":{"id":"c1","type":"command_execution","command":"ls"}}`,
		`{"type":"item.completed","item":{"id":"c1","type":"command_execution","aggregated_output":"a b","exit_code":0}}`,
		`{"type":"turn.completed"}`,
	)}
	a := newAdapter(client)
	th := a.StartThread()

	events, err := a.RunStream(context.Background(), th, backend.Request{Prompt: "list"})
	require.NoError(t, err)

	var kinds []stream.Kind
	for ev := range events {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []stream.Kind{
		stream.KindInit,
		stream.KindToolUse,
		stream.KindToolResult,
		stream.KindDone,
	}, kinds)
}

func TestSandboxMode(t *testing.T) {
	assert.Equal(t, "danger-full-access", sandboxMode(backend.PermissionModeBypass))
	assert.Equal(t, "read-only", sandboxMode(backend.PermissionModePlan))
	assert.Equal(t, "", sandboxMode(backend.PermissionModeDefault))
}

func TestSubmissionShapes(t *testing.T) {
	in := newUserInput("id-1", "hello")
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id-1","op":{"type":"user_input","items":[{"type":"text","text":"hello"}]}}`, string(b))

	intr := newInterrupt("id-2")
	b, err = json.Marshal(intr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id-2","op":{"type":"interrupt"}}`, string(b))
}
