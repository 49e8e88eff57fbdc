package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/omnirun/omnirun/run"
	"github.com/omnirun/omnirun/stream"
)

// Launcher starts one backend invocation and returns its execution unit.
// prompt is the fully prepared input text (schema instruction already
// injected when applicable).
type Launcher func(ctx context.Context, th *Thread, req Request, prompt string) (run.Unit, error)

// Core implements the Adapter run operations shared by every backend.
// Backend packages embed it with their Launcher and Normalizer; this is
// the only layer that knows which supervisory shape a backend uses.
type Core struct {
	Launch        Launcher
	NewNormalizer func(th *Thread) Normalizer
	Clock         run.Clock
	Logger        *slog.Logger
	Name          string
	Defaults      Options

	// NativeSchema marks backends that accept an output schema natively;
	// for everyone else the schema is injected into the prompt.
	NativeSchema bool
}

// Provider returns the backend name.
func (c *Core) Provider() string { return c.Name }

// StartThread creates a fresh thread.
func (c *Core) StartThread(opts ...ThreadOption) *Thread {
	return NewThread(c.Name, "", false, c.Defaults.merged(opts))
}

// ResumeThread creates a thread that continues a prior backend session.
func (c *Core) ResumeThread(id string, opts ...ThreadOption) *Thread {
	return NewThread(c.Name, id, true, c.Defaults.merged(opts))
}

// preparePrompt flattens the input and injects the schema instruction for
// backends without a native structured-output mode.
func (c *Core) preparePrompt(req Request) (string, error) {
	prompt := req.PromptText()
	if req.OutputSchema == nil || c.NativeSchema {
		return prompt, nil
	}
	schemaJSON, err := stream.SchemaJSON(req.OutputSchema)
	if err != nil {
		return "", err
	}
	return stream.InjectSchema(prompt, schemaJSON), nil
}

// launch reserves the thread's run slot, then spawns the unit under a
// supervisor whose cleanup clears the slot. The idle check happens before
// any process exists, so a busy thread can never leak one.
func (c *Core) launch(ctx context.Context, th *Thread, req Request, prompt string) (*run.Supervisor, Normalizer, error) {
	var sup *run.Supervisor
	sup = run.New(run.Config{
		Provider:  c.Name,
		Clock:     c.Clock,
		Logger:    c.Logger,
		OnCleanup: func() { th.clearRun(sup) },
	})

	if err := th.begin(sup); err != nil {
		return nil, nil, err
	}

	norm := c.NewNormalizer(th)
	if err := sup.Launch(func() (run.Unit, error) {
		return c.Launch(ctx, th, req, prompt)
	}); err != nil {
		return nil, nil, err
	}
	sup.Bind(ctx)
	return sup, norm, nil
}

// Run executes one prompt to completion.
func (c *Core) Run(ctx context.Context, th *Thread, req Request) (*Result, error) {
	prompt, err := c.preparePrompt(req)
	if err != nil {
		return nil, err
	}
	sup, norm, err := c.launch(ctx, th, req, prompt)
	if err != nil {
		return nil, err
	}

	acc := &accumulator{}
loop:
	for {
		payload, nerr := sup.Next(ctx)
		switch {
		case nerr == nil:
			for _, ev := range norm.Map(payload) {
				acc.observe(ev)
			}
		case nerr == io.EOF:
			for _, ev := range norm.Finish() {
				acc.observe(ev)
			}
			if acc.failed == nil {
				acc.done = true
			}
		default:
			sup.Finish(nerr)
			return nil, nerr
		}

		if acc.failed != nil {
			// A backend reacting to the abort notice may answer with its
			// own error envelope; the cancellation outcome still wins.
			if aborted, reason := sup.Aborted(); aborted {
				abort := &run.AbortError{Reason: reason}
				sup.Finish(abort)
				return nil, abort
			}
			sup.Finish(acc.failed)
			return nil, acc.failed
		}
		if acc.done {
			sup.Finish(nil)
			break loop
		}
	}

	res := acc.result(th.ID())
	c.attachStructured(req, norm, res)
	return res, nil
}

// attachStructured fills Result.Structured: the backend's native envelope
// first, extraction from final text second. Extraction failure leaves the
// payload absent; the backend's prose may simply not have complied.
func (c *Core) attachStructured(req Request, norm Normalizer, res *Result) {
	if req.OutputSchema == nil {
		return
	}
	if sp, ok := norm.(StructuredProvider); ok {
		if payload := sp.Structured(); payload != nil {
			res.Structured = payload
			return
		}
	}
	if obj, ok := stream.ExtractJSON(res.Text); ok {
		res.Structured = obj
	}
}

// RunStream executes one prompt, yielding unified events as they arrive.
func (c *Core) RunStream(ctx context.Context, th *Thread, req Request) (<-chan stream.Event, error) {
	prompt, err := c.preparePrompt(req)
	if err != nil {
		return nil, err
	}
	sup, norm, err := c.launch(ctx, th, req, prompt)
	if err != nil {
		return nil, err
	}

	out := make(chan stream.Event, 64)
	go c.pump(ctx, sup, norm, out)
	return out, nil
}

// pump drives the supervisor and forwards normalized events until a
// terminal event. Exactly one terminal event closes the stream; nothing is
// emitted after it.
func (c *Core) pump(ctx context.Context, sup *run.Supervisor, norm Normalizer, out chan<- stream.Event) {
	defer close(out)

	emit := func(ev stream.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	// Terminal events are delivered best-effort even when the consumer's
	// context is already gone; the buffer normally has room.
	emitFinal := func(ev stream.Event) {
		select {
		case out <- ev:
		default:
		}
	}

	for {
		payload, nerr := sup.Next(ctx)
		switch {
		case nerr == nil:
			for _, ev := range norm.Map(payload) {
				if ev.Type == stream.KindError {
					if aborted, reason := sup.Aborted(); aborted {
						abort := &run.AbortError{Reason: reason}
						emitFinal(stream.Cancelled(c.Name, reason))
						emitFinal(stream.Failure(c.Name, abort.Error(), "interrupted", nil))
						sup.Finish(abort)
						return
					}
				}
				if !emit(ev) {
					sup.Finish(&run.AbortError{Reason: "stream consumer gone"})
					return
				}
				switch ev.Type {
				case stream.KindError:
					sup.Finish(&run.ExecutionError{Message: ev.Message})
					return
				case stream.KindDone:
					sup.Finish(nil)
					return
				}
			}

		case nerr == io.EOF:
			for _, ev := range norm.Finish() {
				emitFinal(ev)
			}
			sup.Finish(nil)
			return

		case run.IsInterrupted(nerr):
			var abort *run.AbortError
			errors.As(nerr, &abort)
			emitFinal(stream.Cancelled(c.Name, abort.Reason))
			emitFinal(stream.Failure(c.Name, abort.Error(), "interrupted", nil))
			sup.Finish(nerr)
			return

		default:
			emitFinal(stream.Failure(c.Name, nerr.Error(), "", nil))
			sup.Finish(nerr)
			return
		}
	}
}

// accumulator folds a run's unified events into a Result.
type accumulator struct {
	text   strings.Builder
	usage  *stream.Usage
	raw    []byte
	failed error
	done   bool
}

func (a *accumulator) observe(ev stream.Event) {
	switch ev.Type {
	case stream.KindMessage:
		// Partial deltas are never final text.
		if !ev.Partial && ev.Role != "user" {
			a.text.WriteString(ev.Text)
		}
	case stream.KindUsage:
		if ev.Usage != nil {
			u := *ev.Usage
			a.usage = &u
		}
	case stream.KindError:
		a.failed = &run.ExecutionError{Message: ev.Message}
	case stream.KindDone:
		a.done = true
		if len(ev.Original) > 0 {
			a.raw = ev.Original
		}
	}
}

func (a *accumulator) result(threadID string) *Result {
	return &Result{
		Text:     a.text.String(),
		Usage:    a.usage,
		Raw:      a.raw,
		ThreadID: threadID,
	}
}
