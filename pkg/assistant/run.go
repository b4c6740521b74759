package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/ramptix/leicht/pkg/hook"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/tool"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RunOption adjusts a single run.
type RunOption func(*runConfig)

type runConfig struct {
	params llm.Params
	stream bool
}

// WithSampling overrides sampling parameters for one run.
func WithSampling(opts ...llm.Option) RunOption {
	return func(c *runConfig) { c.params = c.params.Merge(llm.NewParams(opts...)) }
}

// WithStream asks for a streamed final reply. The reply's Stream must be
// consumed for the answer to be recorded in the conversation.
func WithStream() RunOption {
	return func(c *runConfig) { c.stream = true }
}

// runState tracks one run for logging.
type runState struct {
	start     time.Time
	toolCalls int
}

// Run sends inquiry as a user message. See RunMessages.
func (a *Assistant) Run(ctx context.Context, inquiry string, opts ...RunOption) (*llm.Reply, error) {
	return a.RunMessages(ctx, []llm.Message{llm.UserMessage(inquiry)}, opts...)
}

// RunMessages appends msgs to the conversation and returns the model's reply.
//
// When the backend reports function calls, every call naming a known tool is
// executed in order and recorded as a system message of the form
// "I executed name(args), results:\n<result>". Unknown names are skipped.
// The backend is then asked once more with tool detection suppressed and that
// reply is returned. Tool and argument errors are returned unchanged.
//
// The final reply is appended to the conversation as an assistant message,
// for streams once the stream has been drained.
func (a *Assistant) RunMessages(ctx context.Context, msgs []llm.Message, opts ...RunOption) (*llm.Reply, error) {
	if len(msgs) == 0 {
		return nil, ErrEmptyInquiry
	}
	if last := msgs[len(msgs)-1]; last.Role != llm.RoleUser {
		return nil, fmt.Errorf("%w: got %q (append a user message before running)", ErrNotUserTurn, last.Role)
	}

	rc := &runConfig{params: a.params}
	for _, opt := range opts {
		opt(rc)
	}

	ctx, span := tracer.Start(ctx, "assistant.Run")
	defer span.End()

	state := &runState{start: time.Now()}
	inquiry := msgs[len(msgs)-1].Content
	a.log.SessionStart(inquiry)
	if _, err := a.hooks.Trigger(ctx, &hook.Event{Point: hook.OnRunStart, Timestamp: state.start, Inquiry: inquiry}); err != nil {
		return nil, err
	}

	a.messages = append(a.messages, msgs...)

	reply, err := a.invoke(ctx, rc)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if reply.HasFunctions() {
		span.SetAttributes(attribute.Int("assistant.functions", len(reply.Functions)))
		if err := a.execute(ctx, reply.Functions, state); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		err = a.backend.SuppressTools(func() error {
			var err error
			reply, err = a.invoke(ctx, rc)
			return err
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	a.record(ctx, reply, state)
	return reply, nil
}

func (a *Assistant) invoke(ctx context.Context, rc *runConfig) (*llm.Reply, error) {
	return a.backend.Invoke(ctx, &llm.Payload{
		Messages: a.Messages(),
		Stream:   rc.stream,
		Params:   rc.params,
	})
}

func (a *Assistant) execute(ctx context.Context, calls []llm.FunctionCall, state *runState) error {
	a.log.Info("Executing %d function call(s)...", len(calls))

	for _, call := range calls {
		c, ok := a.tools.Get(call.Name)
		if !ok {
			a.log.Debug("Skipping unknown function %s", call.Name)
			continue
		}

		result, err := a.call(ctx, c, call, state)
		if err != nil {
			return err
		}

		a.messages = append(a.messages, llm.SystemMessage(
			fmt.Sprintf("I executed %s, results:\n%s", call, result),
		))
	}
	return nil
}

func (a *Assistant) call(ctx context.Context, c *tool.Capability, call llm.FunctionCall, state *runState) (string, error) {
	fb, err := a.hooks.Trigger(ctx, hook.NewEvent(hook.BeforeToolExecution, call.Name, call.Args))
	if err != nil {
		return "", err
	}
	if !fb.Allow {
		a.log.Info("Function %s denied: %s", call, fb.Message)
		if fb.Message == "" {
			return "denied", nil
		}
		return fb.Message, nil
	}

	state.toolCalls++
	a.log.ToolCall(call.Name, call.Args)
	start := time.Now()

	out, err := c.CallText(ctx, call.Args)
	if err != nil {
		a.log.ToolResult(call.Name, false, err.Error(), time.Since(start))
		return "", err
	}
	result := tool.FormatResult(out)
	a.log.ToolResult(call.Name, true, result, time.Since(start))

	after := hook.NewEvent(hook.AfterToolExecution, call.Name, call.Args)
	after.Result = result
	if _, err := a.hooks.Trigger(ctx, after); err != nil {
		return "", err
	}
	return result, nil
}

// record appends the final answer to the conversation.
func (a *Assistant) record(ctx context.Context, reply *llm.Reply, state *runState) {
	finish := func(resp *llm.Response) {
		msg := resp.Message()
		msg.Role = llm.RoleAssistant
		a.messages = append(a.messages, msg)
		a.log.AgentResponse(msg.Content)
		a.log.SessionEnd(time.Since(state.start), state.toolCalls)

		ev := &hook.Event{Point: hook.OnRunEnd, Timestamp: time.Now(), Result: msg.Content}
		if _, err := a.hooks.Trigger(ctx, ev); err != nil {
			a.log.Error("on_run_end hook: %v", err)
		}
	}

	switch {
	case reply.Stream != nil:
		reply.Stream.OnComplete(finish)
	case reply.Response != nil:
		finish(reply.Response)
	}
}
