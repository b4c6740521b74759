// Package hook lets callers observe and veto tool executions performed by an
// assistant.
package hook

import (
	"context"
	"time"
)

// Point defines when a hook is triggered.
type Point string

const (
	BeforeToolExecution Point = "before_tool_execution"
	AfterToolExecution  Point = "after_tool_execution"

	OnRunStart Point = "on_run_start"
	OnRunEnd   Point = "on_run_end"
)

// Event carries what is known at the hook point. Args is the raw argument
// text the model wrote. Result and Err are only set after execution.
type Event struct {
	Point     Point
	Timestamp time.Time
	Tool      string
	Args      string
	Result    string
	Err       error
	Inquiry   string
}

func NewEvent(point Point, tool, args string) *Event {
	return &Event{
		Point:     point,
		Timestamp: time.Now(),
		Tool:      tool,
		Args:      args,
	}
}

// Feedback is returned by handlers to control execution flow.
type Feedback struct {
	Allow   bool
	Message string
}

func Allow() *Feedback {
	return &Feedback{Allow: true}
}

// Deny stops the operation. message is recorded in the conversation in place
// of the tool result.
func Deny(message string) *Feedback {
	return &Feedback{Allow: false, Message: message}
}

type Handler interface {
	Name() string
	Points() []Point
	Handle(ctx context.Context, ev *Event) (*Feedback, error)
	// Priority orders handlers, higher runs first.
	Priority() int
}

// Func adapts a function to Handler.
type Func struct {
	HandlerName string
	On          []Point
	Order       int
	Fn          func(ctx context.Context, ev *Event) (*Feedback, error)
}

func (f Func) Name() string    { return f.HandlerName }
func (f Func) Points() []Point { return f.On }
func (f Func) Priority() int   { return f.Order }

func (f Func) Handle(ctx context.Context, ev *Event) (*Feedback, error) {
	return f.Fn(ctx, ev)
}
