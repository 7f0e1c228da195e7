package flow

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// State is a step in an invocation's lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRendering  State = "rendering"
	StateInvoking   State = "invoking"
	StateToolCall   State = "tool_call"
	StateCoercing   State = "coercing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Invocation records one call of a flow. It is created per call and never shared.
type Invocation struct {
	ID       string
	Flow     string
	TenantID string
	Model    string
	State    State
	// History lists every state entered, in order, starting with StateIdle.
	History   []State
	Input     map[string]any
	Prompt    string
	Raw       string
	Output    map[string]any
	ToolCalls []string
	// ToolResults holds the validated result of every successful tool call.
	ToolResults []ToolResult
	Err         error

	StartedAt  time.Time
	FinishedAt time.Time

	span trace.Span
}

// ToolResult is the value a tool handed back to the model.
type ToolResult struct {
	Name   string
	Output any
}

// Duration is the wall time of a finished invocation.
func (inv *Invocation) Duration() time.Duration {
	if inv.FinishedAt.IsZero() {
		return 0
	}
	return inv.FinishedAt.Sub(inv.StartedAt)
}

func (inv *Invocation) enter(s State) {
	inv.State = s
	inv.History = append(inv.History, s)
	if inv.span != nil {
		inv.span.AddEvent(string(s))
	}
}
