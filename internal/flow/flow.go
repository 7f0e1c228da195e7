// Package flow runs declared AI flows: validate input, render the prompt,
// invoke the model, and coerce its answer into a schema-valid object.
// Every failure surfaces as an *Error with a Kind.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/model"
	"fleet-assist/backend/internal/prompt"
	"fleet-assist/backend/internal/schema"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const instrumentationName = "fleet-assist/backend/internal/flow"

// Invoker is the model surface a flow calls into.
type Invoker interface {
	Text(ctx context.Context, req model.TextRequest) (string, error)
	Speech(ctx context.Context, req model.SpeechRequest) (*model.Media, error)
	Image(ctx context.Context, req model.ImageRequest) (*model.Media, error)
	Video(ctx context.Context, req model.VideoRequest) (*model.Media, error)
}

// Flow is a compiled Definition bound to an Invoker.
type Flow struct {
	def     Definition
	prompt  *prompt.Template
	invoker Invoker
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *metrics
	now     func() time.Time
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// WithTracerProvider sets the tracer provider. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(f *Flow) { f.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. The global provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(f *Flow) { f.metrics = newMetrics(mp.Meter(instrumentationName)) }
}

// New validates def and compiles its prompt.
func New(def Definition, invoker Invoker, opts ...Option) (*Flow, error) {
	if invoker == nil {
		return nil, errors.New("flow invoker is required")
	}
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("invalid flow %q: %w", def.Name, err)
	}
	tmpl, err := prompt.Parse(def.Name, def.Prompt)
	if err != nil {
		return nil, fmt.Errorf("invalid flow %q: %w", def.Name, err)
	}
	def.Tools = append([]Tool(nil), def.Tools...)

	f := &Flow{
		def:     def,
		prompt:  tmpl,
		invoker: invoker,
		logger:  logging.Nop(),
		tracer:  otel.Tracer(instrumentationName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = newMetrics(otel.Meter(instrumentationName))
	}
	f.logger = f.logger.With("flow", def.Name)
	return f, nil
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.def.Name }

// Description returns the flow description.
func (f *Flow) Description() string { return f.def.Description }

// Modality returns the kind of output the flow produces.
func (f *Flow) Modality() Modality { return f.def.Modality }

// InputSchema returns the declared input schema.
func (f *Flow) InputSchema() schema.Schema { return f.def.Input }

// OutputSchema returns the declared output schema.
func (f *Flow) OutputSchema() schema.Schema { return f.def.Output }

// Run executes the flow and returns its output or an *Error.
func (f *Flow) Run(ctx context.Context, env Env, input map[string]any) (map[string]any, error) {
	inv := f.Execute(ctx, env, input)
	return inv.Output, inv.Err
}

// Execute runs one invocation and returns its full record. The returned
// Invocation is always terminal.
func (f *Flow) Execute(ctx context.Context, env Env, input map[string]any) *Invocation {
	inv := &Invocation{
		ID:        uuid.NewString(),
		Flow:      f.def.Name,
		TenantID:  env.TenantID,
		Model:     f.def.Model,
		Input:     input,
		StartedAt: f.now(),
	}
	if env.Model != "" {
		inv.Model = env.Model
	}
	inv.enter(StateIdle)

	ctx, span := f.tracer.Start(ctx, "flow."+f.def.Name, trace.WithAttributes(
		attribute.String("flow.name", f.def.Name),
		attribute.String("flow.invocation_id", inv.ID),
		attribute.String("flow.model", inv.Model),
		attribute.String("tenant.id", env.TenantID),
	))
	defer span.End()
	inv.span = span
	f.logger.Debug("flow started", "flow", f.def.Name, "invocation", inv.ID, "tenant", env.TenantID, "model", inv.Model)

	if err := f.execute(ctx, env, inv); err != nil {
		inv.Err = err
		inv.Output = nil
		inv.enter(StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Kind))
		f.logger.Warn("flow failed", "invocation", inv.ID, "tenant", env.TenantID, "kind", err.Kind, "stage", err.Stage, "error", err.Err)
	} else {
		inv.enter(StateSucceeded)
		f.logger.Info("flow succeeded", "invocation", inv.ID, "tenant", env.TenantID, "tool_calls", len(inv.ToolCalls))
	}
	inv.FinishedAt = f.now()
	f.logger.Debug("flow finished", "flow", f.def.Name, "invocation", inv.ID, "state", inv.State, "duration", inv.Duration())
	f.metrics.record(ctx, inv)
	return inv
}

func (f *Flow) execute(ctx context.Context, env Env, inv *Invocation) *Error {
	inv.enter(StateValidating)
	if err := f.def.Input.Validate(inv.Input); err != nil {
		return newError(KindValidation, f.def.Name, StateValidating, err)
	}

	inv.enter(StateRendering)
	text, err := f.prompt.Render(renderData(f.def.Input, inv.Input))
	if err != nil {
		return newError(KindValidation, f.def.Name, StateRendering, err)
	}
	inv.Prompt = text

	if err := ctx.Err(); err != nil {
		return newError(KindCancelled, f.def.Name, StateRendering, err)
	}

	inv.enter(StateInvoking)
	var m *model.Media
	switch f.def.Modality {
	case ModalityText:
		inv.Raw, err = f.invoker.Text(ctx, model.TextRequest{
			Model:          inv.Model,
			System:         f.def.System,
			Prompt:         text,
			ResponseSchema: f.def.Output.GenAI(),
			Tools:          f.bindTools(env, inv),
		})
	case ModalityAudio:
		m, err = f.invoker.Speech(ctx, model.SpeechRequest{Model: inv.Model, Prompt: text, Voice: f.def.Voice})
	case ModalityImage:
		m, err = f.invoker.Image(ctx, model.ImageRequest{Model: inv.Model, Prompt: text})
	case ModalityVideo:
		m, err = f.invoker.Video(ctx, model.VideoRequest{Model: inv.Model, Prompt: text, AspectRatio: f.def.AspectRatio})
	}
	if err != nil {
		return newError(classify(err), f.def.Name, inv.State, err)
	}

	inv.enter(StateCoercing)
	if f.def.Modality == ModalityText {
		out, err := Coerce(inv.Raw, f.def.Output)
		if err != nil {
			return newError(KindMalformedOutput, f.def.Name, StateCoercing, err)
		}
		if f.def.Check != nil {
			if err := f.def.Check(out, inv.ToolResults); err != nil {
				return newError(KindMalformedOutput, f.def.Name, StateCoercing, err)
			}
		}
		inv.Output = out
		return nil
	}

	if m == nil || len(m.Data) == 0 {
		return newError(KindNoMedia, f.def.Name, StateCoercing, model.ErrNoMedia)
	}
	out := map[string]any{f.def.MediaField: m.DataURI()}
	if err := f.def.Output.Validate(out); err != nil {
		return newError(KindMalformedOutput, f.def.Name, StateCoercing, err)
	}
	inv.Output = out
	return nil
}

// bindTools adapts the declared tools to model tools that validate their
// arguments and results and record the ToolCall substate on inv.
func (f *Flow) bindTools(env Env, inv *Invocation) []model.Tool {
	if len(f.def.Tools) == 0 {
		return nil
	}
	tools := make([]model.Tool, 0, len(f.def.Tools))
	for _, t := range f.def.Tools {
		tools = append(tools, model.Tool{
			Declaration: &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Input.GenAI(),
			},
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				inv.enter(StateToolCall)
				inv.ToolCalls = append(inv.ToolCalls, t.Name)
				defer inv.enter(StateInvoking)
				result, err := f.callTool(ctx, env, t, args)
				if err != nil {
					return nil, err
				}
				inv.ToolResults = append(inv.ToolResults, ToolResult{Name: t.Name, Output: result})
				return result, nil
			},
		})
	}
	return tools
}

func (f *Flow) callTool(ctx context.Context, env Env, t Tool, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := t.Input.Validate(args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	result, err := t.Handler(ctx, env, args)
	if err != nil {
		return nil, err
	}
	if t.Output.IsZero() {
		return result, nil
	}

	// Validate the JSON shape the model will see, not the Go value.
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	if err := t.Output.Validate(generic); err != nil {
		return nil, fmt.Errorf("invalid result: %w", err)
	}
	return generic, nil
}

func classify(err error) Kind {
	var toolErr *model.ToolError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.As(err, &toolErr):
		return KindToolExecution
	case errors.Is(err, model.ErrNoMedia):
		return KindNoMedia
	default:
		return KindModel
	}
}

// renderData gives every declared top-level field a value so templates can
// test optional fields with {{ if }} without tripping missing-key errors.
func renderData(s schema.Schema, input map[string]any) map[string]any {
	data := make(map[string]any, len(input))
	for k, v := range input {
		data[k] = v
	}
	root := s.Root()
	if root == nil || root.Type != schema.TypeObject {
		return data
	}
	for _, field := range root.Fields {
		if _, ok := data[field.Name]; ok {
			continue
		}
		switch field.Type {
		case schema.TypeString:
			data[field.Name] = ""
		case schema.TypeArray:
			data[field.Name] = []any{}
		default:
			data[field.Name] = nil
		}
	}
	return data
}
