package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Typed wraps a Flow with Go input and output types. Struct fields map to
// schema fields through their json tags.
type Typed[In, Out any] struct {
	flow *Flow
}

// NewTyped wraps f.
func NewTyped[In, Out any](f *Flow) *Typed[In, Out] {
	return &Typed[In, Out]{flow: f}
}

// Flow returns the underlying flow.
func (t *Typed[In, Out]) Flow() *Flow { return t.flow }

// Run executes the flow with in and decodes its output into Out.
func (t *Typed[In, Out]) Run(ctx context.Context, env Env, in In) (Out, error) {
	var out Out
	input, err := toMap(in)
	if err != nil {
		return out, newError(KindValidation, t.flow.Name(), StateIdle, err)
	}
	result, err := t.flow.Run(ctx, env, input)
	if err != nil {
		return out, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return out, newError(KindMalformedOutput, t.flow.Name(), StateCoercing, err)
	}
	if err := dec.Decode(result); err != nil {
		return out, newError(KindMalformedOutput, t.flow.Name(), StateCoercing, fmt.Errorf("failed to decode output: %w", err))
	}
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil, fmt.Errorf("input must encode to a JSON object: %w", err)
	}
	return m, nil
}
