package flow

import (
	"context"
	"errors"
	"fmt"

	"fleet-assist/backend/internal/schema"
)

// Modality is the kind of output a flow produces.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// Env carries the per-call context a flow needs. Nothing about the tenant or
// the model is read from ambient state.
type Env struct {
	TenantID string
	// Model overrides the definition's model when set.
	Model string
}

// ToolHandler performs the data read behind a tool.
type ToolHandler func(ctx context.Context, env Env, args map[string]any) (any, error)

// Tool is an external data read the model may request mid-flow.
type Tool struct {
	Name        string
	Description string
	Input       schema.Schema
	Output      schema.Schema
	Handler     ToolHandler
}

// OutputCheck inspects a coerced text output against the tool results the
// model saw. A non-nil error fails the invocation as MalformedOutput.
type OutputCheck func(output map[string]any, tools []ToolResult) error

// Definition declares a flow. It is immutable once passed to New.
type Definition struct {
	Name        string
	Description string
	Modality    Modality
	Model       string
	// System is an optional system instruction for text flows.
	System string
	// Prompt is a template rendered with the validated input.
	Prompt string
	Input  schema.Schema
	Output schema.Schema
	Tools  []Tool
	// Check, when set, runs after a text output passes its schema.
	Check OutputCheck
	// MediaField names the output field that carries the data URI for
	// audio, image and video flows.
	MediaField string
	// Voice selects a prebuilt voice for audio flows.
	Voice string
	// AspectRatio is passed to video flows, e.g. "16:9".
	AspectRatio string
}

func (d Definition) validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if d.Prompt == "" {
		errs = append(errs, errors.New("prompt is required"))
	}
	switch d.Modality {
	case ModalityText:
		if d.MediaField != "" {
			errs = append(errs, errors.New("media field is only valid for media flows"))
		}
	case ModalityAudio, ModalityImage, ModalityVideo:
		if d.Check != nil {
			errs = append(errs, fmt.Errorf("%s flows cannot declare an output check", d.Modality))
		}
		if d.MediaField == "" {
			errs = append(errs, fmt.Errorf("%s flows require a media field", d.Modality))
		}
		if len(d.Tools) > 0 {
			errs = append(errs, fmt.Errorf("%s flows cannot declare tools", d.Modality))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown modality %q", d.Modality))
	}

	seen := make(map[string]bool, len(d.Tools))
	for _, t := range d.Tools {
		switch {
		case t.Name == "":
			errs = append(errs, errors.New("tool name is required"))
		case seen[t.Name]:
			errs = append(errs, fmt.Errorf("duplicate tool %q", t.Name))
		case t.Handler == nil:
			errs = append(errs, fmt.Errorf("tool %q has no handler", t.Name))
		}
		seen[t.Name] = true
	}
	return errors.Join(errs...)
}
