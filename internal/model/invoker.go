// Package model invokes hosted generative models: structured text with
// optional tool calls, speech, images, and long-running video jobs.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/media"

	"google.golang.org/genai"
)

const (
	defaultMaxToolTurns = 5
	defaultPollInterval = 5 * time.Second
)

// Tool is a function the model may call mid-generation.
type Tool struct {
	Declaration *genai.FunctionDeclaration
	Call        func(ctx context.Context, args map[string]any) (any, error)
}

// TextRequest asks for a text (usually JSON) answer.
type TextRequest struct {
	Model          string
	System         string
	Prompt         string
	ResponseSchema *genai.Schema
	Tools          []Tool
}

// SpeechRequest asks for spoken audio of Prompt.
type SpeechRequest struct {
	Model  string
	Prompt string
	Voice  string
}

// ImageRequest asks for a single generated image.
type ImageRequest struct {
	Model  string
	Prompt string
}

// VideoRequest asks for a generated video clip.
type VideoRequest struct {
	Model           string
	Prompt          string
	AspectRatio     string
	DurationSeconds int32
}

// Media is generated binary content.
type Media struct {
	MIMEType string
	Data     []byte
}

// DataURI embeds the media as a base64 data URI.
func (m *Media) DataURI() string {
	return media.DataURI(m.MIMEType, m.Data)
}

// Invoker sends rendered prompts to a Backend. Calls share no mutable state.
type Invoker struct {
	backend      Backend
	logger       *logging.Logger
	maxToolTurns int
	pollInterval time.Duration
	maxWait      time.Duration
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithMaxToolTurns caps how many model turns a tool-augmented request may take.
func WithMaxToolTurns(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.maxToolTurns = n
		}
	}
}

// WithPollInterval sets the wait between video job status checks.
func WithPollInterval(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.pollInterval = d
		}
	}
}

// WithMaxWait bounds the total time spent polling a video job. Zero means unbounded.
func WithMaxWait(d time.Duration) Option {
	return func(i *Invoker) { i.maxWait = d }
}

// NewInvoker creates an Invoker over backend.
func NewInvoker(backend Backend, opts ...Option) *Invoker {
	i := &Invoker{
		backend:      backend,
		logger:       logging.Nop(),
		maxToolTurns: defaultMaxToolTurns,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Text runs a text generation, executing any tool calls the model makes and
// feeding their results back until the model answers without calling a tool.
func (i *Invoker) Text(ctx context.Context, req TextRequest) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	tools := make(map[string]Tool, len(req.Tools))
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools[t.Declaration.Name] = t
			decls = append(decls, t.Declaration)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	} else if req.ResponseSchema != nil {
		// Gemini rejects JSON mode combined with function calling, so
		// tool-augmented prompts carry the output contract in their text.
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.ResponseSchema
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	for turn := 1; turn <= i.maxToolTurns; turn++ {
		resp, err := i.backend.GenerateContent(ctx, req.Model, contents, config)
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return resp.Text(), nil
		}

		i.logger.Debug("model requested tools", "model", req.Model, "turn", turn, "calls", len(calls))
		contents = append(contents, resp.Candidates[0].Content)

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			part, err := i.callTool(ctx, tools, call)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	return "", fmt.Errorf("%w (%d turns)", ErrToolLoopExhausted, i.maxToolTurns)
}

func (i *Invoker) callTool(ctx context.Context, tools map[string]Tool, call *genai.FunctionCall) (*genai.Part, error) {
	tool, ok := tools[call.Name]
	if !ok {
		return nil, &ToolError{Tool: call.Name, Err: fmt.Errorf("tool is not declared")}
	}
	i.logger.Debug("calling tool", "tool", call.Name)
	result, err := tool.Call(ctx, call.Args)
	if err != nil {
		return nil, &ToolError{Tool: call.Name, Err: err}
	}

	// Function responses must be JSON objects; round-trip typed results so
	// struct tags decide the field names the model sees.
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, &ToolError{Tool: call.Name, Err: fmt.Errorf("failed to encode result: %w", err)}
	}
	var output any
	if err := json.Unmarshal(encoded, &output); err != nil {
		return nil, &ToolError{Tool: call.Name, Err: fmt.Errorf("failed to encode result: %w", err)}
	}

	part := genai.NewPartFromFunctionResponse(call.Name, map[string]any{"output": output})
	part.FunctionResponse.ID = call.ID
	return part, nil
}

// Speech generates spoken audio and returns it wrapped in a WAV container.
func (i *Invoker) Speech(ctx context.Context, req SpeechRequest) (*Media, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
	}
	if req.Voice != "" {
		config.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		}
	}

	resp, err := i.backend.GenerateContent(ctx, req.Model, []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}

	blob := firstInline(resp, "audio/")
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrNoMedia
	}
	wav, err := media.WAV(blob.Data, media.PCMFromMIME(blob.MIMEType))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap audio: %w", err)
	}
	return &Media{MIMEType: "audio/wav", Data: wav}, nil
}

// Image generates a single image.
func (i *Invoker) Image(ctx context.Context, req ImageRequest) (*Media, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
	}
	resp, err := i.backend.GenerateContent(ctx, req.Model, []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	blob := firstInline(resp, "image/")
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrNoMedia
	}
	return &Media{MIMEType: blob.MIMEType, Data: blob.Data}, nil
}

func firstInline(resp *genai.GenerateContentResponse, prefix string) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if mt := part.InlineData.MIMEType; mt == "" || strings.HasPrefix(mt, prefix) {
				return part.InlineData
			}
		}
	}
	return nil
}
