package flow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"fleet-assist/backend/internal/model"
	"fleet-assist/backend/internal/schema"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeInvoker struct {
	mu         sync.Mutex
	textCalls  int
	mediaCalls int
	lastText   model.TextRequest
	lastPrompt string
	lastModel  string

	text  func(ctx context.Context, req model.TextRequest) (string, error)
	media *model.Media
	err   error
}

func (f *fakeInvoker) Text(ctx context.Context, req model.TextRequest) (string, error) {
	f.mu.Lock()
	f.textCalls++
	f.lastText = req
	f.lastPrompt = req.Prompt
	f.lastModel = req.Model
	f.mu.Unlock()
	if f.text == nil {
		return "", f.err
	}
	return f.text(ctx, req)
}

func (f *fakeInvoker) recordMedia(prompt, modelName string) (*model.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaCalls++
	f.lastPrompt = prompt
	f.lastModel = modelName
	return f.media, f.err
}

func (f *fakeInvoker) Speech(_ context.Context, req model.SpeechRequest) (*model.Media, error) {
	return f.recordMedia(req.Prompt, req.Model)
}

func (f *fakeInvoker) Image(_ context.Context, req model.ImageRequest) (*model.Media, error) {
	return f.recordMedia(req.Prompt, req.Model)
}

func (f *fakeInvoker) Video(_ context.Context, req model.VideoRequest) (*model.Media, error) {
	return f.recordMedia(req.Prompt, req.Model)
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls + f.mediaCalls
}

func answer(s string) func(context.Context, model.TextRequest) (string, error) {
	return func(context.Context, model.TextRequest) (string, error) { return s, nil }
}

func routeDefinition() Definition {
	return Definition{
		Name:     "suggestRoute",
		Modality: ModalityText,
		Model:    "text-model",
		Prompt:   "Suggest a route from {{ .startPort }} to {{ .endPort }} for a {{ .vesselType }}.",
		Input: schema.Of(
			schema.String("startPort").Required(),
			schema.String("endPort").Required(),
			schema.String("vesselType").Required(),
		),
		Output: schema.Of(
			schema.String("suggestedRoute").Required(),
			schema.String("reasoning").Required(),
			schema.String("estimatedDuration").Required(),
			schema.String("potentialRisks").Required(),
		),
	}
}

func newFlow(t *testing.T, def Definition, inv Invoker) *Flow {
	t.Helper()
	f, err := New(def, inv)
	require.NoError(t, err)
	return f
}

func TestExecute_SuggestRoute(t *testing.T) {
	inv := &fakeInvoker{text: answer(`{
		"suggestedRoute": "Shanghai - Singapore - Suez Canal - Rotterdam",
		"reasoning": "Shortest commercially viable path.",
		"estimatedDuration": "30 days",
		"potentialRisks": "Congestion at Suez."
	}`)}
	f := newFlow(t, routeDefinition(), inv)

	got := f.Execute(context.Background(), Env{TenantID: "acme"}, map[string]any{
		"startPort":  "Port of Shanghai",
		"endPort":    "Port of Rotterdam",
		"vesselType": "Container Ship",
	})

	require.NoError(t, got.Err)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, []State{StateIdle, StateValidating, StateRendering, StateInvoking, StateCoercing, StateSucceeded}, got.History)
	assert.Equal(t, "acme", got.TenantID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Suggest a route from Port of Shanghai to Port of Rotterdam for a Container Ship.", got.Prompt)
	for _, key := range []string{"suggestedRoute", "reasoning", "estimatedDuration", "potentialRisks"} {
		value, ok := got.Output[key].(string)
		assert.True(t, ok, key)
		assert.NotEmpty(t, value, key)
	}
	assert.NotNil(t, inv.lastText.ResponseSchema)
	assert.Empty(t, inv.lastText.Tools)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestExecute_ModelOverride(t *testing.T) {
	inv := &fakeInvoker{text: answer(`{"suggestedRoute":"a","reasoning":"b","estimatedDuration":"c","potentialRisks":"d"}`)}
	f := newFlow(t, routeDefinition(), inv)

	_, err := f.Run(context.Background(), Env{Model: "other-model"}, map[string]any{
		"startPort": "A", "endPort": "B", "vesselType": "Tanker",
	})

	require.NoError(t, err)
	assert.Equal(t, "other-model", inv.lastModel)
}

type crewRecord struct {
	Name string   `json:"name"`
	Role string   `json:"role"`
	Tags []string `json:"tags"`
}

func crewDefinition(handler ToolHandler) Definition {
	return Definition{
		Name:     "allocateCrew",
		Modality: ModalityText,
		Model:    "text-model",
		Prompt:   "Crew the {{ .vessel }} for {{ .route }}. Requirements: {{ join \", \" .vesselRequirements }}.",
		Input: schema.Of(
			schema.String("route").Required(),
			schema.String("vessel").Required(),
			schema.Array("vesselRequirements", schema.String("")).Required(),
		),
		Output: schema.Of(
			schema.Array("suggestedCrew", schema.String("")).Required(),
			schema.String("reasoning").Required(),
		),
		Tools: []Tool{{
			Name:        "getAvailableCrew",
			Description: "Lists crew members that are active and not assigned to a vessel.",
			Output: schema.ListOf(schema.Object("",
				schema.String("name").Required(),
				schema.String("role").Required(),
			)),
			Handler: handler,
		}},
	}
}

// toolCallingModel calls the first declared tool and answers with every crew
// name the tool returned.
func toolCallingModel(ctx context.Context, req model.TextRequest) (string, error) {
	tool := req.Tools[0]
	result, err := tool.Call(ctx, map[string]any{})
	if err != nil {
		return "", &model.ToolError{Tool: tool.Declaration.Name, Err: err}
	}
	var names []string
	for _, rec := range result.([]any) {
		names = append(names, rec.(map[string]any)["name"].(string))
	}
	encoded, _ := json.Marshal(map[string]any{
		"suggestedCrew": names,
		"reasoning":     "Both are available and qualified.",
	})
	return string(encoded), nil
}

func TestExecute_ToolAugmented(t *testing.T) {
	var seenTenant string
	handler := func(_ context.Context, env Env, _ map[string]any) (any, error) {
		seenTenant = env.TenantID
		return []crewRecord{
			{Name: "Ana Silva", Role: "Captain", Tags: []string{"A"}},
			{Name: "Li Wei", Role: "Engineer", Tags: []string{"B"}},
		}, nil
	}
	inv := &fakeInvoker{text: toolCallingModel}
	f := newFlow(t, crewDefinition(handler), inv)

	got := f.Execute(context.Background(), Env{TenantID: "acme"}, map[string]any{
		"route": "X", "vessel": "Y", "vesselRequirements": []any{"A", "B"},
	})

	require.NoError(t, got.Err)
	assert.Equal(t, "acme", seenTenant)
	assert.Equal(t, []string{"getAvailableCrew"}, got.ToolCalls)
	assert.Equal(t, "Crew the Y for X. Requirements: A, B.", got.Prompt)
	assert.Equal(t, []State{
		StateIdle, StateValidating, StateRendering, StateInvoking,
		StateToolCall, StateInvoking, StateCoercing, StateSucceeded,
	}, got.History)

	available := map[string]bool{"Ana Silva": true, "Li Wei": true}
	crew := got.Output["suggestedCrew"].([]any)
	require.NotEmpty(t, crew)
	for _, name := range crew {
		assert.True(t, available[name.(string)], "unexpected crew member %v", name)
	}

	require.Len(t, inv.lastText.Tools, 1)
	assert.Equal(t, "getAvailableCrew", inv.lastText.Tools[0].Declaration.Name)
	assert.Nil(t, inv.lastText.Tools[0].Declaration.Parameters)
}

func TestExecute_OutputCheckSeesToolResults(t *testing.T) {
	handler := func(context.Context, Env, map[string]any) (any, error) {
		return []crewRecord{{Name: "Ana Silva", Role: "Captain"}}, nil
	}
	var seen []ToolResult
	def := crewDefinition(handler)
	def.Check = func(out map[string]any, tools []ToolResult) error {
		seen = tools
		return errors.New("crew was not offered")
	}
	f := newFlow(t, def, &fakeInvoker{text: toolCallingModel})

	got := f.Execute(context.Background(), Env{}, map[string]any{
		"route": "X", "vessel": "Y", "vesselRequirements": []any{"A"},
	})

	assert.Equal(t, KindMalformedOutput, KindOf(got.Err))
	assert.Equal(t, StateCoercing, got.Err.(*Error).Stage)
	assert.Nil(t, got.Output)
	require.Len(t, seen, 1)
	assert.Equal(t, "getAvailableCrew", seen[0].Name)
	assert.Equal(t, []any{map[string]any{"name": "Ana Silva", "role": "Captain", "tags": nil}}, seen[0].Output)
}

func TestExecute_ToolFailure(t *testing.T) {
	handler := func(context.Context, Env, map[string]any) (any, error) {
		return nil, errors.New("connection refused")
	}
	f := newFlow(t, crewDefinition(handler), &fakeInvoker{text: toolCallingModel})

	got := f.Execute(context.Background(), Env{}, map[string]any{
		"route": "X", "vessel": "Y", "vesselRequirements": []any{},
	})

	assert.Equal(t, KindToolExecution, KindOf(got.Err))
	assert.Equal(t, StateFailed, got.State)
	assert.Nil(t, got.Output)
	assert.ErrorContains(t, got.Err, "connection refused")
}

func TestExecute_ToolResultViolatesSchema(t *testing.T) {
	handler := func(context.Context, Env, map[string]any) (any, error) {
		return []map[string]any{{"name": "Ana Silva"}}, nil
	}
	f := newFlow(t, crewDefinition(handler), &fakeInvoker{text: toolCallingModel})

	_, err := f.Run(context.Background(), Env{}, map[string]any{
		"route": "X", "vessel": "Y", "vesselRequirements": []any{"A"},
	})

	assert.Equal(t, KindToolExecution, KindOf(err))
	assert.ErrorContains(t, err, "[0].role")
}

func TestExecute_ToolArgumentsValidated(t *testing.T) {
	def := crewDefinition(func(context.Context, Env, map[string]any) (any, error) {
		t.Fatal("handler must not run with invalid arguments")
		return nil, nil
	})
	def.Tools[0].Input = schema.Of(schema.String("role").Required())
	f := newFlow(t, def, &fakeInvoker{text: toolCallingModel})

	_, err := f.Run(context.Background(), Env{}, map[string]any{
		"route": "X", "vessel": "Y", "vesselRequirements": []any{"A"},
	})

	assert.Equal(t, KindToolExecution, KindOf(err))
	assert.ErrorContains(t, err, "invalid arguments")
}

func safetyDefinition() Definition {
	return Definition{
		Name:     "analyzeSafetyReport",
		Modality: ModalityText,
		Model:    "text-model",
		Prompt:   "Analyze: {{ .reportText }}{{ if .vesselName }} aboard {{ .vesselName }}{{ end }}",
		Input: schema.Of(
			schema.String("reportText").Required().Min(50),
			schema.String("vesselName"),
		),
		Output: schema.Of(schema.String("summary").Required()),
	}
}

func TestExecute_ShortReportRejectedBeforeModel(t *testing.T) {
	inv := &fakeInvoker{text: answer(`{"summary":"x"}`)}
	f := newFlow(t, safetyDefinition(), inv)

	got := f.Execute(context.Background(), Env{}, map[string]any{"reportText": "Slipped on deck."})

	require.Error(t, got.Err)
	assert.Equal(t, KindValidation, KindOf(got.Err))
	assert.Equal(t, 0, inv.calls())
	assert.Equal(t, StateFailed, got.State)
	assert.Empty(t, got.Prompt)

	var fe *Error
	require.ErrorAs(t, got.Err, &fe)
	assert.Equal(t, StateValidating, fe.Stage)
	require.Len(t, fe.Violations, 1)
	assert.Equal(t, "reportText", fe.Violations[0].Path)
}

func TestExecute_OptionalFieldOmitted(t *testing.T) {
	inv := &fakeInvoker{text: answer(`{"summary":"x"}`)}
	f := newFlow(t, safetyDefinition(), inv)
	report := strings.Repeat("Rope frayed on the forward winch. ", 3)

	_, err := f.Run(context.Background(), Env{}, map[string]any{"reportText": report})

	require.NoError(t, err)
	assert.Equal(t, "Analyze: "+report, inv.lastPrompt)
}

func TestExecute_ValidationListsEveryField(t *testing.T) {
	inv := &fakeInvoker{}
	f := newFlow(t, routeDefinition(), inv)

	_, err := f.Run(context.Background(), Env{}, map[string]any{"startPort": 7})

	var fe *Error
	require.ErrorAs(t, err, &fe)
	var paths []string
	for _, v := range fe.Violations {
		paths = append(paths, v.Path)
	}
	assert.ElementsMatch(t, []string{"startPort", "endPort", "vesselType"}, paths)
	assert.Equal(t, 0, inv.calls())
}

func TestExecute_MalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Sure! Here is your route."},
		{"missing field", `{"suggestedRoute":"a","reasoning":"b","estimatedDuration":"c"}`},
		{"wrong type", `{"suggestedRoute":"a","reasoning":"b","estimatedDuration":3,"potentialRisks":"d"}`},
		{"array", `[{"suggestedRoute":"a"}]`},
		{"empty", "  "},
		{"trailing text", `{"suggestedRoute":"a","reasoning":"b","estimatedDuration":"c","potentialRisks":"d"} done`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlow(t, routeDefinition(), &fakeInvoker{text: answer(tt.raw)})

			got := f.Execute(context.Background(), Env{}, map[string]any{
				"startPort": "A", "endPort": "B", "vesselType": "Tug",
			})

			assert.Equal(t, KindMalformedOutput, KindOf(got.Err))
			assert.Nil(t, got.Output)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestExecute_ModelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"endpoint error", errors.New("503 unavailable"), KindModel},
		{"operation failed", model.ErrOperationFailed, KindModel},
		{"loop exhausted", model.ErrToolLoopExhausted, KindModel},
		{"no media", model.ErrNoMedia, KindNoMedia},
		{"cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"tool", &model.ToolError{Tool: "t", Err: errors.New("boom")}, KindToolExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlow(t, routeDefinition(), &fakeInvoker{err: tt.err})

			_, err := f.Run(context.Background(), Env{}, map[string]any{
				"startPort": "A", "endPort": "B", "vesselType": "Tug",
			})

			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestExecute_CancelledBeforeInvoke(t *testing.T) {
	inv := &fakeInvoker{}
	f := newFlow(t, routeDefinition(), inv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Run(ctx, Env{}, map[string]any{"startPort": "A", "endPort": "B", "vesselType": "Tug"})

	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 0, inv.calls())
}

func imageDefinition() Definition {
	return Definition{
		Name:       "renderVesselImage",
		Modality:   ModalityImage,
		Model:      "image-model",
		Prompt:     "A photo of the {{ .vesselName }}",
		Input:      schema.Of(schema.String("vesselName").Required()),
		Output:     schema.Of(schema.String("imageDataUri").Required()),
		MediaField: "imageDataUri",
	}
}

func TestExecute_MediaFlow(t *testing.T) {
	inv := &fakeInvoker{media: &model.Media{MIMEType: "image/png", Data: []byte{1, 2, 3}}}
	f := newFlow(t, imageDefinition(), inv)

	out, err := f.Run(context.Background(), Env{}, map[string]any{"vesselName": "Aurora"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"imageDataUri": "data:image/png;base64,AQID"}, out)
	assert.Equal(t, "A photo of the Aurora", inv.lastPrompt)
	assert.Equal(t, "image-model", inv.lastModel)
}

func TestExecute_MediaFlowWithoutMedia(t *testing.T) {
	for _, m := range []*model.Media{nil, {MIMEType: "image/png"}} {
		f := newFlow(t, imageDefinition(), &fakeInvoker{media: m})

		got := f.Execute(context.Background(), Env{}, map[string]any{"vesselName": "Aurora"})

		assert.Equal(t, KindNoMedia, KindOf(got.Err))
		assert.Nil(t, got.Output)
	}
}

func TestNew_RejectsInvalidDefinitions(t *testing.T) {
	noop := func(context.Context, Env, map[string]any) (any, error) { return nil, nil }
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{"no name", func(d *Definition) { d.Name = "" }, "name is required"},
		{"no prompt", func(d *Definition) { d.Prompt = "" }, "prompt is required"},
		{"bad template", func(d *Definition) { d.Prompt = "{{ .startPort" }, "failed to parse prompt"},
		{"unknown modality", func(d *Definition) { d.Modality = "smell" }, "unknown modality"},
		{"media without field", func(d *Definition) { d.Modality = ModalityAudio }, "require a media field"},
		{"duplicate tools", func(d *Definition) {
			d.Tools = []Tool{{Name: "t", Handler: noop}, {Name: "t", Handler: noop}}
		}, "duplicate tool"},
		{"tool without handler", func(d *Definition) { d.Tools = []Tool{{Name: "t"}} }, "has no handler"},
		{"media with check", func(d *Definition) {
			d.Modality, d.MediaField = ModalityImage, "imageDataUri"
			d.Check = func(map[string]any, []ToolResult) error { return nil }
		}, "cannot declare an output check"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := routeDefinition()
			tt.mutate(&def)
			_, err := New(def, &fakeInvoker{})
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := New(routeDefinition(), nil)
	assert.Error(t, err)
}

func TestCoerce_RoundTrip(t *testing.T) {
	raw := `{"predictions":[{"component":"Main engine","risk":"high","timeframe":"2 weeks"}],"summary":"Service soon.","hours":1200.5}`
	out := schema.Of(
		schema.Array("predictions", schema.Object("",
			schema.String("component").Required(),
			schema.String("risk").Required().OneOf("low", "medium", "high"),
			schema.String("timeframe").Required(),
		)).Required(),
		schema.String("summary").Required(),
		schema.Number("hours"),
	)

	got, err := Coerce(raw, out)
	require.NoError(t, err)

	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Coerce() mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerce_StripsCodeFence(t *testing.T) {
	out := schema.Of(schema.String("title").Required())
	for _, raw := range []string{
		"```json\n{\"title\":\"Heave Away\"}\n```",
		"```\n{\"title\":\"Heave Away\"}\n```",
		"  {\"title\":\"Heave Away\"}  ",
	} {
		got, err := Coerce(raw, out)
		require.NoError(t, err, raw)
		assert.Equal(t, map[string]any{"title": "Heave Away"}, got)
	}
}

func TestCoerce_ReportsViolations(t *testing.T) {
	_, err := Coerce(`{"title": 5}`, schema.Of(schema.String("title").Required(), schema.String("lyrics").Required()))

	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{"title", "lyrics"}, ve.Paths())
}
