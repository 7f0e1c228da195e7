package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleet-assist/backend/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/genai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend replays scripted responses and records every request.
type fakeBackend struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	requests  [][]*genai.Content
	configs   []*genai.GenerateContentConfig

	startOp   *genai.GenerateVideosOperation
	startErr  error
	polls     []*genai.GenerateVideosOperation
	pollCalls int

	download     []byte
	downloadType string
	downloadURIs []string
}

func (f *fakeBackend) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, append([]*genai.Content(nil), contents...))
	f.configs = append(f.configs, config)
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeBackend) GenerateVideos(context.Context, string, string, *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return f.startOp, f.startErr
}

func (f *fakeBackend) GetVideosOperation(context.Context, *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if len(f.polls) == 0 {
		return &genai.GenerateVideosOperation{Name: "operations/pending"}, nil
	}
	op := f.polls[0]
	f.polls = f.polls[1:]
	return op, nil
}

func (f *fakeBackend) Download(_ context.Context, uri string) ([]byte, string, error) {
	f.downloadURIs = append(f.downloadURIs, uri)
	return f.download, f.downloadType, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromFunctionCall(name, args),
		}, genai.RoleModel),
	}}}
}

func inlineResponse(mimeType string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleModel),
	}}}
}

func crewTool(calls *int, fail error) Tool {
	return Tool{
		Declaration: &genai.FunctionDeclaration{Name: "getAvailableCrew", Description: "List unassigned crew"},
		Call: func(context.Context, map[string]any) (any, error) {
			*calls++
			if fail != nil {
				return nil, fail
			}
			return []map[string]string{{"name": "Ana Ruiz", "rank": "Captain"}}, nil
		},
	}
}

func TestText_JSONModeWithoutTools(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse(`{"ok":true}`)}}
	inv := NewInvoker(backend)

	schema := &genai.Schema{Type: genai.TypeObject}
	out, err := inv.Text(context.Background(), TextRequest{Model: "m", System: "be brief", Prompt: "hi", ResponseSchema: schema})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, backend.configs, 1)
	assert.Equal(t, "application/json", backend.configs[0].ResponseMIMEType)
	assert.Same(t, schema, backend.configs[0].ResponseSchema)
	assert.Equal(t, "be brief", backend.configs[0].SystemInstruction.Parts[0].Text)
	assert.Empty(t, backend.configs[0].Tools)
}

func TestText_ToolLoopFeedsResultBack(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		callResponse("getAvailableCrew", nil),
		textResponse(`{"suggestedCrew":["Ana Ruiz"]}`),
	}}
	inv := NewInvoker(backend)

	calls := 0
	out, err := inv.Text(context.Background(), TextRequest{
		Model:  "m",
		Prompt: "assign crew",
		Tools:  []Tool{crewTool(&calls, nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"suggestedCrew":["Ana Ruiz"]}`, out)
	assert.Equal(t, 1, calls)

	require.Len(t, backend.requests, 2)
	second := backend.requests[1]
	require.Len(t, second, 3)
	assert.Equal(t, "model", second[1].Role)
	resp := second[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "getAvailableCrew", resp.Name)
	assert.Equal(t, []any{map[string]any{"name": "Ana Ruiz", "rank": "Captain"}}, resp.Response["output"])

	assert.Len(t, backend.configs[0].Tools, 1)
	assert.Empty(t, backend.configs[0].ResponseMIMEType)
}

func TestText_ToolFailure(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{callResponse("getAvailableCrew", nil)}}
	inv := NewInvoker(backend)

	calls := 0
	_, err := inv.Text(context.Background(), TextRequest{Prompt: "p", Tools: []Tool{crewTool(&calls, errors.New("db down"))}})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "getAvailableCrew", toolErr.Tool)
	assert.EqualError(t, toolErr.Err, "db down")
}

func TestText_UndeclaredTool(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{callResponse("dropTables", nil)}}
	_, err := NewInvoker(backend).Text(context.Background(), TextRequest{Prompt: "p"})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "dropTables", toolErr.Tool)
}

func TestText_ToolLoopCap(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		callResponse("getAvailableCrew", nil),
		callResponse("getAvailableCrew", nil),
		callResponse("getAvailableCrew", nil),
	}}
	inv := NewInvoker(backend, WithMaxToolTurns(2))

	calls := 0
	_, err := inv.Text(context.Background(), TextRequest{Prompt: "p", Tools: []Tool{crewTool(&calls, nil)}})
	assert.ErrorIs(t, err, ErrToolLoopExhausted)
	assert.Len(t, backend.requests, 2)
	assert.Equal(t, 2, calls)
}

func TestText_BackendError(t *testing.T) {
	_, err := NewInvoker(&fakeBackend{}).Text(context.Background(), TextRequest{Prompt: "p"})
	assert.ErrorContains(t, err, "failed to generate content")
}

func TestSpeech_WrapsPCM(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{
		inlineResponse("audio/L16;codec=pcm;rate=24000", pcm),
	}}

	out, err := NewInvoker(backend).Speech(context.Background(), SpeechRequest{Model: "tts", Prompt: "Yo ho", Voice: "Algenib"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", out.MIMEType)

	header, err := media.ParseWAVHeader(out.Data)
	require.NoError(t, err)
	assert.Equal(t, media.PCM{Channels: 1, SampleRate: 24000, BitDepth: 16}, header.PCM)
	assert.Equal(t, len(pcm), header.DataSize)
	assert.Contains(t, out.DataURI(), "data:audio/wav;base64,")

	cfg := backend.configs[0]
	assert.Equal(t, []string{"AUDIO"}, cfg.ResponseModalities)
	assert.Equal(t, "Algenib", cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestSpeech_NoAudio(t *testing.T) {
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("I cannot sing")}}
	_, err := NewInvoker(backend).Speech(context.Background(), SpeechRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n")
	backend := &fakeBackend{responses: []*genai.GenerateContentResponse{{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Here is your vessel"),
			genai.NewPartFromBytes(png, "image/png"),
		}, genai.RoleModel)}},
	}}}

	out, err := NewInvoker(backend).Image(context.Background(), ImageRequest{Prompt: "a tanker at dawn"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, png, out.Data)

	_, err = NewInvoker(&fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("no")}}).
		Image(context.Background(), ImageRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func doneVideo(uri string) *genai.GenerateVideosOperation {
	return &genai.GenerateVideosOperation{
		Name: "operations/v1",
		Done: true,
		Response: &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{{
			Video: &genai.Video{URI: uri},
		}}},
	}
}

func TestVideo_PollsUntilDone(t *testing.T) {
	backend := &fakeBackend{
		startOp: &genai.GenerateVideosOperation{Name: "operations/v1"},
		polls: []*genai.GenerateVideosOperation{
			{Name: "operations/v1"},
			doneVideo("https://files.example/v1.mp4"),
		},
		download:     []byte("mp4-bytes"),
		downloadType: "video/mp4",
	}
	inv := NewInvoker(backend, WithPollInterval(time.Millisecond))

	op, cycles, err := inv.awaitOperation(context.Background(), backend.startOp)
	require.NoError(t, err)
	assert.True(t, op.Done)
	assert.Equal(t, 2, cycles)
	assert.Equal(t, 2, backend.pollCalls)
}

func TestVideo_DownloadsResult(t *testing.T) {
	backend := &fakeBackend{
		startOp:      &genai.GenerateVideosOperation{Name: "operations/v1"},
		polls:        []*genai.GenerateVideosOperation{{Name: "operations/v1"}, doneVideo("https://files.example/v1.mp4")},
		download:     []byte("mp4-bytes"),
		downloadType: "video/mp4",
	}
	inv := NewInvoker(backend, WithPollInterval(time.Millisecond))

	out, err := inv.Video(context.Background(), VideoRequest{Model: "veo", Prompt: "a ship"})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", out.MIMEType)
	assert.Equal(t, []byte("mp4-bytes"), out.Data)
	assert.Equal(t, []string{"https://files.example/v1.mp4"}, backend.downloadURIs)
}

func TestVideo_InlineBytes(t *testing.T) {
	op := doneVideo("")
	op.Response.GeneratedVideos[0].Video.VideoBytes = []byte("inline")
	backend := &fakeBackend{startOp: op}

	out, err := NewInvoker(backend).Video(context.Background(), VideoRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), out.Data)
	assert.Zero(t, backend.pollCalls)
}

func TestVideo_OperationError(t *testing.T) {
	backend := &fakeBackend{startOp: &genai.GenerateVideosOperation{
		Done:  true,
		Error: map[string]any{"message": "quota exhausted"},
	}}
	_, err := NewInvoker(backend).Video(context.Background(), VideoRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorContains(t, err, "quota exhausted")
}

func TestVideo_NoMedia(t *testing.T) {
	backend := &fakeBackend{startOp: &genai.GenerateVideosOperation{Done: true, Response: &genai.GenerateVideosResponse{}}}
	_, err := NewInvoker(backend).Video(context.Background(), VideoRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestVideo_OperationVanishes(t *testing.T) {
	backend := &fakeBackend{
		startOp: &genai.GenerateVideosOperation{Name: "operations/v1"},
		polls:   []*genai.GenerateVideosOperation{nil},
	}
	inv := NewInvoker(backend, WithPollInterval(time.Millisecond))

	_, err := inv.Video(context.Background(), VideoRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoMedia)
	assert.ErrorContains(t, err, "operations/v1")
	assert.Equal(t, 1, backend.pollCalls)
}

func TestVideo_Cancelled(t *testing.T) {
	backend := &fakeBackend{startOp: &genai.GenerateVideosOperation{Name: "operations/slow"}}
	inv := NewInvoker(backend, WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := inv.Video(ctx, VideoRequest{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backend.pollCalls)
}

func TestVideo_MaxWait(t *testing.T) {
	backend := &fakeBackend{startOp: &genai.GenerateVideosOperation{Name: "operations/slow"}}
	inv := NewInvoker(backend, WithPollInterval(time.Millisecond), WithMaxWait(20*time.Millisecond))

	_, err := inv.Video(context.Background(), VideoRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrPollTimeout)
}
