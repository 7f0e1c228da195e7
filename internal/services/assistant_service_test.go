package services

import (
	"context"
	"errors"
	"testing"

	"fleet-assist/backend/internal/assistant"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/model"
	"fleet-assist/backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedInvoker struct {
	text  string
	calls int
}

func (c *cannedInvoker) Text(context.Context, model.TextRequest) (string, error) {
	c.calls++
	return c.text, nil
}

func (c *cannedInvoker) Speech(context.Context, model.SpeechRequest) (*model.Media, error) {
	return nil, model.ErrNoMedia
}

func (c *cannedInvoker) Image(context.Context, model.ImageRequest) (*model.Media, error) {
	return &model.Media{MIMEType: "image/png", Data: []byte{1}}, nil
}

func (c *cannedInvoker) Video(context.Context, model.VideoRequest) (*model.Media, error) {
	return nil, errors.New("quota exceeded")
}

type noCrew struct{}

func (noCrew) ListAvailableCrew(context.Context, string) ([]models.CrewMember, error) {
	return nil, nil
}

func newAssistantService(t *testing.T, inv flow.Invoker) *AssistantService {
	t.Helper()
	reg := flow.NewRegistry()
	flows, err := assistant.Register(reg, inv, noCrew{}, assistant.Models{Text: "t", Speech: "s", Image: "i", Video: "v"})
	require.NoError(t, err)
	return NewAssistantService(reg, flows, logging.Nop())
}

func TestAssistantService_Flows(t *testing.T) {
	svc := newAssistantService(t, &cannedInvoker{})

	infos := svc.Flows()
	require.Len(t, infos, 8)
	assert.Equal(t, assistant.AllocateCrew, infos[0].Name)

	var safety FlowInfo
	for _, info := range infos {
		if info.Name == assistant.AnalyzeSafetyReport {
			safety = info
		}
	}
	assert.Equal(t, flow.ModalityText, safety.Modality)
	assert.Equal(t, []string{"reportText"}, safety.InputSchema["required"])
}

func TestAssistantService_RunFlow(t *testing.T) {
	inv := &cannedInvoker{text: `{"title":"Heave Away","lyrics":"Yo ho"}`}
	svc := newAssistantService(t, inv)

	out, err := svc.RunFlow(context.Background(), flow.Env{TenantID: "acme"}, assistant.ComposeSeaShanty, map[string]any{"vesselName": "Aurora"})
	require.NoError(t, err)
	assert.Equal(t, "Heave Away", out["title"])

	_, err = svc.RunFlow(context.Background(), flow.Env{}, "launchMissiles", nil)
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestAssistantService_TypedFlows(t *testing.T) {
	svc := newAssistantService(t, &cannedInvoker{})

	img, err := svc.RenderVesselImage(context.Background(), flow.Env{}, assistant.VesselImageRequest{VesselName: "Aurora", VesselType: "Tanker"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQ==", img.ImageDataURI)

	_, err = svc.SingSeaShanty(context.Background(), flow.Env{}, assistant.SingRequest{Lyrics: "Yo ho"})
	assert.Equal(t, flow.KindNoMedia, flow.KindOf(err))

	_, err = svc.FilmSeaShanty(context.Background(), flow.Env{}, assistant.ShantyVideoRequest{VesselName: "Aurora"})
	assert.Equal(t, flow.KindModel, flow.KindOf(err))
}
