package services

import (
	"context"
	"errors"
	"fmt"

	"fleet-assist/backend/internal/assistant"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
)

// ErrUnknownFlow is returned by RunFlow for a name that is not registered.
var ErrUnknownFlow = errors.New("unknown flow")

// FlowInfo describes a registered flow to API and MCP clients.
type FlowInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Modality     flow.Modality  `json:"modality"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
}

// AssistantService runs the fleet assistant flows on behalf of a tenant.
type AssistantService struct {
	registry *flow.Registry
	flows    *assistant.Flows
	logger   *logging.Logger
}

// NewAssistantService creates a new AssistantService.
func NewAssistantService(registry *flow.Registry, flows *assistant.Flows, logger *logging.Logger) *AssistantService {
	return &AssistantService{registry: registry, flows: flows, logger: logger}
}

// Flows lists every registered flow.
func (s *AssistantService) Flows() []FlowInfo {
	list := s.registry.List()
	out := make([]FlowInfo, 0, len(list))
	for _, f := range list {
		out = append(out, FlowInfo{
			Name:         f.Name(),
			Description:  f.Description(),
			Modality:     f.Modality(),
			InputSchema:  f.InputSchema().JSONSchema(),
			OutputSchema: f.OutputSchema().JSONSchema(),
		})
	}
	return out
}

// RunFlow runs a flow by name with an untyped input object.
func (s *AssistantService) RunFlow(ctx context.Context, env flow.Env, name string, input map[string]any) (map[string]any, error) {
	f, ok := s.registry.Get(name)
	if !ok {
		s.logger.Warn("unknown flow requested", "flow", name, "tenant", env.TenantID)
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return f.Run(ctx, env, input)
}

// SuggestRoute suggests a voyage route.
func (s *AssistantService) SuggestRoute(ctx context.Context, env flow.Env, req assistant.RouteRequest) (assistant.RouteSuggestion, error) {
	return s.flows.SuggestRoute.Run(ctx, env, req)
}

// AllocateCrew suggests a crew from the tenant's available crew.
func (s *AssistantService) AllocateCrew(ctx context.Context, env flow.Env, req assistant.CrewRequest) (assistant.CrewAllocation, error) {
	return s.flows.AllocateCrew.Run(ctx, env, req)
}

// PredictMaintenance forecasts component failures.
func (s *AssistantService) PredictMaintenance(ctx context.Context, env flow.Env, req assistant.MaintenanceRequest) (assistant.MaintenanceForecast, error) {
	return s.flows.PredictMaintenance.Run(ctx, env, req)
}

// AnalyzeSafetyReport grades an incident report.
func (s *AssistantService) AnalyzeSafetyReport(ctx context.Context, env flow.Env, req assistant.SafetyReportRequest) (assistant.SafetyAnalysis, error) {
	return s.flows.AnalyzeSafetyReport.Run(ctx, env, req)
}

// ComposeSeaShanty writes a shanty.
func (s *AssistantService) ComposeSeaShanty(ctx context.Context, env flow.Env, req assistant.ShantyRequest) (assistant.Shanty, error) {
	return s.flows.ComposeSeaShanty.Run(ctx, env, req)
}

// SingSeaShanty performs shanty lyrics as audio.
func (s *AssistantService) SingSeaShanty(ctx context.Context, env flow.Env, req assistant.SingRequest) (assistant.ShantyAudio, error) {
	return s.flows.SingSeaShanty.Run(ctx, env, req)
}

// RenderVesselImage illustrates a vessel.
func (s *AssistantService) RenderVesselImage(ctx context.Context, env flow.Env, req assistant.VesselImageRequest) (assistant.VesselImage, error) {
	return s.flows.RenderVesselImage.Run(ctx, env, req)
}

// FilmSeaShanty generates a shanty video.
func (s *AssistantService) FilmSeaShanty(ctx context.Context, env flow.Env, req assistant.ShantyVideoRequest) (assistant.ShantyVideo, error) {
	return s.flows.FilmSeaShanty.Run(ctx, env, req)
}
