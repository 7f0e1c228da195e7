// Package assistant declares the fleet operations flows: voyage routing,
// crew allocation, maintenance prediction, safety report analysis and the
// sea shanty media flows.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/schema"
	"fleet-assist/backend/pkg/models"
)

// Models selects the model behind each modality.
type Models struct {
	Text             string
	Speech           string
	Image            string
	Video            string
	Voice            string
	VideoAspectRatio string
}

// CrewSource lists the crew a tenant can roster.
type CrewSource interface {
	ListAvailableCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error)
}

// Flows holds typed handles to every registered flow.
type Flows struct {
	SuggestRoute        *flow.Typed[RouteRequest, RouteSuggestion]
	AllocateCrew        *flow.Typed[CrewRequest, CrewAllocation]
	PredictMaintenance  *flow.Typed[MaintenanceRequest, MaintenanceForecast]
	AnalyzeSafetyReport *flow.Typed[SafetyReportRequest, SafetyAnalysis]
	ComposeSeaShanty    *flow.Typed[ShantyRequest, Shanty]
	SingSeaShanty       *flow.Typed[SingRequest, ShantyAudio]
	RenderVesselImage   *flow.Typed[VesselImageRequest, VesselImage]
	FilmSeaShanty       *flow.Typed[ShantyVideoRequest, ShantyVideo]
}

// Register builds every assistant flow and adds it to reg.
func Register(reg *flow.Registry, invoker flow.Invoker, crew CrewSource, m Models, opts ...flow.Option) (*Flows, error) {
	if crew == nil {
		return nil, errors.New("crew source is required")
	}
	b := builder{reg: reg, invoker: invoker, opts: opts}
	flows := &Flows{
		SuggestRoute:        build[RouteRequest, RouteSuggestion](&b, suggestRouteDefinition(m)),
		AllocateCrew:        build[CrewRequest, CrewAllocation](&b, allocateCrewDefinition(m, crew)),
		PredictMaintenance:  build[MaintenanceRequest, MaintenanceForecast](&b, predictMaintenanceDefinition(m)),
		AnalyzeSafetyReport: build[SafetyReportRequest, SafetyAnalysis](&b, analyzeSafetyReportDefinition(m)),
		ComposeSeaShanty:    build[ShantyRequest, Shanty](&b, composeSeaShantyDefinition(m)),
		SingSeaShanty:       build[SingRequest, ShantyAudio](&b, singSeaShantyDefinition(m)),
		RenderVesselImage:   build[VesselImageRequest, VesselImage](&b, renderVesselImageDefinition(m)),
		FilmSeaShanty:       build[ShantyVideoRequest, ShantyVideo](&b, filmSeaShantyDefinition(m)),
	}
	if b.err != nil {
		return nil, b.err
	}
	return flows, nil
}

type builder struct {
	reg     *flow.Registry
	invoker flow.Invoker
	opts    []flow.Option
	err     error
}

func build[In, Out any](b *builder, def flow.Definition) *flow.Typed[In, Out] {
	if b.err != nil {
		return nil
	}
	f, err := flow.New(def, b.invoker, b.opts...)
	if err != nil {
		b.err = err
		return nil
	}
	if err := b.reg.Register(f); err != nil {
		b.err = err
		return nil
	}
	return flow.NewTyped[In, Out](f)
}

func availableCrewTool(src CrewSource) flow.Tool {
	return flow.Tool{
		Name:        getAvailableCrew,
		Description: "Lists the crew members who are active and not currently assigned to a vessel.",
		Output: schema.ListOf(schema.Object("",
			schema.String("name").Required(),
			schema.String("role").Required(),
			schema.Array("certifications", schema.String("")),
		)),
		Handler: func(ctx context.Context, env flow.Env, _ map[string]any) (any, error) {
			crew, err := src.ListAvailableCrew(ctx, env.TenantID)
			if err != nil {
				return nil, fmt.Errorf("failed to list available crew: %w", err)
			}
			out := make([]AvailableCrew, 0, len(crew))
			for _, c := range crew {
				if !c.Available() {
					continue
				}
				out = append(out, AvailableCrew{Name: c.Name, Role: c.Role, Certifications: c.Certifications})
			}
			return out, nil
		},
	}
}

// onlyOfferedCrew rejects a suggestion naming anyone the crew tool did not
// return during the invocation.
func onlyOfferedCrew(out map[string]any, tools []flow.ToolResult) error {
	offered := map[string]bool{}
	for _, res := range tools {
		if res.Name != getAvailableCrew {
			continue
		}
		records, _ := res.Output.([]any)
		for _, rec := range records {
			if m, ok := rec.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					offered[name] = true
				}
			}
		}
	}

	suggested, _ := out["suggestedCrew"].([]any)
	var unknown []string
	for _, v := range suggested {
		if name, _ := v.(string); !offered[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("suggested crew not offered by %s: %s", getAvailableCrew, strings.Join(unknown, ", "))
	}
	return nil
}
