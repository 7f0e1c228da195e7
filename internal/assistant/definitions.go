package assistant

import (
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/schema"
)

// Flow names, as exposed over REST and MCP.
const (
	SuggestRoute        = "suggestRoute"
	AllocateCrew        = "allocateCrew"
	PredictMaintenance  = "predictMaintenance"
	AnalyzeSafetyReport = "analyzeSafetyReport"
	ComposeSeaShanty    = "composeSeaShanty"
	SingSeaShanty       = "singSeaShanty"
	RenderVesselImage   = "renderVesselImage"
	FilmSeaShanty       = "filmSeaShanty"

	getAvailableCrew = "getAvailableCrew"
)

// MinReportLength is the shortest safety report accepted for analysis.
const MinReportLength = 50

const systemInstruction = "You are an operations assistant for a maritime fleet. " +
	"Answer with practical, specific guidance a ship manager can act on."

func suggestRouteDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        SuggestRoute,
		Description: "Suggests an optimal voyage route between two ports for a vessel type.",
		Modality:    flow.ModalityText,
		Model:       m.Text,
		System:      systemInstruction,
		Prompt: `Suggest the best route from {{ .startPort }} to {{ .endPort }} for a {{ .vesselType }}.
Consider weather patterns, canal and strait restrictions, piracy risk and fuel efficiency.
Give the route as a sequence of waypoints, explain your reasoning, estimate the voyage duration
and list the main risks.`,
		Input: schema.Of(
			schema.String("startPort").Required().Min(1).Describe("Departure port"),
			schema.String("endPort").Required().Min(1).Describe("Destination port"),
			schema.String("vesselType").Required().Min(1).Describe("Type of vessel, e.g. Container Ship"),
		),
		Output: schema.Of(
			schema.String("suggestedRoute").Required().Min(1).Describe("Waypoints of the suggested route"),
			schema.String("reasoning").Required().Min(1),
			schema.String("estimatedDuration").Required().Min(1),
			schema.String("potentialRisks").Required().Min(1),
		),
	}
}

func allocateCrewDefinition(m Models, crew CrewSource) flow.Definition {
	return flow.Definition{
		Name:        AllocateCrew,
		Description: "Suggests a crew for a voyage from the crew members currently available.",
		Modality:    flow.ModalityText,
		Model:       m.Text,
		System:      systemInstruction,
		Prompt: `Suggest a crew for the vessel {{ .vessel }} sailing {{ .route }}.
{{- if .vesselRequirements }}
The vessel requires: {{ join ", " .vesselRequirements }}.
{{- end }}
Call the getAvailableCrew tool to see who is available, and only choose people it returns.
Respond with only a JSON object of the form {"suggestedCrew": ["<name>", ...], "reasoning": "<why>"}.`,
		Input: schema.Of(
			schema.String("route").Required().Min(1),
			schema.String("vessel").Required().Min(1),
			schema.Array("vesselRequirements", schema.String("")).Required().Describe("Skills or certifications the voyage needs"),
		),
		Output: schema.Of(
			schema.Array("suggestedCrew", schema.String("")).Required().Describe("Names of the chosen crew members"),
			schema.String("reasoning").Required(),
		),
		Tools: []flow.Tool{availableCrewTool(crew)},
		Check: onlyOfferedCrew,
	}
}

func predictMaintenanceDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        PredictMaintenance,
		Description: "Predicts which vessel components are likely to need maintenance.",
		Modality:    flow.ModalityText,
		Model:       m.Text,
		System:      systemInstruction,
		Prompt: `Predict upcoming maintenance needs for the {{ .vesselType }} {{ .vesselName }}.
Engine hours: {{ .engineHours }}
Last service date: {{ .lastServiceDate }}
{{- if .maintenanceHistory }}
Maintenance history:
{{- range .maintenanceHistory }}
- {{ . }}
{{- end }}
{{- end }}
For each component at risk give the risk level (low, medium or high), a recommended action and a
timeframe, then summarise the overall condition of the vessel.`,
		Input: schema.Of(
			schema.String("vesselName").Required().Min(1),
			schema.String("vesselType").Required().Min(1),
			schema.Number("engineHours").Required(),
			schema.String("lastServiceDate").Required().Min(1),
			schema.Array("maintenanceHistory", schema.String("")),
		),
		Output: schema.Of(
			schema.Array("predictions", schema.Object("",
				schema.String("component").Required(),
				schema.String("risk").Required().OneOf(string(RiskLow), string(RiskMedium), string(RiskHigh)),
				schema.String("recommendedAction").Required(),
				schema.String("timeframe").Required(),
			)).Required(),
			schema.String("summary").Required(),
		),
	}
}

func analyzeSafetyReportDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        AnalyzeSafetyReport,
		Description: "Summarises a safety incident report and grades its severity.",
		Modality:    flow.ModalityText,
		Model:       m.Text,
		System:      systemInstruction,
		Prompt: `Analyze the following safety report{{ if .vesselName }} filed aboard {{ .vesselName }}{{ end }}.
Summarise it, grade its severity as low, medium, high or critical, list the key issues and
recommend corrective actions.

Report:
{{ .reportText }}`,
		Input: schema.Of(
			schema.String("reportText").Required().Min(MinReportLength).Describe("Free-text incident report"),
			schema.String("vesselName"),
		),
		Output: schema.Of(
			schema.String("summary").Required(),
			schema.String("severity").Required().OneOf("low", "medium", "high", "critical"),
			schema.Array("keyIssues", schema.String("")).Required(),
			schema.Array("recommendedActions", schema.String("")).Required(),
		),
	}
}

func composeSeaShantyDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        ComposeSeaShanty,
		Description: "Writes a sea shanty about a vessel and its crew.",
		Modality:    flow.ModalityText,
		Model:       m.Text,
		Prompt: `Write a rousing sea shanty about the vessel {{ .vesselName }}.
{{- if .theme }}
Theme: {{ .theme }}.
{{- end }}
{{- if .crewNames }}
Mention these crew members by name: {{ join ", " .crewNames }}.
{{- end }}
Use verses and a repeated chorus. Give the song a title.`,
		Input: schema.Of(
			schema.String("vesselName").Required().Min(1),
			schema.String("theme"),
			schema.Array("crewNames", schema.String("")),
		),
		Output: schema.Of(
			schema.String("title").Required().Min(1),
			schema.String("lyrics").Required().Min(1),
		),
	}
}

func singSeaShantyDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        SingSeaShanty,
		Description: "Performs shanty lyrics as spoken audio.",
		Modality:    flow.ModalityAudio,
		Model:       m.Speech,
		Voice:       m.Voice,
		Prompt:      "Sing this sea shanty with a hearty, rhythmic voice:\n{{ .lyrics }}",
		Input:       schema.Of(schema.String("lyrics").Required().Min(1)),
		Output:      schema.Of(schema.String("audioDataUri").Required()),
		MediaField:  "audioDataUri",
	}
}

func renderVesselImageDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        RenderVesselImage,
		Description: "Generates an illustration of a vessel.",
		Modality:    flow.ModalityImage,
		Model:       m.Image,
		Prompt: `A detailed, realistic illustration of the {{ .vesselType }} {{ .vesselName }}
{{- if .scene }}, {{ .scene }}{{ else }} at sea{{ end }}.`,
		Input: schema.Of(
			schema.String("vesselName").Required().Min(1),
			schema.String("vesselType").Required().Min(1),
			schema.String("scene"),
		),
		Output:     schema.Of(schema.String("imageDataUri").Required()),
		MediaField: "imageDataUri",
	}
}

func filmSeaShantyDefinition(m Models) flow.Definition {
	return flow.Definition{
		Name:        FilmSeaShanty,
		Description: "Generates a short video of a crew singing a shanty aboard a vessel.",
		Modality:    flow.ModalityVideo,
		Model:       m.Video,
		AspectRatio: m.VideoAspectRatio,
		Prompt: `A cinematic shot of a crew singing a sea shanty on the deck of the {{ .vesselName }}
{{- if .theme }}, {{ .theme }}{{ end }}.`,
		Input: schema.Of(
			schema.String("vesselName").Required().Min(1),
			schema.String("theme"),
		),
		Output:     schema.Of(schema.String("videoDataUri").Required()),
		MediaField: "videoDataUri",
	}
}
