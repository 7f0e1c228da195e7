package assistant

// RouteRequest asks for a voyage plan between two ports.
type RouteRequest struct {
	StartPort  string `json:"startPort,omitempty"`
	EndPort    string `json:"endPort,omitempty"`
	VesselType string `json:"vesselType,omitempty"`
}

// RouteSuggestion is the model's voyage plan.
type RouteSuggestion struct {
	SuggestedRoute    string `json:"suggestedRoute"`
	Reasoning         string `json:"reasoning"`
	EstimatedDuration string `json:"estimatedDuration"`
	PotentialRisks    string `json:"potentialRisks"`
}

// CrewRequest asks for a crew roster for a voyage.
type CrewRequest struct {
	Route              string   `json:"route,omitempty"`
	Vessel             string   `json:"vessel,omitempty"`
	VesselRequirements []string `json:"vesselRequirements"`
}

// CrewAllocation names the suggested crew, drawn from available crew only.
type CrewAllocation struct {
	SuggestedCrew []string `json:"suggestedCrew"`
	Reasoning     string   `json:"reasoning"`
}

// AvailableCrew is the record the crew tool hands to the model.
type AvailableCrew struct {
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	Certifications []string `json:"certifications"`
}

// MaintenanceRequest describes a vessel's service history. EngineHours is a
// pointer so that an unset value is absent rather than zero.
type MaintenanceRequest struct {
	VesselName         string   `json:"vesselName,omitempty"`
	VesselType         string   `json:"vesselType,omitempty"`
	EngineHours        *float64 `json:"engineHours,omitempty"`
	LastServiceDate    string   `json:"lastServiceDate,omitempty"`
	MaintenanceHistory []string `json:"maintenanceHistory,omitempty"`
}

// Risk grades a maintenance prediction.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Prediction is one component expected to need attention.
type Prediction struct {
	Component         string `json:"component"`
	Risk              Risk   `json:"risk"`
	RecommendedAction string `json:"recommendedAction"`
	Timeframe         string `json:"timeframe"`
}

// MaintenanceForecast lists the predicted failures for a vessel.
type MaintenanceForecast struct {
	Predictions []Prediction `json:"predictions"`
	Summary     string       `json:"summary"`
}

// SafetyReportRequest carries a free-text incident report.
type SafetyReportRequest struct {
	ReportText string `json:"reportText,omitempty"`
	VesselName string `json:"vesselName,omitempty"`
}

// SafetyAnalysis classifies an incident report.
type SafetyAnalysis struct {
	Summary            string   `json:"summary"`
	Severity           string   `json:"severity"`
	KeyIssues          []string `json:"keyIssues"`
	RecommendedActions []string `json:"recommendedActions"`
}

// ShantyRequest asks for a sea shanty about a vessel.
type ShantyRequest struct {
	VesselName string   `json:"vesselName,omitempty"`
	Theme      string   `json:"theme,omitempty"`
	CrewNames  []string `json:"crewNames,omitempty"`
}

// Shanty is a composed song.
type Shanty struct {
	Title  string `json:"title"`
	Lyrics string `json:"lyrics"`
}

// SingRequest carries lyrics to perform.
type SingRequest struct {
	Lyrics string `json:"lyrics,omitempty"`
}

// ShantyAudio is a WAV recording as a data URI.
type ShantyAudio struct {
	AudioDataURI string `json:"audioDataUri"`
}

// VesselImageRequest describes a vessel to illustrate.
type VesselImageRequest struct {
	VesselName string `json:"vesselName,omitempty"`
	VesselType string `json:"vesselType,omitempty"`
	Scene      string `json:"scene,omitempty"`
}

// VesselImage is a generated picture as a data URI.
type VesselImage struct {
	ImageDataURI string `json:"imageDataUri"`
}

// ShantyVideoRequest asks for a short music video of a shanty.
type ShantyVideoRequest struct {
	VesselName string `json:"vesselName,omitempty"`
	Theme      string `json:"theme,omitempty"`
}

// ShantyVideo is a generated clip as a data URI.
type ShantyVideo struct {
	VideoDataURI string `json:"videoDataUri"`
}
