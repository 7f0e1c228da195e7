// Package api contains the HTTP handlers for the fleet assistant REST API
package api

import (
	"context"
	"net/http"
	"time"

	"fleet-assist/backend/internal/assistant"
	"fleet-assist/backend/internal/auth"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/services"
	"fleet-assist/backend/pkg/models"

	"github.com/labstack/echo/v4"
)

// FleetService manages vessels and crew.
type FleetService interface {
	ListVessels(ctx context.Context, tenantID string) ([]models.Vessel, error)
	GetVessel(ctx context.Context, tenantID, id string) (*models.Vessel, error)
	CreateVessel(ctx context.Context, tenantID string, req models.CreateVesselRequest) (*models.Vessel, error)
	ListCrew(ctx context.Context, tenantID string, availableOnly bool) ([]models.CrewMember, error)
	CreateCrewMember(ctx context.Context, tenantID string, req models.CreateCrewMemberRequest) (*models.CrewMember, error)
	AssignCrew(ctx context.Context, tenantID, crewID string, req models.AssignCrewRequest) (*models.CrewMember, error)
}

// AssistantService runs the assistant flows by name.
type AssistantService interface {
	Flows() []services.FlowInfo
	RunFlow(ctx context.Context, env flow.Env, name string, input map[string]any) (map[string]any, error)
}

// Pinger checks a dependency for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Fleet     FleetService
	Assistant AssistantService
	DB        Pinger
	Logger    *logging.Logger
	Version   string
}

// NewServer creates a new Server.
func NewServer(fleet FleetService, asst AssistantService, db Pinger, logger *logging.Logger) *Server {
	return &Server{Fleet: fleet, Assistant: asst, DB: db, Logger: logger, Version: "1.0.0"}
}

// RegisterRoutes mounts the tenant-scoped API on g. Authentication is the
// caller's concern.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/vessels", s.ListVessels)
	g.POST("/vessels", s.CreateVessel)
	g.GET("/vessels/:id", s.GetVessel)
	g.GET("/crew", s.ListCrew)
	g.POST("/crew", s.CreateCrewMember)
	g.GET("/crew/available", s.ListAvailableCrew)
	g.PUT("/crew/:id/assignment", s.AssignCrew)

	g.GET("/flows", s.ListFlows)
	g.POST("/flows/:name", s.RunFlow)

	g.POST("/assist/route", s.assist(assistant.SuggestRoute))
	g.POST("/assist/crew", s.assist(assistant.AllocateCrew))
	g.POST("/assist/maintenance", s.assist(assistant.PredictMaintenance))
	g.POST("/assist/safety", s.assist(assistant.AnalyzeSafetyReport))
	g.POST("/assist/shanty", s.assist(assistant.ComposeSeaShanty))
	g.POST("/assist/shanty/audio", s.assist(assistant.SingSeaShanty))
	g.POST("/assist/vessel-image", s.assist(assistant.RenderVesselImage))
	g.POST("/assist/shanty/video", s.assist(assistant.FilmSeaShanty))
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth reports service health; it answers 503 when the database is unreachable.
// (GET /healthz)
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "fleet-assist",
		Version:   s.Version,
		Checks:    map[string]string{},
	}
	code := http.StatusOK
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Warn("health check failed", "check", "database", "error", err)
			status.Status = "degraded"
			status.Checks["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status.Checks["database"] = "ok"
		}
	}
	return c.JSON(code, status)
}

// tenant returns the authenticated tenant ID.
func tenant(c echo.Context) (string, error) {
	id, ok := auth.TenantFromContext(c.Request().Context())
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Tenant ID not found in context")
	}
	return id, nil
}
