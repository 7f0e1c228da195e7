package api

import (
	"net/http"

	"fleet-assist/backend/pkg/models"

	"github.com/labstack/echo/v4"
)

// ListVessels returns the tenant's vessels
// (GET /api/v1/vessels)
func (s *Server) ListVessels(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	vessels, err := s.Fleet.ListVessels(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vessels)
}

// GetVessel returns one vessel
// (GET /api/v1/vessels/:id)
func (s *Server) GetVessel(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	vessel, err := s.Fleet.GetVessel(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vessel)
}

// CreateVessel registers a vessel
// (POST /api/v1/vessels)
func (s *Server) CreateVessel(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	var req models.CreateVesselRequest
	if err := bindBody(c, &req); err != nil {
		return invalidBody(err)
	}
	vessel, err := s.Fleet.CreateVessel(c.Request().Context(), tenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, vessel)
}

// ListCrew returns the tenant's crew; ?available=true limits it to crew
// that can be assigned
// (GET /api/v1/crew)
func (s *Server) ListCrew(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	crew, err := s.Fleet.ListCrew(c.Request().Context(), tenantID, c.QueryParam("available") == "true")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, crew)
}

// ListAvailableCrew returns active, unassigned crew
// (GET /api/v1/crew/available)
func (s *Server) ListAvailableCrew(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	crew, err := s.Fleet.ListCrew(c.Request().Context(), tenantID, true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, crew)
}

// CreateCrewMember adds a crew member
// (POST /api/v1/crew)
func (s *Server) CreateCrewMember(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	var req models.CreateCrewMemberRequest
	if err := bindBody(c, &req); err != nil {
		return invalidBody(err)
	}
	member, err := s.Fleet.CreateCrewMember(c.Request().Context(), tenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// AssignCrew assigns a crew member to a vessel or releases them
// (PUT /api/v1/crew/:id/assignment)
func (s *Server) AssignCrew(c echo.Context) error {
	tenantID, err := tenant(c)
	if err != nil {
		return err
	}
	var req models.AssignCrewRequest
	if err := bindBody(c, &req); err != nil {
		return invalidBody(err)
	}
	member, err := s.Fleet.AssignCrew(c.Request().Context(), tenantID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}
