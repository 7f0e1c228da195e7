package api

import (
	"net/http"

	"fleet-assist/backend/internal/flow"

	"github.com/labstack/echo/v4"
)

// ListFlows describes every flow with its input and output JSON schemas
// (GET /api/v1/flows)
func (s *Server) ListFlows(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Assistant.Flows())
}

// RunFlow runs any registered flow with a JSON object body
// (POST /api/v1/flows/:name)
func (s *Server) RunFlow(c echo.Context) error {
	return s.runFlow(c, c.Param("name"))
}

// assist serves one named flow on its own route. The body is bound as a
// generic object so type errors are reported by the flow's input schema.
func (s *Server) assist(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.runFlow(c, name)
	}
}

func (s *Server) runFlow(c echo.Context, name string) error {
	env, err := flowEnv(c)
	if err != nil {
		return err
	}
	var input map[string]any
	if err := bindBody(c, &input); err != nil {
		return invalidBody(err)
	}
	out, err := s.Assistant.RunFlow(c.Request().Context(), env, name, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// flowEnv builds the per-call flow context from the authenticated request.
func flowEnv(c echo.Context) (flow.Env, error) {
	tenantID, err := tenant(c)
	if err != nil {
		return flow.Env{}, err
	}
	return flow.Env{TenantID: tenantID}, nil
}

// bindBody decodes the JSON body only. Path parameters such as :name must
// not leak into flow input.
func bindBody(c echo.Context, v any) error {
	return (&echo.DefaultBinder{}).BindBody(c, v)
}
