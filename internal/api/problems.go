package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/schema"
	"fleet-assist/backend/internal/services"

	"github.com/labstack/echo/v4"
)

// StatusClientClosedRequest is returned when the caller went away mid-flow.
const StatusClientClosedRequest = 499

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	// Kind is the flow failure kind, when a flow failed.
	Kind       string             `json:"kind,omitempty"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

// flowStatus maps each flow failure kind to a response status.
var flowStatus = map[flow.Kind]int{
	flow.KindValidation:      http.StatusUnprocessableEntity,
	flow.KindModel:           http.StatusBadGateway,
	flow.KindNoMedia:         http.StatusBadGateway,
	flow.KindToolExecution:   http.StatusBadGateway,
	flow.KindMalformedOutput: http.StatusBadGateway,
	flow.KindCancelled:       StatusClientClosedRequest,
}

// Problem converts err into a problem document.
func Problem(err error) ProblemDetails {
	var (
		flowErr *flow.Error
		valErr  *schema.ValidationError
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &flowErr):
		status, ok := flowStatus[flowErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		p := problem(status, flowErr.Kind.Message())
		p.Kind = string(flowErr.Kind)
		if flowErr.Kind == flow.KindValidation {
			p.Violations = flowErr.Violations
			p.Detail = violationDetail(flowErr.Violations)
		}
		return p
	case errors.As(err, &valErr):
		p := problem(http.StatusUnprocessableEntity, "The request failed validation.")
		p.Violations = valErr.Violations
		p.Detail = violationDetail(valErr.Violations)
		return p
	case errors.Is(err, services.ErrNotFound):
		return problem(http.StatusNotFound, "The requested resource was not found.")
	case errors.Is(err, services.ErrUnknownFlow):
		return problem(http.StatusNotFound, err.Error())
	case errors.As(err, &httpErr):
		return problem(httpErr.Code, fmt.Sprint(httpErr.Message))
	default:
		return problem(http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

func problem(status int, detail string) ProblemDetails {
	title := http.StatusText(status)
	if status == StatusClientClosedRequest {
		title = "Client Closed Request"
	}
	return ProblemDetails{Type: "about:blank", Title: title, Status: status, Detail: detail}
}

func violationDetail(violations []schema.Violation) string {
	if len(violations) == 0 {
		return "The request failed validation."
	}
	return (&schema.ValidationError{Violations: violations}).Error()
}

// invalidBody keeps the binder's status (400 or 415) with a readable message.
func invalidBody(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return echo.NewHTTPError(he.Code, fmt.Sprintf("Invalid request body: %v", he.Message)).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error()).SetInternal(err)
}

// ErrorHandler writes every handler error as an RFC 7807 problem.
func (s *Server) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	p := Problem(err)
	p.Instance = c.Request().URL.Path
	if p.Status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", p.Instance, "status", p.Status, "error", err)
	} else {
		s.Logger.Debug("request rejected", "path", p.Instance, "status", p.Status, "error", err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/problem+json")
	res.WriteHeader(p.Status)
	if c.Request().Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(res).Encode(p); err != nil {
		s.Logger.Error("failed to encode problem", "error", err)
	}
}
