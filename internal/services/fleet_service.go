package services

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/repository"
	"fleet-assist/backend/internal/schema"
	"fleet-assist/backend/pkg/models"

	"github.com/go-playground/validator/v10"
)

// FleetStore is the storage surface the FleetService needs.
type FleetStore interface {
	CreateVessel(ctx context.Context, vessel *models.Vessel) error
	GetVessel(ctx context.Context, tenantID, id string) (*models.Vessel, error)
	ListVessels(ctx context.Context, tenantID string) ([]models.Vessel, error)
	CreateCrewMember(ctx context.Context, member *models.CrewMember) error
	ListCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error)
	ListAvailableCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error)
	AssignCrew(ctx context.Context, tenantID, crewID string, vesselID *string) (*models.CrewMember, error)
}

// ErrNotFound is returned when a vessel or crew member does not exist for the tenant.
var ErrNotFound = repository.ErrNotFound

// FleetService manages a tenant's vessels and crew.
type FleetService struct {
	store    FleetStore
	validate *validator.Validate
	logger   *logging.Logger
}

// NewFleetService creates a new FleetService.
func NewFleetService(store FleetStore, logger *logging.Logger) *FleetService {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &FleetService{store: store, validate: v, logger: logger}
}

// ListVessels returns the tenant's vessels.
func (s *FleetService) ListVessels(ctx context.Context, tenantID string) ([]models.Vessel, error) {
	return s.store.ListVessels(ctx, tenantID)
}

// CreateVessel validates req and registers a vessel for the tenant.
func (s *FleetService) CreateVessel(ctx context.Context, tenantID string, req models.CreateVesselRequest) (*models.Vessel, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	vessel := &models.Vessel{
		TenantID:    tenantID,
		Name:        req.Name,
		VesselType:  req.VesselType,
		IMONumber:   req.IMONumber,
		Status:      req.Status,
		EngineHours: req.EngineHours,
	}
	if err := s.store.CreateVessel(ctx, vessel); err != nil {
		return nil, err
	}
	s.logger.Info("vessel created", "tenant", tenantID, "vessel", vessel.ID)
	return vessel, nil
}

// GetVessel returns one of the tenant's vessels.
func (s *FleetService) GetVessel(ctx context.Context, tenantID, id string) (*models.Vessel, error) {
	if err := s.validate.Var(id, "required,uuid"); err != nil {
		return nil, ErrNotFound
	}
	return s.store.GetVessel(ctx, tenantID, id)
}

// ListCrew returns the tenant's crew, or only those available for
// assignment when availableOnly is set.
func (s *FleetService) ListCrew(ctx context.Context, tenantID string, availableOnly bool) ([]models.CrewMember, error) {
	if availableOnly {
		return s.store.ListAvailableCrew(ctx, tenantID)
	}
	return s.store.ListCrew(ctx, tenantID)
}

// ListAvailableCrew returns active, unassigned crew members.
func (s *FleetService) ListAvailableCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error) {
	return s.store.ListAvailableCrew(ctx, tenantID)
}

// CreateCrewMember validates req and adds a crew member to the tenant.
func (s *FleetService) CreateCrewMember(ctx context.Context, tenantID string, req models.CreateCrewMemberRequest) (*models.CrewMember, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	member := &models.CrewMember{
		TenantID:       tenantID,
		Name:           req.Name,
		Role:           req.Role,
		Certifications: req.Certifications,
		Status:         req.Status,
	}
	if err := s.store.CreateCrewMember(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("crew member created", "tenant", tenantID, "crew", member.ID)
	return member, nil
}

// AssignCrew assigns a crew member to a vessel, or releases them when
// req.VesselID is nil.
func (s *FleetService) AssignCrew(ctx context.Context, tenantID, crewID string, req models.AssignCrewRequest) (*models.CrewMember, error) {
	if err := s.validate.Var(crewID, "required,uuid"); err != nil {
		return nil, &schema.ValidationError{Violations: []schema.Violation{{Path: "id", Message: "must be a UUID"}}}
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	member, err := s.store.AssignCrew(ctx, tenantID, crewID, req.VesselID)
	if err != nil {
		return nil, err
	}
	vessel := ""
	if req.VesselID != nil {
		vessel = *req.VesselID
	}
	s.logger.Info("crew assignment changed", "tenant", tenantID, "crew", crewID, "vessel", vessel)
	return member, nil
}

// check validates a request struct, reporting failures as a
// *schema.ValidationError keyed by JSON field names.
func (s *FleetService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	violations := make([]schema.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, schema.Violation{Path: fieldPath(fe), Message: describeTag(fe)})
	}
	return &schema.ValidationError{Violations: violations}
}

// fieldPath drops the struct name prefix from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "uuid":
		return "must be a UUID"
	case "numeric":
		return "must be numeric"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
