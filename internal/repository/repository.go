// Package repository persists tenants and their fleets in PostgreSQL.
package repository

import (
	"context"
	"errors"

	"fleet-assist/backend/pkg/models"
)

// ErrNotFound is returned when a record does not exist for the tenant.
var ErrNotFound = errors.New("record not found")

// Repository is the storage surface used by the services and auth layers.
// Fleet records are always scoped by an explicit tenant ID.
type Repository interface {
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error

	CreateVessel(ctx context.Context, vessel *models.Vessel) error
	GetVessel(ctx context.Context, tenantID, id string) (*models.Vessel, error)
	ListVessels(ctx context.Context, tenantID string) ([]models.Vessel, error)

	CreateCrewMember(ctx context.Context, member *models.CrewMember) error
	ListCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error)
	// ListAvailableCrew returns active crew members with no vessel assignment.
	ListAvailableCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error)
	// AssignCrew sets or clears (vesselID nil) a crew member's vessel.
	AssignCrew(ctx context.Context, tenantID, crewID string, vesselID *string) (*models.CrewMember, error)

	Ping(ctx context.Context) error
}
