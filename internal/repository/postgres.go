package repository

import (
	"context"
	"errors"
	"fmt"

	"fleet-assist/backend/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Repository.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Repository = (*PostgresStore)(nil)

const (
	vesselColumns = "id::text, tenant_id::text, name, vessel_type, imo_number, status, engine_hours, created_at, updated_at"
	crewColumns   = "id::text, tenant_id::text, name, role, certifications, status, assigned_vessel_id::text, created_at, updated_at"
)

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetTenantByDomain looks up the tenant owning an email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id::text, name, domain, created_at, updated_at FROM tenants WHERE domain = $1", domain,
	).Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// CreateTenant inserts tenant and fills in its generated fields.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	err := s.db.QueryRow(ctx,
		"INSERT INTO tenants (name, domain) VALUES ($1, $2) RETURNING id::text, created_at, updated_at",
		tenant.Name, tenant.Domain,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// CreateVessel inserts vessel and fills in its generated fields.
func (s *PostgresStore) CreateVessel(ctx context.Context, vessel *models.Vessel) error {
	if vessel.Status == "" {
		vessel.Status = models.VesselStatusActive
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO vessels (tenant_id, name, vessel_type, imo_number, status, engine_hours)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id::text, created_at, updated_at`,
		vessel.TenantID, vessel.Name, vessel.VesselType, vessel.IMONumber, vessel.Status, vessel.EngineHours,
	).Scan(&vessel.ID, &vessel.CreatedAt, &vessel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create vessel: %w", err)
	}
	return nil
}

// GetVessel retrieves a vessel by its ID.
func (s *PostgresStore) GetVessel(ctx context.Context, tenantID, id string) (*models.Vessel, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+vesselColumns+" FROM vessels WHERE tenant_id = $1 AND id = $2", tenantID, id)
	v, err := scanVessel(row)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

// ListVessels returns the tenant's vessels ordered by name.
func (s *PostgresStore) ListVessels(ctx context.Context, tenantID string) ([]models.Vessel, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+vesselColumns+" FROM vessels WHERE tenant_id = $1 ORDER BY name", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vessels: %w", err)
	}
	defer rows.Close()

	vessels := []models.Vessel{}
	for rows.Next() {
		v, err := scanVessel(rows)
		if err != nil {
			return nil, err
		}
		vessels = append(vessels, *v)
	}
	return vessels, rows.Err()
}

// CreateCrewMember inserts member and fills in its generated fields.
func (s *PostgresStore) CreateCrewMember(ctx context.Context, member *models.CrewMember) error {
	if member.Status == "" {
		member.Status = models.CrewStatusActive
	}
	if member.Certifications == nil {
		member.Certifications = []string{}
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO crew_members (tenant_id, name, role, certifications, status, assigned_vessel_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id::text, created_at, updated_at`,
		member.TenantID, member.Name, member.Role, member.Certifications, member.Status, member.AssignedVesselID,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create crew member: %w", err)
	}
	return nil
}

// ListCrew returns every crew member of the tenant ordered by name.
func (s *PostgresStore) ListCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error) {
	return s.queryCrew(ctx,
		"SELECT "+crewColumns+" FROM crew_members WHERE tenant_id = $1 ORDER BY name", tenantID)
}

// ListAvailableCrew returns active, unassigned crew members ordered by name.
func (s *PostgresStore) ListAvailableCrew(ctx context.Context, tenantID string) ([]models.CrewMember, error) {
	return s.queryCrew(ctx,
		"SELECT "+crewColumns+` FROM crew_members
		WHERE tenant_id = $1 AND status = 'active' AND assigned_vessel_id IS NULL
		ORDER BY name`, tenantID)
}

// AssignCrew sets the crew member's vessel. The vessel must belong to the
// same tenant.
func (s *PostgresStore) AssignCrew(ctx context.Context, tenantID, crewID string, vesselID *string) (*models.CrewMember, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE crew_members SET assigned_vessel_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		AND ($3::uuid IS NULL OR EXISTS (SELECT 1 FROM vessels WHERE id = $3::uuid AND tenant_id = $1))
		RETURNING `+crewColumns,
		tenantID, crewID, vesselID)
	m, err := scanCrew(row)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (s *PostgresStore) queryCrew(ctx context.Context, query string, args ...any) ([]models.CrewMember, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crew: %w", err)
	}
	defer rows.Close()

	crew := []models.CrewMember{}
	for rows.Next() {
		m, err := scanCrew(rows)
		if err != nil {
			return nil, err
		}
		crew = append(crew, *m)
	}
	return crew, rows.Err()
}

func scanVessel(row pgx.Row) (*models.Vessel, error) {
	var v models.Vessel
	err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.VesselType, &v.IMONumber, &v.Status, &v.EngineHours, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanCrew(row pgx.Row) (*models.CrewMember, error) {
	var m models.CrewMember
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Role, &m.Certifications, &m.Status, &m.AssignedVesselID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
