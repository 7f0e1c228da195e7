package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"fleet-assist/backend/internal/config"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/repository"
	"fleet-assist/backend/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var seedVessels = []models.Vessel{
	{Name: "Northern Star", VesselType: "container ship", Status: models.VesselStatusActive, EngineHours: 18250},
	{Name: "Sea Serpent", VesselType: "bulk carrier", Status: models.VesselStatusActive, EngineHours: 9400},
	{Name: "Ocean Voyager", VesselType: "tanker", Status: models.VesselStatusMaintenance, EngineHours: 31020},
}

var seedCrew = []models.CrewMember{
	{Name: "Elena Petrova", Role: "captain", Certifications: []string{"STCW II/2", "GMDSS"}, Status: models.CrewStatusActive},
	{Name: "Kwame Mensah", Role: "chief engineer", Certifications: []string{"STCW III/2"}, Status: models.CrewStatusActive},
	{Name: "Hana Sato", Role: "first officer", Certifications: []string{"STCW II/1", "ECDIS"}, Status: models.CrewStatusActive},
	{Name: "Diego Alvarez", Role: "able seaman", Certifications: []string{"STCW II/5"}, Status: models.CrewStatusOnLeave},
	{Name: "Ingrid Larsen", Role: "second engineer", Certifications: []string{"STCW III/1"}, Status: models.CrewStatusActive},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := seedCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func seedCmd() *cobra.Command {
	var (
		configPath string
		domain     string
		name       string
	)
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Seed a tenant with demo vessels and crew",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := logging.NewWithOptions(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

			pool, err := pgxpool.New(cmd.Context(), cfg.DatabaseURL())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			if err := repository.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			return seed(cmd.Context(), repository.NewPostgresStore(pool), logger, domain, name)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&domain, "domain", "localhost", "Email domain of the tenant to seed")
	cmd.Flags().StringVar(&name, "name", "Local Dev Fleet", "Tenant name, used when the tenant is created")
	return cmd
}

// seed is idempotent: records whose name already exists are skipped.
func seed(ctx context.Context, store repository.Repository, logger *logging.Logger, domain, name string) error {
	tenant, err := store.GetTenantByDomain(ctx, domain)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Info("Creating tenant", "domain", domain)
		tenant = &models.Tenant{Name: name, Domain: domain}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to look up tenant: %w", err)
	default:
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	vessels, err := store.ListVessels(ctx, tenant.ID)
	if err != nil {
		return err
	}
	existingVessels := make(map[string]bool, len(vessels))
	for _, v := range vessels {
		existingVessels[v.Name] = true
	}
	for _, v := range seedVessels {
		if existingVessels[v.Name] {
			logger.Info("Skipping existing vessel", "name", v.Name)
			continue
		}
		v.TenantID = tenant.ID
		if err := store.CreateVessel(ctx, &v); err != nil {
			return err
		}
		logger.Info("Seeded vessel", "name", v.Name, "id", v.ID)
	}

	crew, err := store.ListCrew(ctx, tenant.ID)
	if err != nil {
		return err
	}
	existingCrew := make(map[string]bool, len(crew))
	for _, c := range crew {
		existingCrew[c.Name] = true
	}
	for _, c := range seedCrew {
		if existingCrew[c.Name] {
			logger.Info("Skipping existing crew member", "name", c.Name)
			continue
		}
		c.TenantID = tenant.ID
		c.Certifications = append([]string(nil), c.Certifications...)
		if err := store.CreateCrewMember(ctx, &c); err != nil {
			return err
		}
		logger.Info("Seeded crew member", "name", c.Name, "id", c.ID)
	}

	logger.Info("Seeding complete", "tenant", tenant.ID)
	return nil
}
