package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrkpi/internal/domain/auth"
	"hrkpi/internal/platform/config"
)

// Seed makes sure the configured owner account and its organization exist.
// Without SEED_OWNER_EMAIL nothing is created.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SeedOwnerEmail == "" {
		slog.Info("seed skipped", "reason", "SEED_OWNER_EMAIL not set")
		return nil
	}
	svc := auth.NewService(auth.NewStore(pool), nil, auth.Options{})
	owner, created, err := svc.EnsureOwner(ctx, cfg.SeedOrgName, cfg.SeedOwnerEmail, cfg.SeedOwnerPassword)
	if err != nil {
		return err
	}
	if created {
		slog.Info("seeded owner", "userId", owner.ID, "organizationId", owner.OrganizationID)
	}
	return nil
}
