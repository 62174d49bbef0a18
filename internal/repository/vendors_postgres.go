package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperledger/invoice-intake/internal/entity"
	"github.com/paperledger/invoice-intake/internal/vendor"
)

const vendorsSchema = `
CREATE TABLE IF NOT EXISTS vendors (
	id              UUID PRIMARY KEY,
	tenant_id       UUID NOT NULL,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	display_order   INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, normalized_name)
);
CREATE INDEX IF NOT EXISTS vendors_tenant_order ON vendors (tenant_id, display_order);
`

// PostgresVendorRepository implements vendor.VendorStore on a pgx pool.
// The unique (tenant_id, normalized_name) constraint is the cross-process
// guard against duplicate vendor creation; in-process races are already
// serialized by the resolver.
type PostgresVendorRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresVendorRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresVendorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresVendorRepository{pool: pool, logger: logger}
}

// Migrate creates the vendors table and indexes if they do not exist.
func (r *PostgresVendorRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, vendorsSchema); err != nil {
		return fmt.Errorf("migrate vendors: %w", err)
	}
	return nil
}

func (r *PostgresVendorRepository) ListVendors(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, display_order, created_at
		   FROM vendors
		  WHERE tenant_id = $1
		  ORDER BY display_order`, tenantID)
	if err != nil {
		r.logger.Error("failed to list vendors", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Vendor
	for rows.Next() {
		v := &entity.Vendor{}
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.DisplayOrder, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresVendorRepository) CreateVendor(ctx context.Context, tenantID uuid.UUID, name string, displayOrder int) (*entity.Vendor, error) {
	v := &entity.Vendor{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		DisplayOrder: displayOrder,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO vendors (id, tenant_id, name, normalized_name, display_order)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		v.ID, v.TenantID, v.Name, vendor.Normalize(name), v.DisplayOrder,
	).Scan(&v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("vendor %q for tenant %s: %w", name, tenantID, vendor.ErrVendorExists)
		}
		r.logger.Error("failed to create vendor", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	return v, nil
}

func (r *PostgresVendorRepository) MaxDisplayOrder(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_order), 0) FROM vendors WHERE tenant_id = $1`,
		tenantID,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}
