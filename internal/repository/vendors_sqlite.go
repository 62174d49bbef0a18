package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/paperledger/invoice-intake/internal/entity"
	"github.com/paperledger/invoice-intake/internal/vendor"
)

const vendorsSchemaSQLite = `
CREATE TABLE IF NOT EXISTS vendors (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	display_order   INTEGER NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	UNIQUE (tenant_id, normalized_name)
);
CREATE INDEX IF NOT EXISTS vendors_tenant_order ON vendors (tenant_id, display_order);
`

// SQLiteVendorRepository implements vendor.VendorStore on an embedded SQLite
// database. Used by the batch CLI in --inmem mode and by tests; the schema
// and conflict semantics mirror the Postgres repository.
type SQLiteVendorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (and migrates) a SQLite vendor store. An empty dsn yields
// a process-private in-memory database.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteVendorRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		dsn = "file:intake?mode=memory&cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer keeps modernc's driver free of SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, vendorsSchemaSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite vendors: %w", err)
	}
	return &SQLiteVendorRepository{db: db, logger: logger}, nil
}

func (r *SQLiteVendorRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteVendorRepository) ListVendors(ctx context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, display_order, created_at
		   FROM vendors
		  WHERE tenant_id = ?
		  ORDER BY display_order`, tenantID.String())
	if err != nil {
		r.logger.Error("failed to list vendors", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Vendor
	for rows.Next() {
		var (
			v          entity.Vendor
			id, tenant string
		)
		if err := rows.Scan(&id, &tenant, &v.Name, &v.DisplayOrder, &v.CreatedAt); err != nil {
			return nil, err
		}
		if v.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if v.TenantID, err = uuid.Parse(tenant); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *SQLiteVendorRepository) CreateVendor(ctx context.Context, tenantID uuid.UUID, name string, displayOrder int) (*entity.Vendor, error) {
	v := &entity.Vendor{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		DisplayOrder: displayOrder,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vendors (id, tenant_id, name, normalized_name, display_order, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.TenantID.String(), v.Name, vendor.Normalize(name), v.DisplayOrder, v.CreatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, fmt.Errorf("vendor %q for tenant %s: %w", name, tenantID, vendor.ErrVendorExists)
		}
		r.logger.Error("failed to create vendor", "tenant_id", tenantID, "error", err)
		return nil, err
	}
	return v, nil
}

func (r *SQLiteVendorRepository) MaxDisplayOrder(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(display_order), 0) FROM vendors WHERE tenant_id = ?`,
		tenantID.String(),
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

// modernc/sqlite surfaces constraint failures as plain errors carrying the
// SQLite message text rather than a typed code.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
