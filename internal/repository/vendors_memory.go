package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperledger/invoice-intake/internal/entity"
	"github.com/paperledger/invoice-intake/internal/vendor"
)

// MemoryVendorRepository is an in-process vendor.VendorStore used in tests.
// It keeps vendors in insertion order per tenant and enforces the same
// normalized-name uniqueness the SQL stores do.
type MemoryVendorRepository struct {
	mu       sync.Mutex
	byTenant map[uuid.UUID][]*entity.Vendor
}

func NewMemoryVendorRepository() *MemoryVendorRepository {
	return &MemoryVendorRepository{byTenant: make(map[uuid.UUID][]*entity.Vendor)}
}

func (r *MemoryVendorRepository) ListVendors(_ context.Context, tenantID uuid.UUID) ([]*entity.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vendors := r.byTenant[tenantID]
	out := make([]*entity.Vendor, len(vendors))
	for i, v := range vendors {
		cp := *v
		out[i] = &cp
	}
	return out, nil
}

func (r *MemoryVendorRepository) CreateVendor(_ context.Context, tenantID uuid.UUID, name string, displayOrder int) (*entity.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := vendor.Normalize(name)
	for _, existing := range r.byTenant[tenantID] {
		if vendor.Normalize(existing.Name) == norm {
			return nil, fmt.Errorf("vendor %q for tenant %s: %w", name, tenantID, vendor.ErrVendorExists)
		}
	}
	v := &entity.Vendor{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		DisplayOrder: displayOrder,
		CreatedAt:    time.Now().UTC(),
	}
	r.byTenant[tenantID] = append(r.byTenant[tenantID], v)
	cp := *v
	return &cp, nil
}

func (r *MemoryVendorRepository) MaxDisplayOrder(_ context.Context, tenantID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, v := range r.byTenant[tenantID] {
		if v.DisplayOrder > max {
			max = v.DisplayOrder
		}
	}
	return max, nil
}
