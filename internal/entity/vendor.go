package entity

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the canonical, tenant-scoped vendor identity. It is the only
// durable entity in the intake core: created lazily on first unmatched
// sighting and never deleted by the pipeline.
type Vendor struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	// DisplayOrder is assigned strictly increasing per tenant at creation
	// time and never compacted or reused; the UI orders by it.
	DisplayOrder int
	CreatedAt    time.Time
}

// MatchResult is the outcome of resolving a candidate vendor name.
// IsNew signals that a vendor record was just created and may need
// confirmation downstream.
type MatchResult struct {
	VendorID   uuid.UUID
	VendorName string
	IsNew      bool
}
