package billing

import (
	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// Usage is one dispatched batch of metered usage for a tenant: resource
// type mapped to the ordered usage entries collected for it.
type Usage map[string][]UsageEntry

// UsageEntry is a single incoming usage record. Qty and Unit are mandatory;
// a missing rating means the frame is stored with a zero rate.
type UsageEntry struct {
	Vol     Volume           `json:"vol" validate:"required"`
	Rating  *Rating          `json:"rating,omitempty"`
	Desc    billing.Metadata `json:"desc"`
	Billing billing.Metadata `json:"billing,omitempty"`
}

// Volume is the measured quantity of an entry
type Volume struct {
	Qty  *decimal.Decimal `json:"qty" validate:"required"`
	Unit string           `json:"unit" validate:"required"`
}

// Rating is the charge computed for an entry by an upstream rating pipeline
type Rating struct {
	Price decimal.Decimal `json:"price"`
}

// rate returns the decimal charge for the entry, zero when unrated
func (e *UsageEntry) rate() *decimal.Decimal {
	if e.Rating == nil {
		return nil
	}
	return &e.Rating.Price
}

// UsageBatch wraps a tenant's usage for processing pipelines
type UsageBatch struct {
	TenantID string `json:"tenant_id"`
	Usage    Usage  `json:"usage"`
}
