package billing

import (
	"time"

	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResTypeNoData is the reserved resource type marking a period in which a
// tenant had no usage. Exactly one such frame is written per empty period so
// that "zero usage" stays distinguishable from "never billed".
const ResTypeNoData = "_NO_DATA_"

// Bandwidth resource types pivoted by the hourly bandwidth query.
const (
	ResTypeCompute      = "compute"
	ResTypeImage        = "image"
	ResTypeBandwidthIn  = "network.bw.in"
	ResTypeBandwidthOut = "network.bw.out"
)

// NoDataUnit is the unit stamped on sentinel frames.
const NoDataUnit = "None"

// Metadata holds the resource description attached to a frame. Its fields
// vary by resource type and are only interpreted by the read-side
// classification logic, never by the write path.
type Metadata map[string]any

// RatedFrame is one immutable record of metered usage plus its computed
// charge for a single resource, tenant and billing period. Frames are never
// updated after commit; corrections require new frames.
type RatedFrame struct {
	ID        uuid.UUID
	TenantID  string
	ResType   string
	Unit      string
	Qty       decimal.Decimal
	Rate      decimal.Decimal
	Desc      Metadata
	Begin     time.Time
	End       time.Time
	CreatedAt time.Time
}

// NewRatedFrame creates a usage frame for the given period with validation.
// Rate defaults to zero when the source record carries no price.
func NewRatedFrame(tenantID, resType, unit string, qty decimal.Decimal, rate *decimal.Decimal, desc Metadata, w Window) (*RatedFrame, error) {
	if tenantID == "" {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("INVALID_TENANT", "tenant id cannot be empty"))
	}
	if resType == "" || resType == ResTypeNoData {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("INVALID_RES_TYPE", "resource type missing or reserved"))
	}
	if unit == "" {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("MISSING_UNIT", "volume unit is required"))
	}
	if w.End.Before(w.Begin) {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("INVALID_PERIOD", "period end cannot be before period begin"))
	}

	r := decimal.Zero
	if rate != nil {
		r = *rate
	}
	if desc == nil {
		desc = make(Metadata)
	}

	return &RatedFrame{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ResType:   resType,
		Unit:      unit,
		Qty:       qty,
		Rate:      r,
		Desc:      desc,
		Begin:     w.Begin,
		End:       w.End,
		CreatedAt: time.Now(),
	}, nil
}

// NewNoDataFrame creates the sentinel frame recording that a tenant had no
// usage in the given period: qty 0, unit "None", rate 0, empty description.
func NewNoDataFrame(tenantID string, w Window) (*RatedFrame, error) {
	if tenantID == "" {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("INVALID_TENANT", "tenant id cannot be empty"))
	}
	if w.End.Before(w.Begin) {
		return nil, shared.ErrInvalidFrame.WithCause(shared.NewDomainError("INVALID_PERIOD", "period end cannot be before period begin"))
	}

	return &RatedFrame{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ResType:   ResTypeNoData,
		Unit:      NoDataUnit,
		Qty:       decimal.Zero,
		Rate:      decimal.Zero,
		Desc:      make(Metadata),
		Begin:     w.Begin,
		End:       w.End,
		CreatedAt: time.Now(),
	}, nil
}

// IsNoData reports whether this frame is the "no usage this period" sentinel.
func (f *RatedFrame) IsNoData() bool {
	return f.ResType == ResTypeNoData
}

// IsBandwidth reports whether this frame records network bandwidth usage.
func (f *RatedFrame) IsBandwidth() bool {
	return f.ResType == ResTypeBandwidthIn || f.ResType == ResTypeBandwidthOut
}
