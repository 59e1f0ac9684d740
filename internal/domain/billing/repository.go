package billing

import (
	"context"
	"time"
)

// FrameFilter defines filtering options for frame queries.
//
// An empty ResType implicitly excludes `_NO_DATA_` sentinel rows; filtering
// for ResTypeNoData explicitly selects only sentinels. The window filter is
// half-open on the frame's begin timestamp.
type FrameFilter struct {
	Window   Window
	TenantID string
	ResType  string
}

// FrameRepository defines the storage primitives for rated frames. Frames
// are insert-only; corrections are written as new frames.
type FrameRepository interface {
	// Begin opens a write transaction for appending frames.
	Begin(ctx context.Context) (FrameTx, error)

	// Find returns the frames matching the filter, ordered by begin then
	// creation time.
	Find(ctx context.Context, filter FrameFilter) ([]*RatedFrame, error)

	// LatestBegin returns the begin timestamp of the most recent frame for
	// the tenant (or globally when tenantID is empty), nil when no frame is
	// stored. Sentinel frames count: they advance the billing watermark.
	LatestBegin(ctx context.Context, tenantID string) (*time.Time, error)

	// DistinctTenants returns the tenants with at least one non-sentinel
	// frame inside the window.
	DistinctTenants(ctx context.Context, w Window) ([]string, error)
}

// FrameTx is an open write transaction. Appended frames become visible to
// readers only after Commit; Rollback abandons them.
type FrameTx interface {
	Append(ctx context.Context, frame *RatedFrame) error
	Commit() error
	Rollback() error
}
