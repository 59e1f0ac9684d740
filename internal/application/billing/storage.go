package billing

import (
	"context"
	"time"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SchemaMigrator prepares the backing schema. Implemented by the
// infrastructure migration runner.
type SchemaMigrator interface {
	Up() error
}

// Storage is the facade the rating pipeline talks to: one write protocol
// (Dispatch / FinalizeAndClose per tenant and period) plus the read
// queries, delegated to the query service.
type Storage struct {
	sessions  *SessionRegistry
	queries   *QueryService
	migrator  SchemaMigrator
	processor Processor
	logger    *zap.Logger
}

// NewStorage wires the storage facade. migrator may be nil when the schema
// is managed out of band; Init then becomes a no-op.
func NewStorage(repo billing.FrameRepository, collector billing.Collector, migrator SchemaMigrator, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{
		sessions:  NewSessionRegistry(repo, logger),
		queries:   NewQueryService(repo, collector, logger),
		migrator:  migrator,
		processor: NoopProcessor{},
		logger:    logger,
	}
}

// WithProcessor replaces the billing processor entries pass through before
// dispatch. A nil processor disables the stage.
func (s *Storage) WithProcessor(p Processor) *Storage {
	s.processor = p
	return s
}

// Init brings the schema up to date.
func (s *Storage) Init(ctx context.Context) error {
	if s.migrator == nil {
		return nil
	}
	if err := s.migrator.Up(); err != nil {
		return shared.ErrStorageUnavailable.WithCause(err)
	}
	s.logger.Info("storage schema up to date")
	return nil
}

// Dispatch appends a batch of rated usage for one tenant and period. The
// tenant's session is acquired on first use and reused for subsequent
// batches of the same period; a zero window means the current month.
// Within each resource type, entries are appended in input order.
func (s *Storage) Dispatch(ctx context.Context, tenantID string, usage Usage, w billing.Window) error {
	if w.IsZero() {
		w = billing.CurrentMonthWindow(s.queries.now())
	}
	if s.processor != nil && s.processor.Enabled() {
		usage = s.processor.Process(UsageBatch{TenantID: tenantID, Usage: usage}).Usage
	}
	session, err := s.sessions.Acquire(ctx, tenantID, w)
	if err != nil {
		return err
	}
	for resType, entries := range usage {
		for i := range entries {
			if err := session.Append(ctx, resType, entries[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// FinalizeAndClose commits the tenant's open session (writing the
// `_NO_DATA_` sentinel when no usage was dispatched) and releases it. The
// session is released even when the commit fails, so the next period can
// start cleanly.
func (s *Storage) FinalizeAndClose(ctx context.Context, tenantID string) error {
	session, ok := s.sessions.Get(tenantID)
	if !ok {
		return shared.ErrNotFound
	}
	err := session.Finalize(ctx)
	s.sessions.Release(tenantID)
	return err
}

// Abandon discards the tenant's open session without committing.
func (s *Storage) Abandon(tenantID string) {
	s.sessions.Release(tenantID)
}

// GetState returns the billing watermark for the tenant.
func (s *Storage) GetState(ctx context.Context, tenantID string) (*time.Time, error) {
	return s.queries.GetState(ctx, tenantID)
}

// GetTotal returns the exact charge total over the window.
func (s *Storage) GetTotal(ctx context.Context, begin, end *time.Time, tenantID, service string) (decimal.Decimal, error) {
	return s.queries.GetTotal(ctx, begin, end, tenantID, service)
}

// GetTenants lists tenants with usage inside the window.
func (s *Storage) GetTenants(ctx context.Context, begin, end *time.Time) ([]string, error) {
	return s.queries.GetTenants(ctx, begin, end)
}

// GetTimeFrame lists collected frames in [begin, end).
func (s *Storage) GetTimeFrame(ctx context.Context, begin, end time.Time, tenantID, service string) ([]billing.CollectedRecord, error) {
	return s.queries.GetTimeFrame(ctx, begin, end, tenantID, service)
}

// GetProjectUsage returns the per-tenant resource breakdown.
func (s *Storage) GetProjectUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (ProjectUsage, error) {
	return s.queries.GetProjectUsage(ctx, begin, end, tenantID, service)
}

// GetInstanceUsage returns the per-instance resource breakdown.
func (s *Storage) GetInstanceUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (InstanceUsageReport, error) {
	return s.queries.GetInstanceUsage(ctx, begin, end, tenantID, service)
}

// GetBandwidthHourlyUsage returns the pivoted bandwidth report.
func (s *Storage) GetBandwidthHourlyUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (*BandwidthUsage, error) {
	return s.queries.GetBandwidthHourlyUsage(ctx, begin, end, tenantID, service)
}
