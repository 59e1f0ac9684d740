package billing

import (
	"context"
	"time"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QueryService answers the read-side aggregation queries over committed
// frames. Filtering happens in SQL; grouping, pivoting and summation are
// done here over exact decimals so results never pick up floating-point
// drift from the database's numeric handling.
//
// All methods exclude `_NO_DATA_` sentinel rows unless the service filter
// explicitly requests them.
type QueryService struct {
	repo      billing.FrameRepository
	collector billing.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewQueryService creates a query service. A nil collector falls back to
// the passthrough collector.
func NewQueryService(repo billing.FrameRepository, collector billing.Collector, logger *zap.Logger) *QueryService {
	if collector == nil {
		collector = billing.PassthroughCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		repo:      repo,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the reference clock used for default windows
func (s *QueryService) WithClock(now func() time.Time) *QueryService {
	s.now = now
	return s
}

// GetState returns the begin timestamp of the most recent frame for the
// tenant (or globally when tenantID is empty) as the billing watermark, nil
// when nothing has been stored. Sentinel frames advance the watermark too:
// an empty period still counts as billed.
func (s *QueryService) GetState(ctx context.Context, tenantID string) (*time.Time, error) {
	return s.repo.LatestBegin(ctx, tenantID)
}

// GetTotal returns the exact decimal sum of rate over matching frames,
// zero when nothing matches.
func (s *QueryService) GetTotal(ctx context.Context, begin, end *time.Time, tenantID, service string) (decimal.Decimal, error) {
	frames, err := s.find(ctx, begin, end, tenantID, service)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, f := range frames {
		total = total.Add(f.Rate)
	}
	return total, nil
}

// GetTenants returns the distinct tenants with at least one non-sentinel
// frame inside the window.
func (s *QueryService) GetTenants(ctx context.Context, begin, end *time.Time) ([]string, error) {
	w := billing.ResolveWindowAt(begin, end, s.now())
	return s.repo.DistinctTenants(ctx, w)
}

// GetTimeFrame lists the raw frames in [begin, end) run through the
// collector once per frame. Zero matches is an explicit ErrNoTimeFrame,
// never an empty result: callers distinguish "billing never ran" from
// "ran with nothing to show".
func (s *QueryService) GetTimeFrame(ctx context.Context, begin, end time.Time, tenantID, service string) ([]billing.CollectedRecord, error) {
	frames, err := s.repo.Find(ctx, billing.FrameFilter{
		Window:   billing.Window{Begin: begin, End: end},
		TenantID: tenantID,
		ResType:  service,
	})
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		s.logger.Debug("no frames in requested window",
			zap.String("tenant_id", tenantID),
			zap.Time("begin", begin),
			zap.Time("end", end),
		)
		return nil, shared.ErrNoTimeFrame
	}

	records := make([]billing.CollectedRecord, len(frames))
	for i, f := range frames {
		records[i], err = s.collector.Collect(f)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// GetProjectUsage groups matching frames by (tenant, res_type, unit),
// summing qty and rate per group, and folds the groups into a per-tenant
// breakdown with an exact running charge total.
func (s *QueryService) GetProjectUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (ProjectUsage, error) {
	frames, err := s.find(ctx, begin, end, tenantID, service)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		tenantID string
		resType  string
		unit     string
	}
	groups := make(map[groupKey]*ResourceUsage)
	var order []groupKey
	for _, f := range frames {
		k := groupKey{tenantID: f.TenantID, resType: f.ResType, unit: f.Unit}
		g, ok := groups[k]
		if !ok {
			g = &ResourceUsage{Unit: f.Unit}
			groups[k] = g
			order = append(order, k)
		}
		g.Qty = g.Qty.Add(f.Qty)
		g.Rate = g.Rate.Add(f.Rate)
	}

	usage := make(ProjectUsage)
	for _, k := range order {
		g := groups[k]
		tu, ok := usage[k.tenantID]
		if !ok {
			tu = &TenantUsage{Resources: make(map[string][]ResourceUsage)}
			usage[k.tenantID] = tu
		}
		tu.Total.Rate = tu.Total.Rate.Add(g.Rate)
		tu.Resources[k.resType] = append(tu.Resources[k.resType], *g)
	}
	return usage, nil
}

// GetInstanceUsage is GetProjectUsage extended by instance attribution: each
// group is classified to a logical instance via the resource classification
// table before folding.
func (s *QueryService) GetInstanceUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (InstanceUsageReport, error) {
	frames, err := s.find(ctx, begin, end, tenantID, service)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		tenantID   string
		resType    string
		unit       string
		instanceID string
	}
	type group struct {
		usage        ResourceUsage
		instanceName string
	}
	groups := make(map[groupKey]*group)
	var order []groupKey
	for _, f := range frames {
		k := groupKey{
			tenantID:   f.TenantID,
			resType:    f.ResType,
			unit:       f.Unit,
			instanceID: billing.InstanceID(f.ResType, f.Desc),
		}
		g, ok := groups[k]
		if !ok {
			g = &group{usage: ResourceUsage{Unit: f.Unit}}
			groups[k] = g
			order = append(order, k)
		}
		g.usage.Qty = g.usage.Qty.Add(f.Qty)
		g.usage.Rate = g.usage.Rate.Add(f.Rate)
		if g.instanceName == "" {
			g.instanceName = billing.InstanceName(f.ResType, f.Desc)
		}
	}

	report := make(InstanceUsageReport)
	for _, k := range order {
		g := groups[k]
		tenant, ok := report[k.tenantID]
		if !ok {
			tenant = make(map[string]*InstanceUsage)
			report[k.tenantID] = tenant
		}
		inst, ok := tenant[k.instanceID]
		if !ok {
			inst = &InstanceUsage{
				InstanceID: k.instanceID,
				Resources:  make(map[string][]ResourceUsage),
			}
			tenant[k.instanceID] = inst
		}
		// Image frames carry no name field; keep the first name any
		// group contributes for the instance.
		if inst.InstanceName == "" {
			inst.InstanceName = g.instanceName
		}
		inst.Resources[k.resType] = append(inst.Resources[k.resType], g.usage)
	}
	return report, nil
}

// GetBandwidthHourlyUsage pivots the two bandwidth resource types into two
// columns per (begin, end, tenant, unit) group; frames of the other
// direction contribute zero to a column. The totals sum each column across
// every returned row.
func (s *QueryService) GetBandwidthHourlyUsage(ctx context.Context, begin, end *time.Time, tenantID, service string) (*BandwidthUsage, error) {
	frames, err := s.find(ctx, begin, end, tenantID, service)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		begin    time.Time
		end      time.Time
		tenantID string
		unit     string
	}
	groups := make(map[groupKey]*BandwidthRow)
	var order []groupKey
	for _, f := range frames {
		if !f.IsBandwidth() {
			continue
		}
		k := groupKey{begin: f.Begin, end: f.End, tenantID: f.TenantID, unit: f.Unit}
		row, ok := groups[k]
		if !ok {
			row = &BandwidthRow{Begin: f.Begin, End: f.End, TenantID: f.TenantID, Unit: f.Unit}
			groups[k] = row
			order = append(order, k)
		}
		if f.ResType == billing.ResTypeBandwidthIn {
			row.In = row.In.Add(f.Qty)
		} else {
			row.Out = row.Out.Add(f.Qty)
		}
	}

	usage := &BandwidthUsage{Data: make([]BandwidthRow, 0, len(order))}
	for _, k := range order {
		row := groups[k]
		usage.Data = append(usage.Data, *row)
		usage.Total.In = usage.Total.In.Add(row.In)
		usage.Total.Out = usage.Total.Out.Add(row.Out)
		usage.Total.Unit = row.Unit
	}
	return usage, nil
}

// find fetches frames for the resolved window and filters. Sentinel
// exclusion follows the FrameFilter contract: excluded unless the service
// filter names `_NO_DATA_` explicitly.
func (s *QueryService) find(ctx context.Context, begin, end *time.Time, tenantID, service string) ([]*billing.RatedFrame, error) {
	w := billing.ResolveWindowAt(begin, end, s.now())
	return s.repo.Find(ctx, billing.FrameFilter{
		Window:   w,
		TenantID: tenantID,
		ResType:  service,
	})
}
