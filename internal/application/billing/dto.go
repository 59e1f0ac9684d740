package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResourceUsage is one summed (res_type, unit) group in a usage report
type ResourceUsage struct {
	Qty  decimal.Decimal `json:"qty"`
	Unit string          `json:"unit"`
	Rate decimal.Decimal `json:"rate"`
}

// TenantTotal carries the running charge total for one tenant
type TenantTotal struct {
	Rate decimal.Decimal `json:"rate"`
}

// TenantUsage is the per-tenant slice of a project usage report: the total
// charge plus one summed entry per (res_type, unit) group.
type TenantUsage struct {
	Total     TenantTotal                `json:"total"`
	Resources map[string][]ResourceUsage `json:"resources"`
}

// ProjectUsage maps tenant id to its usage breakdown
type ProjectUsage map[string]*TenantUsage

// InstanceUsage is the usage attributed to one logical instance
type InstanceUsage struct {
	InstanceID   string                     `json:"instance_id"`
	InstanceName string                     `json:"instance_name"`
	Resources    map[string][]ResourceUsage `json:"resources"`
}

// InstanceUsageReport maps tenant id to instance id to attributed usage
type InstanceUsageReport map[string]map[string]*InstanceUsage

// BandwidthRow is one pivoted (begin, end, tenant, unit) group: inbound and
// outbound bandwidth in two columns, zero where a direction has no frames.
type BandwidthRow struct {
	Begin    time.Time       `json:"begin"`
	End      time.Time       `json:"end"`
	TenantID string          `json:"tenant_id"`
	Unit     string          `json:"unit"`
	In       decimal.Decimal `json:"network.bw.in"`
	Out      decimal.Decimal `json:"network.bw.out"`
}

// BandwidthTotal carries the grand totals across all returned rows
type BandwidthTotal struct {
	In   decimal.Decimal `json:"network.bw.in"`
	Out  decimal.Decimal `json:"network.bw.out"`
	Unit string          `json:"unit"`
}

// BandwidthUsage is the hourly bandwidth pivot result
type BandwidthUsage struct {
	Data  []BandwidthRow `json:"data"`
	Total BandwidthTotal `json:"total"`
}
