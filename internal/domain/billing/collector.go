package billing

import "github.com/shopspring/decimal"

// CollectedRecord is the shape handed back to the reporting layer for each
// stored frame: the usage volume, the rating attached to it, and the raw
// description, with the stored fields passed through unmodified.
type CollectedRecord struct {
	TenantID string          `json:"tenant_id"`
	ResType  string          `json:"res_type"`
	Qty      decimal.Decimal `json:"qty"`
	Unit     string          `json:"unit"`
	Rate     decimal.Decimal `json:"rate"`
	Desc     Metadata        `json:"desc"`
	Begin    string          `json:"begin"`
	End      string          `json:"end"`
}

// Collector converts a stored frame back into the reporting layer's usage
// record. The query engine guarantees it is invoked exactly once per frame
// returned by a raw time-frame listing.
type Collector interface {
	Collect(frame *RatedFrame) (CollectedRecord, error)
}

// PassthroughCollector is the default collector: it copies the stored frame
// fields verbatim, formatting timestamps as RFC 3339 UTC.
type PassthroughCollector struct{}

// Collect implements Collector.
func (PassthroughCollector) Collect(frame *RatedFrame) (CollectedRecord, error) {
	return CollectedRecord{
		TenantID: frame.TenantID,
		ResType:  frame.ResType,
		Qty:      frame.Qty,
		Unit:     frame.Unit,
		Rate:     frame.Rate,
		Desc:     frame.Desc,
		Begin:    frame.Begin.UTC().Format("2006-01-02T15:04:05Z07:00"),
		End:      frame.End.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
