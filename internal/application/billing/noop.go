package billing

import "github.com/cloudmeter/backend/internal/domain/billing"

// Processor transforms a tenant's rated usage batch before it is dispatched
// to storage.
type Processor interface {
	Enabled() bool
	Process(batch UsageBatch) UsageBatch
}

// NoopProcessor leaves every entry's quantities and rates untouched but
// guarantees the billing metadata map exists, so downstream consumers can
// index it without nil checks.
type NoopProcessor struct{}

var _ Processor = NoopProcessor{}

// Enabled always reports true; the noop processor is the default pipeline
// stage when no billing transformations are configured.
func (NoopProcessor) Enabled() bool { return true }

// Process ensures entry.Billing is non-nil for every entry in the batch.
func (NoopProcessor) Process(batch UsageBatch) UsageBatch {
	for _, entries := range batch.Usage {
		for i := range entries {
			if entries[i].Billing == nil {
				entries[i].Billing = billing.Metadata{}
			}
		}
	}
	return batch
}
