package billing

import (
	"testing"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProcessor(t *testing.T) {
	p := NoopProcessor{}
	assert.True(t, p.Enabled())

	t.Run("fills missing billing metadata", func(t *testing.T) {
		q := decimal.NewFromInt(1)
		batch := UsageBatch{
			TenantID: "tenant-1",
			Usage: Usage{
				billing.ResTypeCompute: {
					{Vol: Volume{Qty: &q, Unit: "instance"}},
					{Vol: Volume{Qty: &q, Unit: "instance"}, Billing: billing.Metadata{"plan": "flat"}},
				},
			},
		}

		out := p.Process(batch)

		assert.Equal(t, "tenant-1", out.TenantID)
		entries := out.Usage[billing.ResTypeCompute]
		require.Len(t, entries, 2)
		assert.NotNil(t, entries[0].Billing)
		assert.Empty(t, entries[0].Billing)
		assert.Equal(t, billing.Metadata{"plan": "flat"}, entries[1].Billing,
			"existing metadata is untouched")
	})

	t.Run("quantities and rates pass through", func(t *testing.T) {
		q := decimal.RequireFromString("2.5")
		batch := UsageBatch{
			TenantID: "tenant-1",
			Usage: Usage{
				billing.ResTypeCompute: {
					{Vol: Volume{Qty: &q, Unit: "instance"}, Rating: &Rating{Price: decimal.NewFromInt(3)}},
				},
			},
		}

		out := p.Process(batch)

		entry := out.Usage[billing.ResTypeCompute][0]
		assert.True(t, entry.Vol.Qty.Equal(q))
		assert.True(t, entry.Rating.Price.Equal(decimal.NewFromInt(3)))
	})
}
