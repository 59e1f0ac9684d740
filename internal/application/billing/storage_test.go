package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls int
	err   error
}

func (m *fakeMigrator) Up() error {
	m.calls++
	return m.err
}

type recordingProcessor struct {
	disabled bool
	batches  []UsageBatch
}

func (p *recordingProcessor) Enabled() bool { return !p.disabled }

func (p *recordingProcessor) Process(batch UsageBatch) UsageBatch {
	p.batches = append(p.batches, batch)
	return batch
}

func TestStorage_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("runs migrations", func(t *testing.T) {
		migrator := &fakeMigrator{}
		storage := NewStorage(newMemFrameRepository(), nil, migrator, nil)

		require.NoError(t, storage.Init(ctx))
		assert.Equal(t, 1, migrator.calls)
	})

	t.Run("nil migrator is a no-op", func(t *testing.T) {
		storage := NewStorage(newMemFrameRepository(), nil, nil, nil)
		require.NoError(t, storage.Init(ctx))
	})

	t.Run("migration failure surfaces as storage error", func(t *testing.T) {
		migrator := &fakeMigrator{err: errors.New("connection refused")}
		storage := NewStorage(newMemFrameRepository(), nil, migrator, nil)

		err := storage.Init(ctx)
		assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	})
}

func TestStorage_DispatchAndFinalize(t *testing.T) {
	ctx := context.Background()

	t.Run("full write cycle", func(t *testing.T) {
		repo := newMemFrameRepository()
		storage := NewStorage(repo, nil, nil, nil)
		w := julyWindow()

		usage := Usage{
			billing.ResTypeCompute: {
				computeEntry("1", "0.5", billing.Metadata{"name": "web-1"}),
				computeEntry("1", "0.5", billing.Metadata{"name": "web-2"}),
			},
			billing.ResTypeImage: {
				computeEntry("3", "0.1", nil),
			},
		}
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))

		// Not yet visible to readers.
		total, err := storage.GetTotal(ctx, &w.Begin, &w.End, "tenant-1", "")
		require.NoError(t, err)
		assert.True(t, total.IsZero())

		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))

		total, err = storage.GetTotal(ctx, &w.Begin, &w.End, "tenant-1", "")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("1.1")), "got %s", total)
	})

	t.Run("multiple dispatches share one session", func(t *testing.T) {
		repo := newMemFrameRepository()
		storage := NewStorage(repo, nil, nil, nil)
		w := julyWindow()

		usage := Usage{billing.ResTypeCompute: {computeEntry("1", "1", nil)}}
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))

		total, err := storage.GetTotal(ctx, &w.Begin, &w.End, "tenant-1", "")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(2)))
	})

	t.Run("finalize without dispatch writes sentinel", func(t *testing.T) {
		repo := newMemFrameRepository()
		storage := NewStorage(repo, nil, nil, nil)
		w := julyWindow()

		require.NoError(t, storage.Dispatch(ctx, "tenant-1", Usage{}, w))
		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))

		frames, err := repo.Find(ctx, billing.FrameFilter{Window: w, ResType: billing.ResTypeNoData})
		require.NoError(t, err)
		assert.Len(t, frames, 1)
	})

	t.Run("finalize without session fails", func(t *testing.T) {
		storage := NewStorage(newMemFrameRepository(), nil, nil, nil)
		err := storage.FinalizeAndClose(ctx, "tenant-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("dispatch runs batches through the processor", func(t *testing.T) {
		repo := newMemFrameRepository()
		recorder := &recordingProcessor{}
		storage := NewStorage(repo, nil, nil, nil).WithProcessor(recorder)
		w := julyWindow()

		usage := Usage{billing.ResTypeCompute: {computeEntry("1", "1", nil)}}
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))

		require.Len(t, recorder.batches, 1)
		assert.Equal(t, "tenant-1", recorder.batches[0].TenantID)
		assert.Len(t, recorder.batches[0].Usage[billing.ResTypeCompute], 1)
	})

	t.Run("disabled processor is skipped", func(t *testing.T) {
		repo := newMemFrameRepository()
		recorder := &recordingProcessor{disabled: true}
		storage := NewStorage(repo, nil, nil, nil).WithProcessor(recorder)
		w := julyWindow()

		usage := Usage{billing.ResTypeCompute: {computeEntry("1", "1", nil)}}
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))

		assert.Empty(t, recorder.batches)
		assert.Equal(t, 1, repo.committedCount())
	})

	t.Run("abandon discards pending frames", func(t *testing.T) {
		repo := newMemFrameRepository()
		storage := NewStorage(repo, nil, nil, nil)
		w := julyWindow()

		usage := Usage{billing.ResTypeCompute: {computeEntry("1", "1", nil)}}
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		storage.Abandon("tenant-1")

		assert.Equal(t, 0, repo.committedCount())

		// A fresh cycle works afterwards.
		require.NoError(t, storage.Dispatch(ctx, "tenant-1", usage, w))
		require.NoError(t, storage.FinalizeAndClose(ctx, "tenant-1"))
		assert.Equal(t, 1, repo.committedCount())
	})
}
