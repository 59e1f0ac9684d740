package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloudmeter/backend/internal/domain/billing"
)

// memFrameRepository is an in-memory FrameRepository with real transaction
// semantics: appended frames stay invisible until Commit.
type memFrameRepository struct {
	mu     sync.Mutex
	frames []*billing.RatedFrame
}

func newMemFrameRepository() *memFrameRepository {
	return &memFrameRepository{}
}

func (r *memFrameRepository) Begin(ctx context.Context) (billing.FrameTx, error) {
	return &memFrameTx{repo: r}, nil
}

func (r *memFrameRepository) Find(ctx context.Context, filter billing.FrameFilter) ([]*billing.RatedFrame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*billing.RatedFrame
	for _, f := range r.frames {
		if !filter.Window.Begin.IsZero() && f.Begin.Before(filter.Window.Begin) {
			continue
		}
		if !filter.Window.End.IsZero() && !f.Begin.Before(filter.Window.End) {
			continue
		}
		if filter.TenantID != "" && f.TenantID != filter.TenantID {
			continue
		}
		if filter.ResType != "" {
			if f.ResType != filter.ResType {
				continue
			}
		} else if f.IsNoData() {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Begin.Before(out[j].Begin) })
	return out, nil
}

func (r *memFrameRepository) LatestBegin(ctx context.Context, tenantID string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *time.Time
	for _, f := range r.frames {
		if tenantID != "" && f.TenantID != tenantID {
			continue
		}
		if latest == nil || f.Begin.After(*latest) {
			b := f.Begin
			latest = &b
		}
	}
	return latest, nil
}

func (r *memFrameRepository) DistinctTenants(ctx context.Context, w billing.Window) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, f := range r.frames {
		if f.IsNoData() || f.Begin.Before(w.Begin) || !f.Begin.Before(w.End) {
			continue
		}
		seen[f.TenantID] = true
	}
	tenants := make([]string, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (r *memFrameRepository) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type memFrameTx struct {
	repo    *memFrameRepository
	pending []*billing.RatedFrame
	done    bool
}

func (t *memFrameTx) Append(ctx context.Context, frame *billing.RatedFrame) error {
	t.pending = append(t.pending, frame)
	return nil
}

func (t *memFrameTx) Commit() error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.frames = append(t.repo.frames, t.pending...)
	t.done = true
	return nil
}

func (t *memFrameTx) Rollback() error {
	t.pending = nil
	t.done = true
	return nil
}

var _ billing.FrameRepository = (*memFrameRepository)(nil)
