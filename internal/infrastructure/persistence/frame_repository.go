package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RatedFrameModel is the GORM model for rated frames
type RatedFrameModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID  string          `gorm:"type:varchar(255);index;not null"`
	ResType   string          `gorm:"type:varchar(255);index;not null"`
	Unit      string          `gorm:"type:varchar(255);not null"`
	Qty       decimal.Decimal `gorm:"type:decimal(30,10);not null"`
	Rate      decimal.Decimal `gorm:"type:decimal(30,10);not null"`
	Desc      []byte          `gorm:"type:jsonb;default:'{}'"`
	Begin     time.Time       `gorm:"index;not null"`
	End       time.Time       `gorm:"not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (RatedFrameModel) TableName() string {
	return "rated_frames"
}

// ToEntity converts the model to a domain entity
func (m *RatedFrameModel) ToEntity() *billing.RatedFrame {
	var desc billing.Metadata
	if len(m.Desc) > 0 {
		_ = json.Unmarshal(m.Desc, &desc)
	}
	if desc == nil {
		desc = make(billing.Metadata)
	}

	return &billing.RatedFrame{
		ID:        m.ID,
		TenantID:  m.TenantID,
		ResType:   m.ResType,
		Unit:      m.Unit,
		Qty:       m.Qty,
		Rate:      m.Rate,
		Desc:      desc,
		Begin:     m.Begin,
		End:       m.End,
		CreatedAt: m.CreatedAt,
	}
}

// RatedFrameModelFromEntity creates a model from a domain entity
func RatedFrameModelFromEntity(e *billing.RatedFrame) *RatedFrameModel {
	descBytes, err := json.Marshal(e.Desc)
	if err != nil || e.Desc == nil {
		descBytes = []byte("{}")
	}

	return &RatedFrameModel{
		ID:        e.ID,
		TenantID:  e.TenantID,
		ResType:   e.ResType,
		Unit:      e.Unit,
		Qty:       e.Qty,
		Rate:      e.Rate,
		Desc:      descBytes,
		Begin:     e.Begin,
		End:       e.End,
		CreatedAt: e.CreatedAt,
	}
}

// FrameRepository implements the billing.FrameRepository interface
type FrameRepository struct {
	db *gorm.DB
}

// NewFrameRepository creates a new frame repository
func NewFrameRepository(db *gorm.DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// Begin opens a write transaction for appending frames
func (r *FrameRepository) Begin(ctx context.Context) (billing.FrameTx, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, shared.ErrStorageUnavailable.WithCause(tx.Error)
	}
	return &frameTx{tx: tx}, nil
}

// Find returns frames matching the filter ordered by begin, then creation time
func (r *FrameRepository) Find(ctx context.Context, filter billing.FrameFilter) ([]*billing.RatedFrame, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&RatedFrameModel{}), filter).
		Order(`"begin" ASC`).
		Order("created_at ASC")

	var models []RatedFrameModel
	if err := query.Find(&models).Error; err != nil {
		return nil, shared.ErrStorageUnavailable.WithCause(err)
	}

	frames := make([]*billing.RatedFrame, len(models))
	for i, model := range models {
		frames[i] = model.ToEntity()
	}
	return frames, nil
}

// LatestBegin returns the most recent frame begin for the tenant, or
// globally when tenantID is empty. Sentinel frames count: a period closed
// with no usage still advances the watermark.
func (r *FrameRepository) LatestBegin(ctx context.Context, tenantID string) (*time.Time, error) {
	query := r.db.WithContext(ctx).Model(&RatedFrameModel{})
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var model RatedFrameModel
	err := query.Order(`"begin" DESC`).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, shared.ErrStorageUnavailable.WithCause(err)
	}
	begin := model.Begin
	return &begin, nil
}

// DistinctTenants returns tenants with at least one non-sentinel frame in the window
func (r *FrameRepository) DistinctTenants(ctx context.Context, w billing.Window) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).
		Model(&RatedFrameModel{}).
		Distinct("tenant_id").
		Where(`"begin" >= ? AND "begin" < ?`, w.Begin, w.End).
		Where("res_type <> ?", billing.ResTypeNoData).
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error
	if err != nil {
		return nil, shared.ErrStorageUnavailable.WithCause(err)
	}
	return tenants, nil
}

// applyFilter builds the WHERE clause for a frame filter. The window is
// half-open on the frame's begin; an empty ResType excludes sentinel rows.
func (r *FrameRepository) applyFilter(query *gorm.DB, filter billing.FrameFilter) *gorm.DB {
	if !filter.Window.Begin.IsZero() {
		query = query.Where(`"begin" >= ?`, filter.Window.Begin)
	}
	if !filter.Window.End.IsZero() {
		query = query.Where(`"begin" < ?`, filter.Window.End)
	}
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.ResType != "" {
		query = query.Where("res_type = ?", filter.ResType)
	} else {
		query = query.Where("res_type <> ?", billing.ResTypeNoData)
	}
	return query
}

// frameTx wraps an open GORM transaction
type frameTx struct {
	tx   *gorm.DB
	done bool
}

// Append inserts a pending frame row into the open transaction
func (t *frameTx) Append(ctx context.Context, frame *billing.RatedFrame) error {
	if t.done {
		return shared.ErrInvalidState
	}
	model := RatedFrameModelFromEntity(frame)
	if err := t.tx.WithContext(ctx).Create(model).Error; err != nil {
		return shared.ErrStorageUnavailable.WithCause(err)
	}
	return nil
}

// Commit makes all appended frames visible to readers
func (t *frameTx) Commit() error {
	if t.done {
		return shared.ErrInvalidState
	}
	if err := t.tx.Commit().Error; err != nil {
		return shared.ErrStorageUnavailable.WithCause(err)
	}
	t.done = true
	return nil
}

// Rollback abandons all appended frames
func (t *frameTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback().Error; err != nil {
		return shared.ErrStorageUnavailable.WithCause(err)
	}
	return nil
}

// Ensure FrameRepository implements the interface
var _ billing.FrameRepository = (*FrameRepository)(nil)
