package billing

import (
	"context"
	"sync"

	"github.com/cloudmeter/backend/internal/domain/billing"
	"github.com/cloudmeter/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SessionRegistry hands out the single open write session per tenant.
// Sessions for different tenants are fully independent; the registry mutex
// only guards the map itself, each session serializes its own writers.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*TenantSession
	repo     billing.FrameRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSessionRegistry creates a session registry over a frame repository
func NewSessionRegistry(repo billing.FrameRepository, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		sessions: make(map[string]*TenantSession),
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// Acquire returns the open session for the tenant, opening a new write
// transaction when none exists. Acquiring is idempotent for the same period;
// acquiring while a session for a different period is open is an error.
//
// The registry mutex only guards the map: the session is published first and
// its transaction opened under the session's own lock, so a slow transaction
// open for one tenant never stalls acquires for other tenants. Concurrent
// acquirers of the same tenant wait on that session's lock instead.
func (r *SessionRegistry) Acquire(ctx context.Context, tenantID string, w billing.Window) (*TenantSession, error) {
	if tenantID == "" {
		return nil, shared.ErrInvalidInput.WithCause(shared.NewDomainError("INVALID_TENANT", "tenant id cannot be empty"))
	}

	r.mu.Lock()
	if s, ok := r.sessions[tenantID]; ok {
		r.mu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.tx == nil {
			return nil, shared.ErrStorageUnavailable.WithCause(
				shared.NewDomainError("SESSION_OPEN_FAILED", "session transaction failed to open"))
		}
		if !s.window.Equal(w) {
			return nil, shared.ErrInvalidState.WithCause(
				shared.NewDomainError("SESSION_PERIOD_MISMATCH", "an open session exists for a different period"))
		}
		return s, nil
	}

	s := &TenantSession{
		tenantID: tenantID,
		window:   w,
		validate: r.validate,
		logger:   r.logger.With(zap.String("tenant_id", tenantID)),
	}
	s.mu.Lock()
	r.sessions[tenantID] = s
	r.mu.Unlock()

	tx, err := r.repo.Begin(ctx)
	if err != nil {
		r.mu.Lock()
		delete(r.sessions, tenantID)
		r.mu.Unlock()
		s.mu.Unlock()
		return nil, err
	}
	s.tx = tx
	s.mu.Unlock()

	r.logger.Debug("opened tenant session",
		zap.String("tenant_id", tenantID),
		zap.Time("begin", w.Begin),
		zap.Time("end", w.End),
	)
	return s, nil
}

// Get returns the open session for the tenant, if any
func (r *SessionRegistry) Get(tenantID string) (*TenantSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tenantID]
	return s, ok
}

// Release removes the tenant's registry entry, rolling back any transaction
// that was never committed. It always runs to completion so a failed commit
// cannot leave a permanently stuck session; retrying after a failure means
// re-dispatching into a fresh session.
func (r *SessionRegistry) Release(tenantID string) {
	r.mu.Lock()
	s, ok := r.sessions[tenantID]
	delete(r.sessions, tenantID)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.committed && s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			s.logger.Warn("rollback of abandoned session failed", zap.Error(err))
		}
		s.logger.Info("abandoned uncommitted tenant session")
	}
}

// Len returns the number of open sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// TenantSession is the single open write transaction for one tenant and
// period. It is not reusable after a successful Finalize; the next period
// needs a fresh session.
type TenantSession struct {
	mu        sync.Mutex
	tenantID  string
	window    billing.Window
	tx        billing.FrameTx
	hasData   bool
	committed bool
	validate  *validator.Validate
	logger    *zap.Logger
}

// TenantID returns the tenant this session writes for
func (s *TenantSession) TenantID() string {
	return s.tenantID
}

// Window returns the billing period this session writes into
func (s *TenantSession) Window() billing.Window {
	return s.window
}

// Append normalizes an incoming usage entry into a rated frame stamped with
// the session period and inserts it as a pending row. A missing quantity or
// unit fails with ErrInvalidFrame; insert failures surface as
// ErrStorageUnavailable and leave the session open.
func (s *TenantSession) Append(ctx context.Context, resType string, entry UsageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed || s.tx == nil {
		return shared.ErrInvalidState.WithCause(
			shared.NewDomainError("SESSION_CLOSED", "session not open for writes"))
	}
	if err := s.validate.Struct(entry); err != nil {
		return shared.ErrInvalidFrame.WithCause(err)
	}

	frame, err := billing.NewRatedFrame(
		s.tenantID, resType, entry.Vol.Unit, *entry.Vol.Qty, entry.rate(), entry.Desc, s.window)
	if err != nil {
		return err
	}

	if err := s.tx.Append(ctx, frame); err != nil {
		return err
	}
	s.hasData = true
	return nil
}

// Finalize closes the period: when nothing was appended it first inserts
// exactly one `_NO_DATA_` sentinel so the tenant still has a row for the
// period, then commits. On failure the session stays registered and the
// caller decides between retry and Release.
func (s *TenantSession) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed || s.tx == nil {
		return shared.ErrInvalidState.WithCause(
			shared.NewDomainError("SESSION_CLOSED", "session not open for writes"))
	}

	if !s.hasData {
		sentinel, err := billing.NewNoDataFrame(s.tenantID, s.window)
		if err != nil {
			return err
		}
		if err := s.tx.Append(ctx, sentinel); err != nil {
			return err
		}
		s.logger.Debug("recorded empty period sentinel")
	}

	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.committed = true
	return nil
}
