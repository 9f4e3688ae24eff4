//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/adapter"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/adapters/payment"
)

// -----------------------------
// Utilities
// -----------------------------

// testClock is a settable wall clock shared by the use cases under test.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func cloneMembership(m *model.Membership) *model.Membership {
	cp := *m
	cp.Features = append([]string(nil), m.Features...)
	return &cp
}

func cloneTransaction(t *model.Transaction) *model.Transaction {
	cp := *t
	cp.PaymentResponse = append([]byte(nil), t.PaymentResponse...)
	return &cp
}

// =============================
// Repositories
// =============================

// ---- In-memory PlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{byID: map[string]*model.Plan{}}
}

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		p.ID = cp.ID
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) list(activeOnly bool) []*model.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Plan, 0, len(r.byID))
	for _, p := range r.byID {
		if activeOnly && !p.IsActive() {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func (r *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return r.list(false), nil
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return r.list(true), nil
}

// Delete deactivates, mirroring the Postgres soft delete.
func (r *MockPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.PlanStatusInactive
	return nil
}

// ---- In-memory MembershipRepository ----

type MockMembershipRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Membership

	// Writes counts every row the repository changed.
	Writes int

	UpdateFunc func(ctx context.Context, tx repository.Tx, m *model.Membership) error
}

var _ repository.MembershipRepository = (*MockMembershipRepo)(nil)

func NewMockMembershipRepo() *MockMembershipRepo {
	return &MockMembershipRepo{byID: map[string]*model.Membership{}}
}

func (r *MockMembershipRepo) Create(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.byID {
		if x.UserID == m.UserID && x.PlanID == m.PlanID {
			return domain.ErrAlreadyExists
		}
	}
	r.byID[m.ID] = cloneMembership(m)
	r.Writes++
	return nil
}

func (r *MockMembershipRepo) Update(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, tx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; !ok {
		return domain.ErrNotFound
	}
	r.byID[m.ID] = cloneMembership(m)
	r.Writes++
	return nil
}

func (r *MockMembershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneMembership(m), nil
}

func (r *MockMembershipRepo) FindByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.UserID == userID && m.PlanID == planID {
			return cloneMembership(m), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockMembershipRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Membership, error) {
	items, _, err := r.List(ctx, tx, repository.MembershipFilter{UserID: userID})
	return items, err
}

func (r *MockMembershipRepo) List(ctx context.Context, tx repository.Tx, f repository.MembershipFilter) ([]*model.Membership, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Membership
	for _, m := range r.byID {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.UserID != "" && m.UserID != f.UserID {
			continue
		}
		all = append(all, cloneMembership(m))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset >= total {
		return []*model.Membership{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *MockMembershipRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Membership
	for _, m := range r.byID {
		if m.Status == model.MembershipStatusActive && !m.EndDate.After(now) {
			m.Status = model.MembershipStatusExpired
			m.UpdatedAt = now
			r.Writes++
			out = append(out, cloneMembership(m))
		}
	}
	return out, nil
}

func (r *MockMembershipRepo) LockPair(ctx context.Context, tx repository.Tx, userID, planID string) error {
	return nil
}

// Remove drops a row behind the use case's back.
func (r *MockMembershipRepo) Remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *MockMembershipRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ---- In-memory TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.Transaction

	// Writes counts every row the repository changed.
	Writes int
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byRef: map[string]*model.Transaction{}}
}

func (r *MockTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[t.Reference]; ok {
		return domain.ErrAlreadyExists
	}
	r.byRef[t.Reference] = cloneTransaction(t)
	r.Writes++
	return nil
}

func (r *MockTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (r *MockTransactionRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byRef {
		if t.IsPending() && t.UserID == userID && t.Metadata.PlanID == planID {
			return cloneTransaction(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) UpdateReference(ctx context.Context, tx repository.Tx, id, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, t := range r.byRef {
		if t.ID == id {
			delete(r.byRef, ref)
			t.Reference = reference
			r.byRef[reference] = t
			r.Writes++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockTransactionRepo) SetAuthorizationURL(ctx context.Context, tx repository.Tx, reference, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return domain.ErrNotFound
	}
	t.AuthorizationURL = url
	r.Writes++
	return nil
}

// UpdateStatus applies to pending rows, and lets a success replace any other
// final status. A stored success is never overwritten.
func (r *MockTransactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, u repository.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[u.Reference]
	if !ok {
		return false, nil
	}
	applies := t.Status == model.TransactionStatusPending ||
		(u.Status == model.TransactionStatusSuccess && t.Status != model.TransactionStatusSuccess)
	if !applies {
		return false, nil
	}
	t.Status = u.Status
	if u.Metadata != nil {
		t.Metadata = *u.Metadata
	}
	if u.PaymentResponse != nil {
		t.PaymentResponse = append([]byte(nil), u.PaymentResponse...)
	}
	if u.PaidAt != nil {
		t.PaidAt = u.PaidAt
	}
	t.ActivationPending = u.ActivationPending
	t.UpdatedAt = time.Now()
	r.Writes++
	return true, nil
}

func (r *MockTransactionRepo) MarkActivated(ctx context.Context, tx repository.Tx, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok {
		return domain.ErrNotFound
	}
	if t.ActivationPending {
		t.ActivationPending = false
		r.Writes++
	}
	return nil
}

func (r *MockTransactionRepo) filter(keep func(*model.Transaction) bool, limit int) []*model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.byRef {
		if keep(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MockTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	return r.filter(func(t *model.Transaction) bool { return t.UserID == userID }, 0), nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return r.filter(func(t *model.Transaction) bool {
		return t.IsPending() && t.CreatedAt.Before(olderThan)
	}, limit), nil
}

func (r *MockTransactionRepo) ListAwaitingActivation(ctx context.Context, tx repository.Tx, limit int) ([]*model.Transaction, error) {
	return r.filter(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusSuccess && t.ActivationPending
	}, limit), nil
}

func (r *MockTransactionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRef)
}

// Only returns the single stored transaction; it panics when there is not exactly one.
func (r *MockTransactionRepo) Only() *model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byRef) != 1 {
		panic(fmt.Sprintf("expected exactly one transaction, have %d", len(r.byRef)))
	}
	for _, t := range r.byRef {
		return cloneTransaction(t)
	}
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

// MockGateway opens fake checkouts and answers verifies from Results. Webhook
// signing and parsing are the real Paystack ones.
type MockGateway struct {
	mu     sync.Mutex
	Secret string

	InitializeFunc func(ctx context.Context, req adapter.InitializeRequest) (adapter.InitializeResult, error)
	VerifyFunc     func(ctx context.Context, reference string) (adapter.VerifyResult, error)

	// Results answers VerifyByReference; a missing reference verifies as pending.
	Results map[string]adapter.VerifyResult

	Initialized []adapter.InitializeRequest
	Verified    []string
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{Secret: secret, Results: map[string]adapter.VerifyResult{}}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) NewReference() string { return payment.NewReference() }

func (g *MockGateway) Initialize(ctx context.Context, req adapter.InitializeRequest) (adapter.InitializeResult, error) {
	g.mu.Lock()
	g.Initialized = append(g.Initialized, req)
	g.mu.Unlock()
	if g.InitializeFunc != nil {
		return g.InitializeFunc(ctx, req)
	}
	return adapter.InitializeResult{
		AuthorizationURL: "https://checkout.test/" + req.Reference,
		Reference:        req.Reference,
		AccessCode:       "ac_" + req.Reference,
	}, nil
}

func (g *MockGateway) VerifyByReference(ctx context.Context, reference string) (adapter.VerifyResult, error) {
	g.mu.Lock()
	g.Verified = append(g.Verified, reference)
	res, ok := g.Results[reference]
	g.mu.Unlock()
	if g.VerifyFunc != nil {
		return g.VerifyFunc(ctx, reference)
	}
	if !ok {
		return adapter.VerifyResult{Status: adapter.VerifyStatusPending, Reference: reference}, nil
	}
	return res, nil
}

// Answer sets the verify result for reference.
func (g *MockGateway) Answer(reference string, status adapter.VerifyStatus, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Results[reference] = adapter.VerifyResult{Status: status, Reference: reference, Amount: amount}
}

func (g *MockGateway) InitializeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Initialized)
}

func (g *MockGateway) VerifyWebhookSignature(raw []byte, header string) bool {
	return payment.VerifySignature(g.Secret, raw, header)
}

func (g *MockGateway) ParseWebhookEvent(raw []byte) (adapter.WebhookEvent, bool, error) {
	return payment.ParseWebhookEvent(raw)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error

	Acquired int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Acquired++
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// Hold takes key on behalf of another process.
func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	l.held[key] = "other-process"
	l.mu.Unlock()
}

func (l *MockLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// ---- In-memory RateLimiter ----

type MockRateLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	Err  error
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{hits: map[string]int{}}
}

func (r *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[key]++
	return r.hits[key] <= limit, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
