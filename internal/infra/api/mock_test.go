//go:build !integration

package api_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"gym-membership/internal/config"
	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/infra/api"
	"gym-membership/internal/infra/sched"
	"gym-membership/internal/usecase"
)

const testJWTSecret = "test-jwt-secret"
const testCronSecret = "cron-secret"

// --- Mock Use Cases ---

type mockPlanUC struct {
	usecase.PlanUseCase // Embed interface for forward compatibility
	ListFunc            func(ctx context.Context, includeInactive bool) ([]*model.Plan, error)
	GetFunc             func(ctx context.Context, id string) (*model.Plan, error)
	CreateFunc          func(ctx context.Context, in usecase.PlanInput) (*model.Plan, error)
	UpdateFunc          func(ctx context.Context, id string, in usecase.PlanInput) (*model.Plan, error)
	DeactivateFunc      func(ctx context.Context, id string) error
}

func (m *mockPlanUC) List(ctx context.Context, includeInactive bool) ([]*model.Plan, error) {
	return m.ListFunc(ctx, includeInactive)
}
func (m *mockPlanUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return m.GetFunc(ctx, id)
}
func (m *mockPlanUC) Create(ctx context.Context, in usecase.PlanInput) (*model.Plan, error) {
	return m.CreateFunc(ctx, in)
}
func (m *mockPlanUC) Update(ctx context.Context, id string, in usecase.PlanInput) (*model.Plan, error) {
	return m.UpdateFunc(ctx, id, in)
}
func (m *mockPlanUC) Deactivate(ctx context.Context, id string) error {
	return m.DeactivateFunc(ctx, id)
}

type mockMembershipUC struct {
	usecase.MembershipUseCase
	ListFunc        func(ctx context.Context, status model.MembershipStatus, page usecase.Page) (*usecase.MembershipPage, error)
	ListExpiredFunc func(ctx context.Context, page usecase.Page) (*usecase.MembershipPage, error)
	ListByUserFunc  func(ctx context.Context, userID string) ([]*model.Membership, error)
	GetFunc         func(ctx context.Context, actor usecase.Actor, id string) (*model.Membership, error)
	CancelFunc      func(ctx context.Context, actor usecase.Actor, id string) (*model.Membership, error)
}

func (m *mockMembershipUC) List(ctx context.Context, status model.MembershipStatus, page usecase.Page) (*usecase.MembershipPage, error) {
	return m.ListFunc(ctx, status, page)
}
func (m *mockMembershipUC) ListExpired(ctx context.Context, page usecase.Page) (*usecase.MembershipPage, error) {
	return m.ListExpiredFunc(ctx, page)
}
func (m *mockMembershipUC) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	return m.ListByUserFunc(ctx, userID)
}
func (m *mockMembershipUC) Get(ctx context.Context, actor usecase.Actor, id string) (*model.Membership, error) {
	return m.GetFunc(ctx, actor, id)
}
func (m *mockMembershipUC) Cancel(ctx context.Context, actor usecase.Actor, id string) (*model.Membership, error) {
	return m.CancelFunc(ctx, actor, id)
}

type mockPaymentUC struct {
	usecase.PaymentUseCase
	InitializeFunc func(ctx context.Context, in usecase.InitializeInput) (*usecase.InitializeOutput, error)
	WebhookFunc    func(ctx context.Context, raw []byte, signature string) (*usecase.SettleOutcome, error)
	VerifyFunc     func(ctx context.Context, reference string) (*usecase.SettleOutcome, error)
}

func (m *mockPaymentUC) InitializePayment(ctx context.Context, in usecase.InitializeInput) (*usecase.InitializeOutput, error) {
	return m.InitializeFunc(ctx, in)
}
func (m *mockPaymentUC) ReconcileWebhookEvent(ctx context.Context, raw []byte, signature string) (*usecase.SettleOutcome, error) {
	return m.WebhookFunc(ctx, raw, signature)
}
func (m *mockPaymentUC) ReconcileVerifyReturn(ctx context.Context, reference string) (*usecase.SettleOutcome, error) {
	return m.VerifyFunc(ctx, reference)
}

type mockLedger struct {
	ListByUserFunc func(ctx context.Context, userID string) ([]*model.Transaction, error)
}

func (m *mockLedger) ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return m.ListByUserFunc(ctx, userID)
}

type mockSweeper struct {
	calls int
	Err   error
}

func (m *mockSweeper) Sweep(ctx context.Context) (*usecase.ExpireResult, error) {
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	ms := []*model.Membership{{ID: "m-1", Status: model.MembershipStatusExpired}}
	return &usecase.ExpireResult{Count: len(ms), Memberships: ms}, nil
}

type mockReconciler struct{}

func (mockReconciler) RunOnce(ctx context.Context) (*sched.ReconcileResult, error) {
	return &sched.ReconcileResult{Activated: 1, Settled: 2}, nil
}

// --- Helpers ---

type testDeps struct {
	plans       *mockPlanUC
	memberships *mockMembershipUC
	payments    *mockPaymentUC
	ledger      *mockLedger
	sweeper     *mockSweeper
}

func newTestDeps() *testDeps {
	notImplemented := func() error { return domain.ErrOperationFailed }
	return &testDeps{
		plans: &mockPlanUC{
			ListFunc: func(ctx context.Context, includeInactive bool) ([]*model.Plan, error) { return nil, nil },
			GetFunc:  func(ctx context.Context, id string) (*model.Plan, error) { return nil, domain.ErrPlanNotFound },
		},
		memberships: &mockMembershipUC{
			ListByUserFunc: func(ctx context.Context, userID string) ([]*model.Membership, error) { return nil, nil },
		},
		payments: &mockPaymentUC{
			InitializeFunc: func(ctx context.Context, in usecase.InitializeInput) (*usecase.InitializeOutput, error) {
				return nil, notImplemented()
			},
		},
		ledger: &mockLedger{
			ListByUserFunc: func(ctx context.Context, userID string) ([]*model.Transaction, error) { return nil, nil },
		},
		sweeper: &mockSweeper{},
	}
}

func (d *testDeps) router() *api.Server {
	return d.routerWithLog(io.Discard)
}

func (d *testDeps) routerWithLog(w io.Writer) *api.Server {
	logger := zerolog.New(w)
	return api.NewServer(api.Deps{
		Plans:       d.plans,
		Memberships: d.memberships,
		Payments:    d.payments,
		Ledger:      d.ledger,
		Sweeper:     d.sweeper,
		Reconciler:  mockReconciler{},
		Auth:        api.NewAuthenticator(testJWTSecret, "", "admin", "email"),
	}, config.PagesConfig{
		SuccessURL: "https://gym.example/payment/success",
		FailureURL: "https://gym.example/payment/failed",
	}, testCronSecret, 5*time.Second, &logger)
}

func mintToken(t *testing.T, sub, email, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + tok
}
