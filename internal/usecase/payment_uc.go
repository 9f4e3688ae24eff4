// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/adapter"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/logging"
	"gym-membership/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type InitializeInput struct {
	UserID string
	Email  string
	PlanID string
}

type InitializeOutput struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
	AlreadyExists    bool   `json:"alreadyExists"`
}

// SettleOutcome is the result of applying one gateway outcome.
type SettleOutcome struct {
	Reference    string
	Status       model.TransactionStatus // stored status after the call
	Applied      bool                    // false when the transaction was already settled
	Activated    bool
	MembershipID string
}

type PaymentUseCase interface {
	InitializePayment(ctx context.Context, in InitializeInput) (*InitializeOutput, error)
	// ReconcileWebhookEvent verifies signature over raw before anything else.
	ReconcileWebhookEvent(ctx context.Context, raw []byte, signature string) (*SettleOutcome, error)
	ReconcileVerifyReturn(ctx context.Context, reference string) (*SettleOutcome, error)

	// RetryActivations activates memberships for payments that succeeded while the
	// activation write failed.
	RetryActivations(ctx context.Context, limit int) (int, error)
	// ReconcileStalePending re-verifies pending transactions older than olderThan.
	ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// PaymentOptions tunes the payment flow. Zero values pick defaults.
type PaymentOptions struct {
	CallbackURL    string
	InitRateLimit  int
	InitRateWindow time.Duration
	SettleLockTTL  time.Duration
}

type paymentUC struct {
	memberships MembershipUseCase
	membersRepo repository.MembershipRepository
	ledger      *Ledger
	txs         repository.TransactionRepository
	tm          repository.TransactionManager
	gateway     adapter.PaymentGateway
	locker      adapter.Locker      // optional
	limiter     adapter.RateLimiter // optional
	opts        PaymentOptions
	log         *zerolog.Logger
	now         func() time.Time
}

func NewPaymentUseCase(
	memberships MembershipUseCase,
	membersRepo repository.MembershipRepository,
	txs repository.TransactionRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.InitRateLimit <= 0 {
		opts.InitRateLimit = 5
	}
	if opts.InitRateWindow <= 0 {
		opts.InitRateWindow = time.Minute
	}
	if opts.SettleLockTTL <= 0 {
		opts.SettleLockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		memberships: memberships,
		membersRepo: membersRepo,
		ledger:      NewLedger(txs, logger),
		txs:         txs,
		tm:          tm,
		gateway:     gateway,
		opts:        opts,
		log:         &l,
		now:         time.Now,
	}
}

// SetLocker enables a per-reference distributed lock around settlement.
func (u *paymentUC) SetLocker(l adapter.Locker) { u.locker = l }

// SetRateLimiter enables the per-user limit on InitializePayment.
func (u *paymentUC) SetRateLimiter(r adapter.RateLimiter) { u.limiter = r }

// SetClock replaces the wall clock, for tests and replays.
func (u *paymentUC) SetClock(now func() time.Time) { u.now = now }

func (u *paymentUC) InitializePayment(ctx context.Context, in InitializeInput) (*InitializeOutput, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.InitializePayment")()
	log := logging.With(ctx, u.log)

	if in.UserID == "" || in.PlanID == "" || in.Email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, initRateKey(in.UserID), u.opts.InitRateLimit, u.opts.InitRateWindow)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	var (
		t      *model.Transaction
		reused bool
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.membersRepo.LockPair(ctx, tx, in.UserID, in.PlanID); err != nil {
			return err
		}
		// A live checkout for this pair short-circuits before the membership is touched.
		if pending, err := u.txs.FindPendingByUserAndPlan(ctx, tx, in.UserID, in.PlanID); err == nil && pending.AuthorizationURL != "" {
			t, reused = pending, true
			return nil
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		m, pt, err := u.memberships.SubscribeTx(ctx, tx, in.UserID, in.PlanID)
		if err != nil {
			return err
		}
		t, reused, err = u.ledger.Create(ctx, tx, m, pt, in.Email, u.gateway.NewReference(), u.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if reused && t.AuthorizationURL != "" {
		log.Info().Str("reference", t.Reference).Msg("reusing pending transaction")
		return &InitializeOutput{AuthorizationURL: t.AuthorizationURL, Reference: t.Reference, AlreadyExists: true}, nil
	}

	metrics.IncPayment("initiated")
	res, err := u.gateway.Initialize(ctx, adapter.InitializeRequest{
		Email:       in.Email,
		Amount:      t.Amount,
		Reference:   t.Reference,
		CallbackURL: u.opts.CallbackURL,
		Metadata: map[string]interface{}{
			"userId":       t.UserID,
			"planId":       t.Metadata.PlanID,
			"planName":     t.Metadata.PlanName,
			"paymentType":  string(t.Metadata.PaymentType),
			"membershipId": t.MembershipID,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Str("reference", t.Reference).Msg("gateway initialize failed")
		metrics.IncGatewayError(u.gateway.Name(), "initialize")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if err := u.ledger.SetAuthorizationURL(ctx, t.Reference, res.AuthorizationURL); err != nil {
		// The payer can still complete checkout; the next init re-references this row.
		log.Error().Err(err).Str("reference", t.Reference).Msg("failed to store authorization url")
	}
	return &InitializeOutput{AuthorizationURL: res.AuthorizationURL, Reference: t.Reference, AlreadyExists: false}, nil
}

func (u *paymentUC) ReconcileWebhookEvent(ctx context.Context, raw []byte, signature string) (*SettleOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReconcileWebhookEvent")()

	if !u.gateway.VerifyWebhookSignature(raw, signature) {
		metrics.IncWebhook("invalid_signature")
		return nil, domain.ErrInvalidSignature
	}
	ev, ok, err := u.gateway.ParseWebhookEvent(raw)
	if err != nil {
		metrics.IncWebhook("malformed")
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if !ok {
		metrics.IncWebhook("ignored")
		u.log.Debug().Str("event", ev.Event).Msg("webhook event ignored")
		return nil, nil
	}
	if ev.Reference == "" {
		metrics.IncWebhook("no_reference")
		return nil, domain.ErrNoReference
	}
	metrics.IncWebhook("accepted")

	userID, _ := ev.Metadata["userId"].(string)
	planID, _ := ev.Metadata["planId"].(string)
	return u.settle(ctx, settlement{
		source:    "webhook",
		reference: ev.Reference,
		status:    ev.Status,
		amount:    ev.Amount,
		paidAt:    ev.PaidAt,
		reason:    ev.Reason,
		raw:       ev.Raw,
		locate:    u.locateByPair(userID, planID),
	})
}

func (u *paymentUC) ReconcileVerifyReturn(ctx context.Context, reference string) (*SettleOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReconcileVerifyReturn")()

	if reference == "" {
		return nil, domain.ErrNoReference
	}
	if _, err := u.ledger.FindByReference(ctx, repository.NoTX, reference); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := u.gateway.VerifyByReference(ctx, reference)
	metrics.ObserveGatewayVerify(u.gateway.Name(), err == nil, time.Since(start))
	if err != nil {
		u.log.Error().Err(err).Str("reference", reference).Msg("gateway verify failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	return u.settle(ctx, settlement{
		source:    "verify",
		reference: reference,
		status:    res.Status,
		amount:    res.Amount,
		paidAt:    res.PaidAt,
		reason:    res.Reason,
		raw:       res.Raw,
		locate:    u.locateByTransaction,
	})
}

func (u *paymentUC) RetryActivations(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.RetryActivations")()

	waiting, err := u.txs.ListAwaitingActivation(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range waiting {
		activated, err := u.activate(ctx, t.Reference, u.locateByTransaction)
		if err != nil {
			u.log.Error().Err(err).Str("reference", t.Reference).Msg("activation retry failed")
			continue
		}
		if activated {
			n++
		}
	}
	if n > 0 {
		metrics.AddReconciled("activation_retry", n)
	}
	return n, nil
}

func (u *paymentUC) ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReconcileStalePending")()

	stale, err := u.txs.ListPendingOlderThan(ctx, repository.NoTX, u.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range stale {
		if t.AuthorizationURL == "" {
			// Never reached the gateway; nothing to verify.
			continue
		}
		res, err := u.gateway.VerifyByReference(ctx, t.Reference)
		if err != nil {
			u.log.Warn().Err(err).Str("reference", t.Reference).Msg("stale verify failed")
			continue
		}
		if res.Status == adapter.VerifyStatusPending {
			continue
		}
		out, err := u.settle(ctx, settlement{
			source:    "reconciler",
			reference: t.Reference,
			status:    res.Status,
			amount:    res.Amount,
			paidAt:    res.PaidAt,
			reason:    res.Reason,
			raw:       res.Raw,
			locate:    u.locateByTransaction,
		})
		if err != nil {
			u.log.Error().Err(err).Str("reference", t.Reference).Msg("stale settle failed")
			continue
		}
		if out.Applied {
			n++
		}
	}
	if n > 0 {
		metrics.AddReconciled("stale_pending", n)
	}
	return n, nil
}

func initRateKey(userID string) string { return "rate_limit:payment_init:" + userID }

func settleLockKey(reference string) string { return "lock:settle:" + reference }
