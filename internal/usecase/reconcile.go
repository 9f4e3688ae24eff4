package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/adapter"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/logging"
	"gym-membership/internal/infra/metrics"
)

// locateFunc finds the membership a settled transaction pays for.
type locateFunc func(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Membership, error)

// settlement is one gateway outcome on its way into the ledger. Webhook, verify
// return and the stale reconciler all go through settle.
type settlement struct {
	source    string
	reference string
	status    adapter.VerifyStatus
	amount    int64
	paidAt    *time.Time
	reason    string
	raw       json.RawMessage
	locate    locateFunc
}

func toTransactionStatus(s adapter.VerifyStatus) (model.TransactionStatus, bool) {
	switch s {
	case adapter.VerifyStatusSuccess:
		return model.TransactionStatusSuccess, true
	case adapter.VerifyStatusFailed:
		return model.TransactionStatusFailed, true
	case adapter.VerifyStatusAbandoned:
		return model.TransactionStatusAbandoned, true
	case adapter.VerifyStatusTimeout:
		return model.TransactionStatusTimeout, true
	}
	return model.TransactionStatusPending, false
}

// settle records the outcome on the transaction and, for a successful payment,
// activates the membership. Both steps are conditional, so whichever of the
// webhook and the verify return arrives second is a no-op.
//
// The ledger write and the activation commit separately: a failed activation
// never rolls back a recorded payment. It leaves ActivationPending set for
// RetryActivations instead.
func (u *paymentUC) settle(ctx context.Context, s settlement) (*SettleOutcome, error) {
	l := logging.With(ctx, u.log).With().Str("reference", s.reference).Str("source", s.source).Logger()
	log := &l

	status, final := toTransactionStatus(s.status)
	out := &SettleOutcome{Reference: s.reference, Status: status}
	if !final {
		log.Debug().Msg("gateway reports payment still pending")
		return out, nil
	}

	if u.locker != nil {
		key := settleLockKey(s.reference)
		token, err := u.locker.TryLock(ctx, key, u.opts.SettleLockTTL)
		if err != nil {
			log.Warn().Err(err).Msg("settle lock not acquired, relying on conditional writes")
		} else {
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("settle unlock failed")
				}
			}()
		}
	}

	var (
		amount          int64
		currency        string
		needsActivation bool
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.ledger.FindByReference(ctx, tx, s.reference)
		if err != nil {
			return err
		}
		out.MembershipID = t.MembershipID
		amount, currency = t.Amount, t.Currency

		reason := s.reason
		if status == model.TransactionStatusSuccess && s.amount > 0 && s.amount != t.Amount {
			log.Error().Int64("expected", t.Amount).Int64("received", s.amount).Msg("amount mismatch, recording payment as failed")
			status = model.TransactionStatusFailed
			reason = fmt.Sprintf("amount mismatch: expected %d, received %d", t.Amount, s.amount)
		}

		now := u.now()
		md := t.Metadata
		md.StampOutcome(status, reason, now)
		upd := repository.StatusUpdate{
			Reference:       s.reference,
			Status:          status,
			Metadata:        &md,
			PaymentResponse: s.raw,
		}
		if status == model.TransactionStatusSuccess {
			paid := now
			if s.paidAt != nil {
				paid = *s.paidAt
			}
			upd.PaidAt = &paid
			upd.ActivationPending = true
		}
		applied, err := u.ledger.UpdateStatus(ctx, tx, upd)
		if err != nil {
			return err
		}

		out.Applied = applied
		out.Status = status
		if !applied {
			out.Status = t.Status
		}
		needsActivation = out.Status == model.TransactionStatusSuccess && (applied || t.ActivationPending)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			log.Warn().Msg("outcome for unknown reference ignored")
		}
		return nil, err
	}

	if out.Applied {
		metrics.IncPayment(string(out.Status))
		if out.Status == model.TransactionStatusSuccess {
			metrics.AddPaymentRevenue(currency, amount)
		}
		log.Info().Str("status", string(out.Status)).Msg("transaction settled")
	} else {
		log.Info().Str("stored_status", string(out.Status)).Str("incoming", string(status)).Msg("transaction already settled")
	}
	if !needsActivation {
		return out, nil
	}

	activated, err := u.activate(ctx, s.reference, s.locate)
	if err != nil {
		metrics.IncActivationFailure(s.source)
		log.Error().Err(err).Str("membership_id", out.MembershipID).Msg("payment recorded but membership activation failed, queued for retry")
		return out, nil
	}
	out.Activated = activated
	return out, nil
}

// activate applies a successful payment to its membership exactly once, guarded
// by the transaction's ActivationPending flag.
func (u *paymentUC) activate(ctx context.Context, reference string, locate locateFunc) (bool, error) {
	activated := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.ledger.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if t.Status != model.TransactionStatusSuccess || !t.ActivationPending {
			return nil
		}
		m, err := locate(ctx, tx, t)
		if err != nil {
			return fmt.Errorf("locate membership: %w", err)
		}

		err = u.memberships.ActivateTx(ctx, tx, m)
		switch {
		case errors.Is(err, domain.ErrAlreadyActive):
			u.log.Info().Str("reference", reference).Str("membership_id", m.ID).Msg("membership already active")
		case errors.Is(err, domain.ErrInvalidTransition):
			// Cancelled between checkout and payment; nothing to activate.
			u.log.Error().Str("reference", reference).Str("membership_id", m.ID).Str("status", string(m.Status)).
				Msg("payment received for a membership that cannot be activated, needs manual review")
		case err != nil:
			return err
		default:
			activated = true
		}
		return u.ledger.MarkActivated(ctx, tx, reference)
	})
	if err != nil {
		return false, err
	}
	if activated {
		metrics.IncMembershipActivated()
	}
	return activated, nil
}

func (u *paymentUC) locateByTransaction(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Membership, error) {
	return u.membersRepo.FindByID(ctx, tx, t.MembershipID)
}

// locateByPair finds the membership from webhook metadata, falling back to the
// transaction's own user and plan, and creates it when missing.
func (u *paymentUC) locateByPair(userID, planID string) locateFunc {
	return func(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Membership, error) {
		if userID == "" {
			userID = t.UserID
		}
		if planID == "" {
			planID = t.Metadata.PlanID
		}
		if userID != t.UserID {
			u.log.Warn().Str("reference", t.Reference).Msg("webhook metadata user differs from transaction owner")
		}
		m, err := u.membersRepo.FindByUserAndPlan(ctx, tx, userID, planID)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		m, _, err = u.memberships.SubscribeTx(ctx, tx, userID, planID)
		return m, err
	}
}
