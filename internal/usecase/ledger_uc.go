package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
)

// Ledger is the write path of the transaction log. Methods take the caller's
// transaction so ledger writes commit together with membership writes.
type Ledger struct {
	txs repository.TransactionRepository
	log *zerolog.Logger
}

func NewLedger(txs repository.TransactionRepository, logger *zerolog.Logger) *Ledger {
	l := logger.With().Str("component", "Ledger").Logger()
	return &Ledger{txs: txs, log: &l}
}

// Create opens a pending transaction for m, reusing the pending row for the same
// (user, plan) if there is one. reused reports whether an existing row was returned.
// A reused row that never reached the gateway gets a fresh reference.
func (l *Ledger) Create(ctx context.Context, tx repository.Tx, m *model.Membership, pt model.PaymentType, email, reference string, now time.Time) (t *model.Transaction, reused bool, err error) {
	existing, err := l.txs.FindPendingByUserAndPlan(ctx, tx, m.UserID, m.PlanID)
	switch {
	case err == nil:
		if existing.AuthorizationURL != "" {
			return existing, true, nil
		}
		if err := l.txs.UpdateReference(ctx, tx, existing.ID, reference); err != nil {
			return nil, false, err
		}
		l.log.Info().Str("transaction_id", existing.ID).Msg("pending transaction re-referenced")
		existing.Reference = reference
		existing.UpdatedAt = now
		return existing, true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, err
	}

	t, err = model.NewTransaction(uuid.NewString(), reference, m, pt, email, now)
	if err != nil {
		return nil, false, err
	}
	if err := l.txs.Create(ctx, tx, t); err != nil {
		return nil, false, err
	}
	return t, false, nil
}

// UpdateStatus applies a gateway outcome to a pending row. Unknown references are
// logged and reported as not applied; they are never an error.
func (l *Ledger) UpdateStatus(ctx context.Context, tx repository.Tx, u repository.StatusUpdate) (bool, error) {
	applied, err := l.txs.UpdateStatus(ctx, tx, u)
	if err != nil {
		return false, err
	}
	if applied {
		return true, nil
	}
	if _, err := l.txs.FindByReference(ctx, tx, u.Reference); errors.Is(err, domain.ErrNotFound) {
		l.log.Warn().Str("reference", u.Reference).Str("status", string(u.Status)).Msg("status update for unknown reference ignored")
	}
	return false, nil
}

// FindByReference maps a missing row to domain.ErrTransactionNotFound.
func (l *Ledger) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	t, err := l.txs.FindByReference(ctx, tx, reference)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	return t, err
}

func (l *Ledger) ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	return l.txs.ListByUser(ctx, repository.NoTX, userID)
}

func (l *Ledger) SetAuthorizationURL(ctx context.Context, reference, url string) error {
	return l.txs.SetAuthorizationURL(ctx, repository.NoTX, reference, url)
}

func (l *Ledger) MarkActivated(ctx context.Context, tx repository.Tx, reference string) error {
	return l.txs.MarkActivated(ctx, tx, reference)
}
