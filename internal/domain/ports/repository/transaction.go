package repository

import (
	"context"
	"encoding/json"
	"time"

	"gym-membership/internal/domain/model"
)

// StatusUpdate is a conditional ledger write. It applies while the row is pending,
// and a success may also replace an earlier non-success outcome.
type StatusUpdate struct {
	Reference         string
	Status            model.TransactionStatus
	Metadata          *model.TransactionMetadata // nil keeps the stored metadata
	PaymentResponse   json.RawMessage
	PaidAt            *time.Time
	ActivationPending bool
}

// TransactionRepository is the port for the payment ledger. Rows are never deleted.
type TransactionRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Transaction, error)
	FindPendingByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.Transaction, error)
	UpdateReference(ctx context.Context, tx Tx, id, reference string) error
	SetAuthorizationURL(ctx context.Context, tx Tx, reference, url string) error

	// UpdateStatus moves a row to u.Status under the StatusUpdate rule. applied is
	// false when the row was already settled, including when it is unknown.
	UpdateStatus(ctx context.Context, tx Tx, u StatusUpdate) (applied bool, err error)

	// MarkActivated clears the activation-pending flag of a successful payment.
	MarkActivated(ctx context.Context, tx Tx, reference string) error

	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	// ListAwaitingActivation returns successful payments still flagged activation-pending.
	ListAwaitingActivation(ctx context.Context, tx Tx, limit int) ([]*model.Transaction, error)
}
