package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, user_id, membership_id, reference, amount, currency, status, metadata, payment_response, authorization_url, paid_at, activation_pending, created_at, updated_at`

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	md, err := json.Marshal(t.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.MembershipID, t.Reference, t.Amount, t.Currency, t.Status,
		md, rawOrNil(t.PaymentResponse), t.AuthorizationURL, t.PaidAt, t.ActivationPending, t.CreatedAt, t.UpdatedAt)
	return dbErr("transaction.create", err)
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference=$1`
	return r.queryOne(ctx, tx, q, reference)
}

func (r *transactionRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
WHERE user_id=$1 AND metadata->>'planId'=$2 AND status='pending'
ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, tx, q, userID, planID)
}

func (r *transactionRepo) UpdateReference(ctx context.Context, tx repository.Tx, id, reference string) error {
	const q = `UPDATE transactions SET reference=$2, updated_at=NOW() WHERE id=$1 AND status='pending';`
	return r.execOne(ctx, tx, "transaction.update_reference", q, id, reference)
}

func (r *transactionRepo) SetAuthorizationURL(ctx context.Context, tx repository.Tx, reference, url string) error {
	const q = `UPDATE transactions SET authorization_url=$2, updated_at=NOW() WHERE reference=$1;`
	return r.execOne(ctx, tx, "transaction.set_authorization_url", q, reference, url)
}

// UpdateStatus applies to a pending row, or lets a success replace another
// final outcome. A stored success is never overwritten.
func (r *transactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, u repository.StatusUpdate) (bool, error) {
	const q = `
UPDATE transactions SET
  status=$2,
  metadata=COALESCE($3::jsonb, metadata),
  payment_response=COALESCE($4::jsonb, payment_response),
  paid_at=COALESCE($5, paid_at),
  activation_pending=$6,
  updated_at=NOW()
WHERE reference=$1
  AND (status='pending' OR ($2::text='success' AND status<>'success'));`

	var md []byte
	if u.Metadata != nil {
		b, err := json.Marshal(u.Metadata)
		if err != nil {
			return false, domain.ErrInvalidArgument
		}
		md = b
	}
	ct, err := execSQL(ctx, r.pool, tx, q, u.Reference, string(u.Status), md, rawOrNil(u.PaymentResponse), u.PaidAt, u.ActivationPending)
	if err != nil {
		return false, dbErr("transaction.update_status", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *transactionRepo) MarkActivated(ctx context.Context, tx repository.Tx, reference string) error {
	const q = `UPDATE transactions SET activation_pending=FALSE, updated_at=NOW() WHERE reference=$1;`
	return r.execOne(ctx, tx, "transaction.mark_activated", q, reference)
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, "transaction.list_by_user", q, userID)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='pending' AND created_at < $1
ORDER BY created_at ASC LIMIT $2;`
	return r.queryMany(ctx, tx, "transaction.list_stale", q, olderThan, limit)
}

func (r *transactionRepo) ListAwaitingActivation(ctx context.Context, tx repository.Tx, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='success' AND activation_pending
ORDER BY created_at ASC LIMIT $1;`
	return r.queryMany(ctx, tx, "transaction.list_awaiting_activation", q, limit)
}

func (r *transactionRepo) execOne(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) error {
	ct, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return dbErr(op, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Transaction, error) {
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, dbErr("transaction.find", err)
	}
	return t, nil
}

func (r *transactionRepo) queryMany(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()
	out := []*model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(op, err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t    model.Transaction
		md   []byte
		resp []byte
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.MembershipID, &t.Reference, &t.Amount, &t.Currency, &t.Status,
		&md, &resp, &t.AuthorizationURL, &t.PaidAt, &t.ActivationPending, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &t.Metadata); err != nil {
			return nil, err
		}
	}
	if len(resp) > 0 {
		t.PaymentResponse = json.RawMessage(resp)
	}
	return &t, nil
}

// rawOrNil keeps an empty payload NULL instead of JSON null.
func rawOrNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
