package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
)

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `id, user_id, plan_id, plan_name, price, features, duration, start_date, end_date, status, payment_status, renewed_from, created_at, updated_at`

func (r *membershipRepo) Create(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (` + membershipColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q, membershipArgs(m)...)
	return dbErr("membership.create", err)
}

func (r *membershipRepo) Update(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
UPDATE memberships SET
  plan_name=$4, price=$5, features=$6, duration=$7, start_date=$8, end_date=$9,
  status=$10, payment_status=$11, renewed_from=$12, updated_at=$14
WHERE id=$1 AND user_id=$2 AND plan_id=$3;`
	ct, err := execSQL(ctx, r.pool, tx, q, membershipArgs(m)...)
	if err != nil {
		return dbErr("membership.update", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE id=$1`
	return r.queryOne(ctx, tx, q, id)
}

func (r *membershipRepo) FindByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 AND plan_id=$2`
	return r.queryOne(ctx, tx, q, userID, planID)
}

func (r *membershipRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, "membership.list_by_user", q, userID)
}

func (r *membershipRepo) List(ctx context.Context, tx repository.Tx, f repository.MembershipFilter) ([]*model.Membership, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM memberships`+cond+`;`, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := row.Scan(&total); err != nil {
		return nil, 0, dbErr("membership.count", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM memberships%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d;`,
		membershipColumns, cond, len(args)-1, len(args))
	items, err := r.queryMany(ctx, tx, "membership.list", q, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ExpireDue is a single conditional UPDATE, so concurrent sweeps never both
// report the same row.
func (r *membershipRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Membership, error) {
	const q = `
UPDATE memberships SET status='expired', updated_at=$1
WHERE status='active' AND end_date <= $1
RETURNING ` + membershipColumns + `;`
	return r.queryMany(ctx, tx, "membership.expire_due", q, now)
}

// LockPair takes a transaction-scoped advisory lock on (user, plan).
func (r *membershipRepo) LockPair(ctx context.Context, tx repository.Tx, userID, planID string) error {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	if _, err := pgTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID+":"+planID)); err != nil {
		return dbErr("membership.lock_pair", err)
	}
	return nil
}

func (r *membershipRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Membership, error) {
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}
	m, err := scanMembership(row)
	if err != nil {
		return nil, dbErr("membership.find", err)
	}
	return m, nil
}

func (r *membershipRepo) queryMany(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Membership, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()
	out := []*model.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(op, err)
	}
	return out, nil
}

func membershipArgs(m *model.Membership) []interface{} {
	features := m.Features
	if features == nil {
		features = []string{}
	}
	return []interface{}{
		m.ID, m.UserID, m.PlanID, m.PlanName, m.Price, features, m.Duration,
		m.StartDate, m.EndDate, m.Status, m.PaymentStatus, m.RenewedFrom, m.CreatedAt, m.UpdatedAt,
	}
}

func scanMembership(row pgx.Row) (*model.Membership, error) {
	var m model.Membership
	if err := row.Scan(
		&m.ID, &m.UserID, &m.PlanID, &m.PlanName, &m.Price, &m.Features, &m.Duration,
		&m.StartDate, &m.EndDate, &m.Status, &m.PaymentStatus, &m.RenewedFrom, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
