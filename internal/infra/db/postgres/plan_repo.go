package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, duration, price, features, popular, status, created_at, updated_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (` + planColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  name=$2, duration=$3, price=$4, features=$5, popular=$6, status=$7, updated_at=$9;`

	features := p.Features
	if features == nil {
		features = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.Duration, p.Price, features, p.Popular, p.Status, p.CreatedAt, p.UpdatedAt)
	return dbErr("plan.save", err)
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans WHERE id=$1`
	if inTx(tx) {
		q += " FOR SHARE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		return nil, dbErr("plan.find", err)
	}
	return p, nil
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return r.list(ctx, tx, `SELECT `+planColumns+` FROM plans ORDER BY price ASC, name ASC;`)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return r.list(ctx, tx, `SELECT `+planColumns+` FROM plans WHERE status='active' ORDER BY price ASC, name ASC;`)
}

// Delete deactivates the plan. Memberships reference plans, and each keeps its
// own snapshot, so rows are never removed.
func (r *planRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE plans SET status='inactive', updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return dbErr("plan.delete", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *planRepo) list(ctx context.Context, tx repository.Tx, q string) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, dbErr("plan.list", err)
	}
	defer rows.Close()
	out := []*model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Duration, &p.Price, &p.Features, &p.Popular, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}
