package repository

import (
	"context"

	"gym-membership/internal/domain/model"
)

// PlanRepository is the port for the plan catalog.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	// FindByID returns domain.ErrNotFound when the plan does not exist.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
	// Delete deactivates the plan; rows are kept for the memberships that reference them.
	Delete(ctx context.Context, tx Tx, id string) error
}
