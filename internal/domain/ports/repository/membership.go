package repository

import (
	"context"
	"time"

	"gym-membership/internal/domain/model"
)

// MembershipFilter narrows paginated membership listings.
type MembershipFilter struct {
	Status model.MembershipStatus // empty means any
	UserID string
	Limit  int
	Offset int
}

// MembershipRepository is the port for membership records. There is at most one row
// per (user, plan); Create returns domain.ErrAlreadyExists when the pair is taken.
type MembershipRepository interface {
	Create(ctx context.Context, tx Tx, m *model.Membership) error
	Update(ctx context.Context, tx Tx, m *model.Membership) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Membership, error)
	FindByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.Membership, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Membership, error)
	List(ctx context.Context, tx Tx, f MembershipFilter) ([]*model.Membership, int, error)

	// ExpireDue flips every active membership whose end date is at or before now to
	// expired in one statement and returns the rows it changed.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) ([]*model.Membership, error)

	// LockPair serialises writers for one (user, plan) pair until tx ends.
	// It is a no-op outside a transaction.
	LockPair(ctx context.Context, tx Tx, userID, planID string) error
}
