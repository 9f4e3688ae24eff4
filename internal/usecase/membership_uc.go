package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/logging"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// Actor is the authenticated caller of a member-facing operation.
type Actor struct {
	UserID string
	Admin  bool
}

// ExpireResult is what a sweep reports back.
type ExpireResult struct {
	Count       int                 `json:"updatedCount"`
	Memberships []*model.Membership `json:"updatedMemberships"`
}

// Page is a 1-based pagination request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

type MembershipPage struct {
	Items []*model.Membership
	Total int
	Page  int
	Limit int
}

// MembershipUseCase owns every membership state change.
type MembershipUseCase interface {
	// Subscribe creates or renews the caller's membership for a plan. The result is
	// pending payment; see PaymentUseCase for activation.
	Subscribe(ctx context.Context, userID, planID string) (*model.Membership, error)
	// SubscribeTx is Subscribe inside the caller's transaction.
	SubscribeTx(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Membership, model.PaymentType, error)
	// ActivateTx marks m active and paid. It returns domain.ErrAlreadyActive when
	// there is nothing to do.
	ActivateTx(ctx context.Context, tx repository.Tx, m *model.Membership) error

	Cancel(ctx context.Context, actor Actor, id string) (*model.Membership, error)
	CheckExpired(ctx context.Context) (*ExpireResult, error)

	Get(ctx context.Context, actor Actor, id string) (*model.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Membership, error)
	List(ctx context.Context, status model.MembershipStatus, page Page) (*MembershipPage, error)
	ListExpired(ctx context.Context, page Page) (*MembershipPage, error)
}

type membershipUC struct {
	plans       repository.PlanRepository
	memberships repository.MembershipRepository
	tm          repository.TransactionManager
	log         *zerolog.Logger
	now         func() time.Time
}

func NewMembershipUseCase(plans repository.PlanRepository, memberships repository.MembershipRepository, tm repository.TransactionManager, logger *zerolog.Logger) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{
		plans:       plans,
		memberships: memberships,
		tm:          tm,
		log:         &l,
		now:         time.Now,
	}
}

// SetClock replaces the wall clock, for tests and replays.
func (u *membershipUC) SetClock(now func() time.Time) { u.now = now }

func (u *membershipUC) Subscribe(ctx context.Context, userID, planID string) (*model.Membership, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.Subscribe")()

	var out *model.Membership
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		m, _, err := u.SubscribeTx(ctx, tx, userID, planID)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *membershipUC) SubscribeTx(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Membership, model.PaymentType, error) {
	if userID == "" || planID == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	plan, err := u.plans.FindByID(ctx, tx, planID)
	if err != nil {
		return nil, "", planLookupErr(err)
	}
	if !plan.IsActive() {
		return nil, "", domain.ErrPlanInactive
	}
	now := u.now()
	// Reject a bad duration before anything is written.
	if _, err := plan.Duration.AddTo(now); err != nil {
		return nil, "", err
	}
	if err := u.memberships.LockPair(ctx, tx, userID, planID); err != nil {
		return nil, "", err
	}

	existing, err := u.memberships.FindByUserAndPlan(ctx, tx, userID, planID)
	switch {
	case err == nil:
		return u.renew(ctx, tx, existing, plan, now)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, "", err
	}

	m, err := model.NewMembership(uuid.NewString(), userID, plan, now)
	if err != nil {
		return nil, "", err
	}
	if err := u.memberships.Create(ctx, tx, m); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, "", err
		}
		// Lost a create race for the pair; fold into the winner's row.
		existing, ferr := u.memberships.FindByUserAndPlan(ctx, tx, userID, planID)
		if ferr != nil {
			return nil, "", fmt.Errorf("reload membership after conflict: %w", ferr)
		}
		return u.renew(ctx, tx, existing, plan, now)
	}
	u.log.Info().Str("membership_id", m.ID).Str("plan_id", planID).Msg("membership created")
	return m, model.PaymentTypeNewSubscription, nil
}

func (u *membershipUC) renew(ctx context.Context, tx repository.Tx, m *model.Membership, plan *model.Plan, now time.Time) (*model.Membership, model.PaymentType, error) {
	pt := model.PaymentTypeNewSubscription
	switch {
	case m.Status == model.MembershipStatusActive, m.Status == model.MembershipStatusExpired:
		pt = model.PaymentTypeRenewal
	case m.Status == model.MembershipStatusPending && m.RenewedFrom != nil:
		// Retrying an unpaid renewal.
		pt = model.PaymentTypeRenewal
	}
	if err := m.Renew(plan, now); err != nil {
		return nil, "", err
	}
	if err := u.memberships.Update(ctx, tx, m); err != nil {
		return nil, "", err
	}
	u.log.Info().Str("membership_id", m.ID).Str("payment_type", string(pt)).Msg("membership renewed")
	return m, pt, nil
}

func (u *membershipUC) ActivateTx(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	plan, err := u.plans.FindByID(ctx, tx, m.PlanID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// Plan was removed after purchase; activate from the snapshot.
		plan = nil
	}
	if err := m.Activate(plan, u.now()); err != nil {
		return err
	}
	return u.memberships.Update(ctx, tx, m)
}

func (u *membershipUC) Cancel(ctx context.Context, actor Actor, id string) (*model.Membership, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.Cancel")()

	var out *model.Membership
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		m, err := u.memberships.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.Admin && m.UserID != actor.UserID {
			return domain.ErrForbidden
		}
		changed, err := m.Cancel(u.now())
		if err != nil {
			return err
		}
		out = m
		if !changed {
			return nil
		}
		return u.memberships.Update(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("membership_id", id).Bool("admin", actor.Admin).Msg("membership cancelled")
	return out, nil
}

func (u *membershipUC) CheckExpired(ctx context.Context) (*ExpireResult, error) {
	defer logging.TraceDuration(u.log, "MembershipUC.CheckExpired")()

	expired, err := u.memberships.ExpireDue(ctx, repository.NoTX, u.now())
	if err != nil {
		return nil, err
	}
	if expired == nil {
		expired = []*model.Membership{}
	}
	return &ExpireResult{Count: len(expired), Memberships: expired}, nil
}

func (u *membershipUC) Get(ctx context.Context, actor Actor, id string) (*model.Membership, error) {
	m, err := u.memberships.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && m.UserID != actor.UserID {
		// Do not reveal other members' records.
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (u *membershipUC) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	return u.memberships.ListByUser(ctx, repository.NoTX, userID)
}

func (u *membershipUC) List(ctx context.Context, status model.MembershipStatus, page Page) (*MembershipPage, error) {
	page = page.normalize()
	items, total, err := u.memberships.List(ctx, repository.NoTX, repository.MembershipFilter{
		Status: status,
		Limit:  page.Limit,
		Offset: (page.Page - 1) * page.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &MembershipPage{Items: items, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (u *membershipUC) ListExpired(ctx context.Context, page Page) (*MembershipPage, error) {
	return u.List(ctx, model.MembershipStatusExpired, page)
}
