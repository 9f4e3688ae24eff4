package usecase

import (
	"context"
	"errors"
	"strings"
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
var _ PlanUseCase = (*planUC)(nil)

// PlanInput is the admin-editable part of a plan.
type PlanInput struct {
	Name     string   `json:"name"`
	Duration string   `json:"duration"`
	Price    int64    `json:"price"`
	Features []string `json:"features"`
	Popular  bool     `json:"popular"`
	Active   *bool    `json:"active,omitempty"`
}

// PlanUseCase manages the plan catalog.
type PlanUseCase interface {
	Create(ctx context.Context, in PlanInput) (*model.Plan, error)
	Update(ctx context.Context, id string, in PlanInput) (*model.Plan, error)
	// Deactivate hides a plan from the catalog. Memberships keep their snapshot.
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Plan, error)
	List(ctx context.Context, includeInactive bool) ([]*model.Plan, error)
}

type planUC struct {
	plans repository.PlanRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewPlanUseCase(plans repository.PlanRepository, tm repository.TransactionManager, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, tm: tm, log: logger, now: time.Now}
}

func (u *planUC) Create(ctx context.Context, in PlanInput) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.Create")()

	p, err := model.NewPlan(uuid.NewString(), in.Name, in.Duration, in.Price, in.Features, in.Popular)
	if err != nil {
		return nil, err
	}
	if in.Active != nil && !*in.Active {
		p.Status = model.PlanStatusInactive
	}
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		u.log.Error().Err(err).Str("plan_name", p.Name).Msg("failed to save plan")
		return nil, err
	}
	return p, nil
}

func (u *planUC) Update(ctx context.Context, id string, in PlanInput) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.Update")()

	var out *model.Plan
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.plans.FindByID(ctx, tx, id)
		if err != nil {
			return planLookupErr(err)
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			p.Name = name
		}
		if in.Duration != "" {
			d, err := model.ParsePlanDuration(in.Duration)
			if err != nil {
				return err
			}
			p.Duration = d
		}
		if in.Price < 0 {
			return domain.ErrInvalidArgument
		}
		if in.Price > 0 {
			p.Price = in.Price
		}
		if in.Features != nil {
			p.Features = in.Features
		}
		p.Popular = in.Popular
		if in.Active != nil {
			p.Status = model.PlanStatusInactive
			if *in.Active {
				p.Status = model.PlanStatusActive
			}
		}
		p.UpdatedAt = u.now()
		if err := u.plans.Save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *planUC) Deactivate(ctx context.Context, id string) error {
	defer logging.TraceDuration(u.log, "PlanUC.Deactivate")()
	return u.plans.Delete(ctx, repository.NoTX, id)
}

func (u *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	p, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, planLookupErr(err)
	}
	return p, nil
}

func (u *planUC) List(ctx context.Context, includeInactive bool) ([]*model.Plan, error) {
	if includeInactive {
		return u.plans.ListAll(ctx, repository.NoTX)
	}
	return u.plans.ListActive(ctx, repository.NoTX)
}

func planLookupErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPlanNotFound
	}
	return err
}
