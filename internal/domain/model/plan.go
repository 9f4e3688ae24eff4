package model

import (
	"fmt"
	"strings"
	"time"

	"gym-membership/internal/domain"
)

// PlanDuration is the billing period of a plan.
type PlanDuration string

const (
	DurationMonth       PlanDuration = "month"
	DurationThreeMonths PlanDuration = "3 months"
	DurationSixMonths   PlanDuration = "6 months"
	DurationYear        PlanDuration = "year"
)

type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusInactive PlanStatus = "inactive"
)

// ParsePlanDuration normalises user input. Dashed forms ("3-months") are accepted
// as aliases; anything else is ErrInvalidDuration.
func ParsePlanDuration(s string) (PlanDuration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "1 month", "monthly":
		return DurationMonth, nil
	case "3 months", "3-months":
		return DurationThreeMonths, nil
	case "6 months", "6-months":
		return DurationSixMonths, nil
	case "year", "1 year", "yearly":
		return DurationYear, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidDuration, s)
}

// AddTo returns the end of a period starting at start. It follows time.AddDate,
// so month overflow normalises forward: Jan 31 + month = Mar 2 (Mar 3 in non-leap years).
func (d PlanDuration) AddTo(start time.Time) (time.Time, error) {
	switch d {
	case DurationMonth:
		return start.AddDate(0, 1, 0), nil
	case DurationThreeMonths:
		return start.AddDate(0, 3, 0), nil
	case DurationSixMonths:
		return start.AddDate(0, 6, 0), nil
	case DurationYear:
		return start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, string(d))
}

// Plan is a purchasable membership tier. Price is in whole currency units (naira).
type Plan struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Duration  PlanDuration `json:"duration"`
	Price     int64        `json:"price"`
	Features  []string     `json:"features"`
	Popular   bool         `json:"popular"`
	Status    PlanStatus   `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func (p *Plan) IsActive() bool { return p != nil && p.Status == PlanStatusActive }

// NewPlan validates and constructs an active plan.
func NewPlan(id, name, duration string, price int64, features []string, popular bool) (*Plan, error) {
	name = strings.TrimSpace(name)
	if id == "" || name == "" || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	d, err := ParsePlanDuration(duration)
	if err != nil {
		return nil, err
	}
	if features == nil {
		features = []string{}
	}
	now := time.Now()
	return &Plan{
		ID:        id,
		Name:      name,
		Duration:  d,
		Price:     price,
		Features:  features,
		Popular:   popular,
		Status:    PlanStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
