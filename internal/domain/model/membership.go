package model

import (
	"time"

	"gym-membership/internal/domain"
)

type MembershipStatus string

const (
	MembershipStatusPending   MembershipStatus = "pending"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusExpired   MembershipStatus = "expired"
	MembershipStatusCancelled MembershipStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Membership is a user's subscription to one plan. There is at most one row per
// (UserID, PlanID); renewals rewrite it in place and point RenewedFrom at the prior id.
type Membership struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	PlanID        string           `json:"planId"`
	PlanName      string           `json:"planName"`
	Price         int64            `json:"price"`
	Features      []string         `json:"features"`
	Duration      PlanDuration     `json:"duration"`
	StartDate     time.Time        `json:"startDate"`
	EndDate       time.Time        `json:"endDate"`
	Status        MembershipStatus `json:"status"`
	PaymentStatus PaymentStatus    `json:"paymentStatus"`
	RenewedFrom   *string          `json:"renewedFrom,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type transition struct {
	From MembershipStatus
	To   MembershipStatus
}

var validTransitions = map[transition]bool{
	{MembershipStatusPending, MembershipStatusActive}:    true, // payment confirmed
	{MembershipStatusPending, MembershipStatusPending}:   true, // re-subscribe before paying
	{MembershipStatusPending, MembershipStatusCancelled}: true,
	{MembershipStatusActive, MembershipStatusExpired}:    true, // sweep
	{MembershipStatusActive, MembershipStatusCancelled}:  true,
	{MembershipStatusActive, MembershipStatusPending}:    true, // renewal started
	{MembershipStatusActive, MembershipStatusActive}:     true, // renewal confirmed while still valid
	{MembershipStatusExpired, MembershipStatusPending}:   true, // renewal started
	{MembershipStatusExpired, MembershipStatusActive}:    true, // late confirmation of a renewal
	{MembershipStatusExpired, MembershipStatusCancelled}: true,
}

// CanTransition reports whether a membership may move from one status to another.
// Nothing leaves cancelled.
func CanTransition(from, to MembershipStatus) bool {
	return validTransitions[transition{from, to}]
}

// IsPaidActive reports whether the membership is active and paid.
func (m *Membership) IsPaidActive() bool {
	return m.Status == MembershipStatusActive && m.PaymentStatus == PaymentStatusPaid
}

// NewMembership creates a pending membership with a snapshot of the plan.
func NewMembership(id, userID string, plan *Plan, start time.Time) (*Membership, error) {
	if id == "" || userID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	end, err := plan.Duration.AddTo(start)
	if err != nil {
		return nil, err
	}
	m := &Membership{
		ID:            id,
		UserID:        userID,
		PlanID:        plan.ID,
		StartDate:     start,
		EndDate:       end,
		Status:        MembershipStatusPending,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     start,
		UpdatedAt:     start,
	}
	m.snapshot(plan)
	return m, nil
}

// Renew rewrites the record for a new purchase of the same plan. A running
// active membership keeps its status and dates while the renewal payment is
// pending; the new period is appended on activation.
func (m *Membership) Renew(plan *Plan, start time.Time) error {
	if m.Status == MembershipStatusCancelled {
		return domain.ErrMembershipCancelled
	}
	end, err := plan.Duration.AddTo(start)
	if err != nil {
		return err
	}
	next := MembershipStatusPending
	if m.Status == MembershipStatusActive {
		next = MembershipStatusActive
	}
	if !CanTransition(m.Status, next) {
		return domain.ErrInvalidTransition
	}
	// Only a membership that was paid for at some point is being renewed; a
	// retried first purchase stays unchained.
	renewing := m.Status == MembershipStatusActive || m.Status == MembershipStatusExpired
	prior := m.ID
	m.snapshot(plan)
	if next != MembershipStatusActive {
		m.StartDate = start
		m.EndDate = end
	}
	m.Status = next
	m.PaymentStatus = PaymentStatusPending
	if renewing {
		m.RenewedFrom = &prior
	}
	m.UpdatedAt = start
	return nil
}

// Activate marks the membership paid and active for one period of plan. When the
// membership is still running, the new period is appended to its current end date.
func (m *Membership) Activate(plan *Plan, now time.Time) error {
	if m.IsPaidActive() {
		return domain.ErrAlreadyActive
	}
	if !CanTransition(m.Status, MembershipStatusActive) {
		return domain.ErrInvalidTransition
	}
	if !plan.IsZero() {
		m.snapshot(plan)
	}
	start := now
	extending := m.Status == MembershipStatusActive && m.EndDate.After(now)
	if extending {
		start = m.EndDate
	}
	end, err := m.Duration.AddTo(start)
	if err != nil {
		return err
	}
	if !extending {
		m.StartDate = now
	}
	m.EndDate = end
	m.Status = MembershipStatusActive
	m.PaymentStatus = PaymentStatusPaid
	m.UpdatedAt = now
	return nil
}

// Cancel moves the membership to cancelled. Cancelling twice is a no-op.
func (m *Membership) Cancel(now time.Time) (changed bool, err error) {
	if m.Status == MembershipStatusCancelled {
		return false, nil
	}
	if !CanTransition(m.Status, MembershipStatusCancelled) {
		return false, domain.ErrInvalidTransition
	}
	m.Status = MembershipStatusCancelled
	m.UpdatedAt = now
	return true, nil
}

func (m *Membership) snapshot(plan *Plan) {
	m.PlanName = plan.Name
	m.Price = plan.Price
	m.Duration = plan.Duration
	m.Features = append([]string(nil), plan.Features...)
}
