package model

import (
	"encoding/json"
	"time"

	"gym-membership/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusAbandoned TransactionStatus = "abandoned"
	TransactionStatusTimeout   TransactionStatus = "timeout"
)

// IsFinal reports whether the status is a gateway outcome rather than pending.
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusAbandoned, TransactionStatusTimeout:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeNewSubscription PaymentType = "new_subscription"
	PaymentTypeRenewal         PaymentType = "renewal"
)

const DefaultCurrency = "NGN"

// TransactionMetadata travels with the payment to the gateway and back in webhook
// events; it is how a webhook locates the membership.
type TransactionMetadata struct {
	UserID      string      `json:"userId,omitempty"`
	PlanID      string      `json:"planId"`
	PlanName    string      `json:"planName"`
	PaymentType PaymentType `json:"paymentType"`
	Email       string      `json:"email,omitempty"`
	FailedAt    *time.Time  `json:"failedAt,omitempty"`
	AbandonedAt *time.Time  `json:"abandonedAt,omitempty"`
	TimedOutAt  *time.Time  `json:"timedOutAt,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// Transaction is one payment attempt. Rows are never deleted.
type Transaction struct {
	ID                string              `json:"id"`
	UserID            string              `json:"userId"`
	MembershipID      string              `json:"membershipId"`
	Reference         string              `json:"reference"`
	Amount            int64               `json:"amount"`
	Currency          string              `json:"currency"`
	Status            TransactionStatus   `json:"status"`
	Metadata          TransactionMetadata `json:"metadata"`
	PaymentResponse   json.RawMessage     `json:"paymentResponse,omitempty"`
	AuthorizationURL  string              `json:"authorizationUrl,omitempty"`
	PaidAt            *time.Time          `json:"paidAt,omitempty"`
	// ActivationPending is set with a success status and cleared once the
	// membership has been activated for this payment.
	ActivationPending bool                `json:"activationPending,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func (t *Transaction) IsPending() bool { return t != nil && t.Status == TransactionStatusPending }

// NewTransaction builds a pending transaction for a membership purchase.
func NewTransaction(id, reference string, m *Membership, pt PaymentType, email string, now time.Time) (*Transaction, error) {
	if id == "" || reference == "" || m == nil || m.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:           id,
		UserID:       m.UserID,
		MembershipID: m.ID,
		Reference:    reference,
		Amount:       m.Price,
		Currency:     DefaultCurrency,
		Status:       TransactionStatusPending,
		Metadata: TransactionMetadata{
			UserID:      m.UserID,
			PlanID:      m.PlanID,
			PlanName:    m.PlanName,
			PaymentType: pt,
			Email:       email,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StampOutcome records when and why a non-success outcome happened.
func (md *TransactionMetadata) StampOutcome(status TransactionStatus, reason string, at time.Time) {
	switch status {
	case TransactionStatusFailed:
		md.FailedAt = &at
	case TransactionStatusAbandoned:
		md.AbandonedAt = &at
	case TransactionStatusTimeout:
		md.TimedOutAt = &at
	default:
		return
	}
	if reason != "" {
		md.Reason = reason
	}
}
