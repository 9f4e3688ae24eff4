package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Plan catalog
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanInactive    = errors.New("plan is not active")
	ErrInvalidDuration = errors.New("invalid duration")

	// Membership lifecycle
	ErrMembershipCancelled = errors.New("membership is cancelled")
	ErrAlreadyActive       = errors.New("membership already active")
	ErrInvalidTransition   = errors.New("invalid membership status transition")
	ErrForbidden           = errors.New("forbidden")

	// Payments and reconciliation
	ErrNoReference         = errors.New("no payment reference")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrRateLimited         = errors.New("too many requests")
	ErrLockNotAcquired     = errors.New("lock not acquired")
)
