package zapper

import "errors"

var (
	ErrNoAmount            = errors.New("no amount")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoRouteFound        = errors.New("no route found")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrApprovalRejected    = errors.New("approval rejected")
	ErrSubmission          = errors.New("submission failed")
	ErrGuardViolation      = errors.New("guard violation")
	ErrNotConfigured       = errors.New("not configured")
)

// reasonFor returns the user facing text for a derivation error.
func reasonFor(err error, symbol string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAmount), errors.Is(err, ErrInvalidAmount):
		return "Enter an amount"
	case errors.Is(err, ErrPoolNotFound):
		return "Select a pool"
	case errors.Is(err, ErrNoRouteFound):
		return "Insufficient liquidity for this trade."
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient " + symbol + " balance"
	default:
		return err.Error()
	}
}
