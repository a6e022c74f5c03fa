package core

import "errors"

var (
	ErrDuplicateProposal = errors.New("proposal already exists")
	ErrCapacityExceeded  = errors.New("no free proposal slot")
	ErrInsufficientPower = errors.New("insufficient voting power")
	ErrProposalNotActive = errors.New("proposal is not active")
	ErrProposalExpired   = errors.New("proposal is expired")

	ErrInvalidAmount    = errors.New("vote amount must be positive")
	ErrInvalidDirection = errors.New("invalid vote direction")
)

// ErrorKind names the rejection reason of err, "ok" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateProposal):
		return "duplicate_proposal"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInsufficientPower):
		return "insufficient_power"
	case errors.Is(err, ErrProposalNotActive):
		return "proposal_not_active"
	case errors.Is(err, ErrProposalExpired):
		return "proposal_expired"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidDirection):
		return "invalid_argument"
	default:
		return "other"
	}
}
