package domain

import "errors"

// Infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
)

// Validation errors: the request itself is malformed. Never retried.
var (
	ErrInvalidAccount = errors.New("invalid account address")
	ErrInvalidOption  = errors.New("option index out of range")
	ErrZeroAmount     = errors.New("amount must be positive")
	ErrOptionCount    = errors.New("markets require between 2 and 4 options")
	ErrBlankOption    = errors.New("option labels must not be blank")
	ErrEmptyQuestion  = errors.New("question must not be empty")
	ErrEndTimeInPast  = errors.New("end time must be in the future")
	ErrInvalidWinners = errors.New("winning option set is empty or out of range")
	ErrStakeTooLarge  = errors.New("stake exceeds the maximum allowed amount")
)

// State errors: the operation is illegal in the market's current state.
// The caller may retry after the precondition changes.
var (
	ErrBettingClosed        = errors.New("betting window has closed")
	ErrMarketClosed         = errors.New("market is not active")
	ErrMarketStillOpen      = errors.New("betting window has not closed yet")
	ErrResolutionInProgress = errors.New("resolution request already pending")
	ErrNoResolution         = errors.New("no resolution request pending")
	ErrAlreadyDisputed      = errors.New("resolution request already disputed")
	ErrLivenessNotElapsed   = errors.New("liveness window has not elapsed")
	ErrLivenessElapsed      = errors.New("liveness window has elapsed")
	ErrMarketNotResolved    = errors.New("market is not resolved")
	ErrMarketNotCancelled   = errors.New("market is not cancelled")
)

// Solvency and ledger errors: fatal to the call, never clamped.
var (
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInsufficientFunds  = errors.New("declared funds exhausted")
	ErrInsufficientBond   = errors.New("dispute bond below proposer bond")
	ErrNothingToClaim     = errors.New("no winning shares to claim")
	ErrNothingToRefund    = errors.New("no refundable stake")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrInsolvent          = errors.New("payout exceeds pool")
)

// ErrorKind buckets an engine error for reporting (batch legs and HTTP
// status mapping).
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindState         ErrorKind = "state"
	KindAuthorization ErrorKind = "authorization"
	KindSolvency      ErrorKind = "solvency"
	KindInternal      ErrorKind = "internal"
)

// Kind classifies err into the error taxonomy. Unknown errors are internal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrZeroAmount),
		errors.Is(err, ErrOptionCount),
		errors.Is(err, ErrBlankOption),
		errors.Is(err, ErrEmptyQuestion),
		errors.Is(err, ErrEndTimeInPast),
		errors.Is(err, ErrInvalidWinners),
		errors.Is(err, ErrStakeTooLarge):
		return KindValidation
	case errors.Is(err, ErrBettingClosed),
		errors.Is(err, ErrMarketClosed),
		errors.Is(err, ErrMarketStillOpen),
		errors.Is(err, ErrResolutionInProgress),
		errors.Is(err, ErrNoResolution),
		errors.Is(err, ErrAlreadyDisputed),
		errors.Is(err, ErrLivenessNotElapsed),
		errors.Is(err, ErrLivenessElapsed),
		errors.Is(err, ErrMarketNotResolved),
		errors.Is(err, ErrMarketNotCancelled):
		return KindState
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientBond),
		errors.Is(err, ErrNothingToClaim),
		errors.Is(err, ErrNothingToRefund),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrInsolvent):
		return KindSolvency
	default:
		return KindInternal
	}
}
