package auction

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every error returned by the service wraps exactly one of these,
// so callers branch with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrRaceLost      = errors.New("race lost: current bid changed, refetch and resubmit")
	ErrNotFound      = errors.New("not found")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

var (
	ErrAuctionNotFound  = newKindError(ErrNotFound, "auction not found")
	ErrAuctionExists    = newKindError(ErrState, "auction already exists")
	ErrAuctionNotActive = newKindError(ErrState, "auction not active")
	ErrAuctionClosed    = newKindError(ErrState, "auction closed")
	ErrAuctionEnded     = newKindError(ErrState, "auction already ended")
	ErrAuctionCancelled = newKindError(ErrState, "auction cancelled")
	ErrNoApprovalNeeded = newKindError(ErrState, "auction does not require approval")
	ErrApprovalExpired  = newKindError(ErrState, "approval deadline passed")
	ErrAlreadyDecided   = newKindError(ErrState, "approval already decided")

	ErrInvalidAmount     = newKindError(ErrValidation, "bid amount must be positive")
	ErrAmountPrecision   = newKindError(ErrValidation, "amount allows at most 2 decimal places")
	ErrBidBelowCurrent   = newKindError(ErrValidation, "bid must be higher than current bid")
	ErrBidBelowIncrement = newKindError(ErrValidation, "bid below min increment")
	ErrInvalidAuction    = newKindError(ErrValidation, "invalid auction")
	ErrInvalidDecision   = newKindError(ErrValidation, "decision must be approve or reject")

	ErrSelfBid   = newKindError(ErrAuthorization, "seller cannot bid on own auction")
	ErrForbidden = newKindError(ErrAuthorization, "only the seller or an admin may do this")
)

func invalidAuction(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidAuction, reason)
}

// NotDueError is returned by the closing path when the auction deadline has
// not been reached, typically because a late bid extended it.
type NotDueError struct {
	EndsAt time.Time
}

func (e *NotDueError) Error() string {
	return "auction not due until " + e.EndsAt.UTC().Format(time.RFC3339Nano)
}

func (e *NotDueError) Unwrap() error { return ErrState }

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyDecided, "already_decided"},
	{ErrAuctionNotFound, "auction_not_found"},
	{ErrAuctionExists, "auction_exists"},
	{ErrAuctionClosed, "auction_closed"},
	{ErrAuctionEnded, "auction_ended"},
	{ErrAuctionCancelled, "auction_cancelled"},
	{ErrAuctionNotActive, "auction_not_active"},
	{ErrNoApprovalNeeded, "no_approval_needed"},
	{ErrApprovalExpired, "approval_expired"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrAmountPrecision, "amount_precision"},
	{ErrBidBelowCurrent, "bid_below_current"},
	{ErrBidBelowIncrement, "bid_below_increment"},
	{ErrInvalidAuction, "invalid_auction"},
	{ErrInvalidDecision, "invalid_decision"},
	{ErrSelfBid, "self_bid"},
	{ErrForbidden, "forbidden"},
	{ErrRaceLost, "race_lost"},
	{ErrValidation, "validation_error"},
	{ErrAuthorization, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrState, "state_error"},
}

// Code returns the machine-readable code clients branch on. Errors outside
// the kinds above are "internal".
func Code(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
