package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

const (
	EventSnapshot = "auctions/snapshot"
	EventBid      = "auctions/bid"
	EventTimer    = "auctions/timer"
	EventError    = "error"
)

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TimerRequest is the (empty) body for "auctions/timer".
type TimerRequest struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
