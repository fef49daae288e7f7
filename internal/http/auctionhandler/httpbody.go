package auctionhandler

import (
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/shopspring/decimal"
)

type CreateAuctionBody struct {
	ID          string           `json:"id"            binding:"omitempty,max=64"  example:"auc123"`
	BasePrice   decimal.Decimal  `json:"base_price"    swaggertype:"string"        example:"10000"`
	BuyNowPrice *decimal.Decimal `json:"buy_now_price" swaggertype:"string"        example:"50000"`
	StartsAt    *time.Time       `json:"starts_at"                                 example:"2025-07-27T16:00:00Z"`
	EndsAt      time.Time        `json:"ends_at"       binding:"required"          example:"2025-07-27T16:05:05Z"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"25000"`
} // @name PlaceBidRequest

type ApprovalBody struct {
	Action string `json:"action" binding:"required,oneof=approve reject" example:"approve"`
	Notes  string `json:"notes"  binding:"max=2000"                      example:"fair price"`
} // @name ApprovalRequest

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty" example:"race_lost"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=scheduled active ended cancelled"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery

type PageQuery struct {
	Limit  int `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int `form:"offset,default=0"  binding:"gte=0"`
} // @name PageQuery

type TimerResponse struct {
	ServerNow time.Time      `json:"server_now"               example:"2025-07-27T16:00:00Z"`
	EndsAt    *time.Time     `json:"auction_end_at,omitempty" example:"2025-07-27T16:05:05Z"`
	Status    auction.Status `json:"auction_status,omitempty" example:"active"`
} // @name TimerResponse

type CheckoutResponse struct {
	AuctionID string                `json:"auction_id"`
	UserID    string                `json:"user_id"`
	State     auction.CheckoutState `json:"state"   example:"unlocked"`
	Allowed   bool                  `json:"allowed"`
} // @name CheckoutResponse

type PendingApproval struct {
	auction.Auction
	Expired bool `json:"expired"`
} // @name PendingApproval
