package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types delivered to the notification gateway.
const (
	EventBidPlaced         = "bid_placed"
	EventOutbid            = "outbid"
	EventAuctionCancelled  = "auction_cancelled"
	EventAuctionEnded      = "auction_ended"
	EventApprovalRequested = "approval_requested"
	EventCheckoutUnlocked  = "checkout_unlocked"
	EventApprovalRejected  = "approval_rejected"
)

// Notification is one delivery request. ID is stable across retries so the
// gateway can drop duplicates.
type Notification struct {
	ID          string          `json:"id"`
	EventType   string          `json:"event_type"`
	AuctionID   string          `json:"auction_id"`
	RecipientID string          `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// New builds a notification with a fresh id. Payload marshalling errors are
// logged and the payload dropped; the event itself is still worth delivering.
func New(eventType, auctionID, recipientID string, payload any, at time.Time) Notification {
	n := Notification{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AuctionID:   auctionID,
		RecipientID: recipientID,
		CreatedAt:   at.UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			zap.L().Warn("notifier.payload_marshal", zap.String("event", eventType), zap.Error(err))
		} else {
			n.Payload = raw
		}
	}
	return n
}

// Notifier accepts notifications for delivery. Delivery is at-least-once;
// consumers deduplicate on Notification.ID.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	zap.L().Info("notification",
		zap.String("id", n.ID),
		zap.String("event", n.EventType),
		zap.String("auction_id", n.AuctionID),
		zap.String("recipient_id", n.RecipientID),
	)
	return nil
}
