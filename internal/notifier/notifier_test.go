package notifier

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	at := time.Date(2025, 7, 27, 18, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	n := New(EventApprovalRequested, "a1", "seller", map[string]string{"current_bid": "45000"}, at)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "a1", n.AuctionID)
	assert.Equal(t, "seller", n.RecipientID)
	assert.Equal(t, time.UTC, n.CreatedAt.Location())
	assert.True(t, n.CreatedAt.Equal(at))

	var body map[string]string
	require.NoError(t, json.Unmarshal(n.Payload, &body))
	assert.Equal(t, "45000", body["current_bid"])

	other := New(EventApprovalRequested, "a1", "seller", nil, at)
	assert.NotEqual(t, n.ID, other.ID)
	assert.Nil(t, other.Payload)
}

func TestNewDropsUnmarshalablePayload(t *testing.T) {
	n := New(EventOutbid, "a1", "bob", math.Inf(1), time.Now())
	assert.Nil(t, n.Payload)
	assert.Equal(t, EventOutbid, n.EventType)
}

func TestSubject(t *testing.T) {
	p := &JetStreamNotifier{cfg: DefaultJetStreamConfig("nats://localhost:4222")}
	assert.Equal(t, "auction.notify.checkout_unlocked", p.Subject(EventCheckoutUnlocked))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), New(EventAuctionEnded, "a1", "alice", nil, time.Now())))
}
