package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"auctionhouse/internal/services/auction"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the pub/sub channel carrying one auction's live events.
func EventsChannel(auctionID string) string { return "auc:" + auctionID + ":events" }

// RedisPublisher fans live events out through Redis so viewers connected to
// any instance receive them.
type RedisPublisher struct {
	rdb redis.Cmdable
}

func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) Publish(ctx context.Context, auctionID string, ev auction.LiveEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	return p.rdb.Publish(ctx, EventsChannel(auctionID), payload).Err()
}

// HubPublisher delivers live events straight to this process's viewers. It
// serves single-instance deployments without Redis.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher { return &HubPublisher{hub: hub} }

func (p *HubPublisher) Publish(_ context.Context, auctionID string, ev auction.LiveEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	wrapped, err := wrapLiveEvent(payload)
	if err != nil {
		return err
	}
	p.hub.Broadcast(auctionID, wrapped)
	return nil
}

var (
	_ auction.LivePublisher = (*RedisPublisher)(nil)
	_ auction.LivePublisher = (*HubPublisher)(nil)
)

// wrapLiveEvent turns
//
//	{"event":"bid","auction_id":"a1",…}
//
// into
//
//	{"event":"auctions/bid","body":{"auction_id":"a1",…}}
func wrapLiveEvent(payload []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	var evt string
	_ = json.Unmarshal(raw["event"], &evt)
	if evt == "" {
		evt = "unknown"
	}
	delete(raw, "event") // Avoid duplication inside “body”.

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: "auctions/" + evt, Body: body})
}
