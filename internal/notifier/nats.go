package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig(url string) JetStreamConfig {
	return JetStreamConfig{
		URL:             url,
		StreamName:      "AUCTION_NOTIFICATIONS",
		SubjectPrefix:   "auction.notify",
		MaxAge:          72 * time.Hour,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamNotifier publishes notifications to a JetStream stream, one subject
// per event type. The notification id doubles as the JetStream message id.
type JetStreamNotifier struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg JetStreamConfig
}

func NewJetStreamNotifier(ctx context.Context, cfg JetStreamConfig) (*JetStreamNotifier, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.L().Warn("nats.disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.L().Info("nats.reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Auction lifecycle notifications",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.MaxAge,
		Duplicates:  cfg.DuplicateWindow,
		Replicas:    1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	zap.L().Info("nats.stream_ready", zap.String("stream", cfg.StreamName))

	return &JetStreamNotifier{nc: nc, js: js, cfg: cfg}, nil
}

func (p *JetStreamNotifier) Subject(eventType string) string {
	return p.cfg.SubjectPrefix + "." + eventType
}

func (p *JetStreamNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ack, err := p.js.Publish(ctx, p.Subject(n.EventType), data, jetstream.WithMsgID(n.ID))
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.EventType, err)
	}
	if ack.Duplicate {
		zap.L().Debug("nats.duplicate_notification", zap.String("id", n.ID))
	}
	return nil
}

func (p *JetStreamNotifier) Close() {
	p.nc.Close()
}
