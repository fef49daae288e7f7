package config

import (
	"fmt"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	RedisAuctionsHost string `env:"REDIS_AUCTIONS_HOST" envDefault:"localhost"`
	RedisAuctionsPort uint16 `env:"REDIS_AUCTIONS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`
	RedisAuctionsPass string `env:"REDIS_AUCTIONS_PASSWORD"`
	RedisAuctionsDb   int    `env:"REDIS_AUCTIONS_DB"   envDefault:"0"      validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"50"     validate:"min=1,max=1000"`

	// NatsURL empty means notifications are only logged.
	NatsURL       string `env:"NATS_URL"`
	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"redis" validate:"oneof=redis memory"`

	BidMinIncrement    string        `env:"BID_MIN_INCREMENT"     envDefault:"0"   validate:"numeric"`
	SnipeWindow        time.Duration `env:"SNIPE_WINDOW"          envDefault:"10s" validate:"min=0"`
	SnipeExtension     time.Duration `env:"SNIPE_EXTENSION"       envDefault:"30s" validate:"min=0"`
	SnipeMaxExtensions int           `env:"SNIPE_MAX_EXTENSIONS"  envDefault:"0"   validate:"min=0"`

	ApprovalGracePeriod  time.Duration `env:"APPROVAL_GRACE_PERIOD"  envDefault:"48h"  validate:"gt=0"`
	ApprovalExpiryPolicy string        `env:"APPROVAL_EXPIRY_POLICY" envDefault:"open" validate:"oneof=open locked"`

	CloseSweepInterval time.Duration `env:"CLOSE_SWEEP_INTERVAL" envDefault:"5s" validate:"gt=0"`
	CloseWorkers       int           `env:"CLOSE_WORKERS"        envDefault:"4"  validate:"min=1,max=256"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"  validate:"gt=0"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"100" validate:"min=1,max=10000"`

	LiveSyncInterval time.Duration `env:"LIVE_SYNC_INTERVAL" envDefault:"10s" validate:"gt=0"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// AuctionOptions converts the bidding and approval settings into service
// options.
func (c *Config) AuctionOptions() (auction.Options, error) {
	inc, err := decimal.NewFromString(c.BidMinIncrement)
	if err != nil {
		return auction.Options{}, fmt.Errorf("BID_MIN_INCREMENT: %w", err)
	}
	if inc.IsNegative() {
		return auction.Options{}, fmt.Errorf("BID_MIN_INCREMENT must not be negative")
	}
	if !auction.IsMoney(inc) {
		return auction.Options{}, fmt.Errorf("BID_MIN_INCREMENT allows at most %d decimal places", auction.MoneyPlaces)
	}
	return auction.Options{
		MinIncrement: inc,
		Extension: auction.ExtensionPolicy{
			Window:        c.SnipeWindow,
			Extension:     c.SnipeExtension,
			MaxExtensions: c.SnipeMaxExtensions,
		},
		ApprovalGrace: c.ApprovalGracePeriod,
		ExpiryPolicy:  auction.ExpiryPolicy(c.ApprovalExpiryPolicy),
		PersistBids:   c.LedgerBackend == "memory",
	}, nil
}
