package config

import (
	"testing"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.LedgerBackend)
	assert.Equal(t, 10*time.Second, cfg.SnipeWindow)
	assert.Equal(t, 30*time.Second, cfg.SnipeExtension)
	assert.Equal(t, 48*time.Hour, cfg.ApprovalGracePeriod)
	assert.Equal(t, "disable", cfg.PostgresSSLMode)
	assert.Equal(t, 0, cfg.RedisAuctionsDb)

	opts, err := cfg.AuctionOptions()
	require.NoError(t, err)
	assert.Equal(t, auction.DefaultOptions().Extension, opts.Extension)
	assert.Equal(t, auction.ExpiryOpen, opts.ExpiryPolicy)
	assert.True(t, opts.MinIncrement.IsZero())
	assert.False(t, opts.PersistBids)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("BID_MIN_INCREMENT", "250.50")
	t.Setenv("SNIPE_MAX_EXTENSIONS", "5")
	t.Setenv("APPROVAL_EXPIRY_POLICY", "locked")
	t.Setenv("CLOSE_WORKERS", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.CloseWorkers)

	opts, err := cfg.AuctionOptions()
	require.NoError(t, err)
	assert.Equal(t, "250.5", opts.MinIncrement.String())
	assert.Equal(t, 5, opts.Extension.MaxExtensions)
	assert.Equal(t, auction.ExpiryLocked, opts.ExpiryPolicy)
	assert.True(t, opts.PersistBids, "the memory ledger has no bid stream")
}

func TestAuctionOptionsRejectsSubCentIncrement(t *testing.T) {
	t.Setenv("BID_MIN_INCREMENT", "0.005")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	_, err = cfg.AuctionOptions()
	assert.ErrorContains(t, err, "decimal places")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	for key, val := range map[string]string{
		"LEDGER_BACKEND":         "etcd",
		"APPROVAL_EXPIRY_POLICY": "never",
		"POSTGRES_SSLMODE":       "sometimes",
		"BID_MIN_INCREMENT":      "ten",
		"HTTP_SERVER_PORT":       "80",
		"SNIPE_WINDOW":           "soon",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
