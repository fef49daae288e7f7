package auctionwatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuctionFromKey(t *testing.T) {
	id, ok := auctionFromKey("auc_t:7f9c")
	assert.True(t, ok)
	assert.Equal(t, "7f9c", id)

	for _, key := range []string{"auc:7f9c", "auc_t:", "session:1"} {
		_, ok := auctionFromKey(key)
		assert.False(t, ok, key)
	}
}
