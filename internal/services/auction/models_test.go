package auction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusScheduled, StatusActive, StatusEnded, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusActive}:    true,
		{StatusScheduled, StatusCancelled}: true,
		{StatusActive, StatusEnded}:        true,
		{StatusActive, StatusCancelled}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsMoney(t *testing.T) {
	for in, want := range map[string]bool{
		"100":     true,
		"100.5":   true,
		"100.50":  true,
		"100.500": true,
		"100.001": false,
		"0.005":   false,
	} {
		assert.Equal(t, want, IsMoney(decimal.RequireFromString(in)), in)
	}
}
