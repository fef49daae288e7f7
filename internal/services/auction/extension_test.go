package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtensionPolicyApply(t *testing.T) {
	end := time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)
	p := DefaultExtensionPolicy()

	tests := []struct {
		name     string
		policy   ExtensionPolicy
		now      time.Time
		applied  int
		wantEnd  time.Time
		extended bool
	}{
		{"outside window", p, end.Add(-11 * time.Second), 0, end, false},
		{"window edge", p, end.Add(-10 * time.Second), 0, end.Add(30 * time.Second), true},
		{"two seconds left", p, end.Add(-2 * time.Second), 0, end.Add(30 * time.Second), true},
		{"at deadline", p, end, 0, end, false},
		{"disabled", ExtensionPolicy{}, end.Add(-time.Second), 0, end, false},
		{"cap reached", ExtensionPolicy{Window: 10 * time.Second, Extension: 30 * time.Second, MaxExtensions: 2}, end.Add(-time.Second), 2, end, false},
		{"under cap", ExtensionPolicy{Window: 10 * time.Second, Extension: 30 * time.Second, MaxExtensions: 2}, end.Add(-time.Second), 1, end.Add(30 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.policy.Apply(tt.now, end, tt.applied)
			assert.Equal(t, tt.extended, ok)
			assert.True(t, tt.wantEnd.Equal(got), "got %s want %s", got, tt.wantEnd)
		})
	}
}
