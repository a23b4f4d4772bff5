package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTier(t *testing.T) {
	tests := []struct {
		tier string
		want int
	}{
		{"agency", 1},
		{"Agency ", 1},
		{"pro", 2},
		{"starter", 5},
		{"free", 10},
		{"", 10},
		{"enterprise-legacy", 10},
	}

	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			assert.Equal(t, tt.want, ForTier(tt.tier))
		})
	}
}

func TestTierOrdering(t *testing.T) {
	assert.Less(t, ForTier("agency"), ForTier("pro"))
	assert.Less(t, ForTier("pro"), ForTier("starter"))
	assert.Less(t, ForTier("starter"), ForTier("unknown"))
}
