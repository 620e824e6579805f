package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		limit    int64
		wantPct  float64
		wantOver bool
	}{
		{"well under the limit", 25, 100, 25.0, false},
		{"exactly at the limit", 100, 100, 100.0, false},
		{"one past the limit", 101, 100, 101.0, true},
		{"zero limit is unlimited", 1_000_000, 0, 0, false},
		{"negative limit is unlimited", 1_000_000, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := Evaluate("api_access", tt.current, tt.limit)
			assert.Equal(t, tt.wantOver, fl.IsOverLimit)
			assert.InDelta(t, tt.wantPct, fl.UsagePercentage, 0.001)
			assert.Equal(t, tt.current, fl.CurrentUsage)
		})
	}
}
