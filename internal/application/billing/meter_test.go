package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
)

func newTestMeter() *Meter {
	return NewMeter(&config.BillingConfig{TokensPerCredit: 1000})
}

func TestEstimateTokens(t *testing.T) {
	m := newTestMeter()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one byte", "a", 1},
		{"exactly four bytes", "abcd", 1},
		{"five bytes rounds up", "abcde", 2},
		{"eight bytes", "abcdefgh", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.EstimateTokens(tt.text))
		})
	}
}

func TestComputeCost(t *testing.T) {
	m := newTestMeter()

	// 40 输入 + 20 输出 token，1000 token 每信用点 => 0.060
	cost := m.ComputeCost(40, 20)
	assert.Equal(t, "0.060", cost.String())
	assert.Equal(t, entity.CreditsFromMilli(60), cost)

	assert.Equal(t, entity.Credits(0), m.ComputeCost(0, 0))
	assert.Equal(t, entity.CreditsFromWhole(1), m.ComputeCost(500, 500))
}

func TestNewMeterDefaultRatio(t *testing.T) {
	m := NewMeter(&config.BillingConfig{})
	assert.Equal(t, 1000, m.TokensPerCredit())
}
