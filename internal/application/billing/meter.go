// Package billing 提供信用点计费能力
package billing

import (
	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
)

// Meter 用量计量器
// Token 估算是近似值：按每 4 字节一个 token 向上取整，
// 不做 tokenizer 级别的精确计数。
type Meter struct {
	tokensPerCredit int
}

// NewMeter 创建计量器
func NewMeter(cfg *config.BillingConfig) *Meter {
	tpc := cfg.TokensPerCredit
	if tpc <= 0 {
		tpc = 1000
	}
	return &Meter{tokensPerCredit: tpc}
}

// EstimateTokens 估算文本的 token 数，ceil(len/4)
func (m *Meter) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// ComputeCost 按输入输出 token 总量计算成本，四舍五入到千分位
func (m *Meter) ComputeCost(tokensIn, tokensOut int) entity.Credits {
	return entity.CostFromTokens(tokensIn+tokensOut, m.tokensPerCredit)
}

// TokensPerCredit 返回换算比例
func (m *Meter) TokensPerCredit() int {
	return m.tokensPerCredit
}
