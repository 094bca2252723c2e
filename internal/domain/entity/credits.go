// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Credits 信用点金额，以千分之一信用点为单位的定点数 (3 位小数)
type Credits int64

// MilliPerCredit 每信用点的千分位单位数
const MilliPerCredit = 1000

// CreditsFromMilli 从千分位单位构造金额
func CreditsFromMilli(milli int64) Credits {
	return Credits(milli)
}

// CreditsFromWhole 从整数信用点构造金额
func CreditsFromWhole(whole int64) Credits {
	return Credits(whole * MilliPerCredit)
}

// CostFromTokens 按 token 总量计算成本，四舍五入到千分位
func CostFromTokens(totalTokens int, tokensPerCredit int) Credits {
	if tokensPerCredit <= 0 {
		tokensPerCredit = MilliPerCredit
	}
	milli := (int64(totalTokens)*MilliPerCredit + int64(tokensPerCredit)/2) / int64(tokensPerCredit)
	return Credits(milli)
}

// Milli 返回千分位单位数
func (c Credits) Milli() int64 {
	return int64(c)
}

// Add 金额相加
func (c Credits) Add(other Credits) Credits {
	return c + other
}

// Neg 取负，用于扣费流水
func (c Credits) Neg() Credits {
	return -c
}

// IsNegative 是否为负数
func (c Credits) IsNegative() bool {
	return c < 0
}

// String 格式化为带 3 位小数的十进制字符串，如 "0.060"
func (c Credits) String() string {
	milli := int64(c)
	sign := ""
	if milli < 0 {
		sign = "-"
		milli = -milli
	}
	return fmt.Sprintf("%s%d.%03d", sign, milli/MilliPerCredit, milli%MilliPerCredit)
}

// ParseCredits 解析十进制信用点字符串，最多 3 位小数
func ParseCredits(s string) (Credits, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty credits value")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	wholePart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		wholePart = s[:idx]
		fracPart = s[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 3 {
		return 0, fmt.Errorf("credits value %q has more than 3 decimal places", s)
	}
	for len(fracPart) < 3 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credits value %q: %w", s, err)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credits value %q: %w", s, err)
	}

	milli := whole*MilliPerCredit + frac
	if neg {
		milli = -milli
	}
	return Credits(milli), nil
}
