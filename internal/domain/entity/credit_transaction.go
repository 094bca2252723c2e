// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// TransactionReason 流水原因
type TransactionReason string

const (
	ReasonTopUp       TransactionReason = "topup"
	ReasonUsageCharge TransactionReason = "usage_charge"
	ReasonAdjustment  TransactionReason = "adjustment"
)

// CreditTransaction 信用点流水，只追加，余额始终由 SUM 推导
type CreditTransaction struct {
	ID          string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      string            `json:"user_id" gorm:"type:uuid;index;not null"`
	AmountMilli Credits           `json:"amount_milli" gorm:"not null"`
	Reason      TransactionReason `json:"reason" gorm:"type:varchar(32);not null"`
	RequestID   string            `json:"request_id,omitempty" gorm:"type:varchar(64);index"`
	Metadata    json.RawMessage   `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// NewTopUp 创建充值流水
func NewTopUp(userID string, amount Credits, requestID string) *CreditTransaction {
	return &CreditTransaction{
		UserID:      userID,
		AmountMilli: amount,
		Reason:      ReasonTopUp,
		RequestID:   requestID,
		CreatedAt:   time.Now(),
	}
}

// NewUsageCharge 创建扣费流水，金额取负
func NewUsageCharge(userID string, cost Credits, requestID string) *CreditTransaction {
	return &CreditTransaction{
		UserID:      userID,
		AmountMilli: cost.Neg(),
		Reason:      ReasonUsageCharge,
		RequestID:   requestID,
		CreatedAt:   time.Now(),
	}
}
