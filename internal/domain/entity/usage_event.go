// Package entity 定义领域实体
package entity

import "time"

// UsageEvent 一次计费调用的用量记录
type UsageEvent struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;not null"`
	Route     string    `json:"route" gorm:"type:varchar(128);not null"`
	Provider  string    `json:"provider" gorm:"type:varchar(32);not null"`
	Model     string    `json:"model" gorm:"type:varchar(64);not null"`
	TokensIn  int       `json:"tokens_in" gorm:"not null;default:0"`
	TokensOut int       `json:"tokens_out" gorm:"not null;default:0"`
	CostMilli Credits   `json:"cost_milli" gorm:"not null;default:0"`
	RequestID string    `json:"request_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}
