// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-credit-gateway/internal/domain/entity"
)

// UsageRepository 用量记录仓储接口
type UsageRepository interface {
	// Create 创建用量记录
	Create(ctx context.Context, event *entity.UsageEvent) error

	// ListByUser 获取用户用量记录，按时间倒序
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.UsageEvent], error)
}
