// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-credit-gateway/internal/domain/entity"
)

// LedgerRepository 信用点流水仓储接口，只支持追加和读取
type LedgerRepository interface {
	// Record 追加一条流水
	Record(ctx context.Context, tx *entity.CreditTransaction) error

	// Balance 对用户全部流水求和得到余额
	Balance(ctx context.Context, userID string) (entity.Credits, error)

	// ListByUser 获取用户流水，按时间倒序
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.CreditTransaction], error)
}
