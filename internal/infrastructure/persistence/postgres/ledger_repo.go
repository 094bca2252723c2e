// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
)

// LedgerRepository 信用点流水仓储实现，表只追加，余额由 SUM 推导
type LedgerRepository struct {
	client *Client
}

// NewLedgerRepository 创建流水仓储
func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

// Record 追加一条流水
func (r *LedgerRepository) Record(ctx context.Context, tx *entity.CreditTransaction) error {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.Record")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(tx).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

// Balance 对用户全部流水求和得到余额
func (r *LedgerRepository) Balance(ctx context.Context, userID string) (entity.Credits, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.Balance")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var milli int64
	err := db.Model(&entity.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_milli), 0)").
		Scan(&milli).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum credit transactions: %w", err)
	}
	return entity.CreditsFromMilli(milli), nil
}

// ListByUser 获取用户流水，按时间倒序
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.CreditTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	var items []*entity.CreditTransaction
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}

	return repository.NewPagedResult(items, total, pagination), nil
}
