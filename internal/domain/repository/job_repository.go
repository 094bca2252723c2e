// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"ai-credit-gateway/internal/domain/entity"
)

// JobRepository 任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.Job) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.Job, error)

	// ClaimOldestQueued 原子认领最早入队的任务，队列为空时返回 nil
	ClaimOldestQueued(ctx context.Context) (*entity.Job, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.Job) error

	// CountQueued 统计排队中的任务数
	CountQueued(ctx context.Context) (int64, error)
}
