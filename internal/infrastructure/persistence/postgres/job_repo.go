// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-credit-gateway/internal/domain/entity"
)

// JobRepository 任务仓储实现
type JobRepository struct {
	client *Client
}

// NewJobRepository 创建任务仓储
func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.Job
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ClaimOldestQueued 原子认领最早入队的任务
// 单条语句完成选取和状态翻转，并发调用者通过 FOR UPDATE SKIP LOCKED
// 互相避让，同一任务不会被认领两次。队列为空时返回 nil。
func (r *JobRepository) ClaimOldestQueued(ctx context.Context) (*entity.Job, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.ClaimOldestQueued")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.Job
	err := db.Raw(`
		UPDATE jobs
		SET status = ?, updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ?
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		entity.JobStatusProcessing, entity.JobStatusQueued,
	).Scan(&job).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to claim queued job: %w", err)
	}
	if job.ID == "" {
		return nil, nil
	}
	return &job, nil
}

// Update 更新任务
func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// CountQueued 统计排队中的任务数
func (r *JobRepository) CountQueued(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.CountQueued")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Job{}).Where("status = ?", entity.JobStatusQueued).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count queued jobs: %w", err)
	}
	return count, nil
}
