// Package jobs 提供异步任务处理能力
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/internal/infrastructure/storage"
	apperrors "ai-credit-gateway/pkg/errors"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/metrics"
)

var tracer = otel.Tracer("jobs")

// Handler 处理一个已认领的任务，返回结果载荷
type Handler interface {
	Handle(ctx context.Context, job *entity.Job) (json.RawMessage, error)
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, job *entity.Job) (json.RawMessage, error)

// Handle 实现 Handler
func (f HandlerFunc) Handle(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
	return f(ctx, job)
}

// Processor 任务处理器，每次调用最多处理一个任务。
// 任务被认领后如果处理进程崩溃，任务会停留在认领状态，
// 需要人工恢复，这里不做租约和超时回收。
type Processor struct {
	jobRepo  repository.JobRepository
	store    storage.ArtifactStore // 可为 nil，结果只存内联载荷
	handlers map[entity.JobType]Handler
}

// NewProcessor 创建任务处理器
func NewProcessor(jobRepo repository.JobRepository, store storage.ArtifactStore) *Processor {
	return &Processor{
		jobRepo:  jobRepo,
		store:    store,
		handlers: make(map[entity.JobType]Handler),
	}
}

// RegisterHandler 按任务类型注册处理函数
func (p *Processor) RegisterHandler(jobType entity.JobType, h Handler) {
	p.handlers[jobType] = h
}

// ProcessOne 认领并处理最多一个排队任务。
// 返回实际处理的任务数（0 或 1）。队列为空不算错误。
func (p *Processor) ProcessOne(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "jobs.Processor.ProcessOne")
	defer span.End()

	job, err := p.jobRepo.ClaimOldestQueued(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to claim job")
	}
	if job == nil {
		span.SetAttributes(attribute.Bool("jobs.queue_empty", true))
		return 0, nil
	}

	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	span.SetAttributes(
		attribute.String("jobs.id", job.ID),
		attribute.String("jobs.type", string(job.JobType)),
	)
	logger.Info(ctx, "claimed job", "job_type", job.JobType)

	start := time.Now()
	p.run(ctx, job)
	metrics.JobProcessDuration.WithLabelValues(string(job.JobType)).Observe(time.Since(start).Seconds())

	if err := p.jobRepo.Update(ctx, job); err != nil {
		span.RecordError(err)
		return 1, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to persist job result")
	}
	return 1, nil
}

// run 分发处理并填充任务结果，任务总会被终结
func (p *Processor) run(ctx context.Context, job *entity.Job) {
	handler, ok := p.handlers[job.JobType]
	if !ok {
		job.Fail(fmt.Sprintf("unknown job type: %s", job.JobType))
		metrics.JobsProcessedTotal.WithLabelValues(string(job.JobType), "unknown_type").Inc()
		logger.Warn(ctx, "no handler registered for job type", "job_type", job.JobType)
		return
	}

	job.UpdateProgress(10)
	result, err := handler.Handle(ctx, job)
	if err != nil {
		job.Fail(err.Error())
		metrics.JobsProcessedTotal.WithLabelValues(string(job.JobType), "error").Inc()
		logger.Error(ctx, "job handler failed", err, "job_type", job.JobType)
		return
	}

	// 结果归档尽力而为，失败时保留内联载荷
	resultRef := ""
	if p.store != nil && len(result) > 0 {
		key := fmt.Sprintf("jobs/%s/result.json", job.ID)
		ref, putErr := p.store.Put(ctx, key, result, "application/json")
		if putErr != nil {
			logger.Warn(ctx, "artifact upload failed, keeping inline result", "error", putErr.Error())
		} else {
			resultRef = ref
		}
	}

	job.Complete(result, resultRef)
	metrics.JobsProcessedTotal.WithLabelValues(string(job.JobType), "success").Inc()
	logger.Info(ctx, "job completed", "job_type", job.JobType, "result_ref", resultRef)
}
