package jobs

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/internal/infrastructure/storage"
	apperrors "ai-credit-gateway/pkg/errors"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/metrics"
)

// Service 任务服务：入队与查询
type Service struct {
	jobRepo   repository.JobRepository
	store     storage.ArtifactStore // 可为 nil
	scheduler *Scheduler
}

// NewService 创建任务服务
func NewService(jobRepo repository.JobRepository, store storage.ArtifactStore, scheduler *Scheduler) *Service {
	return &Service{
		jobRepo:   jobRepo,
		store:     store,
		scheduler: scheduler,
	}
}

// Enqueue 入队任务并触发即时处理。触发是异步的，
// 入队成功与否只取决于任务行是否写入。
func (s *Service) Enqueue(ctx context.Context, userID string, jobType entity.JobType, payload json.RawMessage) (*entity.Job, error) {
	ctx, span := tracer.Start(ctx, "jobs.Service.Enqueue")
	span.SetAttributes(attribute.String("jobs.type", string(jobType)))
	defer span.End()

	switch jobType {
	case entity.JobTypeCompletion, entity.JobTypeSkill:
	default:
		return nil, apperrors.ErrJobTypeUnknown.WithDetail(string(jobType))
	}

	job := entity.NewJob(userID, jobType, payload)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to enqueue job")
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(string(jobType)).Inc()
	logger.Info(ctx, "job enqueued", "job_id", job.ID, "job_type", jobType)

	s.scheduler.Kick(ctx)
	return job, nil
}

// GetByID 获取任务，非属主视角一律 JobNotFound
func (s *Service) GetByID(ctx context.Context, userID, id string) (*entity.Job, error) {
	ctx, span := tracer.Start(ctx, "jobs.Service.GetByID")
	defer span.End()

	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get job")
	}
	if job == nil || job.UserID != userID {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	return job, nil
}

// DownloadResult 下载任务结果：优先对象存储引用，回退内联载荷
func (s *Service) DownloadResult(ctx context.Context, userID, id string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "jobs.Service.DownloadResult")
	defer span.End()

	job, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entity.JobStatusDone {
		return nil, apperrors.New(apperrors.CodeConflict, "job is not finished").WithDetail(string(job.Status))
	}

	if job.ResultRef != "" && s.store != nil {
		data, err := s.store.Get(ctx, job.ResultRef)
		if err == nil {
			return data, nil
		}
		span.RecordError(err)
		logger.Warn(ctx, "artifact download failed, falling back to inline result",
			"job_id", job.ID, "error", err.Error())
	}

	if len(job.ResultPayload) == 0 {
		return nil, apperrors.ErrNotFound.WithDetail("job has no result payload")
	}
	return job.ResultPayload, nil
}
