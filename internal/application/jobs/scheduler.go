package jobs

import (
	"context"
	"time"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/metrics"
)

// defaultSweepMaxIterations 单次扫描认领任务数上限
const defaultSweepMaxIterations = 5

// Scheduler 任务触发器：入队后的即时触发和周期扫描
// 走的是同一个原子认领，两条路径互不干扰。
type Scheduler struct {
	processor     *Processor
	jobRepo       repository.JobRepository
	interval      time.Duration
	maxIterations int
	kickTimeout   time.Duration
}

// NewScheduler 创建调度器
func NewScheduler(processor *Processor, jobRepo repository.JobRepository, cfg *config.JobsConfig) *Scheduler {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	maxIterations := cfg.SweepMaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultSweepMaxIterations
	}
	return &Scheduler{
		processor:     processor,
		jobRepo:       jobRepo,
		interval:      interval,
		maxIterations: maxIterations,
		kickTimeout:   5 * time.Minute,
	}
}

// Kick 入队后的即时触发：在独立 goroutine 中处理一个任务，
// 不阻塞调用方，panic 和错误只记日志，绝不影响入队响应。
func (s *Scheduler) Kick(ctx context.Context) {
	// 与请求生命周期脱钩，请求返回后处理继续
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(detached, "eager job kick panicked", nil, "panic", r)
			}
		}()

		kickCtx, cancel := context.WithTimeout(detached, s.kickTimeout)
		defer cancel()

		if _, err := s.processor.ProcessOne(kickCtx); err != nil {
			logger.Error(kickCtx, "eager job kick failed", err)
		}
	}()
}

// RunSweep 执行一轮扫描：循环认领任务，处理到队列为空
// 或达到迭代上限为止。返回处理的任务数。
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	processed := 0
	for i := 0; i < s.maxIterations; i++ {
		n, err := s.processor.ProcessOne(ctx)
		if err != nil {
			return processed, err
		}
		if n == 0 {
			break
		}
		processed += n
	}

	s.updateQueueDepth(ctx)
	return processed, nil
}

// Run 周期扫描循环，直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info(ctx, "job sweep loop started",
		"interval", s.interval.String(), "max_iterations", s.maxIterations)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "job sweep loop stopped")
			return
		case <-ticker.C:
			if n, err := s.RunSweep(ctx); err != nil {
				logger.Error(ctx, "job sweep failed", err, "processed", n)
			} else if n > 0 {
				logger.Info(ctx, "job sweep finished", "processed", n)
			}
		}
	}
}

// updateQueueDepth 刷新队列深度指标，失败忽略
func (s *Scheduler) updateQueueDepth(ctx context.Context) {
	depth, err := s.jobRepo.CountQueued(ctx)
	if err != nil {
		return
	}
	metrics.JobQueueDepth.Set(float64(depth))
}
