package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
)

func newTestScheduler(repo *memJobRepo, maxIterations int) *Scheduler {
	p := NewProcessor(repo, nil)
	p.RegisterHandler(entity.JobTypeCompletion, echoHandler())
	return NewScheduler(p, repo, &config.JobsConfig{
		SweepInterval:      time.Second,
		SweepMaxIterations: maxIterations,
	})
}

func TestRunSweepDrainsQueue(t *testing.T) {
	repo := &memJobRepo{}
	s := newTestScheduler(repo, 5)

	for i := 0; i < 3; i++ {
		enqueue(t, repo, entity.JobTypeCompletion)
	}

	n, err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	depth, err := repo.CountQueued(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestRunSweepBoundedIterations(t *testing.T) {
	repo := &memJobRepo{}
	s := newTestScheduler(repo, 2)

	for i := 0; i < 5; i++ {
		enqueue(t, repo, entity.JobTypeCompletion)
	}

	n, err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	depth, err := repo.CountQueued(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)
}

func TestRunSweepEmptyQueue(t *testing.T) {
	s := newTestScheduler(&memJobRepo{}, 5)

	n, err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKickProcessesJobAsync(t *testing.T) {
	repo := &memJobRepo{}
	s := newTestScheduler(repo, 5)

	job := enqueue(t, repo, entity.JobTypeCompletion)

	// Kick 立即返回，处理在后台进行
	s.Kick(context.Background())

	require.Eventually(t, func() bool {
		got, err := repo.GetByID(context.Background(), job.ID)
		return err == nil && got != nil && got.Status == entity.JobStatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKickSurvivesCancelledRequestContext(t *testing.T) {
	repo := &memJobRepo{}
	s := newTestScheduler(repo, 5)

	job := enqueue(t, repo, entity.JobTypeCompletion)

	// 请求上下文立即取消，处理仍应完成
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Kick(ctx)

	require.Eventually(t, func() bool {
		got, err := repo.GetByID(context.Background(), job.ID)
		return err == nil && got != nil && got.Status == entity.JobStatusDone
	}, 2*time.Second, 10*time.Millisecond)
}
