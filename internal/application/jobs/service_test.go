package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
	apperrors "ai-credit-gateway/pkg/errors"
)

func newTestService(repo *memJobRepo) *Service {
	p := NewProcessor(repo, nil)
	p.RegisterHandler(entity.JobTypeCompletion, echoHandler())
	scheduler := NewScheduler(p, repo, &config.JobsConfig{SweepInterval: time.Second})
	return NewService(repo, nil, scheduler)
}

func TestEnqueue(t *testing.T) {
	repo := &memJobRepo{}
	svc := newTestService(repo)

	job, err := svc.Enqueue(context.Background(), "alice", entity.JobTypeCompletion, json.RawMessage(`{"prompt":"hi"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, entity.JobStatusQueued, job.Status)
	assert.Zero(t, job.Progress)
}

func TestEnqueueUnknownType(t *testing.T) {
	svc := newTestService(&memJobRepo{})

	_, err := svc.Enqueue(context.Background(), "alice", entity.JobType("mystery"), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeJobTypeUnknown))
}

func TestGetByIDOwnership(t *testing.T) {
	repo := &memJobRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, "alice", entity.JobTypeCompletion, json.RawMessage(`{}`))
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// 非属主视角任务不存在
	_, err = svc.GetByID(ctx, "mallory", job.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeJobNotFound))

	_, err = svc.GetByID(ctx, "alice", "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeJobNotFound))
}

func TestDownloadResult(t *testing.T) {
	repo := &memJobRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, "alice", entity.JobTypeCompletion, json.RawMessage(`{}`))
	require.NoError(t, err)

	// 未完成的任务不可下载
	_, err = svc.DownloadResult(ctx, "alice", job.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	job.Complete(json.RawMessage(`{"ok":true}`), "")

	data, err := svc.DownloadResult(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestDownloadResultNoPayload(t *testing.T) {
	repo := &memJobRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, "alice", entity.JobTypeCompletion, json.RawMessage(`{}`))
	require.NoError(t, err)
	job.Fail("boom")

	_, err = svc.DownloadResult(ctx, "alice", job.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
