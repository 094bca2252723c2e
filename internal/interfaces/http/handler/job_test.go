package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/application/jobs"
	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
)

// stubJobRepo 最小内存任务仓储，即时触发会并发访问
type stubJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*entity.Job
	seq  int
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[string]*entity.Job)}
}

func (r *stubJobRepo) Create(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	job.ID = fmt.Sprintf("job-%d", r.seq)
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *stubJobRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id], nil
}

func (r *stubJobRepo) ClaimOldestQueued(ctx context.Context) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Status == entity.JobStatusQueued {
			j.Status = entity.JobStatusProcessing
			return j, nil
		}
	}
	return nil, nil
}

func (r *stubJobRepo) Update(ctx context.Context, job *entity.Job) error { return nil }

func (r *stubJobRepo) CountQueued(ctx context.Context) (int64, error) { return 0, nil }

func newJobTestRouter(userID string) (*gin.Engine, *stubJobRepo) {
	gin.SetMode(gin.TestMode)
	repo := newStubJobRepo()

	processor := jobs.NewProcessor(repo, nil)
	processor.RegisterHandler(entity.JobTypeCompletion, jobs.HandlerFunc(
		func(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
			return json.RawMessage(`{"text":"done"}`), nil
		}))
	scheduler := jobs.NewScheduler(processor, repo, &config.JobsConfig{SweepInterval: time.Second})
	svc := jobs.NewService(repo, nil, scheduler)
	h := NewJobHandler(svc, processor)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
	})
	r.POST("/v1/jobs", h.Enqueue)
	r.GET("/v1/jobs/:jid", h.GetJob)
	r.GET("/v1/jobs/:jid/result", h.DownloadResult)
	r.POST("/internal/jobs/process-one", h.ProcessOne)
	return r, repo
}

func TestEnqueueJobAccepted(t *testing.T) {
	r, _ := newJobTestRouter("alice")

	body := `{"type":"completion","payload":{"prompt":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"queued"`)
}

func TestEnqueueJobUnknownType(t *testing.T) {
	r, _ := newJobTestRouter("alice")

	body := `{"type":"mystery","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "4005")
}

func TestGetJobNotFoundForOtherUser(t *testing.T) {
	r, repo := newJobTestRouter("mallory")

	job := entity.NewJob("alice", entity.JobTypeCompletion, json.RawMessage(`{}`))
	require.NoError(t, repo.Create(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "4004")
}

func TestProcessOneAndDownloadResult(t *testing.T) {
	r, repo := newJobTestRouter("alice")

	job := entity.NewJob("alice", entity.JobTypeCompletion, json.RawMessage(`{}`))
	require.NoError(t, repo.Create(context.Background(), job))

	// 结果未就绪时下载冲突
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/result", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/jobs/process-one", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":1`)

	req = httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID+"/result", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"done"}`, w.Body.String())
}
