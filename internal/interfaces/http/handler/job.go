// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/application/jobs"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/interfaces/http/dto"
	apperrors "ai-credit-gateway/pkg/errors"
)

// JobHandler 异步任务处理器
type JobHandler struct {
	svc       *jobs.Service
	processor *jobs.Processor
}

// NewJobHandler 创建任务处理器
func NewJobHandler(svc *jobs.Service, processor *jobs.Processor) *JobHandler {
	return &JobHandler{
		svc:       svc,
		processor: processor,
	}
}

// Enqueue 入队任务，返回 202 并触发即时处理
// POST /v1/jobs
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	job, err := h.svc.Enqueue(c.Request.Context(), currentUserID(c), entity.JobType(req.Type), req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Accepted(c, dto.NewJobResponse(job))
}

// GetJob 查询任务状态和进度
// GET /v1/jobs/:jid
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetByID(c.Request.Context(), currentUserID(c), dto.BindJobID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, dto.NewJobResponse(job))
}

// DownloadResult 下载任务结果
// GET /v1/jobs/:jid/result
func (h *JobHandler) DownloadResult(c *gin.Context) {
	data, err := h.svc.DownloadResult(c.Request.Context(), currentUserID(c), dto.BindJobID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// ProcessOne 内部端点：认领并处理最多一个排队任务，返回处理数量
// POST /internal/jobs/process-one
func (h *JobHandler) ProcessOne(c *gin.Context) {
	processed, err := h.processor.ProcessOne(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, &dto.ProcessJobsResponse{Processed: processed})
}
