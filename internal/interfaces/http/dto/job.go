// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"ai-credit-gateway/internal/domain/entity"
)

// EnqueueJobRequest 任务入队请求
type EnqueueJobRequest struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// JobResponse 任务响应
type JobResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	ResultRef    string `json:"result_ref,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// NewJobResponse 从任务实体构建响应
func NewJobResponse(job *entity.Job) *JobResponse {
	resp := &JobResponse{
		ID:           job.ID,
		Type:         string(job.JobType),
		Status:       string(job.Status),
		Progress:     job.Progress,
		ResultRef:    job.ResultRef,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// ProcessJobsResponse 内部处理端点响应
type ProcessJobsResponse struct {
	Processed int `json:"processed"`
}
