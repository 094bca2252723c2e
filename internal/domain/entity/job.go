// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// JobType 任务类型
type JobType string

const (
	JobTypeCompletion JobType = "completion"
	JobTypeSkill      JobType = "skill"
)

// JobStatus 任务状态
type JobStatus string

const (
	// JobStatusQueued 已入队，等待认领
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing 已被某个处理者原子认领
	JobStatusProcessing JobStatus = "processing"
	// JobStatusDone 处理完成
	JobStatusDone JobStatus = "done"
)

// Job 异步任务
type Job struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID        string          `json:"user_id" gorm:"type:uuid;index;not null"`
	JobType       JobType         `json:"job_type" gorm:"type:varchar(32);not null"`
	Status        JobStatus       `json:"status" gorm:"type:varchar(16);index;not null"`
	Progress      int             `json:"progress" gorm:"not null;default:0"` // 0-100
	Payload       json.RawMessage `json:"payload" gorm:"type:jsonb"`
	ResultPayload json.RawMessage `json:"result_payload,omitempty" gorm:"type:jsonb"`
	ResultRef     string          `json:"result_ref,omitempty" gorm:"type:varchar(512)"`
	ErrorMessage  string          `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// NewJob 创建待入队的任务
func NewJob(userID string, jobType JobType, payload json.RawMessage) *Job {
	now := time.Now()
	return &Job{
		UserID:    userID,
		JobType:   jobType,
		Status:    JobStatusQueued,
		Progress:  0,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete 完成任务
func (j *Job) Complete(result json.RawMessage, resultRef string) {
	now := time.Now()
	j.Status = JobStatusDone
	j.Progress = 100
	j.ResultPayload = result
	j.ResultRef = resultRef
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail 记录处理失败，任务仍然终结
func (j *Job) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusDone
	j.Progress = 100
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// UpdateProgress 更新任务进度
func (j *Job) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
}
