package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-credit-gateway/internal/application/gateway"
	"ai-credit-gateway/internal/domain/entity"
)

// CompletionJobPayload 非计费补全任务载荷
type CompletionJobPayload struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	System   string `json:"system,omitempty"`
	Prompt   string `json:"prompt"`
}

// CompletionJobResult 补全任务结果
type CompletionJobResult struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// NewCompletionHandler 创建非计费补全任务处理函数
func NewCompletionHandler(svc *gateway.Service) Handler {
	return HandlerFunc(func(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
		var payload CompletionJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid completion payload: %w", err)
		}

		out, err := svc.CompleteText(ctx, &gateway.CompletionInput{
			Provider: payload.Provider,
			Model:    payload.Model,
			System:   payload.System,
			Prompt:   payload.Prompt,
		})
		if err != nil {
			return nil, err
		}

		return json.Marshal(&CompletionJobResult{
			Text:      out.Text,
			Provider:  out.Provider,
			Model:     out.Model,
			TokensIn:  out.TokensIn,
			TokensOut: out.TokensOut,
			Degraded:  out.Degraded,
		})
	})
}

// SkillJobPayload 计费技能任务载荷
type SkillJobPayload struct {
	Skill    string `json:"skill"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Input    string `json:"input"`
}

// SkillJobResult 技能任务结果
type SkillJobResult struct {
	Text       string `json:"text"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	Cost       string `json:"cost"`
	NewBalance string `json:"new_balance"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// NewSkillHandler 创建计费技能任务处理函数，按任务属主扣费
func NewSkillHandler(svc *gateway.Service) Handler {
	return HandlerFunc(func(ctx context.Context, job *entity.Job) (json.RawMessage, error) {
		var payload SkillJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid skill payload: %w", err)
		}

		out, err := svc.RunBilledSkill(ctx, &gateway.SkillInput{
			UserID:    job.UserID,
			Skill:     payload.Skill,
			Provider:  payload.Provider,
			Model:     payload.Model,
			Input:     payload.Input,
			RequestID: job.ID,
		})
		if err != nil {
			return nil, err
		}

		return json.Marshal(&SkillJobResult{
			Text:       out.Text,
			Provider:   out.Provider,
			Model:      out.Model,
			TokensIn:   out.TokensIn,
			TokensOut:  out.TokensOut,
			Cost:       out.Cost.String(),
			NewBalance: out.NewBalance.String(),
			Degraded:   out.Degraded,
		})
	})
}
