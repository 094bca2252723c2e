// Package gateway 提供 LLM 网关服务
package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/application/billing"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/infrastructure/llm"
	apperrors "ai-credit-gateway/pkg/errors"
	"ai-credit-gateway/pkg/logger"
)

var tracer = otel.Tracer("gateway")

// degradedFallbackText 全部提供商失败时计费技能的降级回复
const degradedFallbackText = "The assistant is temporarily unavailable. Your request was received; please retry in a moment."

// Completer 补全路由接口，由 llm.Router 实现
type Completer interface {
	Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error)
}

// Service 网关服务
type Service struct {
	router  Completer
	billing *billing.Service
	skills  *SkillRegistry
}

// NewService 创建网关服务
func NewService(router Completer, billingSvc *billing.Service, skills *SkillRegistry) *Service {
	return &Service{
		router:  router,
		billing: billingSvc,
		skills:  skills,
	}
}

// CompletionInput 非计费补全输入
type CompletionInput struct {
	Provider string
	Model    string
	System   string
	Prompt   string
}

// CompleteText 非计费补全，直接透传路由结果，
// 全部提供商失败时错误原样返回
func (s *Service) CompleteText(ctx context.Context, in *CompletionInput) (*llm.CompletionResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.Service.CompleteText")
	defer span.End()

	if in.Prompt == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("prompt is required")
	}

	result, err := s.router.Complete(ctx, &llm.CompletionRequest{
		Provider: in.Provider,
		Model:    in.Model,
		System:   in.System,
		Prompt:   in.Prompt,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// SkillInput 计费技能输入
type SkillInput struct {
	UserID    string
	Skill     string
	Provider  string
	Model     string
	Input     string
	RequestID string
}

// SkillOutput 计费技能输出
type SkillOutput struct {
	Text       string
	Provider   string
	Model      string
	TokensIn   int
	TokensOut  int
	Cost       entity.Credits
	NewBalance entity.Credits
	Degraded   bool
}

// RunBilledSkill 执行计费技能：前置余额检查 → 路由补全 → 原子扣费。
// 全部提供商失败时返回降级回复，降级回复按估算 token 照常计费。
func (s *Service) RunBilledSkill(ctx context.Context, in *SkillInput) (*SkillOutput, error) {
	ctx, span := tracer.Start(ctx, "gateway.Service.RunBilledSkill")
	span.SetAttributes(attribute.String("gateway.skill", in.Skill))
	defer span.End()

	skill, ok := s.skills.Get(in.Skill)
	if !ok {
		return nil, apperrors.ErrSkillNotFound.WithDetail(in.Skill)
	}
	if in.Input == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("input is required")
	}

	// 便宜的提前拒绝，最终裁决在扣费事务里
	if err := s.billing.CheckBalance(ctx, in.UserID); err != nil {
		return nil, err
	}

	prompt := skill.BuildPrompt(in.Input)
	out := &SkillOutput{}

	result, err := s.router.Complete(ctx, &llm.CompletionRequest{
		Provider: in.Provider,
		Model:    in.Model,
		System:   skill.System,
		Prompt:   prompt,
	})
	switch {
	case err == nil:
		out.Text = result.Text
		out.Provider = result.Provider
		out.Model = result.Model
		out.TokensIn = result.TokensIn
		out.TokensOut = result.TokensOut
		out.Degraded = result.Degraded
	case apperrors.Is(err, apperrors.CodeAllProvidersFailed):
		// 降级回复，照常计费
		logger.Warn(ctx, "all providers failed, serving degraded response",
			"skill", in.Skill, "error", err.Error())
		span.SetAttributes(attribute.Bool("gateway.degraded", true))
		out.Text = degradedFallbackText
		out.Provider = "fallback"
		out.Model = "static"
		out.Degraded = true
	default:
		span.RecordError(err)
		return nil, err
	}

	// 提供商未报告用量时按文本估算
	meter := s.billing.Meter()
	if out.TokensIn == 0 {
		out.TokensIn = meter.EstimateTokens(skill.System) + meter.EstimateTokens(prompt)
	}
	if out.TokensOut == 0 {
		out.TokensOut = meter.EstimateTokens(out.Text)
	}

	cost, newBalance, err := s.billing.ChargeAndRecord(ctx, &billing.ChargeRequest{
		UserID:    in.UserID,
		Route:     billedUsageRoute,
		Provider:  out.Provider,
		Model:     out.Model,
		TokensIn:  out.TokensIn,
		TokensOut: out.TokensOut,
		RequestID: in.RequestID,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out.Cost = cost
	out.NewBalance = newBalance
	return out, nil
}
