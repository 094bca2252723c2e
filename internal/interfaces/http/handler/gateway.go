// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/application/gateway"
	"ai-credit-gateway/internal/interfaces/http/dto"
	apperrors "ai-credit-gateway/pkg/errors"
)

// GatewayHandler LLM 网关处理器
type GatewayHandler struct {
	svc *gateway.Service
}

// NewGatewayHandler 创建网关处理器
func NewGatewayHandler(svc *gateway.Service) *GatewayHandler {
	return &GatewayHandler{svc: svc}
}

// Complete 非计费文本补全
// POST /v1/completions
func (h *GatewayHandler) Complete(c *gin.Context) {
	var req dto.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	result, err := h.svc.CompleteText(c.Request.Context(), &gateway.CompletionInput{
		Provider: req.Provider,
		Model:    req.Model,
		System:   req.System,
		Prompt:   req.Prompt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, &dto.CompletionResponse{
		Text:      result.Text,
		Provider:  result.Provider,
		Model:     result.Model,
		TokensIn:  result.TokensIn,
		TokensOut: result.TokensOut,
		Degraded:  result.Degraded,
	})
}

// RunSkill 计费技能调用
// POST /v1/skills/:skill
func (h *GatewayHandler) RunSkill(c *gin.Context) {
	var req dto.SkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	out, err := h.svc.RunBilledSkill(c.Request.Context(), &gateway.SkillInput{
		UserID:    currentUserID(c),
		Skill:     c.Param("skill"),
		Provider:  req.Provider,
		Model:     req.Model,
		Input:     req.Input,
		RequestID: c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, &dto.SkillResponse{
		Text:       out.Text,
		Provider:   out.Provider,
		Model:      out.Model,
		TokensIn:   out.TokensIn,
		TokensOut:  out.TokensOut,
		Cost:       out.Cost.String(),
		NewBalance: out.NewBalance.String(),
		Degraded:   out.Degraded,
	})
}
