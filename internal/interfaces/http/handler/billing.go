// Package handler 提供 HTTP 请求处理器
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/application/billing"
	"ai-credit-gateway/internal/application/identity"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/internal/interfaces/http/dto"
	apperrors "ai-credit-gateway/pkg/errors"
)

// BillingHandler 计费处理器
type BillingHandler struct {
	svc      *billing.Service
	identity *identity.Service
}

// NewBillingHandler 创建计费处理器
func NewBillingHandler(svc *billing.Service, identitySvc *identity.Service) *BillingHandler {
	return &BillingHandler{
		svc:      svc,
		identity: identitySvc,
	}
}

// GetBalance 查询当前用户余额
// GET /v1/billing/balance
func (h *BillingHandler) GetBalance(c *gin.Context) {
	info, err := h.svc.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, &dto.BalanceResponse{
		Balance:    info.Balance.String(),
		LowBalance: info.LowBalance,
	})
}

// ListUsage 查询当前用户用量记录，按时间倒序分页
// GET /v1/billing/usage
func (h *BillingHandler) ListUsage(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.svc.ListUsage(c.Request.Context(), currentUserID(c),
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]*dto.UsageEventResponse, 0, len(result.Items))
	for _, event := range result.Items {
		items = append(items, &dto.UsageEventResponse{
			ID:        event.ID,
			Route:     event.Route,
			Provider:  event.Provider,
			Model:     event.Model,
			TokensIn:  event.TokensIn,
			TokensOut: event.TokensOut,
			Cost:      event.CostMilli.String(),
			RequestID: event.RequestID,
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
	}

	dto.SuccessWithPage(c, items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// TopUp 给用户充值，内部端点
// POST /internal/billing/topup
func (h *BillingHandler) TopUp(c *gin.Context) {
	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	amount, err := entity.ParseCredits(req.Amount)
	if err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("invalid amount: "+req.Amount))
		return
	}

	user, err := h.identity.ResolveByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.svc.TopUp(c.Request.Context(), user.ID, amount, req.RequestID); err != nil {
		respondError(c, err)
		return
	}

	info, err := h.svc.GetBalance(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Success(c, &dto.TopUpResponse{
		UserID:  user.ID,
		Balance: info.Balance.String(),
	})
}
