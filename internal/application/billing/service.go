// Package billing 提供信用点计费能力
package billing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/internal/infrastructure/messaging"
	apperrors "ai-credit-gateway/pkg/errors"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/metrics"
)

var tracer = otel.Tracer("billing")

// Service 计费服务，流水表是余额的唯一事实来源
type Service struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
	usageRepo  repository.UsageRepository
	txManager  repository.Transactor
	meter      *Meter
	producer   *messaging.Producer // 可为 nil，分析事件尽力发布

	hardStopBelow  entity.Credits
	lowBalanceWarn entity.Credits
}

// NewService 创建计费服务
func NewService(
	userRepo repository.UserRepository,
	ledgerRepo repository.LedgerRepository,
	usageRepo repository.UsageRepository,
	txManager repository.Transactor,
	meter *Meter,
	producer *messaging.Producer,
	cfg *config.BillingConfig,
) *Service {
	return &Service{
		userRepo:       userRepo,
		ledgerRepo:     ledgerRepo,
		usageRepo:      usageRepo,
		txManager:      txManager,
		meter:          meter,
		producer:       producer,
		hardStopBelow:  entity.CreditsFromWhole(int64(cfg.HardStopBelowCredits)),
		lowBalanceWarn: entity.CreditsFromWhole(int64(cfg.LowBalanceWarnCredits)),
	}
}

// Meter 返回计量器
func (s *Service) Meter() *Meter {
	return s.meter
}

// BalanceInfo 余额信息
type BalanceInfo struct {
	Balance    entity.Credits
	LowBalance bool
}

// GetBalance 获取余额，流水存储不可用时返回 LedgerUnavailable
func (s *Service) GetBalance(ctx context.Context, userID string) (*BalanceInfo, error) {
	ctx, span := tracer.Start(ctx, "billing.Service.GetBalance")
	defer span.End()

	balance, err := s.ledgerRepo.Balance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrLedgerUnavailable.WithError(err)
	}
	return &BalanceInfo{
		Balance:    balance,
		LowBalance: balance < s.lowBalanceWarn,
	}, nil
}

// CheckBalance 前置余额检查，低于硬停线时返回 InsufficientCredits。
// 该检查只是便宜的提前拒绝，最终裁决在 ChargeAndRecord 的事务里。
func (s *Service) CheckBalance(ctx context.Context, userID string) error {
	info, err := s.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	if info.Balance < s.hardStopBelow {
		return apperrors.ErrInsufficientCredits.WithDetail(
			"balance " + info.Balance.String() + ", required " + s.hardStopBelow.String())
	}
	return nil
}

// TopUp 充值，追加一条正向流水
func (s *Service) TopUp(ctx context.Context, userID string, amount entity.Credits, requestID string) error {
	ctx, span := tracer.Start(ctx, "billing.Service.TopUp")
	defer span.End()

	if amount <= 0 {
		return apperrors.ErrInvalidParam.WithDetail("topup amount must be positive")
	}
	if err := s.ledgerRepo.Record(ctx, entity.NewTopUp(userID, amount, requestID)); err != nil {
		span.RecordError(err)
		return apperrors.ErrLedgerUnavailable.WithError(err)
	}
	return nil
}

// ChargeRequest 一次扣费请求
type ChargeRequest struct {
	UserID    string
	Route     string
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
	RequestID string
}

// ChargeAndRecord 原子扣费：锁定用户行、以流水重新推导余额、
// 在同一事务里写入用量记录和对应的负向流水。余额低于硬停线时
// 整个事务回滚，不产生任何行。返回本次花费和扣费后的余额。
func (s *Service) ChargeAndRecord(ctx context.Context, req *ChargeRequest) (cost, newBalance entity.Credits, err error) {
	ctx, span := tracer.Start(ctx, "billing.Service.ChargeAndRecord")
	defer span.End()

	cost = s.meter.ComputeCost(req.TokensIn, req.TokensOut)
	span.SetAttributes(
		attribute.String("billing.cost", cost.String()),
		attribute.Int("billing.tokens_in", req.TokensIn),
		attribute.Int("billing.tokens_out", req.TokensOut),
	)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// 锁用户行串行化同一用户的并发扣费
		if err := s.userRepo.LockByID(txCtx, req.UserID); err != nil {
			return err
		}

		balance, err := s.ledgerRepo.Balance(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if balance < s.hardStopBelow {
			return apperrors.ErrInsufficientCredits.WithDetail(
				"balance " + balance.String() + ", required " + s.hardStopBelow.String())
		}
		newBalance = balance.Add(cost.Neg())

		event := &entity.UsageEvent{
			UserID:    req.UserID,
			Route:     req.Route,
			Provider:  req.Provider,
			Model:     req.Model,
			TokensIn:  req.TokensIn,
			TokensOut: req.TokensOut,
			CostMilli: cost,
			RequestID: req.RequestID,
		}
		if err := s.usageRepo.Create(txCtx, event); err != nil {
			return err
		}

		charge := entity.NewUsageCharge(req.UserID, cost, req.RequestID)
		return s.ledgerRepo.Record(txCtx, charge)
	})
	if err != nil {
		span.RecordError(err)
		if apperrors.Is(err, apperrors.CodeInsufficientCredits) {
			metrics.ChargeRejectedTotal.WithLabelValues(req.Route).Inc()
			return 0, 0, err
		}
		if apperrors.IsAppError(err) {
			return 0, 0, err
		}
		return 0, 0, apperrors.ErrLedgerUnavailable.WithError(err)
	}

	metrics.CreditsCharged.WithLabelValues(req.Route).Add(float64(cost.Milli()))
	s.publishUsageEvent(ctx, req, cost)
	return cost, newBalance, nil
}

// ListUsage 获取用量记录，按时间倒序
func (s *Service) ListUsage(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.UsageEvent], error) {
	ctx, span := tracer.Start(ctx, "billing.Service.ListUsage")
	defer span.End()

	result, err := s.usageRepo.ListByUser(ctx, userID, pagination)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.ErrLedgerUnavailable.WithError(err)
	}
	return result, nil
}

// publishUsageEvent 尽力发布分析事件，失败只记日志
func (s *Service) publishUsageEvent(ctx context.Context, req *ChargeRequest, cost entity.Credits) {
	if s.producer == nil {
		return
	}
	_, err := s.producer.PublishUsageEvent(ctx, &messaging.UsageEventMessage{
		UserID:    req.UserID,
		Route:     req.Route,
		Provider:  req.Provider,
		Model:     req.Model,
		TokensIn:  req.TokensIn,
		TokensOut: req.TokensOut,
		CostMilli: cost.Milli(),
		RequestID: req.RequestID,
	})
	if err != nil {
		metrics.UsageEventsPublished.WithLabelValues("error").Inc()
		logger.Warn(ctx, "failed to publish usage event", "error", err.Error())
		return
	}
	metrics.UsageEventsPublished.WithLabelValues("ok").Inc()
}
