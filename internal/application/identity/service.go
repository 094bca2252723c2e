// Package identity 提供认证身份到用户实体的解析
package identity

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	infraredis "ai-credit-gateway/internal/infrastructure/persistence/redis"
	apperrors "ai-credit-gateway/pkg/errors"
)

var tracer = otel.Tracer("identity")

// userCacheTTL 用户身份缓存时长
const userCacheTTL = 10 * time.Minute

// Service 身份服务：按邮箱解析用户，首次认证请求时惰性创建
type Service struct {
	userRepo repository.UserRepository
	cache    *infraredis.Cache // 可为 nil，直接走数据库
}

// NewService 创建身份服务
func NewService(userRepo repository.UserRepository, cache *infraredis.Cache) *Service {
	return &Service{
		userRepo: userRepo,
		cache:    cache,
	}
}

// ResolveByEmail 按邮箱解析用户，经过 Read-Through 缓存，
// 不存在时创建。并发的首次请求由 singleflight 合并。
func (s *Service) ResolveByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "identity.Service.ResolveByEmail")
	span.SetAttributes(attribute.String("identity.email", email))
	defer span.End()

	if email == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("email is required")
	}

	if s.cache == nil {
		user, err := s.userRepo.GetOrCreateByEmail(ctx, email)
		if err != nil {
			span.RecordError(err)
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to resolve user")
		}
		return user, nil
	}

	data, err := s.cache.GetOrLoadSafe(ctx, infraredis.BuildUserKey(email), userCacheTTL, func() (interface{}, error) {
		return s.userRepo.GetOrCreateByEmail(ctx, email)
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to resolve user")
	}

	var user entity.User
	if err := json.Unmarshal(data, &user); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to decode cached user")
	}
	return &user, nil
}
