package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ai-credit-gateway/internal/config"
	apperrors "ai-credit-gateway/pkg/errors"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/metrics"
)

var routerTracer = otel.Tracer("llm.router")

// defaultCallTimeout 提供商未配置超时时的兜底值
const defaultCallTimeout = 60 * time.Second

// CompletionRequest 一次补全请求
type CompletionRequest struct {
	Provider string // 指定提供商，空则使用默认
	Model    string // 模型覆盖，只对指定的提供商生效
	System   string
	Prompt   string
}

// CompletionResult 补全结果，记录实际服务的提供商和模型
type CompletionResult struct {
	Text      string
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
	Degraded  bool // 由降级链中的非首选提供商服务
}

// ModelProvider ChatModel 提供者接口，由 EinoFactory 实现
type ModelProvider interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	ProviderConfig(name string) (config.ProviderConfig, bool)
}

// Router 按固定优先级做提供商降级的路由器
type Router struct {
	factory ModelProvider
	config  *config.LLMConfig
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, factory ModelProvider) *Router {
	return &Router{
		factory: factory,
		config:  &cfg.LLM,
	}
}

// candidates 组装有序候选列表：请求的提供商优先，其后接配置的降级链，去重
func (r *Router) candidates(requested string) []string {
	if requested == "" {
		requested = r.config.DefaultProvider
	}

	out := []string{requested}
	seen := map[string]bool{requested: true}
	for _, name := range r.config.FallbackChain {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Complete 依次尝试候选提供商，返回第一个成功的结果。
// 任何失败（提供商未配置、传输错误、空响应）都只是跳到下一个候选，
// 同一请求内不重试已失败的候选。全部失败时返回 AllProvidersFailed，
// 附带最后一个错误。
func (r *Router) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	ctx, span := routerTracer.Start(ctx, "llm.Router.Complete")
	defer span.End()

	candidates := r.candidates(req.Provider)
	span.SetAttributes(attribute.StringSlice("llm.candidates", candidates))

	msgs := make([]*schema.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	var lastErr error
	for i, name := range candidates {
		result, err := r.tryProvider(ctx, name, msgs, req, i == 0)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "provider failed, trying next candidate",
				"provider", name, "error", err.Error())
			continue
		}

		result.Degraded = i > 0
		if result.Degraded {
			metrics.LLMFallbackTotal.WithLabelValues(candidates[0], name).Inc()
		}
		span.SetAttributes(attribute.String("llm.served_by", name))
		return result, nil
	}

	span.SetAttributes(attribute.Bool("llm.all_failed", true))
	return nil, apperrors.ErrAllProvidersFailed.WithError(lastErr)
}

// tryProvider 调用单个提供商，模型覆盖只对首选候选生效
func (r *Router) tryProvider(ctx context.Context, name string, msgs []*schema.Message, req *CompletionRequest, first bool) (*CompletionResult, error) {
	cm, err := r.factory.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	providerCfg, _ := r.factory.ProviderConfig(name)
	timeout := providerCfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	modelName := providerCfg.Model
	var opts []model.Option
	if first && req.Model != "" {
		modelName = req.Model
		opts = append(opts, model.WithModel(req.Model))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	msg, err := cm.Generate(callCtx, msgs, opts...)
	metrics.LLMCallDuration.WithLabelValues(name, modelName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(name, modelName, "error").Inc()
		return nil, err
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		metrics.LLMCallTotal.WithLabelValues(name, modelName, "empty").Inc()
		return nil, apperrors.New(apperrors.CodeUnknown, "provider returned empty response").WithDetail(name)
	}
	metrics.LLMCallTotal.WithLabelValues(name, modelName, "success").Inc()

	result := &CompletionResult{
		Text:     text,
		Provider: name,
		Model:    modelName,
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		result.TokensIn = msg.ResponseMeta.Usage.PromptTokens
		result.TokensOut = msg.ResponseMeta.Usage.CompletionTokens
		metrics.LLMTokensUsed.WithLabelValues(name, modelName, "prompt").Add(float64(result.TokensIn))
		metrics.LLMTokensUsed.WithLabelValues(name, modelName, "completion").Add(float64(result.TokensOut))
	}
	return result, nil
}
