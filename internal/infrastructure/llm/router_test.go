package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/config"
	apperrors "ai-credit-gateway/pkg/errors"
)

// fakeChatModel 预设回复或错误的 ChatModel 替身
type fakeChatModel struct {
	reply string
	usage *schema.TokenUsage
	err   error
	calls int
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	msg := schema.AssistantMessage(f.reply, nil)
	if f.usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: f.usage}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

// fakeProvider 按名字返回预注册的 ChatModel
type fakeProvider struct {
	models  map[string]*fakeChatModel
	configs map[string]config.ProviderConfig
}

func (f *fakeProvider) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}
	return m, nil
}

func (f *fakeProvider) ProviderConfig(name string) (config.ProviderConfig, bool) {
	cfg, ok := f.configs[name]
	return cfg, ok
}

func newTestRouter(provider *fakeProvider) *Router {
	cfg := &config.Config{}
	cfg.LLM = config.LLMConfig{
		DefaultProvider: "openai",
		FallbackChain:   []string{"openai", "deepseek"},
	}
	return NewRouter(cfg, provider)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		models: map[string]*fakeChatModel{},
		configs: map[string]config.ProviderConfig{
			"openai":   {Model: "gpt-4o-mini"},
			"deepseek": {Model: "deepseek-chat"},
		},
	}
}

func TestCompleteFirstCandidate(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{
		reply: "hello",
		usage: &schema.TokenUsage{PromptTokens: 12, CompletionTokens: 3},
	}
	provider.models["deepseek"] = &fakeChatModel{reply: "unused"}
	r := newTestRouter(provider)

	result, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-4o-mini", result.Model)
	assert.Equal(t, 12, result.TokensIn)
	assert.Equal(t, 3, result.TokensOut)
	assert.False(t, result.Degraded)
	assert.Zero(t, provider.models["deepseek"].calls)
}

func TestCompleteFallsBackInOrder(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{err: errors.New("rate limited")}
	provider.models["deepseek"] = &fakeChatModel{reply: "rescued"}
	r := newTestRouter(provider)

	result, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "rescued", result.Text)
	assert.Equal(t, "deepseek", result.Provider)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, provider.models["openai"].calls)
}

func TestCompleteModelOverrideOnlyFirstCandidate(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{reply: "primary"}
	provider.models["deepseek"] = &fakeChatModel{reply: "secondary"}
	r := newTestRouter(provider)

	result, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi", Model: "custom-model"})
	require.NoError(t, err)
	assert.Equal(t, "custom-model", result.Model)

	// 首选失败后，覆盖不跟随到降级候选
	provider.models["openai"].err = errors.New("down")
	result, err = r.Complete(context.Background(), &CompletionRequest{Prompt: "hi", Model: "custom-model"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", result.Model)
}

func TestCompleteEmptyResponseIsFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{reply: "   "}
	provider.models["deepseek"] = &fakeChatModel{reply: "fallback text"}
	r := newTestRouter(provider)

	result, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", result.Provider)
	assert.True(t, result.Degraded)
}

func TestCompleteAllProvidersFailed(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{err: errors.New("down")}
	provider.models["deepseek"] = &fakeChatModel{err: errors.New("also down")}
	r := newTestRouter(provider)

	_, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeAllProvidersFailed))
	assert.Contains(t, err.Error(), "also down")
}

func TestCompleteUnknownRequestedProviderFallsBack(t *testing.T) {
	provider := newFakeProvider()
	provider.models["openai"] = &fakeChatModel{reply: "served"}
	r := newTestRouter(provider)

	result, err := r.Complete(context.Background(), &CompletionRequest{Prompt: "hi", Provider: "mystral"})
	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.True(t, result.Degraded)
}

func TestCandidatesDeduplicated(t *testing.T) {
	r := newTestRouter(newFakeProvider())

	assert.Equal(t, []string{"openai", "deepseek"}, r.candidates(""))
	assert.Equal(t, []string{"openai", "deepseek"}, r.candidates("openai"))
	assert.Equal(t, []string{"deepseek", "openai"}, r.candidates("deepseek"))
	assert.Equal(t, []string{"other", "openai", "deepseek"}, r.candidates("other"))
}
