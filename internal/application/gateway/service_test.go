package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/application/billing"
	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	"ai-credit-gateway/internal/infrastructure/llm"
	apperrors "ai-credit-gateway/pkg/errors"
)

// fakeCompleter 预设结果或错误的路由替身
type fakeCompleter struct {
	result *llm.CompletionResult
	err    error
	calls  int
	lastIn *llm.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
	f.calls++
	f.lastIn = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// billingStore 满足计费服务全部仓储接口的内存存储
type billingStore struct {
	ledger []*entity.CreditTransaction
	usage  []*entity.UsageEvent
}

func (s *billingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *billingStore) Create(ctx context.Context, user *entity.User) error { return nil }
func (s *billingStore) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return &entity.User{ID: id}, nil
}
func (s *billingStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return nil, nil
}
func (s *billingStore) GetOrCreateByEmail(ctx context.Context, email string) (*entity.User, error) {
	return &entity.User{ID: email, Email: email}, nil
}
func (s *billingStore) LockByID(ctx context.Context, id string) error { return nil }

func (s *billingStore) Record(ctx context.Context, tx *entity.CreditTransaction) error {
	s.ledger = append(s.ledger, tx)
	return nil
}

func (s *billingStore) Balance(ctx context.Context, userID string) (entity.Credits, error) {
	var sum entity.Credits
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			sum = sum.Add(tx.AmountMilli)
		}
	}
	return sum, nil
}

func (s *billingStore) ListByUser(ctx context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	return repository.NewPagedResult(s.ledger, int64(len(s.ledger)), p), nil
}

type usageRepoAdapter struct{ s *billingStore }

func (a usageRepoAdapter) Create(ctx context.Context, event *entity.UsageEvent) error {
	a.s.usage = append(a.s.usage, event)
	return nil
}

func (a usageRepoAdapter) ListByUser(ctx context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.UsageEvent], error) {
	return repository.NewPagedResult(a.s.usage, int64(len(a.s.usage)), p), nil
}

func newTestGateway(completer Completer, store *billingStore) *Service {
	cfg := &config.BillingConfig{
		TokensPerCredit:       1000,
		HardStopBelowCredits:  1,
		LowBalanceWarnCredits: 5,
	}
	billingSvc := billing.NewService(store, store, usageRepoAdapter{store}, store, billing.NewMeter(cfg), nil, cfg)
	return NewService(completer, billingSvc, NewSkillRegistry())
}

func topUp(t *testing.T, store *billingStore, userID string, whole int64) {
	t.Helper()
	store.ledger = append(store.ledger, entity.NewTopUp(userID, entity.CreditsFromWhole(whole), ""))
}

func TestRunBilledSkill(t *testing.T) {
	store := &billingStore{}
	topUp(t, store, "alice", 10)
	completer := &fakeCompleter{result: &llm.CompletionResult{
		Text:      "the answer",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		TokensIn:  40,
		TokensOut: 20,
	}}
	svc := newTestGateway(completer, store)

	out, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID:    "alice",
		Skill:     "ask",
		Input:     "what is Go?",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", out.Text)
	assert.Equal(t, "openai", out.Provider)
	assert.Equal(t, "0.060", out.Cost.String())
	assert.Equal(t, "9.940", out.NewBalance.String())
	assert.False(t, out.Degraded)

	balance, err := store.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "9.940", balance.String())

	require.Len(t, store.usage, 1)
	assert.Equal(t, "/skills/ask", store.usage[0].Route)
	assert.Equal(t, "req-1", store.usage[0].RequestID)

	// 技能系统提示词注入到了路由请求
	require.NotNil(t, completer.lastIn)
	assert.NotEmpty(t, completer.lastIn.System)
	assert.Equal(t, "what is Go?", completer.lastIn.Prompt)
}

func TestRunBilledSkillDegradedStillBilled(t *testing.T) {
	store := &billingStore{}
	topUp(t, store, "alice", 10)
	completer := &fakeCompleter{err: apperrors.ErrAllProvidersFailed.WithError(errors.New("timeout"))}
	svc := newTestGateway(completer, store)

	out, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID: "alice",
		Skill:  "ask",
		Input:  "hello",
	})
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.Equal(t, degradedFallbackText, out.Text)
	assert.Equal(t, "fallback", out.Provider)
	assert.Equal(t, "static", out.Model)

	// 降级回复按估算 token 照常计费
	assert.Greater(t, out.TokensIn, 0)
	assert.Greater(t, out.TokensOut, 0)
	assert.Greater(t, out.Cost.Milli(), int64(0))
	require.Len(t, store.usage, 1)
	assert.Equal(t, "fallback", store.usage[0].Provider)

	balance, err := store.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Less(t, balance.Milli(), entity.CreditsFromWhole(10).Milli())
}

func TestRunBilledSkillUsageRouteFixedAcrossSkills(t *testing.T) {
	store := &billingStore{}
	topUp(t, store, "alice", 10)
	completer := &fakeCompleter{result: &llm.CompletionResult{
		Text:      "a short summary",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		TokensIn:  40,
		TokensOut: 20,
	}}
	svc := newTestGateway(completer, store)

	out, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID:    "alice",
		Skill:     "summarize",
		Input:     "a long passage of text",
		RequestID: "req-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.060", out.Cost.String())
	assert.Equal(t, "9.940", out.NewBalance.String())

	// 用量路由与技能名无关，固定记录为 /skills/ask
	require.Len(t, store.usage, 1)
	assert.Equal(t, "/skills/ask", store.usage[0].Route)
}

func TestRunBilledSkillEstimatesMissingUsage(t *testing.T) {
	store := &billingStore{}
	topUp(t, store, "alice", 10)
	completer := &fakeCompleter{result: &llm.CompletionResult{
		Text:     "short reply",
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}}
	svc := newTestGateway(completer, store)

	out, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID: "alice",
		Skill:  "summarize",
		Input:  "a long passage of text to be summarized",
	})
	require.NoError(t, err)
	assert.Greater(t, out.TokensIn, 0)
	assert.Greater(t, out.TokensOut, 0)
}

func TestRunBilledSkillUnknownSkill(t *testing.T) {
	store := &billingStore{}
	topUp(t, store, "alice", 10)
	completer := &fakeCompleter{}
	svc := newTestGateway(completer, store)

	_, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID: "alice",
		Skill:  "paint",
		Input:  "hello",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSkillNotFound))
	assert.Zero(t, completer.calls)
}

func TestRunBilledSkillInsufficientBalancePrecheck(t *testing.T) {
	store := &billingStore{}
	completer := &fakeCompleter{result: &llm.CompletionResult{Text: "x"}}
	svc := newTestGateway(completer, store)

	_, err := svc.RunBilledSkill(context.Background(), &SkillInput{
		UserID: "alice",
		Skill:  "ask",
		Input:  "hello",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientCredits))

	// 前置检查失败时不调用提供商
	assert.Zero(t, completer.calls)
	assert.Empty(t, store.usage)
}

func TestCompleteText(t *testing.T) {
	completer := &fakeCompleter{result: &llm.CompletionResult{
		Text:     "done",
		Provider: "openai",
	}}
	svc := newTestGateway(completer, &billingStore{})

	out, err := svc.CompleteText(context.Background(), &CompletionInput{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Text)

	_, err = svc.CompleteText(context.Background(), &CompletionInput{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidParam))
}

func TestCompleteTextPropagatesFailure(t *testing.T) {
	completer := &fakeCompleter{err: apperrors.ErrAllProvidersFailed}
	svc := newTestGateway(completer, &billingStore{})

	_, err := svc.CompleteText(context.Background(), &CompletionInput{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeAllProvidersFailed))
}
