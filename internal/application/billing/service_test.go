package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-credit-gateway/internal/config"
	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/internal/domain/repository"
	apperrors "ai-credit-gateway/pkg/errors"
)

// memStore 内存实现的流水和用量存储，模拟事务回滚语义
type memStore struct {
	users  map[string]*entity.User
	ledger []*entity.CreditTransaction
	usage  []*entity.UsageEvent

	inTx         bool
	stagedLedger []*entity.CreditTransaction
	stagedUsage  []*entity.UsageEvent

	ledgerErr error
	usageErr  error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*entity.User)}
}

func (s *memStore) addUser(id string) {
	s.users[id] = &entity.User{ID: id, Email: id + "@example.com"}
}

// Transactor

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.inTx = true
	s.stagedLedger = nil
	s.stagedUsage = nil
	err := fn(ctx)
	s.inTx = false
	if err != nil {
		s.stagedLedger = nil
		s.stagedUsage = nil
		return err
	}
	s.ledger = append(s.ledger, s.stagedLedger...)
	s.usage = append(s.usage, s.stagedUsage...)
	s.stagedLedger = nil
	s.stagedUsage = nil
	return nil
}

// UserRepository

func (s *memStore) Create(ctx context.Context, user *entity.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return s.users[id], nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetOrCreateByEmail(ctx context.Context, email string) (*entity.User, error) {
	if u, _ := s.GetByEmail(ctx, email); u != nil {
		return u, nil
	}
	u := entity.NewUser(email)
	u.ID = email
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) LockByID(ctx context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return errors.New("user not found")
	}
	return nil
}

// LedgerRepository

func (s *memStore) Record(ctx context.Context, tx *entity.CreditTransaction) error {
	if s.ledgerErr != nil {
		return s.ledgerErr
	}
	if s.inTx {
		s.stagedLedger = append(s.stagedLedger, tx)
	} else {
		s.ledger = append(s.ledger, tx)
	}
	return nil
}

func (s *memStore) Balance(ctx context.Context, userID string) (entity.Credits, error) {
	if s.ledgerErr != nil {
		return 0, s.ledgerErr
	}
	var sum entity.Credits
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			sum = sum.Add(tx.AmountMilli)
		}
	}
	for _, tx := range s.stagedLedger {
		if tx.UserID == userID {
			sum = sum.Add(tx.AmountMilli)
		}
	}
	return sum, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error) {
	var items []*entity.CreditTransaction
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			items = append(items, tx)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

// UsageRepository

func (s *memStore) CreateUsage(ctx context.Context, event *entity.UsageEvent) error {
	if s.usageErr != nil {
		return s.usageErr
	}
	if s.inTx {
		s.stagedUsage = append(s.stagedUsage, event)
	} else {
		s.usage = append(s.usage, event)
	}
	return nil
}

func (s *memStore) ListUsageByUser(ctx context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.UsageEvent], error) {
	var items []*entity.UsageEvent
	for _, e := range s.usage {
		if e.UserID == userID {
			items = append(items, e)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

// usageAdapter 让 memStore 同时满足 UsageRepository
type usageAdapter struct{ s *memStore }

func (a usageAdapter) Create(ctx context.Context, event *entity.UsageEvent) error {
	return a.s.CreateUsage(ctx, event)
}

func (a usageAdapter) ListByUser(ctx context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.UsageEvent], error) {
	return a.s.ListUsageByUser(ctx, userID, p)
}

func newTestService(store *memStore) *Service {
	cfg := &config.BillingConfig{
		TokensPerCredit:       1000,
		HardStopBelowCredits:  1,
		LowBalanceWarnCredits: 5,
	}
	return NewService(store, store, usageAdapter{store}, store, NewMeter(cfg), nil, cfg)
}

func TestTopUpAndGetBalance(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)
	ctx := context.Background()

	amount, err := entity.ParseCredits("10")
	require.NoError(t, err)
	require.NoError(t, svc.TopUp(ctx, "alice", amount, "req-1"))

	info, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "10.000", info.Balance.String())
	assert.False(t, info.LowBalance)
}

func TestTopUpRejectsNonPositive(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)

	err := svc.TopUp(context.Background(), "alice", 0, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidParam))
	assert.Empty(t, store.ledger)
}

func TestChargeAndRecord(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.TopUp(ctx, "alice", entity.CreditsFromWhole(10), ""))

	cost, newBalance, err := svc.ChargeAndRecord(ctx, &ChargeRequest{
		UserID:    "alice",
		Route:     "/skills/ask",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		TokensIn:  40,
		TokensOut: 20,
		RequestID: "req-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.060", cost.String())
	assert.Equal(t, "9.940", newBalance.String())

	info, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "9.940", info.Balance.String())

	// 用量记录和负向流水成对出现，共享请求 ID
	require.Len(t, store.usage, 1)
	assert.Equal(t, "/skills/ask", store.usage[0].Route)
	assert.Equal(t, "req-2", store.usage[0].RequestID)
	assert.Equal(t, entity.CreditsFromMilli(60), store.usage[0].CostMilli)

	require.Len(t, store.ledger, 2)
	charge := store.ledger[1]
	assert.Equal(t, entity.ReasonUsageCharge, charge.Reason)
	assert.Equal(t, entity.CreditsFromMilli(-60), charge.AmountMilli)
	assert.Equal(t, "req-2", charge.RequestID)
}

func TestChargeRejectedBelowHardStop(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)
	ctx := context.Background()

	// 余额 0.5，低于硬停线 1
	require.NoError(t, svc.TopUp(ctx, "alice", entity.CreditsFromMilli(500), ""))

	_, _, err := svc.ChargeAndRecord(ctx, &ChargeRequest{
		UserID:    "alice",
		Route:     "/skills/ask",
		TokensIn:  40,
		TokensOut: 20,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientCredits))

	// 拒绝的扣费不产生任何行
	assert.Empty(t, store.usage)
	require.Len(t, store.ledger, 1)

	info, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "0.500", info.Balance.String())
	assert.True(t, info.LowBalance)
}

func TestChargeLedgerFailureMapsToUnavailable(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)
	ctx := context.Background()

	require.NoError(t, svc.TopUp(ctx, "alice", entity.CreditsFromWhole(10), ""))
	store.ledgerErr = errors.New("connection refused")

	_, _, err := svc.ChargeAndRecord(ctx, &ChargeRequest{
		UserID:   "alice",
		Route:    "/skills/ask",
		TokensIn: 40,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeLedgerUnavailable))
}

func TestCheckBalance(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	svc := newTestService(store)
	ctx := context.Background()

	err := svc.CheckBalance(ctx, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientCredits))

	require.NoError(t, svc.TopUp(ctx, "alice", entity.CreditsFromWhole(2), ""))
	assert.NoError(t, svc.CheckBalance(ctx, "alice"))
}

func TestGetBalanceUnavailable(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	store.ledgerErr = errors.New("connection refused")
	svc := newTestService(store)

	_, err := svc.GetBalance(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeLedgerUnavailable))
}
