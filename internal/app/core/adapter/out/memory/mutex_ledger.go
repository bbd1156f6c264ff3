package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的記憶體 Repository，程式結束後資料即消失
//
// 結構:
//
//	state: 帳戶與交易紀錄
//	mu: Mutex 用於保護 state
//	generator: 帳號產生器
type MutexLedger struct {
	state     *State
	mu        sync.RWMutex
	generator domain.AccountNumberGenerator
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	accounts: 初始帳戶資料
//	generator: 帳號產生器，nil 時使用隨機 5 位數
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
func NewMutexLedger(accounts []*domain.Account, generator domain.AccountNumberGenerator) *MutexLedger {
	if generator == nil {
		generator = domain.RandomAccountNumbers
	}
	return &MutexLedger{
		state:     NewState(accounts, nil),
		mu:        sync.RWMutex{},
		generator: generator,
	}
}

// Accounts implements usecase.Repository.
func (m *MutexLedger) Accounts() usecase.AccountStore {
	return (*mutexAccounts)(m)
}

// Transactions implements usecase.Repository.
func (m *MutexLedger) Transactions() usecase.TransactionLog {
	return (*mutexLog)(m)
}

// Atomic 在 state 的拷貝上執行 fn，成功才替換 (Level 1: Mutex Lock)
//
// 參數:
//
//	ctx: 上下文
//	fn: 寫入單元
//
// 回傳:
//
//	error: fn 的錯誤
func (m *MutexLedger) Atomic(ctx context.Context, fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atomicInternal(fn)
}

func (m *MutexLedger) atomicInternal(fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	staged := m.state.Clone()
	tx := NewTx(staged, m.generator)
	if err := fn(tx.Accounts(), tx.Transactions()); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// Close implements usecase.Repository.
func (m *MutexLedger) Close() error {
	return nil
}

type mutexAccounts MutexLedger

func (a *mutexAccounts) Create(ctx context.Context, name, contact string) (*domain.Account, error) {
	var account *domain.Account
	err := (*MutexLedger)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		var err error
		account, err = accounts.Create(ctx, name, contact)
		return err
	})
	return account, err
}

func (a *mutexAccounts) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return NewTx(a.state, a.generator).Accounts().FindByAccountNumber(ctx, accountNumber)
}

func (a *mutexAccounts) UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	return (*MutexLedger)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		return accounts.UpdateBalance(ctx, accountNumber, balance)
	})
}

func (a *mutexAccounts) List(_ context.Context) ([]*domain.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Accounts(), nil
}

type mutexLog MutexLedger

func (l *mutexLog) Append(ctx context.Context, tran *domain.Transaction) error {
	return (*MutexLedger)(l).Atomic(ctx, func(_ usecase.AccountStore, log usecase.TransactionLog) error {
		return log.Append(ctx, tran)
	})
}

func (l *mutexLog) ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return NewTx(l.state, l.generator).Transactions().ListByAccount(ctx, accountNumber)
}

var _ usecase.Repository = (*MutexLedger)(nil)
