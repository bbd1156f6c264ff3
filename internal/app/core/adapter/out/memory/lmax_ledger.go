package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

// ErrSequencerStopped 核心迴圈已停止，無法再接收寫入單元
var ErrSequencerStopped = errors.New("sequencer stopped")

type unitFunc = func(accounts usecase.AccountStore, log usecase.TransactionLog) error

// unitRequest 寫入單元請求包裝 channel，讓 Atomic 可以等待結果
type unitRequest struct {
	ctx    context.Context
	fn     unitFunc
	Result chan error // 讓 Atomic 等這個 channel
}

// LMAXLedger 將所有寫入單元放上輸送帶，由單一 goroutine 依序交給底層 Repository 執行
// 讀取直接交給底層 Repository
type LMAXLedger struct {
	inner usecase.Repository
	// 輸送帶 負責接收寫入單元
	unitChan chan *unitRequest
	// Pool 減少 GC 壓力
	requestPool sync.Pool

	// mu 保護 closed，關閉輸送帶前要等所有送出中的請求完成
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 才會開始處理
//
// 參數:
//
//	inner: 實際負責儲存的 Repository
//	buffer: 輸送帶容量
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
func NewLMAXLedger(inner usecase.Repository, buffer int) *LMAXLedger {
	if buffer <= 0 {
		buffer = 1
	}
	return &LMAXLedger{
		inner:    inner,
		unitChan: make(chan *unitRequest, buffer),
		requestPool: sync.Pool{
			New: func() interface{} {
				return &unitRequest{
					Result: make(chan error, 1),
				}
			},
		},
		done: make(chan struct{}),
	}
}

// Start 啟動核心引擎 (非同步)，ctx 結束時停止接收新的寫入單元
func (l *LMAXLedger) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
	go func() {
		select {
		case <-ctx.Done():
			l.shutdown()
		case <-l.done:
		}
	}()
}

func (l *LMAXLedger) run() {
	defer close(l.done)
	// 輸送帶關閉後會先把剩下的寫入單元處理完
	for req := range l.unitChan {
		l.process(req)
	}
}

func (l *LMAXLedger) process(req *unitRequest) {
	req.Result <- l.inner.Atomic(req.ctx, req.fn)
}

func (l *LMAXLedger) shutdown() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.unitChan)
		l.mu.Unlock()
	})
}

// Atomic 將 fn 放上輸送帶並等待核心迴圈執行完畢
//
// 參數:
//
//	ctx: 上下文，排隊期間取消會放棄這次寫入
//	fn: 寫入單元
//
// 回傳:
//
//	error: fn 或底層儲存的錯誤，迴圈已停止時為 *domain.PersistenceError
func (l *LMAXLedger) Atomic(ctx context.Context, fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	req := l.requestPool.Get().(*unitRequest)
	req.ctx = ctx
	req.fn = fn

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		l.release(req)
		return domain.NewPersistenceError("atomic", ErrSequencerStopped)
	}
	select {
	case l.unitChan <- req:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		l.release(req)
		return ctx.Err()
	}

	// 已進入輸送帶的單元一定會被處理
	err := <-req.Result
	l.release(req)
	return err
}

func (l *LMAXLedger) release(req *unitRequest) {
	req.ctx = nil
	req.fn = nil
	l.requestPool.Put(req)
}

// Accounts implements usecase.Repository.
func (l *LMAXLedger) Accounts() usecase.AccountStore {
	return (*lmaxAccounts)(l)
}

// Transactions implements usecase.Repository.
func (l *LMAXLedger) Transactions() usecase.TransactionLog {
	return (*lmaxLog)(l)
}

// Close 停止接收寫入單元，等待輸送帶清空後關閉底層 Repository
func (l *LMAXLedger) Close() error {
	l.shutdown()
	if l.started.Load() {
		<-l.done
	} else {
		for req := range l.unitChan {
			l.process(req)
		}
	}
	return l.inner.Close()
}

type lmaxAccounts LMAXLedger

func (a *lmaxAccounts) Create(ctx context.Context, name, contact string) (*domain.Account, error) {
	var account *domain.Account
	err := (*LMAXLedger)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		var err error
		account, err = accounts.Create(ctx, name, contact)
		return err
	})
	return account, err
}

func (a *lmaxAccounts) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return a.inner.Accounts().FindByAccountNumber(ctx, accountNumber)
}

func (a *lmaxAccounts) UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	return (*LMAXLedger)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		return accounts.UpdateBalance(ctx, accountNumber, balance)
	})
}

func (a *lmaxAccounts) List(ctx context.Context) ([]*domain.Account, error) {
	return a.inner.Accounts().List(ctx)
}

type lmaxLog LMAXLedger

func (l *lmaxLog) Append(ctx context.Context, tran *domain.Transaction) error {
	return (*LMAXLedger)(l).Atomic(ctx, func(_ usecase.AccountStore, log usecase.TransactionLog) error {
		return log.Append(ctx, tran)
	})
}

func (l *lmaxLog) ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	return l.inner.Transactions().ListByAccount(ctx, accountNumber)
}

var _ usecase.Repository = (*LMAXLedger)(nil)
