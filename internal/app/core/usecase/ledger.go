package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
)

// AccountStore 帳戶資料的儲存介面
type AccountStore interface {
	// Create 建立餘額為 0 的新帳戶並產生不重複的帳號
	Create(ctx context.Context, name, contact string) (*domain.Account, error)
	// FindByAccountNumber 依帳號查詢，找不到回傳 domain.ErrAccountNotFound
	FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	// UpdateBalance 覆寫帳戶餘額，找不到回傳 domain.ErrAccountNotFound
	UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error
	// List 依建立順序列出所有帳戶
	List(ctx context.Context) ([]*domain.Account, error)
}

// TransactionLog 只能追加的交易紀錄
type TransactionLog interface {
	// Append 追加一筆紀錄，相同 TransactionID 重複追加視為成功
	Append(ctx context.Context, tran *domain.Transaction) error
	// ListByAccount 依寫入順序回傳指定帳戶的紀錄
	ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error)
}

// Repository 組合兩份資料集，並提供一致性的寫入單元
type Repository interface {
	Accounts() AccountStore
	Transactions() TransactionLog
	// Atomic 在同一個寫入單元內執行 fn：fn 內的寫入全部生效或全部不生效
	// fn 回傳的錯誤原樣回傳，儲存層錯誤則為 *domain.PersistenceError
	Atomic(ctx context.Context, fn func(accounts AccountStore, log TransactionLog) error) error
	Close() error
}

// Recorder 記錄帳務操作結果 (metrics)
type Recorder interface {
	ObserveOperation(operation string, err error, amount decimal.Decimal)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error, decimal.Decimal) {}
