package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
)

// 操作名稱，供 log 與 metrics 使用
const (
	OperationOpenAccount = "open_account"
	OperationDeposit     = "deposit"
	OperationWithdraw    = "withdraw"
)

// LedgerService 是核心業務邏輯層，所有異動餘額的操作都必須經過這裡
type LedgerService struct {
	repo Repository
	// 同一時間只允許一個操作執行 (read-validate-write)
	mu       sync.Mutex
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option 設定 LedgerService
type Option func(*LedgerService)

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *LedgerService) {
		s.logger = logger
	}
}

// WithRecorder 設定 metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *LedgerService) {
		s.recorder = recorder
	}
}

// WithClock 設定交易時間來源
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		s.now = now
	}
}

// WithIDGenerator 設定交易 ID 產生方式
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *LedgerService) {
		s.newID = newID
	}
}

func NewLedgerService(repo Repository, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:     repo,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenAccount 開戶
func (s *LedgerService) OpenAccount(ctx context.Context, name, contact string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.repo.Accounts().Create(ctx, name, contact)
	s.recorder.ObserveOperation(OperationOpenAccount, err, decimal.Zero)
	if err != nil {
		s.logFailure(OperationOpenAccount, "", err)
		return nil, err
	}
	s.logger.Info("account opened", zap.String("account", account.AccountNumber))
	return account, nil
}

// Authenticate 以帳號登入
func (s *LedgerService) Authenticate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountNumber = domain.NormalizeAccountNumber(accountNumber)
	if accountNumber == "" {
		return nil, domain.ErrAccountNotFound
	}
	return s.repo.Accounts().FindByAccountNumber(ctx, accountNumber)
}

// Balance 重新讀取帳戶目前餘額
func (s *LedgerService) Balance(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Accounts().FindByAccountNumber(ctx, account.AccountNumber)
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	account: 目前登入的帳戶
//	amount: 存款金額
//
// 回傳:
//
//	*domain.Account: 更新後的帳戶
//	error: ErrInvalidAmount / ErrAccountNotFound / *PersistenceError
func (s *LedgerService) Deposit(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.Account, error) {
	return s.post(ctx, OperationDeposit, domain.TransactionTypeDeposit, account, amount)
}

// Withdraw 提款
//
// 參數:
//
//	ctx: 上下文
//	account: 目前登入的帳戶
//	amount: 提款金額
//
// 回傳:
//
//	*domain.Account: 更新後的帳戶
//	error: ErrInvalidAmount / ErrInsufficientFunds / ErrAccountNotFound / *PersistenceError
func (s *LedgerService) Withdraw(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.Account, error) {
	return s.post(ctx, OperationWithdraw, domain.TransactionTypeWithdraw, account, amount)
}

// History 依時間順序回傳帳戶的交易紀錄
func (s *LedgerService) History(ctx context.Context, account *domain.Account) ([]*domain.Transaction, error) {
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Transactions().ListByAccount(ctx, account.AccountNumber)
}

// ListAccounts 依建立順序列出所有帳戶
func (s *LedgerService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Accounts().List(ctx)
}

// post 在同一個寫入單元內更新餘額並追加交易紀錄
func (s *LedgerService) post(ctx context.Context, operation string, tranType domain.TransactionType, account *domain.Account, amount decimal.Decimal) (*domain.Account, error) {
	var accountNumber string
	if account != nil {
		accountNumber = account.AccountNumber
	}
	updated, err := s.postInternal(ctx, tranType, account, amount)
	s.recorder.ObserveOperation(operation, err, amount)
	if err != nil {
		s.logFailure(operation, accountNumber, err)
		return nil, err
	}
	s.logger.Info("transaction committed",
		zap.String("operation", operation),
		zap.String("account", accountNumber),
		zap.String("amount", domain.FormatMoney(amount)),
		zap.String("balance", domain.FormatMoney(updated.Balance)),
	)
	return updated, nil
}

func (s *LedgerService) postInternal(ctx context.Context, tranType domain.TransactionType, account *domain.Account, amount decimal.Decimal) (*domain.Account, error) {
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	// 先檢查金額，不合法時不碰儲存層
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *domain.Account
	err := s.repo.Atomic(ctx, func(accounts AccountStore, log TransactionLog) error {
		// 以儲存層的餘額為準，不信任呼叫端手上的副本
		current, err := accounts.FindByAccountNumber(ctx, account.AccountNumber)
		if err != nil {
			return err
		}
		tran, err := current.Post(tranType, amount, s.newID(), s.now())
		if err != nil {
			return err
		}
		if err := accounts.UpdateBalance(ctx, current.AccountNumber, current.Balance); err != nil {
			return err
		}
		if err := log.Append(ctx, tran); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *LedgerService) logFailure(operation, accountNumber string, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("account", accountNumber),
		zap.Error(err),
	}
	if errors.Is(err, domain.ErrPersistence) {
		s.logger.Error("operation aborted", fields...)
		return
	}
	s.logger.Warn("operation rejected", fields...)
}
