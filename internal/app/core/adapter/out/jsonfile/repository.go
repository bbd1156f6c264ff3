package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/memory"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/filelock"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/wal"
)

// 預設檔名 (與既有資料檔相容)
const (
	DefaultAccountsFile     = "clientes.json"
	DefaultTransactionsFile = "movimentacoes.json"
	DefaultWALFile          = "ledger.wal"
	DefaultLockFile         = "bank.lock"
)

// ErrClosed Repository 已關閉
var ErrClosed = errors.New("jsonfile: repository closed")

// Options 檔案型 Repository 的設定
type Options struct {
	Dir              string
	AccountsFile     string
	TransactionsFile string
	WALFile          string
	LockFile         string
	// Generator 帳號產生器，nil 時使用隨機 5 位數
	Generator domain.AccountNumberGenerator
	// Location 交易時間的時區，nil 時使用 time.Local
	Location *time.Location
	Logger   *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.AccountsFile == "" {
		o.AccountsFile = DefaultAccountsFile
	}
	if o.TransactionsFile == "" {
		o.TransactionsFile = DefaultTransactionsFile
	}
	if o.WALFile == "" {
		o.WALFile = DefaultWALFile
	}
	if o.LockFile == "" {
		o.LockFile = DefaultLockFile
	}
	if o.Generator == nil {
		o.Generator = domain.RandomAccountNumbers
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Repository 以兩份 JSON 檔儲存帳戶與交易紀錄
// 每次寫入：讀取全部 → 記憶體內修改 → 寫 WAL → 覆寫兩份檔案 → 清空 WAL
type Repository struct {
	accounts     *Collection[accountRecord]
	transactions *Collection[transactionRecord]
	wal          *wal.WAL
	lock         *filelock.Lock
	generator    domain.AccountNumberGenerator
	location     *time.Location
	logger       *zap.Logger
	mu           sync.Mutex
	// persist 覆寫檔案，測試可替換
	persist func(state *memory.State, saveAccounts, saveTransactions bool) error
	// failed 還原失敗後檔案狀態不確定，重新開啟前拒絕寫入
	failed error
}

// Open 開啟資料目錄：取得檔案鎖、開啟 WAL 並重放尚未套用的寫入單元
//
// 參數:
//
//	opts: 設定
//
// 回傳:
//
//	*Repository: Repository 實例
//	error: filelock.ErrLocked (已有其他程序使用) 或 *domain.PersistenceError
func Open(opts Options) (*Repository, error) {
	opts.setDefaults()
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, domain.NewPersistenceError("open", errors.Wrapf(err, "create %s", opts.Dir))
	}

	lock, err := filelock.TryLock(filepath.Join(opts.Dir, opts.LockFile))
	if err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return nil, err
		}
		return nil, domain.NewPersistenceError("open", errors.Wrap(err, "lock data directory"))
	}

	walFile, err := wal.NewWAL(filepath.Join(opts.Dir, opts.WALFile))
	if err != nil {
		lock.Unlock()
		return nil, domain.NewPersistenceError("open", errors.Wrap(err, "open wal"))
	}

	r := &Repository{
		accounts:     NewCollection[accountRecord](filepath.Join(opts.Dir, opts.AccountsFile)),
		transactions: NewCollection[transactionRecord](filepath.Join(opts.Dir, opts.TransactionsFile)),
		wal:          walFile,
		lock:         lock,
		generator:    opts.Generator,
		location:     opts.Location,
		logger:       opts.Logger,
	}
	r.persist = r.save
	if err := r.recoverFromWAL(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// recoverFromWAL 將 WAL 中尚未套用到檔案的寫入單元補寫回去
// 帳戶以帳號覆寫，交易紀錄以 ID 去重，重放多次結果相同
// 已標記撤銷的寫入單元改為還原成異動前的狀態
func (r *Repository) recoverFromWAL() error {
	entries := make([]commitEntry, 0)
	err := r.wal.ReadAll(func(jsonRaw []byte) error {
		var entry commitEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return domain.NewPersistenceError("recover", errors.Wrap(err, "read wal"))
	}
	if len(entries) == 0 {
		return nil
	}

	aborted := make(map[uuid.UUID]bool)
	for _, entry := range entries {
		if entry.Aborted {
			aborted[entry.ID] = true
		}
	}

	state, err := r.load()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Aborted {
			continue
		}
		if aborted[entry.ID] {
			if err := r.undo(state, entry); err != nil {
				return err
			}
			continue
		}
		for _, rec := range entry.Accounts {
			state.UpsertAccount(rec.toDomain())
		}
		for _, rec := range entry.Transactions {
			tran, err := rec.toDomain(r.location)
			if err != nil {
				return domain.NewPersistenceError("recover", err)
			}
			state.AppendTransaction(tran)
		}
	}
	if err := r.save(state, true, true); err != nil {
		return err
	}
	if err := r.wal.Reset(); err != nil {
		return domain.NewPersistenceError("recover", errors.Wrap(err, "reset wal"))
	}
	r.logger.Info("replayed pending commits", zap.Int("entries", len(entries)), zap.Int("aborted", len(aborted)))
	return nil
}

// undo 將撤銷的寫入單元還原：帳戶回到 Before，新開的帳戶與新增的交易紀錄移除
func (r *Repository) undo(state *memory.State, entry commitEntry) error {
	restored := make(map[string]bool, len(entry.Before))
	for _, rec := range entry.Before {
		state.UpsertAccount(rec.toDomain())
		restored[rec.AccountNumber] = true
	}
	for _, rec := range entry.Accounts {
		if !restored[rec.AccountNumber] {
			state.RemoveAccount(rec.AccountNumber)
		}
	}
	for _, rec := range entry.Transactions {
		tran, err := rec.toDomain(r.location)
		if err != nil {
			return domain.NewPersistenceError("recover", err)
		}
		state.RemoveTransaction(tran.TransactionID)
	}
	return nil
}

// Accounts implements usecase.Repository.
func (r *Repository) Accounts() usecase.AccountStore {
	return (*fileAccounts)(r)
}

// Transactions implements usecase.Repository.
func (r *Repository) Transactions() usecase.TransactionLog {
	return (*fileLog)(r)
}

// Atomic 在讀入的資料上執行 fn，成功後以 WAL 保證兩份檔案一起更新
//
// 參數:
//
//	ctx: 上下文
//	fn: 寫入單元
//
// 回傳:
//
//	error: fn 的錯誤或 *domain.PersistenceError
func (r *Repository) Atomic(ctx context.Context, fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.wal == nil {
		return domain.NewPersistenceError("commit", ErrClosed)
	}
	if r.failed != nil {
		return domain.NewPersistenceError("commit", errors.Wrap(ErrClosed, r.failed.Error()))
	}
	state, err := r.load()
	if err != nil {
		return err
	}
	original := state.Clone()
	tx := memory.NewTx(state, r.generator)
	if err := fn(tx.Accounts(), tx.Transactions()); err != nil {
		return err
	}
	if !tx.Dirty() {
		return nil
	}
	return r.commit(original, state, tx)
}

// commit 1. 寫入 WAL (Critical Path) 2. 覆寫檔案 3. 清空 WAL
// 覆寫失敗時交給 abort 撤銷，呼叫端收到錯誤的寫入單元重新開啟後也不會生效
func (r *Repository) commit(original, state *memory.State, tx *memory.Tx) error {
	entry := commitEntry{ID: uuid.New()}
	for _, a := range tx.Touched() {
		entry.Accounts = append(entry.Accounts, toAccountRecord(a))
		if before, ok := original.Account(a.AccountNumber); ok {
			entry.Before = append(entry.Before, toAccountRecord(before))
		}
	}
	for _, t := range tx.Appended() {
		entry.Transactions = append(entry.Transactions, toTransactionRecord(t, r.location))
	}

	if err := r.wal.Write(entry); err != nil {
		return domain.NewPersistenceError("commit", errors.Wrap(err, "write wal"))
	}
	saveAccounts, saveTransactions := len(entry.Accounts) > 0, len(entry.Transactions) > 0
	if err := r.persist(state, saveAccounts, saveTransactions); err != nil {
		r.abort(entry.ID, original, saveAccounts, saveTransactions, err)
		return err
	}
	if err := r.wal.Reset(); err != nil {
		return domain.NewPersistenceError("commit", errors.Wrap(err, "reset wal"))
	}
	return nil
}

// abort 撤銷覆寫失敗的寫入單元
// 1. WAL 記下撤銷 2. 檔案還原為 original 3. 清空 WAL
// 還原失敗或 WAL 無法反映撤銷時停用寫入，重新開啟時依 WAL 還原
func (r *Repository) abort(id uuid.UUID, original *memory.State, saveAccounts, saveTransactions bool, cause error) {
	logger := r.logger.With(zap.String("commit", id.String()), zap.Error(cause))
	markErr := r.wal.Write(commitEntry{ID: id, Aborted: true})
	if markErr != nil {
		logger.Error("write abort record failed", zap.NamedError("abort_error", markErr))
	}
	if err := r.persist(original, saveAccounts, saveTransactions); err != nil {
		logger.Error("rollback failed, writes disabled until reopen", zap.NamedError("rollback_error", err))
		r.failed = errors.Wrap(err, "rollback failed")
		return
	}
	if err := r.wal.Reset(); err != nil {
		if markErr != nil {
			// WAL 仍留著未標記撤銷的寫入單元
			logger.Error("reset wal after rollback failed, writes disabled until reopen", zap.NamedError("reset_error", err))
			r.failed = errors.Wrap(err, "reset wal after rollback")
			return
		}
		logger.Warn("reset wal after rollback failed", zap.NamedError("reset_error", err))
	}
	logger.Warn("commit rolled back")
}

// load 讀取兩份檔案組成 State
func (r *Repository) load() (*memory.State, error) {
	accountRecords, err := r.accounts.LoadAll()
	if err != nil {
		return nil, domain.NewPersistenceError("load accounts", err)
	}
	tranRecords, err := r.transactions.LoadAll()
	if err != nil {
		return nil, domain.NewPersistenceError("load transactions", err)
	}

	accounts := make([]*domain.Account, 0, len(accountRecords))
	for _, rec := range accountRecords {
		accounts = append(accounts, rec.toDomain())
	}
	transactions := make([]*domain.Transaction, 0, len(tranRecords))
	for _, rec := range tranRecords {
		tran, err := rec.toDomain(r.location)
		if err != nil {
			return nil, domain.NewPersistenceError("load transactions", err)
		}
		transactions = append(transactions, tran)
	}
	return memory.NewState(accounts, transactions), nil
}

// save 覆寫有異動的檔案
func (r *Repository) save(state *memory.State, saveAccounts, saveTransactions bool) error {
	if saveAccounts {
		accounts := state.Accounts()
		records := make([]accountRecord, 0, len(accounts))
		for _, a := range accounts {
			records = append(records, toAccountRecord(a))
		}
		if err := r.accounts.SaveAll(records); err != nil {
			return domain.NewPersistenceError("save accounts", err)
		}
	}
	if saveTransactions {
		transactions := state.Transactions()
		records := make([]transactionRecord, 0, len(transactions))
		for _, t := range transactions {
			records = append(records, toTransactionRecord(t, r.location))
		}
		if err := r.transactions.SaveAll(records); err != nil {
			return domain.NewPersistenceError("save transactions", err)
		}
	}
	return nil
}

// read 在鎖內讀取目前資料
func (r *Repository) read() (*memory.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Close 關閉 WAL 並釋放檔案鎖
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	if r.wal != nil {
		firstErr = r.wal.Close()
		r.wal = nil
	}
	if r.lock != nil {
		if err := r.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.lock = nil
	}
	return firstErr
}

type fileAccounts Repository

func (a *fileAccounts) Create(ctx context.Context, name, contact string) (*domain.Account, error) {
	var account *domain.Account
	err := (*Repository)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		var err error
		account, err = accounts.Create(ctx, name, contact)
		return err
	})
	return account, err
}

func (a *fileAccounts) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	state, err := (*Repository)(a).read()
	if err != nil {
		return nil, err
	}
	return memory.NewTx(state, a.generator).Accounts().FindByAccountNumber(ctx, accountNumber)
}

func (a *fileAccounts) UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	return (*Repository)(a).Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
		return accounts.UpdateBalance(ctx, accountNumber, balance)
	})
}

func (a *fileAccounts) List(_ context.Context) ([]*domain.Account, error) {
	state, err := (*Repository)(a).read()
	if err != nil {
		return nil, err
	}
	return state.Accounts(), nil
}

type fileLog Repository

func (l *fileLog) Append(ctx context.Context, tran *domain.Transaction) error {
	return (*Repository)(l).Atomic(ctx, func(_ usecase.AccountStore, log usecase.TransactionLog) error {
		return log.Append(ctx, tran)
	})
}

func (l *fileLog) ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	state, err := (*Repository)(l).read()
	if err != nil {
		return nil, err
	}
	return memory.NewTx(state, l.generator).Transactions().ListByAccount(ctx, accountNumber)
}

var _ usecase.Repository = (*Repository)(nil)
