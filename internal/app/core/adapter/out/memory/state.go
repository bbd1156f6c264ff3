package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

// State 記憶體中的完整資料集 (帳戶 + 交易紀錄)，皆依寫入順序排列
// 檔案型 adapter 也拿它當作一次寫入單元的暫存區
type State struct {
	accounts     []*domain.Account
	transactions []*domain.Transaction
	// 已存在的交易 ID，用於 Append 去重 (舊資料沒有 ID 的不列入)
	transactionIDs map[uuid.UUID]struct{}
}

// NewState 以既有資料建立 State (會複製帳戶)
func NewState(accounts []*domain.Account, transactions []*domain.Transaction) *State {
	s := &State{
		accounts:       make([]*domain.Account, 0, len(accounts)),
		transactions:   make([]*domain.Transaction, 0, len(transactions)),
		transactionIDs: make(map[uuid.UUID]struct{}, len(transactions)),
	}
	for _, a := range accounts {
		s.accounts = append(s.accounts, a.Clone())
	}
	for _, t := range transactions {
		s.addTransaction(t)
	}
	return s
}

// Clone 深拷貝帳戶；交易紀錄不可變，只複製 slice
func (s *State) Clone() *State {
	return NewState(s.accounts, s.transactions)
}

// Accounts 回傳所有帳戶的拷貝
func (s *State) Accounts() []*domain.Account {
	out := make([]*domain.Account, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = a.Clone()
	}
	return out
}

// Transactions 回傳所有交易紀錄
func (s *State) Transactions() []*domain.Transaction {
	out := make([]*domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// HasTransaction 檢查交易 ID 是否已存在
func (s *State) HasTransaction(id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	_, ok := s.transactionIDs[id]
	return ok
}

// UpsertAccount 以帳號覆寫第一筆相符的帳戶，沒有則追加
func (s *State) UpsertAccount(account *domain.Account) {
	if i := s.indexOf(account.AccountNumber); i >= 0 {
		s.accounts[i] = account.Clone()
		return
	}
	s.accounts = append(s.accounts, account.Clone())
}

// Account 依帳號取得帳戶拷貝
func (s *State) Account(accountNumber string) (*domain.Account, bool) {
	if i := s.indexOf(accountNumber); i >= 0 {
		return s.accounts[i].Clone(), true
	}
	return nil, false
}

// RemoveAccount 移除帳戶，用於撤銷新開的帳戶
func (s *State) RemoveAccount(accountNumber string) {
	if i := s.indexOf(accountNumber); i >= 0 {
		s.accounts = append(s.accounts[:i:i], s.accounts[i+1:]...)
	}
}

// RemoveTransaction 依 ID 移除交易紀錄
func (s *State) RemoveTransaction(id uuid.UUID) {
	if !s.HasTransaction(id) {
		return
	}
	kept := make([]*domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if t.TransactionID != id {
			kept = append(kept, t)
		}
	}
	s.transactions = kept
	delete(s.transactionIDs, id)
}

// AppendTransaction 追加交易紀錄，重複的 ID 忽略
func (s *State) AppendTransaction(tran *domain.Transaction) bool {
	if s.HasTransaction(tran.TransactionID) {
		return false
	}
	s.addTransaction(tran)
	return true
}

func (s *State) addTransaction(tran *domain.Transaction) {
	cp := *tran
	s.transactions = append(s.transactions, &cp)
	if tran.TransactionID != uuid.Nil {
		s.transactionIDs[tran.TransactionID] = struct{}{}
	}
}

// indexOf 回傳第一筆相符帳戶的位置，找不到回傳 -1
func (s *State) indexOf(accountNumber string) int {
	for i, a := range s.accounts {
		if a.AccountNumber == accountNumber {
			return i
		}
	}
	return -1
}

// Tx 在 State 上執行的一個寫入單元，記錄被異動的帳戶與新增的紀錄
type Tx struct {
	state     *State
	generator domain.AccountNumberGenerator
	touched   []string
	appended  []*domain.Transaction
}

// NewTx 建立寫入單元，所有寫入直接作用在 state 上
func NewTx(state *State, generator domain.AccountNumberGenerator) *Tx {
	return &Tx{state: state, generator: generator}
}

// Accounts 回傳作用於此寫入單元的 AccountStore
func (t *Tx) Accounts() usecase.AccountStore {
	return (*txAccounts)(t)
}

// Transactions 回傳作用於此寫入單元的 TransactionLog
func (t *Tx) Transactions() usecase.TransactionLog {
	return (*txLog)(t)
}

// Touched 回傳被建立或修改過的帳戶 (異動後狀態)
func (t *Tx) Touched() []*domain.Account {
	out := make([]*domain.Account, 0, len(t.touched))
	for _, number := range t.touched {
		if i := t.state.indexOf(number); i >= 0 {
			out = append(out, t.state.accounts[i].Clone())
		}
	}
	return out
}

// Appended 回傳此寫入單元新增的交易紀錄
func (t *Tx) Appended() []*domain.Transaction {
	out := make([]*domain.Transaction, len(t.appended))
	copy(out, t.appended)
	return out
}

// Dirty 是否有任何寫入
func (t *Tx) Dirty() bool {
	return len(t.touched) > 0 || len(t.appended) > 0
}

func (t *Tx) touch(accountNumber string) {
	for _, n := range t.touched {
		if n == accountNumber {
			return
		}
	}
	t.touched = append(t.touched, accountNumber)
}

type txAccounts Tx

func (a *txAccounts) Create(_ context.Context, name, contact string) (*domain.Account, error) {
	// 先驗證欄位，避免浪費帳號
	if _, err := domain.NewAccount("", name, contact); err != nil {
		return nil, err
	}
	number, err := domain.NextFreeAccountNumber(a.generator, func(candidate string) (bool, error) {
		return a.state.indexOf(candidate) >= 0, nil
	})
	if err != nil {
		return nil, err
	}
	account, err := domain.NewAccount(number, name, contact)
	if err != nil {
		return nil, err
	}
	a.state.accounts = append(a.state.accounts, account.Clone())
	(*Tx)(a).touch(number)
	return account, nil
}

func (a *txAccounts) FindByAccountNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	i := a.state.indexOf(accountNumber)
	if i < 0 {
		return nil, domain.ErrAccountNotFound
	}
	return a.state.accounts[i].Clone(), nil
}

func (a *txAccounts) UpdateBalance(_ context.Context, accountNumber string, balance decimal.Decimal) error {
	i := a.state.indexOf(accountNumber)
	if i < 0 {
		return domain.ErrAccountNotFound
	}
	a.state.accounts[i].Balance = balance
	(*Tx)(a).touch(accountNumber)
	return nil
}

func (a *txAccounts) List(_ context.Context) ([]*domain.Account, error) {
	return a.state.Accounts(), nil
}

type txLog Tx

func (l *txLog) Append(_ context.Context, tran *domain.Transaction) error {
	if tran == nil {
		return domain.ErrValidation
	}
	if err := tran.Validate(); err != nil {
		return err
	}
	if l.state.AppendTransaction(tran) {
		cp := *tran
		l.appended = append(l.appended, &cp)
	}
	return nil
}

func (l *txLog) ListByAccount(_ context.Context, accountNumber string) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0)
	for _, t := range l.state.transactions {
		if t.AccountNumber == accountNumber {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ usecase.AccountStore   = (*txAccounts)(nil)
	_ usecase.TransactionLog = (*txLog)(nil)
)
