package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account 銀行帳戶
// AccountNumber 同時作為登入憑證 (沿用既有設計，不另設密碼)
type Account struct {
	AccountNumber string
	Name          string
	Contact       string
	Balance       decimal.Decimal
}

// NewAccount 建立餘額為 0 的新帳戶，name/contact 去除空白後不可為空
func NewAccount(accountNumber, name, contact string) (*Account, error) {
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if contact == "" {
		return nil, fmt.Errorf("%w: contact is required", ErrValidation)
	}
	return &Account{
		AccountNumber: accountNumber,
		Name:          name,
		Contact:       contact,
		Balance:       decimal.Zero,
	}, nil
}

// Clone 回傳值拷貝，避免呼叫端改到儲存層內部狀態
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// Deposit 存款，存入後餘額超過上限時拒絕
func (a *Account) Deposit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	balance := a.Balance.Add(amount)
	if !WithinLimit(balance) {
		return ErrInvalidAmount
	}
	a.Balance = balance
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Post 依交易類型異動餘額，並回傳對應的交易紀錄
// 失敗時帳戶餘額不變
//
// 參數:
//
//	tranType: 交易類型
//	amount: 金額
//	id: 交易 ID
//	at: 交易時間
//
// 回傳:
//
//	*Transaction: 交易紀錄 (含異動前後餘額)
//	error: ErrInvalidAmount / ErrInsufficientFunds
func (a *Account) Post(tranType TransactionType, amount decimal.Decimal, id uuid.UUID, at time.Time) (*Transaction, error) {
	before := a.Balance
	var err error
	switch tranType {
	case TransactionTypeDeposit:
		err = a.Deposit(amount)
	case TransactionTypeWithdraw:
		err = a.Withdraw(amount)
	default:
		err = fmt.Errorf("%w: unknown transaction type %d", ErrValidation, tranType)
	}
	if err != nil {
		return nil, err
	}
	return &Transaction{
		TransactionID: id,
		AccountNumber: a.AccountNumber,
		Type:          tranType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  a.Balance,
		CreatedAt:     at,
	}, nil
}
