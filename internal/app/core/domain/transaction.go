package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
)

// 交易類型在檔案與畫面上的名稱
const (
	depositLabel  = "Depósito"
	withdrawLabel = "Saque"
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return depositLabel
	case TransactionTypeWithdraw:
		return withdrawLabel
	default:
		return fmt.Sprintf("TransactionType(%d)", uint8(t))
	}
}

// ParseTransactionType 將名稱轉回交易類型
func ParseTransactionType(s string) (TransactionType, error) {
	switch s {
	case depositLabel, "deposit":
		return TransactionTypeDeposit, nil
	case withdrawLabel, "withdraw":
		return TransactionTypeWithdraw, nil
	default:
		return 0, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, s)
	}
}

// Transaction 交易紀錄，建立後不可修改
type Transaction struct {
	// TransactionID: 追蹤號 (UUID)，重放 WAL 時用於去重
	TransactionID uuid.UUID
	// AccountNumber: 所屬帳戶 (僅以值參照)
	AccountNumber string
	Type          TransactionType
	// Amount: 異動金額 (正數)
	Amount decimal.Decimal
	// BalanceBefore, BalanceAfter: 異動前後餘額
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	// CreatedAt: 交易時間
	CreatedAt time.Time
}

// Validate 檢查 BalanceAfter 與 BalanceBefore、Amount 的關係
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	var want decimal.Decimal
	switch t.Type {
	case TransactionTypeDeposit:
		want = t.BalanceBefore.Add(t.Amount)
	case TransactionTypeWithdraw:
		want = t.BalanceBefore.Sub(t.Amount)
	default:
		return fmt.Errorf("%w: unknown transaction type %d", ErrValidation, t.Type)
	}
	if !t.BalanceAfter.Equal(want) {
		return fmt.Errorf("%w: balance after %s does not match %s", ErrValidation, t.BalanceAfter, want)
	}
	return nil
}
