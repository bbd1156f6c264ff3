package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 必填欄位為空
	ErrValidation = errors.New("validation error")

	// ErrInvalidFormat 金額無法解析為數字
	ErrInvalidFormat = errors.New("invalid amount format")

	// ErrInvalidAmount 金額必須為正數 (且最多兩位小數)
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountNumberExhausted 無法產生未使用的帳號
	ErrAccountNumberExhausted = errors.New("no free account number")

	// ErrPersistence 儲存層讀寫失敗
	ErrPersistence = errors.New("persistence error")
)

// PersistenceError 包裝底層儲存錯誤，Op 為失敗的操作名稱
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError 建立 PersistenceError，err 為 nil 時回傳 nil
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is 讓 errors.Is(err, ErrPersistence) 成立
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
