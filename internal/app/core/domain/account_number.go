package domain

import (
	"math/rand/v2"
	"strings"
)

const (
	// AccountNumberLength 帳號長度 (純數字)
	AccountNumberLength = 5
	// MaxAccountNumberAttempts 產生帳號時的最大重試次數
	MaxAccountNumberAttempts = 1000
)

// AccountNumberGenerator 產生候選帳號
type AccountNumberGenerator interface {
	Next() string
}

// AccountNumberFunc 讓一般函式實作 AccountNumberGenerator
type AccountNumberFunc func() string

func (f AccountNumberFunc) Next() string {
	return f()
}

// RandomAccountNumbers 隨機產生 5 位數帳號
var RandomAccountNumbers AccountNumberGenerator = AccountNumberFunc(func() string {
	var b strings.Builder
	b.Grow(AccountNumberLength)
	for range AccountNumberLength {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
})

// NextFreeAccountNumber 取得尚未使用的帳號，碰撞時重抽
//
// 參數:
//
//	gen: 帳號產生器
//	exists: 檢查帳號是否已存在
//
// 回傳:
//
//	string: 可用帳號
//	error: exists 的錯誤或 ErrAccountNumberExhausted
func NextFreeAccountNumber(gen AccountNumberGenerator, exists func(string) (bool, error)) (string, error) {
	if gen == nil {
		gen = RandomAccountNumbers
	}
	for range MaxAccountNumberAttempts {
		candidate := gen.Next()
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrAccountNumberExhausted
}

// NormalizeAccountNumber 去除登入輸入的前後空白
func NormalizeAccountNumber(s string) string {
	return strings.TrimSpace(s)
}
