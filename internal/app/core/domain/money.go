package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 金額以 decimal 表示，精度：小數點後 2 位 (分)
const CurrencyScale int32 = 2

// MaxIntegerDigits 金額與餘額整數部分的最大位數，對應資料庫的 decimal(20,2)
const MaxIntegerDigits = 18

// maxInputScale 輸入允許的小數位數上限 (含多餘的 0)
const maxInputScale = 20

// ParseAmount 將使用者輸入解析為金額
//
// 參數:
//
//	raw: 原始輸入字串
//
// 回傳:
//
//	decimal.Decimal: 解析後的金額 (尚未檢查正負)
//	error: ErrInvalidFormat (非數字輸入)
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrInvalidFormat
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidFormat
	}
	return amount, nil
}

// ValidateAmount 檢查金額為正數、整數部分不超過 MaxIntegerDigits 位且不超過 CurrencyScale 位小數
// 只看係數位數與指數，"1e50000000" 這類輸入不會被展開
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !WithinLimit(amount) || amount.Exponent() < -maxInputScale {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(CurrencyScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// WithinLimit 檢查整數部分不超過 MaxIntegerDigits 位
func WithinLimit(amount decimal.Decimal) bool {
	coefficient := amount.Coefficient()
	digits := len(coefficient.Abs(coefficient).String())
	return digits+int(amount.Exponent()) <= MaxIntegerDigits
}

// FormatMoney 以兩位小數輸出金額，例如 "60.00"
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(CurrencyScale)
}
