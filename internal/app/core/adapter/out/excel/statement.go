package excel

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
)

const sheetName = "Extrato"

// 標題列
var headers = []string{"Data/Hora", "Tipo", "Valor (R$)", "Saldo Anterior (R$)", "Saldo Atual (R$)", "ID"}

// WriteStatement 將帳戶與交易紀錄輸出為 xlsx 對帳單
//
// 參數:
//
//	w: 輸出目標
//	account: 帳戶
//	history: 交易紀錄 (依寫入順序)
//	loc: 顯示時區，nil 時使用 time.Local
//
// 回傳:
//
//	error: 建立或寫出檔案失敗
func WriteStatement(w io.Writer, account *domain.Account, history []*domain.Transaction, loc *time.Location) error {
	if account == nil {
		return domain.ErrAccountNotFound
	}
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// 預設的 Sheet1 改名
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	// 帳戶資訊
	summary := [][2]any{
		{"Cliente", account.Name},
		{"Conta", account.AccountNumber},
		{"Contato", account.Contact},
		{"Saldo", account.Balance.InexactFloat64()},
	}
	for i, kv := range summary {
		row := i + 1
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return errors.Wrap(err, "write summary")
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return errors.Wrap(err, "write summary")
		}
	}

	headerRow := len(summary) + 2
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return errors.Wrap(err, "header cell")
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return errors.Wrap(err, "write header")
		}
	}

	for i, tran := range history {
		row := headerRow + 1 + i
		values := []any{
			tran.CreatedAt.In(loc).Format("02/01/2006 15:04:05"),
			tran.Type.String(),
			tran.Amount.InexactFloat64(),
			tran.BalanceBefore.InexactFloat64(),
			tran.BalanceAfter.InexactFloat64(),
			transactionID(tran),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return errors.Wrap(err, "row cell")
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return errors.Wrapf(err, "write row %d", row)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "E", 18)
	_ = f.SetColWidth(sheetName, "F", "F", 38)

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write xlsx")
	}
	return nil
}

// transactionID 舊資料沒有 ID 時留空
func transactionID(tran *domain.Transaction) string {
	if tran.TransactionID == uuid.Nil {
		return ""
	}
	return tran.TransactionID.String()
}
