package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
)

func TestWriteStatement(t *testing.T) {
	account := &domain.Account{
		AccountNumber: "12345",
		Name:          "Ana Silva",
		Contact:       "11999990000",
		Balance:       decimal.RequireFromString("60"),
	}
	at := time.Date(2024, 3, 15, 9, 30, 5, 0, time.UTC)
	history := []*domain.Transaction{
		{
			TransactionID: uuid.New(),
			AccountNumber: "12345",
			Type:          domain.TransactionTypeDeposit,
			Amount:        decimal.RequireFromString("100"),
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.RequireFromString("100"),
			CreatedAt:     at,
		},
		{
			AccountNumber: "12345",
			Type:          domain.TransactionTypeWithdraw,
			Amount:        decimal.RequireFromString("40"),
			BalanceBefore: decimal.RequireFromString("100"),
			BalanceAfter:  decimal.RequireFromString("60"),
			CreatedAt:     at.Add(time.Minute),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatement(&buf, account, history, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Equal(t, []string{"Cliente", "Ana Silva"}, rows[0])
	require.Equal(t, []string{"Conta", "12345"}, rows[1])
	require.Equal(t, headers, rows[5])
	require.Equal(t, "15/03/2024 09:30:05", rows[6][0])
	require.Equal(t, "Depósito", rows[6][1])
	require.Equal(t, "Saque", rows[7][1])
	require.Equal(t, "60", rows[7][4])
	require.Equal(t, history[0].TransactionID.String(), rows[6][5])
	// 舊資料沒有 ID，最後一格留空
	require.Len(t, rows[7], 5)
	require.Len(t, rows, 8)
}

func TestWriteStatement_NilAccount(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, WriteStatement(&buf, nil, nil, nil), domain.ErrAccountNotFound)
}
