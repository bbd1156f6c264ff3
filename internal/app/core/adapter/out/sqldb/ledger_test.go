package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/database"
)

func newSQLiteLedger(t *testing.T, numbers ...string) *SQLLedger {
	t.Helper()
	client, err := database.NewClient(database.Config{
		Driver:     database.DriverSQLite,
		Path:       filepath.Join(t.TempDir(), "bank.db"),
		MaxRetries: 1,
	}, nil)
	require.NoError(t, err)

	i := 0
	ledger, err := NewSQLLedger(client, domain.AccountNumberFunc(func() string {
		n := numbers[i%len(numbers)]
		i++
		return n
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLLedger_LedgerServiceFlow(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 15, 9, 30, 5, 0, time.UTC)
	ledger := newSQLiteLedger(t, "12345", "12345", "54321")
	svc := usecase.NewLedgerService(ledger, usecase.WithClock(func() time.Time { return at }))

	ana, err := svc.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	require.Equal(t, "12345", ana.AccountNumber)

	// 第二次產生的帳號碰撞，改用下一個
	bia, err := svc.OpenAccount(ctx, "Bia", "2")
	require.NoError(t, err)
	require.Equal(t, "54321", bia.AccountNumber)

	ana, err = svc.Deposit(ctx, ana, decimal.RequireFromString("100"))
	require.NoError(t, err)
	ana, err = svc.Withdraw(ctx, ana, decimal.RequireFromString("40"))
	require.NoError(t, err)
	require.Equal(t, "60.00", domain.FormatMoney(ana.Balance))

	_, err = svc.Withdraw(ctx, ana, decimal.RequireFromString("100"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	stored, err := svc.Authenticate(ctx, "12345")
	require.NoError(t, err)
	require.Equal(t, "60.00", domain.FormatMoney(stored.Balance))

	history, err := svc.History(ctx, ana)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.TransactionTypeDeposit, history[0].Type)
	require.Equal(t, "60.00", domain.FormatMoney(history[1].BalanceAfter))
	require.True(t, at.Equal(history[0].CreatedAt))

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "Ana Silva", accounts[0].Name)
}

func TestSQLLedger_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteLedger(t, "12345")
	account, err := ledger.Accounts().Create(ctx, "Ana", "1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = ledger.Atomic(ctx, func(accounts usecase.AccountStore, log usecase.TransactionLog) error {
		require.NoError(t, accounts.UpdateBalance(ctx, account.AccountNumber, decimal.NewFromInt(10)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := ledger.Accounts().FindByAccountNumber(ctx, account.AccountNumber)
	require.NoError(t, err)
	require.True(t, stored.Balance.IsZero())
}

func TestSQLLedger_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteLedger(t, "12345")

	tran := &domain.Transaction{
		TransactionID: uuid.New(),
		AccountNumber: "12345",
		Type:          domain.TransactionTypeDeposit,
		Amount:        decimal.RequireFromString("12.34"),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.RequireFromString("12.34"),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, ledger.Transactions().Append(ctx, tran))
	require.NoError(t, ledger.Transactions().Append(ctx, tran))

	history, err := ledger.Transactions().ListByAccount(ctx, "12345")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, tran.TransactionID, history[0].TransactionID)
	require.True(t, history[0].Amount.Equal(tran.Amount))
}

func TestSQLLedger_NotFound(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteLedger(t, "12345")

	_, err := ledger.Accounts().FindByAccountNumber(ctx, "00000")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	err = ledger.Accounts().UpdateBalance(ctx, "00000", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	// 餘額沒變也不是 NotFound
	account, err := ledger.Accounts().Create(ctx, "Ana", "1")
	require.NoError(t, err)
	require.NoError(t, ledger.Accounts().UpdateBalance(ctx, account.AccountNumber, decimal.Zero))
}
