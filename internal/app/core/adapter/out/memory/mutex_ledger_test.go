package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

func deposit(number string, before, amount string) *domain.Transaction {
	b := decimal.RequireFromString(before)
	a := decimal.RequireFromString(amount)
	return &domain.Transaction{
		TransactionID: uuid.New(),
		AccountNumber: number,
		Type:          domain.TransactionTypeDeposit,
		Amount:        a,
		BalanceBefore: b,
		BalanceAfter:  b.Add(a),
		CreatedAt:     time.Now(),
	}
}

func TestMutexLedger_CreateRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	numbers := []string{"11111", "11111", "22222"}
	i := 0
	ledger := NewMutexLedger(nil, domain.AccountNumberFunc(func() string {
		n := numbers[i]
		i++
		return n
	}))

	first, err := ledger.Accounts().Create(ctx, "Ana", "1")
	require.NoError(t, err)
	require.Equal(t, "11111", first.AccountNumber)

	second, err := ledger.Accounts().Create(ctx, "Bia", "2")
	require.NoError(t, err)
	require.Equal(t, "22222", second.AccountNumber)

	accounts, err := ledger.Accounts().List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
}

func TestMutexLedger_UpdateBalanceMissingAccount(t *testing.T) {
	ledger := NewMutexLedger(nil, nil)
	err := ledger.Accounts().UpdateBalance(context.Background(), "00000", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMutexLedger_AtomicDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	ledger := NewMutexLedger([]*domain.Account{{AccountNumber: "12345", Name: "Ana", Contact: "1"}}, nil)

	boom := errors.New("boom")
	err := ledger.Atomic(ctx, func(accounts usecase.AccountStore, log usecase.TransactionLog) error {
		require.NoError(t, accounts.UpdateBalance(ctx, "12345", decimal.NewFromInt(5)))
		require.NoError(t, log.Append(ctx, deposit("12345", "0", "5")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := ledger.Accounts().FindByAccountNumber(ctx, "12345")
	require.NoError(t, err)
	require.True(t, account.Balance.IsZero())

	history, err := ledger.Transactions().ListByAccount(ctx, "12345")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestMutexLedger_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := NewMutexLedger(nil, nil)

	tran := deposit("12345", "0", "10")
	require.NoError(t, ledger.Transactions().Append(ctx, tran))
	require.NoError(t, ledger.Transactions().Append(ctx, tran))

	history, err := ledger.Transactions().ListByAccount(ctx, "12345")
	require.NoError(t, err)
	require.Len(t, history, 1)

	bad := deposit("12345", "0", "10")
	bad.BalanceAfter = decimal.NewFromInt(99)
	require.ErrorIs(t, ledger.Transactions().Append(ctx, bad), domain.ErrValidation)
}

func TestMutexLedger_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ledger := NewMutexLedger([]*domain.Account{{AccountNumber: "12345", Name: "Ana", Contact: "1"}}, nil)

	account, err := ledger.Accounts().FindByAccountNumber(ctx, "12345")
	require.NoError(t, err)
	account.Balance = decimal.NewFromInt(1000)

	again, err := ledger.Accounts().FindByAccountNumber(ctx, "12345")
	require.NoError(t, err)
	require.True(t, again.Balance.IsZero())
}

func TestTx_TracksTouchedAndAppended(t *testing.T) {
	ctx := context.Background()
	state := NewState([]*domain.Account{{AccountNumber: "12345", Name: "Ana", Contact: "1"}}, nil)
	tx := NewTx(state, nil)
	require.False(t, tx.Dirty())

	require.NoError(t, tx.Accounts().UpdateBalance(ctx, "12345", decimal.NewFromInt(10)))
	require.NoError(t, tx.Accounts().UpdateBalance(ctx, "12345", decimal.NewFromInt(20)))
	require.NoError(t, tx.Transactions().Append(ctx, deposit("12345", "0", "20")))

	require.True(t, tx.Dirty())
	touched := tx.Touched()
	require.Len(t, touched, 1)
	require.Equal(t, "20", touched[0].Balance.String())
	require.Len(t, tx.Appended(), 1)
}
