package usecase_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/memory"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

type observation struct {
	operation string
	err       error
	amount    decimal.Decimal
}

type fakeRecorder struct {
	observed []observation
}

func (r *fakeRecorder) ObserveOperation(operation string, err error, amount decimal.Decimal) {
	r.observed = append(r.observed, observation{operation: operation, err: err, amount: amount})
}

func sequence(numbers ...string) domain.AccountNumberGenerator {
	i := 0
	return domain.AccountNumberFunc(func() string {
		n := numbers[i%len(numbers)]
		i++
		return n
	})
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T, opts ...usecase.Option) (*usecase.LedgerService, usecase.Repository) {
	t.Helper()
	repo := memory.NewMutexLedger(nil, sequence("12345", "54321", "11111"))
	return usecase.NewLedgerService(repo, opts...), repo
}

func TestLedgerService_AnaSilvaScenario(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	svc, repo := newService(t, usecase.WithClock(func() time.Time { return fixed }))

	account, err := svc.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	require.Equal(t, "12345", account.AccountNumber)
	require.True(t, account.Balance.IsZero())

	account, err = svc.Deposit(ctx, account, amount("100"))
	require.NoError(t, err)
	require.Equal(t, "100.00", domain.FormatMoney(account.Balance))

	account, err = svc.Withdraw(ctx, account, amount("40"))
	require.NoError(t, err)
	require.Equal(t, "60.00", domain.FormatMoney(account.Balance))

	_, err = svc.Withdraw(ctx, account, amount("100"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	history, err := svc.History(ctx, account)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.TransactionTypeDeposit, history[0].Type)
	require.Equal(t, "0.00", domain.FormatMoney(history[0].BalanceBefore))
	require.Equal(t, "100.00", domain.FormatMoney(history[0].BalanceAfter))
	require.Equal(t, domain.TransactionTypeWithdraw, history[1].Type)
	require.Equal(t, "100.00", domain.FormatMoney(history[1].BalanceBefore))
	require.Equal(t, "60.00", domain.FormatMoney(history[1].BalanceAfter))
	require.Equal(t, fixed, history[1].CreatedAt)

	stored, err := repo.Accounts().FindByAccountNumber(ctx, "12345")
	require.NoError(t, err)
	require.Equal(t, "60.00", domain.FormatMoney(stored.Balance))
}

func TestLedgerService_RejectedOperationsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	svc, _ := newService(t, usecase.WithRecorder(recorder))

	account, err := svc.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	account, err = svc.Deposit(ctx, account, amount("10"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		post    func(context.Context, *domain.Account, decimal.Decimal) (*domain.Account, error)
		amount  string
		wantErr error
	}{
		{name: "deposit negative", post: svc.Deposit, amount: "-5", wantErr: domain.ErrInvalidAmount},
		{name: "deposit zero", post: svc.Deposit, amount: "0", wantErr: domain.ErrInvalidAmount},
		{name: "withdraw negative", post: svc.Withdraw, amount: "-1", wantErr: domain.ErrInvalidAmount},
		{name: "withdraw overdraft", post: svc.Withdraw, amount: "10.01", wantErr: domain.ErrInsufficientFunds},
		{name: "deposit sub-cent", post: svc.Deposit, amount: "0.005", wantErr: domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := tt.post(ctx, account, amount(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, updated)

			fresh, err := svc.Balance(ctx, account)
			require.NoError(t, err)
			require.Equal(t, "10.00", domain.FormatMoney(fresh.Balance))

			history, err := svc.History(ctx, account)
			require.NoError(t, err)
			require.Len(t, history, 1)
		})
	}

	last := recorder.observed[len(recorder.observed)-1]
	require.Equal(t, usecase.OperationDeposit, last.operation)
	require.ErrorIs(t, last.err, domain.ErrInvalidAmount)
}

func TestLedgerService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	account, err := svc.OpenAccount(ctx, "Bruno", "21988887777")
	require.NoError(t, err)
	account, err = svc.Deposit(ctx, account, amount("50"))
	require.NoError(t, err)

	before := account.Balance
	account, err = svc.Deposit(ctx, account, amount("12.34"))
	require.NoError(t, err)
	account, err = svc.Withdraw(ctx, account, amount("12.34"))
	require.NoError(t, err)
	require.True(t, before.Equal(account.Balance))
}

func TestLedgerService_HistoryIsFilteredAndOrdered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	ana, err := svc.OpenAccount(ctx, "Ana", "1")
	require.NoError(t, err)
	bia, err := svc.OpenAccount(ctx, "Bia", "2")
	require.NoError(t, err)
	require.NotEqual(t, ana.AccountNumber, bia.AccountNumber)

	for _, v := range []string{"1", "2", "3"} {
		ana, err = svc.Deposit(ctx, ana, amount(v))
		require.NoError(t, err)
		bia, err = svc.Deposit(ctx, bia, amount("10"))
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, ana)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, v := range []string{"1", "2", "3"} {
		require.Equal(t, ana.AccountNumber, history[i].AccountNumber)
		require.True(t, history[i].Amount.Equal(amount(v)))
	}

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "Ana", accounts[0].Name)
}

func TestLedgerService_StaleAccountUsesStoredBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	account, err := svc.OpenAccount(ctx, "Ana", "1")
	require.NoError(t, err)
	stale := account.Clone()

	_, err = svc.Deposit(ctx, account, amount("30"))
	require.NoError(t, err)

	// 手上的副本餘額為 0，但儲存層為 30
	updated, err := svc.Withdraw(ctx, stale, amount("20"))
	require.NoError(t, err)
	require.Equal(t, "10.00", domain.FormatMoney(updated.Balance))
}

func TestLedgerService_AuthenticateAndUnknownAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	account, err := svc.OpenAccount(ctx, "Ana", "1")
	require.NoError(t, err)

	found, err := svc.Authenticate(ctx, " "+account.AccountNumber+" ")
	require.NoError(t, err)
	require.Equal(t, account.AccountNumber, found.AccountNumber)

	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = svc.Authenticate(ctx, "99999")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Deposit(ctx, &domain.Account{AccountNumber: "99999"}, amount("1"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.OpenAccount(ctx, "", "1")
	require.ErrorIs(t, err, domain.ErrValidation)
}

// failingRepository 讓 Append 失敗，檢查餘額不會單獨被寫入
type failingRepository struct {
	usecase.Repository
}

func (r failingRepository) Atomic(ctx context.Context, fn func(usecase.AccountStore, usecase.TransactionLog) error) error {
	return r.Repository.Atomic(ctx, func(accounts usecase.AccountStore, log usecase.TransactionLog) error {
		return fn(accounts, failingLog{log})
	})
}

type failingLog struct {
	usecase.TransactionLog
}

func (failingLog) Append(context.Context, *domain.Transaction) error {
	return domain.NewPersistenceError("append transaction", errors.New("disk full"))
}

func TestLedgerService_PersistenceFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMutexLedger(nil, sequence("12345"))
	account, err := repo.Accounts().Create(ctx, "Ana", "1")
	require.NoError(t, err)

	svc := usecase.NewLedgerService(failingRepository{repo}, usecase.WithIDGenerator(uuid.New))
	_, err = svc.Deposit(ctx, account, amount("10"))
	require.ErrorIs(t, err, domain.ErrPersistence)

	stored, err := repo.Accounts().FindByAccountNumber(ctx, account.AccountNumber)
	require.NoError(t, err)
	require.True(t, stored.Balance.IsZero())
}

func TestLedgerService_RandomSequenceKeepsBalanceNonNegative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	account, err := svc.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(2024, 3))
	expected := decimal.Zero
	for i := 0; i < 500; i++ {
		value := decimal.New(rng.Int64N(20000)+1, -2)
		if rng.IntN(2) == 0 {
			account, err = svc.Deposit(ctx, account, value)
			require.NoError(t, err)
			expected = expected.Add(value)
		} else {
			updated, err := svc.Withdraw(ctx, account, value)
			if value.GreaterThan(expected) {
				require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			} else {
				require.NoError(t, err)
				account = updated
				expected = expected.Sub(value)
			}
		}
		require.False(t, account.Balance.IsNegative())
		require.True(t, expected.Equal(account.Balance), "step %d", i)
	}

	history, err := svc.History(ctx, account)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	previous := decimal.Zero
	for _, tran := range history {
		require.True(t, tran.BalanceBefore.Equal(previous))
		switch tran.Type {
		case domain.TransactionTypeDeposit:
			require.True(t, tran.BalanceBefore.Add(tran.Amount).Equal(tran.BalanceAfter))
		case domain.TransactionTypeWithdraw:
			require.True(t, tran.BalanceBefore.Sub(tran.Amount).Equal(tran.BalanceAfter))
		}
		require.False(t, tran.BalanceAfter.IsNegative())
		previous = tran.BalanceAfter
	}
	require.True(t, previous.Equal(account.Balance))
}
