package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	account_number VARCHAR(16) NOT NULL UNIQUE,
	name VARCHAR(255) NOT NULL,
	contact VARCHAR(255) NOT NULL,
	balance NUMERIC(20, 2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	ref_id UUID UNIQUE,
	account_number VARCHAR(16) NOT NULL,
	type SMALLINT NOT NULL,
	amount NUMERIC(20, 2) NOT NULL,
	balance_before NUMERIC(20, 2) NOT NULL,
	balance_after NUMERIC(20, 2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_number ON transactions (account_number);
`

// Config PostgreSQL 連線設定
type Config struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	DBName   string `yaml:"dbName" env:"DB_NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// DSN 不為空時直接使用，忽略上面的欄位
	DSN string `yaml:"dsn" env:"DSN"`
}

// ConnString 產生 pgx 連線字串
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	info := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable", c.Host, port, c.User, c.DBName)
	// 沒有密碼時不能帶 password 參數
	if c.Password != "" {
		info += fmt.Sprintf(" password=%s", c.Password)
	}
	return info
}

// querier *pgxpool.Pool 與 pgx.Tx 共用的查詢介面
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGLedger 以 PostgreSQL 儲存帳戶與交易紀錄
type PGLedger struct {
	pool      *pgxpool.Pool
	sb        sq.StatementBuilderType
	generator domain.AccountNumberGenerator
}

// Open 建立連線池並建立資料表
//
// 參數:
//
//	ctx: 連線逾時控制
//	cfg: 連線設定
//	generator: 帳號產生器，nil 時使用隨機 5 位數
//
// 回傳:
//
//	*PGLedger: 實例
//	error: 連線或建立資料表失敗
func Open(ctx context.Context, cfg Config, generator domain.AccountNumberGenerator) (*PGLedger, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, domain.NewPersistenceError("open", errors.Wrap(err, "parse connection string"))
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, domain.NewPersistenceError("open", errors.Wrap(err, "create connection pool"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.NewPersistenceError("open", errors.Wrap(err, "ping database"))
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, domain.NewPersistenceError("migrate", errors.Wrap(err, "create schema"))
	}
	if generator == nil {
		generator = domain.RandomAccountNumbers
	}
	return &PGLedger{
		pool:      pool,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		generator: generator,
	}, nil
}

// Accounts implements usecase.Repository.
func (x *PGLedger) Accounts() usecase.AccountStore {
	return &accountStore{ledger: x, q: x.pool}
}

// Transactions implements usecase.Repository.
func (x *PGLedger) Transactions() usecase.TransactionLog {
	return &transactionLog{ledger: x, q: x.pool}
}

// Atomic implements usecase.Repository.
func (x *PGLedger) Atomic(ctx context.Context, fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	tx, err := x.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return domain.NewPersistenceError("begin", errors.Wrap(err, "begin transaction"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(
		&accountStore{ledger: x, q: tx, inTx: true},
		&transactionLog{ledger: x, q: tx},
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.NewPersistenceError("commit", errors.Wrap(err, "commit transaction"))
	}
	return nil
}

// Close 關閉連線池
func (x *PGLedger) Close() error {
	x.pool.Close()
	return nil
}

type accountStore struct {
	ledger *PGLedger
	q      querier
	inTx   bool
}

func (s *accountStore) Create(ctx context.Context, name, contact string) (*domain.Account, error) {
	if !s.inTx {
		var account *domain.Account
		err := s.ledger.Atomic(ctx, func(accounts usecase.AccountStore, _ usecase.TransactionLog) error {
			var err error
			account, err = accounts.Create(ctx, name, contact)
			return err
		})
		return account, err
	}

	if _, err := domain.NewAccount("", name, contact); err != nil {
		return nil, err
	}
	number, err := domain.NextFreeAccountNumber(s.ledger.generator, func(candidate string) (bool, error) {
		query, args, err := s.ledger.sb.
			Select("COUNT(*)").
			From("accounts").
			Where(sq.Eq{"account_number": candidate}).
			ToSql()
		if err != nil {
			return false, domain.NewPersistenceError("create account", err)
		}
		var count int64
		if err := s.q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
			return false, domain.NewPersistenceError("create account", errors.Wrap(err, "check account number"))
		}
		return count > 0, nil
	})
	if err != nil {
		return nil, err
	}
	account, err := domain.NewAccount(number, name, contact)
	if err != nil {
		return nil, err
	}

	query, args, err := s.ledger.sb.
		Insert("accounts").
		Columns("account_number", "name", "contact", "balance").
		Values(account.AccountNumber, account.Name, account.Contact, account.Balance).
		ToSql()
	if err != nil {
		return nil, domain.NewPersistenceError("create account", err)
	}
	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return nil, domain.NewPersistenceError("create account", errors.Wrap(err, "insert account"))
	}
	return account, nil
}

func (s *accountStore) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	statement := s.ledger.sb.
		Select("account_number", "name", "contact", "balance::text").
		From("accounts").
		Where(sq.Eq{"account_number": accountNumber})
	if s.inTx {
		statement = statement.Suffix("FOR UPDATE")
	}
	query, args, err := statement.ToSql()
	if err != nil {
		return nil, domain.NewPersistenceError("find account", err)
	}

	account, err := scanAccount(s.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, domain.NewPersistenceError("find account", err)
	}
	return account, nil
}

func (s *accountStore) UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	query, args, err := s.ledger.sb.
		Update("accounts").
		Set("balance", balance).
		Where(sq.Eq{"account_number": accountNumber}).
		ToSql()
	if err != nil {
		return domain.NewPersistenceError("update balance", err)
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return domain.NewPersistenceError("update balance", errors.Wrap(err, "update account"))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *accountStore) List(ctx context.Context) ([]*domain.Account, error) {
	query, args, err := s.ledger.sb.
		Select("account_number", "name", "contact", "balance::text").
		From("accounts").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, domain.NewPersistenceError("list accounts", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("list accounts", errors.Wrap(err, "select accounts"))
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("list accounts", err)
		}
		out = append(out, account)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list accounts", err)
	}
	return out, nil
}

type transactionLog struct {
	ledger *PGLedger
	q      querier
}

func (l *transactionLog) Append(ctx context.Context, tran *domain.Transaction) error {
	if tran == nil {
		return domain.ErrValidation
	}
	if err := tran.Validate(); err != nil {
		return err
	}

	var refID any
	if tran.TransactionID != uuid.Nil {
		refID = tran.TransactionID.String()
	}
	query, args, err := l.ledger.sb.
		Insert("transactions").
		Columns("ref_id", "account_number", "type", "amount", "balance_before", "balance_after", "created_at").
		Values(refID, tran.AccountNumber, int16(tran.Type), tran.Amount, tran.BalanceBefore, tran.BalanceAfter, tran.CreatedAt).
		// 相同 ref_id 已存在時視為成功
		Suffix("ON CONFLICT (ref_id) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.NewPersistenceError("append transaction", err)
	}
	if _, err := l.q.Exec(ctx, query, args...); err != nil {
		return domain.NewPersistenceError("append transaction", errors.Wrap(err, "insert transaction"))
	}
	return nil
}

func (l *transactionLog) ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	query, args, err := l.ledger.sb.
		Select("ref_id::text", "account_number", "type", "amount::text", "balance_before::text", "balance_after::text", "created_at").
		From("transactions").
		Where(sq.Eq{"account_number": accountNumber}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, domain.NewPersistenceError("list transactions", err)
	}
	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("list transactions", errors.Wrap(err, "select transactions"))
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			refID                 *string
			number                string
			tranType              int16
			amount, before, after string
			createdAt             time.Time
		)
		if err := rows.Scan(&refID, &number, &tranType, &amount, &before, &after, &createdAt); err != nil {
			return nil, domain.NewPersistenceError("list transactions", err)
		}
		tran := &domain.Transaction{
			AccountNumber: number,
			Type:          domain.TransactionType(tranType),
			CreatedAt:     createdAt,
		}
		if refID != nil {
			if tran.TransactionID, err = uuid.Parse(*refID); err != nil {
				return nil, domain.NewPersistenceError("list transactions", err)
			}
		}
		if tran.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, domain.NewPersistenceError("list transactions", err)
		}
		if tran.BalanceBefore, err = decimal.NewFromString(before); err != nil {
			return nil, domain.NewPersistenceError("list transactions", err)
		}
		if tran.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, domain.NewPersistenceError("list transactions", err)
		}
		out = append(out, tran)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list transactions", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		balance string
	)
	if err := row.Scan(&account.AccountNumber, &account.Name, &account.Contact, &balance); err != nil {
		return nil, err
	}
	var err error
	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, errors.Wrapf(err, "parse balance %q", balance)
	}
	return &account, nil
}

var _ usecase.Repository = (*PGLedger)(nil)
