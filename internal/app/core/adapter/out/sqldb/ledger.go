package sqldb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/database"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	AccountNumber string          `gorm:"column:account_number;size:16;uniqueIndex;not null"`
	Name          string          `gorm:"size:255;not null"`
	Contact       string          `gorm:"size:255;not null"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt     int64           `gorm:"autoCreateTime:milli"` // 自動寫入時間
	UpdatedAt     int64           `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		AccountNumber: a.AccountNumber,
		Name:          a.Name,
		Contact:       a.Contact,
		Balance:       a.Balance,
	}
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	RefID         *string         `gorm:"column:ref_id;size:36;uniqueIndex"` // 對應 domain.TransactionID
	AccountNumber string          `gorm:"column:account_number;size:16;index;not null"`
	Type          uint8           `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() (*domain.Transaction, error) {
	id := uuid.Nil
	if t.RefID != nil {
		var err error
		if id, err = uuid.Parse(*t.RefID); err != nil {
			return nil, errors.Wrapf(err, "parse ref_id %q", *t.RefID)
		}
	}
	return &domain.Transaction{
		TransactionID: id,
		AccountNumber: t.AccountNumber,
		Type:          domain.TransactionType(t.Type),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}, nil
}

// SQLLedger 以 GORM (MySQL / SQLite) 儲存帳戶與交易紀錄
type SQLLedger struct {
	client    *database.Client
	generator domain.AccountNumberGenerator
}

// NewSQLLedger 建立 SQLLedger 並自動建立資料表
func NewSQLLedger(client *database.Client, generator domain.AccountNumberGenerator) (*SQLLedger, error) {
	if generator == nil {
		generator = domain.RandomAccountNumbers
	}
	if err := client.DB().AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return nil, domain.NewPersistenceError("migrate", errors.Wrap(err, "auto migrate"))
	}
	return &SQLLedger{
		client:    client,
		generator: generator,
	}, nil
}

// Accounts implements usecase.Repository.
func (ledger *SQLLedger) Accounts() usecase.AccountStore {
	return &accountStore{ledger: ledger, db: ledger.client.DB()}
}

// Transactions implements usecase.Repository.
func (ledger *SQLLedger) Transactions() usecase.TransactionLog {
	return &transactionLog{db: ledger.client.DB()}
}

// Atomic 以資料庫 Transaction 執行 fn
func (ledger *SQLLedger) Atomic(ctx context.Context, fn func(accounts usecase.AccountStore, log usecase.TransactionLog) error) error {
	var fnErr error
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(
			&accountStore{ledger: ledger, db: tx, inTx: true},
			&transactionLog{db: tx},
		)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return domain.NewPersistenceError("commit", errors.Wrap(err, "commit transaction"))
	}
	return nil
}

// Close 關閉資料庫連線
func (ledger *SQLLedger) Close() error {
	return ledger.client.Close()
}

type accountStore struct {
	ledger *SQLLedger
	db     *gorm.DB
	// inTx 為 true 時讀取帳戶加上悲觀鎖
	inTx bool
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
	db := s.db.WithContext(ctx)
	number, err := domain.NextFreeAccountNumber(s.ledger.generator, func(candidate string) (bool, error) {
		var count int64
		if err := db.Model(&sqlAccount{}).Where("account_number = ?", candidate).Count(&count).Error; err != nil {
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
	row := sqlAccount{
		AccountNumber: account.AccountNumber,
		Name:          account.Name,
		Contact:       account.Contact,
		Balance:       account.Balance,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, domain.NewPersistenceError("create account", errors.Wrap(err, "insert account"))
	}
	return account, nil
}

func (s *accountStore) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	db := s.db.WithContext(ctx)
	if s.inTx {
		// 取得鎖定帳號 悲觀鎖 (SQLite 會忽略)
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []sqlAccount
	result := db.Where("account_number = ?", accountNumber).Order("id").Limit(1).Find(&rows)
	if result.Error != nil {
		return nil, domain.NewPersistenceError("find account", errors.Wrap(result.Error, "select account"))
	}
	if len(rows) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return rows[0].toDomain(), nil
}

func (s *accountStore) UpdateBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&sqlAccount{}).Where("account_number = ?", accountNumber).Update("balance", balance)
	if result.Error != nil {
		return domain.NewPersistenceError("update balance", errors.Wrap(result.Error, "update account"))
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// MySQL 在值未改變時 RowsAffected 也是 0，再確認一次帳戶是否存在
	var count int64
	if err := db.Model(&sqlAccount{}).Where("account_number = ?", accountNumber).Count(&count).Error; err != nil {
		return domain.NewPersistenceError("update balance", errors.Wrap(err, "check account"))
	}
	if count == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *accountStore) List(ctx context.Context) ([]*domain.Account, error) {
	var rows []sqlAccount
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, domain.NewPersistenceError("list accounts", errors.Wrap(err, "select accounts"))
	}
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

type transactionLog struct {
	db *gorm.DB
}

func (l *transactionLog) Append(ctx context.Context, tran *domain.Transaction) error {
	if tran == nil {
		return domain.ErrValidation
	}
	if err := tran.Validate(); err != nil {
		return err
	}
	db := l.db.WithContext(ctx)

	var refID *string
	if tran.TransactionID != uuid.Nil {
		id := tran.TransactionID.String()
		refID = &id
		// 先檢查是否有這筆交易記錄
		var count int64
		if err := db.Model(&sqlTransaction{}).Where("ref_id = ?", id).Count(&count).Error; err != nil {
			return domain.NewPersistenceError("append transaction", errors.Wrap(err, "check ref_id"))
		}
		if count > 0 {
			return nil
		}
	}

	row := sqlTransaction{
		RefID:         refID,
		AccountNumber: tran.AccountNumber,
		Type:          uint8(tran.Type),
		Amount:        tran.Amount,
		BalanceBefore: tran.BalanceBefore,
		BalanceAfter:  tran.BalanceAfter,
		CreatedAt:     tran.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return domain.NewPersistenceError("append transaction", errors.Wrap(err, "insert transaction"))
	}
	return nil
}

func (l *transactionLog) ListByAccount(ctx context.Context, accountNumber string) ([]*domain.Transaction, error) {
	var rows []sqlTransaction
	if err := l.db.WithContext(ctx).Where("account_number = ?", accountNumber).Order("id").Find(&rows).Error; err != nil {
		return nil, domain.NewPersistenceError("list transactions", errors.Wrap(err, "select transactions"))
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, domain.NewPersistenceError("list transactions", err)
		}
		out = append(out, tran)
	}
	return out, nil
}

var _ usecase.Repository = (*SQLLedger)(nil)
