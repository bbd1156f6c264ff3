package jsonfile

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
)

// TimestampLayout 交易時間的檔案格式 (DD/MM/YYYY HH:MM:SS)
const TimestampLayout = "02/01/2006 15:04:05"

// jsonNumber 以 JSON 數字 (非字串) 輸出 decimal
type jsonNumber struct {
	decimal.Decimal
}

func (n jsonNumber) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *jsonNumber) UnmarshalJSON(b []byte) error {
	return n.Decimal.UnmarshalJSON(b)
}

// accountRecord 對應 clientes.json 的一筆資料
type accountRecord struct {
	Name          string     `json:"nome"`
	Contact       string     `json:"telefone"`
	AccountNumber string     `json:"numero_conta"`
	Balance       jsonNumber `json:"saldo"`
}

// transactionRecord 對應 movimentacoes.json 的一筆資料
// id 為新增欄位，舊檔案沒有時為空
type transactionRecord struct {
	ID            string     `json:"id,omitempty"`
	Timestamp     string     `json:"data_hora"`
	AccountNumber string     `json:"numero_conta"`
	Kind          string     `json:"tipo"`
	Amount        jsonNumber `json:"valor"`
	BalanceBefore jsonNumber `json:"saldo_anterior"`
	BalanceAfter  jsonNumber `json:"saldo_atual"`
}

func toAccountRecord(a *domain.Account) accountRecord {
	return accountRecord{
		Name:          a.Name,
		Contact:       a.Contact,
		AccountNumber: a.AccountNumber,
		Balance:       jsonNumber{a.Balance},
	}
}

func (r accountRecord) toDomain() *domain.Account {
	return &domain.Account{
		AccountNumber: r.AccountNumber,
		Name:          r.Name,
		Contact:       r.Contact,
		Balance:       r.Balance.Decimal,
	}
}

func toTransactionRecord(t *domain.Transaction, loc *time.Location) transactionRecord {
	var id string
	if t.TransactionID != uuid.Nil {
		id = t.TransactionID.String()
	}
	return transactionRecord{
		ID:            id,
		Timestamp:     t.CreatedAt.In(loc).Format(TimestampLayout),
		AccountNumber: t.AccountNumber,
		Kind:          t.Type.String(),
		Amount:        jsonNumber{t.Amount},
		BalanceBefore: jsonNumber{t.BalanceBefore},
		BalanceAfter:  jsonNumber{t.BalanceAfter},
	}
}

func (r transactionRecord) toDomain(loc *time.Location) (*domain.Transaction, error) {
	tranType, err := domain.ParseTransactionType(r.Kind)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.ParseInLocation(TimestampLayout, r.Timestamp, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "parse timestamp %q", r.Timestamp)
	}
	id := uuid.Nil
	if r.ID != "" {
		if id, err = uuid.Parse(r.ID); err != nil {
			return nil, errors.Wrapf(err, "parse id %q", r.ID)
		}
	}
	return &domain.Transaction{
		TransactionID: id,
		AccountNumber: r.AccountNumber,
		Type:          tranType,
		Amount:        r.Amount.Decimal,
		BalanceBefore: r.BalanceBefore.Decimal,
		BalanceAfter:  r.BalanceAfter.Decimal,
		CreatedAt:     createdAt,
	}, nil
}

// commitEntry WAL 中的一筆寫入單元：異動後的帳戶與新增的交易紀錄
// Before 為異動前的帳戶 (新開的帳戶沒有)，Aborted 為 true 時這一行只代表 ID 那筆已撤銷
type commitEntry struct {
	ID           uuid.UUID           `json:"id"`
	Accounts     []accountRecord     `json:"accounts,omitempty"`
	Transactions []transactionRecord `json:"transactions,omitempty"`
	Before       []accountRecord     `json:"before,omitempty"`
	Aborted      bool                `json:"aborted,omitempty"`
}
