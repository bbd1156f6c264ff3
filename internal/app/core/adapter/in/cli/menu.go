package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

// DateTimeLayout 畫面上的日期時間格式
const DateTimeLayout = "02/01/2006 15:04:05"

const (
	panelWidth   = 50
	historyWidth = 70
)

// Ledger 選單需要的帳務操作 (*usecase.LedgerService)
type Ledger interface {
	OpenAccount(ctx context.Context, name, contact string) (*domain.Account, error)
	Authenticate(ctx context.Context, accountNumber string) (*domain.Account, error)
	Balance(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Deposit(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.Account, error)
	History(ctx context.Context, account *domain.Account) ([]*domain.Transaction, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
}

var _ Ledger = (*usecase.LedgerService)(nil)

// Menu 互動式選單
type Menu struct {
	ledger Ledger
	term   *Terminal
	now    func() time.Time
}

// NewMenu 建立 Menu，now 為 nil 時使用 time.Now
func NewMenu(ledger Ledger, term *Terminal, now func() time.Time) *Menu {
	if now == nil {
		now = time.Now
	}
	return &Menu{
		ledger: ledger,
		term:   term,
		now:    now,
	}
}

// Run 執行主選單直到使用者選擇離開、輸入結束或 ctx 取消
func (m *Menu) Run(ctx context.Context) error {
	err := m.mainLoop(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, context.Canceled):
		m.term.Println("\n" + msgCancelled)
		return nil
	default:
		return err
	}
}

func (m *Menu) mainLoop(ctx context.Context) error {
	for {
		m.term.Clear()
		m.term.Println(`
        === BEM-VINDO AO BANCO XPTO ===

              [1] Entrar na Conta
              [2] Abrir Conta
              [0] Sair
        `)
		option, err := m.term.Prompt(ctx, "             Escolha uma opção: ")
		if err != nil {
			return err
		}

		switch option {
		case "1":
			account, err := m.login(ctx)
			if err != nil {
				return err
			}
			if account != nil {
				if err := m.accountLoop(ctx, account); err != nil {
					return err
				}
			}
		case "2":
			account, err := m.register(ctx)
			if err != nil {
				return err
			}
			if account == nil {
				continue
			}
			answer, err := m.term.Prompt(ctx, "\nDeseja acessar sua conta agora? (S/N): ")
			if err != nil {
				return err
			}
			if strings.EqualFold(answer, "S") {
				if err := m.accountLoop(ctx, account); err != nil {
					return err
				}
			}
		case "0":
			m.term.Clear()
			m.term.Println("\n" + msgGoodbye)
			return nil
		default:
			m.term.Println("\n" + msgInvalidOption)
			m.term.Pause(ctx)
		}
	}
}

// login 回傳 nil account 表示登入失敗 (已顯示訊息)
func (m *Menu) login(ctx context.Context) (*domain.Account, error) {
	m.term.Clear()
	m.term.Println("\n=== Login ===")
	number, err := m.term.Prompt(ctx, fmt.Sprintf("Digite o número da conta com %d dígitos: ", domain.AccountNumberLength))
	if err != nil {
		return nil, err
	}

	account, err := m.ledger.Authenticate(ctx, number)
	if err != nil {
		m.term.Println("\n" + ErrorMessage("", err))
		m.term.Pause(ctx)
		return nil, nil
	}

	for _, step := range []string{"==========> 30%", "====================> 60%", "=============================> 100%"} {
		m.term.Clear()
		m.term.Println(step)
		m.term.Pause(ctx)
	}
	m.term.Printf("\nBem-vindo(a) %s!\n", account.Name)
	m.term.Pause(ctx)
	return account, nil
}

// register 輸入為空時重新詢問
func (m *Menu) register(ctx context.Context) (*domain.Account, error) {
	m.term.Clear()
	m.term.Println("\n=== Cadastro de Novo Cliente ===")

	name, err := m.promptRequired(ctx, "Digite seu nome completo: ", msgEmptyName)
	if err != nil {
		return nil, err
	}
	contact, err := m.promptRequired(ctx, "Digite seu telefone: ", msgEmptyContact)
	if err != nil {
		return nil, err
	}

	account, err := m.ledger.OpenAccount(ctx, name, contact)
	if err != nil {
		m.term.Println("\n" + ErrorMessage(usecase.OperationOpenAccount, err))
		m.term.Pause(ctx)
		return nil, nil
	}
	m.term.Printf(`
    === Dados do Novo Cliente ===
    Nome: %s
    Telefone: %s
    Número da Conta: %s
    `, account.Name, account.Contact, account.AccountNumber)
	m.term.Println("\n" + msgAccountCreated)
	return account, nil
}

func (m *Menu) promptRequired(ctx context.Context, label, emptyMsg string) (string, error) {
	for {
		value, err := m.term.Prompt(ctx, label)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
		m.term.Println(emptyMsg)
	}
}

// accountLoop 帳戶選單，回傳 nil 表示使用者選擇離開
func (m *Menu) accountLoop(ctx context.Context, account *domain.Account) error {
	for {
		m.showPanel(account, msgNoOperation)
		option, err := m.term.Prompt(ctx, "\nEscolha uma operação: ")
		if err != nil {
			return err
		}

		switch option {
		case "1":
			account, err = m.post(ctx, account, usecase.OperationDeposit, "\nDigite o valor do depósito: R$ ", m.ledger.Deposit)
		case "2":
			account, err = m.post(ctx, account, usecase.OperationWithdraw, "\nDigite o valor do saque: R$ ", m.ledger.Withdraw)
		case "3":
			err = m.history(ctx, account)
		case "4":
			account = m.balance(ctx, account)
		case "0":
			m.showPanel(account, msgLeaving)
			m.term.Pause(ctx)
			return nil
		default:
			m.showPanel(account, msgInvalidOption)
			m.term.Pause(ctx)
		}
		if err != nil {
			return err
		}
	}
}

type postFunc func(ctx context.Context, account *domain.Account, amount decimal.Decimal) (*domain.Account, error)

// post 處理存款或提款，業務錯誤顯示在面板上後回到選單
// 只有輸入結束或 ctx 取消會回傳錯誤
func (m *Menu) post(ctx context.Context, account *domain.Account, operation, label string, fn postFunc) (*domain.Account, error) {
	raw, err := m.term.Prompt(ctx, label)
	if err != nil {
		return account, err
	}

	amount, err := domain.ParseAmount(raw)
	if err == nil {
		var updated *domain.Account
		if updated, err = fn(ctx, account, amount); err == nil {
			m.showPanel(updated, fmt.Sprintf("%s de R$ %s %s", capitalize(operationLabel(operation)), domain.FormatMoney(amount), msgOperationSucceeded))
			m.term.Pause(ctx)
			return updated, nil
		}
	}
	m.showPanel(account, ErrorMessage(operation, err))
	m.term.Pause(ctx)
	return account, nil
}

func (m *Menu) balance(ctx context.Context, account *domain.Account) *domain.Account {
	fresh, err := m.ledger.Balance(ctx, account)
	if err != nil {
		m.showPanel(account, ErrorMessage("", err))
		m.term.Pause(ctx)
		return account
	}
	m.showPanel(fresh, msgBalanceChecked)
	m.term.Pause(ctx)
	return fresh
}

func (m *Menu) history(ctx context.Context, account *domain.Account) error {
	history, err := m.ledger.History(ctx, account)
	if err != nil {
		m.showPanel(account, ErrorMessage("", err))
		m.term.Pause(ctx)
		return nil
	}
	if len(history) == 0 {
		m.showPanel(account, msgNoHistory)
		m.term.Pause(ctx)
		return nil
	}

	m.term.Clear()
	WriteHistory(m.term.out, account, inLocation(history, m.now().Location()))
	_, err = m.term.Prompt(ctx, msgPressEnter)
	return err
}

func (m *Menu) showPanel(account *domain.Account, lastOperation string) {
	m.term.Clear()
	WritePanel(m.term.out, account, lastOperation, m.now())
}

// WritePanel 輸出帳戶面板
func WritePanel(w io.Writer, account *domain.Account, lastOperation string, now time.Time) {
	line := strings.Repeat("=", panelWidth)
	sep := strings.Repeat("-", panelWidth)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, center("BANCO XPTO", panelWidth))
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Data/Hora: %s\n", now.Format(DateTimeLayout))
	fmt.Fprintf(w, "Cliente: %s\n", account.Name)
	fmt.Fprintf(w, "Conta: %s\n", account.AccountNumber)
	fmt.Fprintf(w, "Telefone: %s\n", account.Contact)
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "Saldo Atual: R$ %s\n", domain.FormatMoney(account.Balance))
	fmt.Fprintf(w, "Última Operação: %s\n", lastOperation)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, `
    MENU DE OPERAÇÕES:
    [1] Depósito
    [2] Saque
    [3] Histórico de Movimentações
    [4] Consultar Saldo
    [0] Sair
    `)
	fmt.Fprintln(w, line)
}

// WriteHistory 輸出交易紀錄表格
func WriteHistory(w io.Writer, account *domain.Account, history []*domain.Transaction) {
	line := strings.Repeat("=", historyWidth)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, center("HISTÓRICO DE MOVIMENTAÇÕES", historyWidth))
	fmt.Fprintf(w, "Cliente: %s - Conta: %s\n", account.Name, account.AccountNumber)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%s | %s | %s | %s | %s\n",
		padRight("Data/Hora", 19), padRight("Tipo", 8), padLeft("Valor", 12), padLeft("Saldo Anterior", 14), padLeft("Saldo Atual", 12))
	fmt.Fprintln(w, strings.Repeat("-", historyWidth))
	for _, tran := range history {
		fmt.Fprintf(w, "%s | %s | %s | %s | %s\n",
			padRight(tran.CreatedAt.Format(DateTimeLayout), 19),
			padRight(tran.Type.String(), 8),
			padLeft(domain.FormatMoney(tran.Amount), 12),
			padLeft(domain.FormatMoney(tran.BalanceBefore), 14),
			padLeft(domain.FormatMoney(tran.BalanceAfter), 12),
		)
	}
	fmt.Fprintln(w, line)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
