package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/excel"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/internal/config"
)

// Session 指令執行時使用的元件
type Session struct {
	Ledger   Ledger
	Location *time.Location
	UI       config.UIConfig
}

// Opener 依設定檔路徑建立 Session，回傳的 close 在指令結束時呼叫
type Opener func(ctx context.Context, configPath string) (session *Session, close func() error, err error)

// OpenApp 以 internal/app 組裝 Session
func OpenApp(ctx context.Context, configPath string) (*Session, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Session{
		Ledger:   a.Service,
		Location: a.Location,
		UI:       cfg.UI,
	}, a.Close, nil
}

// NewRootCommand 建立 bank 指令
// 沒有子指令時進入互動式選單
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenApp
	}
	var configPath string

	// withSession 開啟 Session 執行 fn 後關閉
	withSession := func(cmd *cobra.Command, fn func(ctx context.Context, s *Session) error) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		session, closeFn, err := open(ctx, configPath)
		if err != nil {
			return commandError("", err)
		}
		err = fn(ctx, session)
		if closeErr := closeFn(); closeErr != nil && err == nil {
			err = commandError("", closeErr)
		}
		return err
	}

	root := &cobra.Command{
		Use:           "bank",
		Short:         "Sistema Bancário XPTO",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *Session) error {
				term := NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout(), s.UI.ClearScreen, s.UI.Pause)
				defer term.Close()
				return NewMenu(s.Ledger, term, clock(s.Location)).Run(ctx)
			})
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath+")")

	root.AddCommand(
		newOpenCommand(withSession),
		newBalanceCommand(withSession),
		newPostCommand(withSession, usecase.OperationDeposit),
		newPostCommand(withSession, usecase.OperationWithdraw),
		newHistoryCommand(withSession),
		newAccountsCommand(withSession),
		newExportCommand(withSession),
	)
	return root
}

type sessionRunner func(cmd *cobra.Command, fn func(ctx context.Context, s *Session) error) error

func newOpenCommand(run sessionRunner) *cobra.Command {
	var name, contact string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Abrir uma nova conta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				account, err := s.Ledger.OpenAccount(ctx, name, contact)
				if err != nil {
					return commandError(usecase.OperationOpenAccount, err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, msgAccountCreated)
				fmt.Fprintf(out, "Nome: %s\nTelefone: %s\nNúmero da Conta: %s\n", account.Name, account.Contact, account.AccountNumber)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "nome completo")
	cmd.Flags().StringVar(&contact, "contact", "", "telefone")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("contact")
	return cmd
}

func newBalanceCommand(run sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ACCOUNT",
		Short: "Consultar saldo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				account, err := s.Ledger.Authenticate(ctx, args[0])
				if err != nil {
					return commandError("", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saldo Atual: R$ %s\n", domain.FormatMoney(account.Balance))
				return nil
			})
		},
	}
}

func newPostCommand(run sessionRunner, operation string) *cobra.Command {
	short := "Depositar"
	if operation == usecase.OperationWithdraw {
		short = "Sacar"
	}
	cmd := &cobra.Command{
		Use:   operation + " ACCOUNT AMOUNT",
		Short: short,
		Long:  short + ". Flags como --config devem vir antes de ACCOUNT.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				account, err := s.Ledger.Authenticate(ctx, args[0])
				if err != nil {
					return commandError(operation, err)
				}
				amount, err := domain.ParseAmount(args[1])
				if err != nil {
					return commandError(operation, err)
				}
				fn := s.Ledger.Deposit
				if operation == usecase.OperationWithdraw {
					fn = s.Ledger.Withdraw
				}
				updated, err := fn(ctx, account, amount)
				if err != nil {
					return commandError(operation, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s de R$ %s %s\nSaldo Atual: R$ %s\n",
					capitalize(operationLabel(operation)), domain.FormatMoney(amount), msgOperationSucceeded, domain.FormatMoney(updated.Balance))
				return nil
			})
		},
	}
	// 參數之後不再解析 flag，"-5" 會當成金額交給 ParseAmount
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newHistoryCommand(run sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "history ACCOUNT",
		Short: "Histórico de movimentações",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				account, err := s.Ledger.Authenticate(ctx, args[0])
				if err != nil {
					return commandError("", err)
				}
				history, err := s.Ledger.History(ctx, account)
				if err != nil {
					return commandError("", err)
				}
				if len(history) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), msgNoHistory)
					return nil
				}
				WriteHistory(cmd.OutOrStdout(), account, inLocation(history, s.Location))
				return nil
			})
		},
	}
}

func newAccountsCommand(run sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Listar contas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				accounts, err := s.Ledger.ListAccounts(ctx)
				if err != nil {
					return commandError("", err)
				}
				out := cmd.OutOrStdout()
				if len(accounts) == 0 {
					fmt.Fprintln(out, msgNoAccounts)
					return nil
				}
				fmt.Fprintf(out, "%s | %s | %s | %s\n", padRight("Conta", 7), padRight("Nome", 30), padRight("Telefone", 16), padLeft("Saldo", 12))
				for _, a := range accounts {
					fmt.Fprintf(out, "%s | %s | %s | %s\n",
						padRight(a.AccountNumber, 7), padRight(a.Name, 30), padRight(a.Contact, 16), padLeft(domain.FormatMoney(a.Balance), 12))
				}
				return nil
			})
		},
	}
}

func newExportCommand(run sessionRunner) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export ACCOUNT",
		Short: "Exportar extrato para xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *Session) error {
				account, err := s.Ledger.Authenticate(ctx, args[0])
				if err != nil {
					return commandError("", err)
				}
				history, err := s.Ledger.History(ctx, account)
				if err != nil {
					return commandError("", err)
				}
				path := outPath
				if path == "" {
					path = fmt.Sprintf("extrato_%s.xlsx", account.AccountNumber)
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := excel.WriteStatement(f, account, history, s.Location); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msgStatementExported, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "arquivo de saída (padrão extrato_<conta>.xlsx)")
	return cmd
}

// commandError 將錯誤轉為使用者看得懂的訊息，保留原錯誤供 errors.Is 判斷
func commandError(operation string, err error) error {
	return &userError{msg: ErrorMessage(operation, err), err: err}
}

type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

// UserMessage 取得要顯示給使用者的訊息
func UserMessage(err error) string {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.msg
	}
	return "ERRO: " + err.Error()
}

func clock(loc *time.Location) func() time.Time {
	if loc == nil {
		return time.Now
	}
	return func() time.Time { return time.Now().In(loc) }
}

func inLocation(history []*domain.Transaction, loc *time.Location) []*domain.Transaction {
	if loc == nil {
		return history
	}
	out := make([]*domain.Transaction, len(history))
	for i, tran := range history {
		cp := *tran
		cp.CreatedAt = cp.CreatedAt.In(loc)
		out[i] = &cp
	}
	return out
}
