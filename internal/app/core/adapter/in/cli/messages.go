package cli

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/filelock"
)

// 畫面文字
const (
	msgAccountCreated     = "Conta criada com sucesso!"
	msgAccountNotFound    = "ERRO: Conta não encontrada!"
	msgInvalidNumber      = "ERRO: Digite um valor numérico válido!"
	msgInsufficientFunds  = "ERRO: Saldo insuficiente para realizar esse saque!"
	msgInvalidOption      = "ERRO: Opção inválida!"
	msgInvalidData        = "ERRO: Dados inválidos!"
	msgPersistence        = "ERRO: Falha ao gravar os dados. A operação foi cancelada."
	msgLocked             = "ERRO: Os dados já estão em uso por outro processo."
	msgNoHistory          = "Não há movimentações registradas para esta conta"
	msgBalanceChecked     = "Consulta de saldo realizada"
	msgLeaving            = "Saindo do sistema..."
	msgGoodbye            = "Obrigado por usar nosso banco!"
	msgCancelled          = "Operação cancelada pelo usuário."
	msgNoOperation        = "Nenhuma"
	msgEmptyName          = "O nome não pode estar vazio!"
	msgEmptyContact       = "O telefone não pode estar vazio!"
	msgPressEnter         = "\nPressione Enter para voltar ao menu principal..."
	msgNoAccounts         = "Nenhuma conta cadastrada."
	msgStatementExported  = "Extrato exportado para"
	msgOperationSucceeded = "realizado com sucesso!"
	msgNoFreeNumber       = "ERRO: Não há números de conta disponíveis."
)

// operationLabel 操作在畫面上的名稱
func operationLabel(operation string) string {
	switch operation {
	case usecase.OperationDeposit:
		return "depósito"
	case usecase.OperationWithdraw:
		return "saque"
	default:
		return "operação"
	}
}

// ErrorMessage 將錯誤轉為給使用者看的訊息
//
// 參數:
//
//	operation: usecase.Operation* 之一，用於組合訊息
//	err: 錯誤
//
// 回傳:
//
//	string: 葡萄牙文訊息
func ErrorMessage(operation string, err error) string {
	switch {
	case errors.Is(err, filelock.ErrLocked):
		return msgLocked
	case errors.Is(err, domain.ErrPersistence):
		return msgPersistence
	case errors.Is(err, domain.ErrInvalidFormat):
		return msgInvalidNumber
	case errors.Is(err, domain.ErrInvalidAmount):
		return "ERRO: Valor inválido para " + operationLabel(operation) + "!"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return msgInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotFound):
		return msgAccountNotFound
	case errors.Is(err, domain.ErrAccountNumberExhausted):
		return msgNoFreeNumber
	case errors.Is(err, domain.ErrValidation):
		return msgInvalidData
	default:
		return "ERRO: " + err.Error()
	}
}

// center 將文字置中於指定寬度
func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}

// padRight / padLeft 以字元數 (非位元組) 補齊寬度
func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
