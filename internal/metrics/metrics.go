package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
)

// 操作結果標籤
const (
	OutcomeOK                = "ok"
	OutcomeValidation        = "validation"
	OutcomeInvalidFormat     = "invalid_format"
	OutcomeInvalidAmount     = "invalid_amount"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeNotFound          = "not_found"
	OutcomePersistence       = "persistence"
	OutcomeOther             = "other"
)

// Recorder 以 Prometheus 指標記錄帳務操作
// 使用獨立的 Registry，不註冊到全域 DefaultRegisterer
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	amounts    *prometheus.HistogramVec
}

// NewRecorder 建立 Recorder
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bank",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "outcome"}),
		amounts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bank",
			Subsystem: "ledger",
			Name:      "committed_amount",
			Help:      "Amounts of committed deposits and withdrawals.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}, []string{"operation"}),
	}
	r.registry.MustRegister(r.operations, r.amounts)
	return r
}

// ObserveOperation implements usecase.Recorder.
func (r *Recorder) ObserveOperation(operation string, err error, amount decimal.Decimal) {
	r.operations.WithLabelValues(operation, Outcome(err)).Inc()
	if err == nil && amount.IsPositive() {
		r.amounts.WithLabelValues(operation).Observe(amount.InexactFloat64())
	}
}

// Registry 回傳內部 Registry (測試用)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile 以 node-exporter textfile collector 格式寫出指標
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// Outcome 將錯誤分類為標籤值
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrPersistence):
		return OutcomePersistence
	case errors.Is(err, domain.ErrInvalidFormat):
		return OutcomeInvalidFormat
	case errors.Is(err, domain.ErrInvalidAmount):
		return OutcomeInvalidAmount
	case errors.Is(err, domain.ErrInsufficientFunds):
		return OutcomeInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	default:
		return OutcomeOther
	}
}

var _ usecase.Recorder = (*Recorder)(nil)
