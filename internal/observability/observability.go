package observability

import (
	"context"
	"fmt"
	"math/big"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "clubledger"
	labelOperation   = "operation"
	labelStatus      = "status"
	labelToken       = "token"
	noTokenLabel     = "none"
)

// ZapOperationLogger writes ledger operations as structured zap entries.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps logger; a nil logger discards entries.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger.Named("ledger")}
}

func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("caller", entry.Caller.Hex()),
	}
	if entry.Counterparty != (common.Address{}) {
		fields = append(fields, zap.String("counterparty", entry.Counterparty.Hex()))
	}
	if entry.Token != (common.Address{}) {
		fields = append(fields, zap.String("token", entry.Token.Hex()))
	}
	if !entry.Amount.IsZero() {
		fields = append(fields, zap.Stringer("amount", entry.Amount))
	}
	if entry.Day != 0 {
		fields = append(fields, zap.Uint64("day", entry.Day))
	}
	if entry.CallID != 0 {
		fields = append(fields, zap.Uint64("call_id", entry.CallID))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

// OperationMetrics counts ledger operations and the token volume they move.
type OperationMetrics struct {
	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
}

// NewOperationMetrics registers the operation collectors with registerer.
func NewOperationMetrics(registerer prometheus.Registerer) (*OperationMetrics, error) {
	metrics := &OperationMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Count of ledger operations by operation and status.",
		}, []string{labelOperation, labelStatus}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operation_volume_total",
			Help:      "Token amount (smallest unit) moved by successful ledger operations.",
		}, []string{labelOperation, labelToken}),
	}
	for _, collector := range []prometheus.Collector{metrics.operations, metrics.volume} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("register ledger metrics: %w", err)
		}
	}
	return metrics, nil
}

func (metrics *OperationMetrics) LogOperation(_ context.Context, entry ledger.OperationLog) {
	if metrics == nil {
		return
	}
	metrics.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Error != nil || entry.Amount.IsZero() {
		return
	}
	token := noTokenLabel
	if entry.Token != (common.Address{}) {
		token = entry.Token.Hex()
	}
	volume, _ := new(big.Float).SetInt(entry.Amount.Uint256().ToBig()).Float64()
	metrics.volume.WithLabelValues(entry.Operation, token).Add(volume)
}

// OperationLoggers fans every entry out to each logger in order.
type OperationLoggers []ledger.OperationLogger

func (loggers OperationLoggers) LogOperation(ctx context.Context, entry ledger.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
