package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	testCaller = common.HexToAddress("0x0000000000000000000000000000000000000011")
	testToken  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

func TestZapOperationLoggerWritesFields(test *testing.T) {
	test.Parallel()
	core, observed := observer.New(zapcore.InfoLevel)
	operationLogger := NewZapOperationLogger(zap.New(core))

	operationLogger.LogOperation(context.Background(), ledger.OperationLog{
		Operation: "claim",
		Caller:    testCaller,
		Token:     testToken,
		Amount:    ledger.NewAmountFromUint64(750),
		Status:    "ok",
	})
	operationLogger.LogOperation(context.Background(), ledger.OperationLog{
		Operation: "stake",
		Caller:    testCaller,
		Status:    "error",
		Error:     ledger.ErrInvalidAmount,
	})

	entries := observed.AllUntimed()
	if len(entries) != 2 {
		test.Fatalf("expected 2 entries, got %d", len(entries))
	}
	success := entries[0].ContextMap()
	if success["operation"] != "claim" || success["token"] != testToken.Hex() || success["amount"] != "750" {
		test.Fatalf("unexpected success fields: %v", success)
	}
	if _, hasDay := success["day"]; hasDay {
		test.Fatalf("zero day must be omitted: %v", success)
	}
	if entries[1].Level != zapcore.WarnLevel {
		test.Fatalf("expected warn level for failure, got %s", entries[1].Level)
	}
	if entries[1].ContextMap()["error"] != ledger.ErrInvalidAmount.Error() {
		test.Fatalf("unexpected failure fields: %v", entries[1].ContextMap())
	}
}

func TestOperationMetricsCountsAndVolume(test *testing.T) {
	test.Parallel()
	registry := prometheus.NewRegistry()
	metrics, err := NewOperationMetrics(registry)
	if err != nil {
		test.Fatalf("metrics init failed: %v", err)
	}
	ctx := context.Background()
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "deposit_fees", Token: testToken, Amount: ledger.NewAmountFromUint64(12), Status: "ok"})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "deposit_fees", Token: testToken, Amount: ledger.NewAmountFromUint64(8), Status: "ok"})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "deposit_fees", Token: testToken, Amount: ledger.NewAmountFromUint64(99), Status: "error", Error: errors.New("boom")})

	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("deposit_fees", "ok")); got != 2 {
		test.Fatalf("expected 2 successful operations, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("deposit_fees", "error")); got != 1 {
		test.Fatalf("expected 1 failed operation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.volume.WithLabelValues("deposit_fees", testToken.Hex())); got != 20 {
		test.Fatalf("expected volume 20, got %v", got)
	}

	if _, err := NewOperationMetrics(registry); err == nil {
		test.Fatalf("expected duplicate registration to fail")
	}
}

type countingLogger struct {
	count int
}

func (logger *countingLogger) LogOperation(context.Context, ledger.OperationLog) {
	logger.count++
}

func TestOperationLoggersFanOut(test *testing.T) {
	test.Parallel()
	first := &countingLogger{}
	second := &countingLogger{}
	loggers := OperationLoggers{first, nil, second}
	loggers.LogOperation(context.Background(), ledger.OperationLog{Operation: "stake"})
	if first.count != 1 || second.count != 1 {
		test.Fatalf("expected every logger to receive the entry, got %d and %d", first.count, second.count)
	}
}
