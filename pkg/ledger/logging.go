package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ServiceOption configures a service instance.
type ServiceOption func(*serviceCore)

// OperationLogger records domain-level events emitted by service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation    string
	Caller       common.Address
	Counterparty common.Address
	Token        common.Address
	Amount       Amount
	Day          uint64
	CallID       uint64
	Status       string
	Error        error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(core *serviceCore) {
		core.logger = logger
	}
}
