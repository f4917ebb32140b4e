package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// serviceCore holds the dependencies shared by every ledger service.
type serviceCore struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

func newServiceCore(store Store, now func() int64, options []ServiceOption) (serviceCore, error) {
	if store == nil {
		return serviceCore{}, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return serviceCore{}, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	core := serviceCore{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(&core)
		}
	}
	return core, nil
}

func (core *serviceCore) logOperation(ctx context.Context, entry OperationLog) {
	if core.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	core.logger.LogOperation(ctx, entry)
}

func requireOwner(owner common.Address, caller common.Address) error {
	if caller == (common.Address{}) || caller != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func requirePositive(amount Amount, field string) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, field)
	}
	return nil
}

const (
	ledgerStaking     = "staking"
	ledgerVesting     = "vesting"
	ledgerMarketplace = "marketplace"
)

// requireUnsharedCustody rejects custody when another provisioned ledger already keeps its funds there.
func requireUnsharedCustody(ctx context.Context, store Store, ledgerName string, custody common.Address) error {
	lookups := []struct {
		name string
		load func(context.Context) (common.Address, error)
	}{
		{name: ledgerStaking, load: func(ctx context.Context) (common.Address, error) {
			config, err := store.GetStakingConfig(ctx)
			return config.Custody, err
		}},
		{name: ledgerVesting, load: func(ctx context.Context) (common.Address, error) {
			config, err := store.GetVestingConfig(ctx)
			return config.Custody, err
		}},
		{name: ledgerMarketplace, load: func(ctx context.Context) (common.Address, error) {
			config, err := store.GetMarketplaceConfig(ctx)
			return config.Custody, err
		}},
	}
	for _, lookup := range lookups {
		if lookup.name == ledgerName {
			continue
		}
		existing, err := lookup.load(ctx)
		if errors.Is(err, ErrNotConfigured) {
			continue
		}
		if err != nil {
			return err
		}
		if existing == custody {
			return fmt.Errorf("%w: %s custody %s is already the %s custody", ErrInvalidServiceConfig, ledgerName, custody.Hex(), lookup.name)
		}
	}
	return nil
}

// transferIfPositive skips zero-value transfers.
func transferIfPositive(ctx context.Context, tokens TokenLedger, transfer TokenTransfer) error {
	if transfer.Amount.IsZero() {
		return nil
	}
	return tokens.Transfer(ctx, transfer)
}
