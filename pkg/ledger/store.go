package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the fungible-token transfer primitive consumed by the services.
// Implementations bound to a transaction must roll transfers back with it.
type TokenLedger interface {
	BalanceOf(ctx context.Context, token common.Address, account common.Address) (Amount, error)
	Allowance(ctx context.Context, token common.Address, owner common.Address, spender common.Address) (Amount, error)
	Approve(ctx context.Context, token common.Address, owner common.Address, spender common.Address, amount Amount) error
	Transfer(ctx context.Context, transfer TokenTransfer) error
	TransferFrom(ctx context.Context, spender common.Address, transfer TokenTransfer) error
}

// Store is the persistence contract used by the services.
// Getters of keyed records return zero values for absent keys unless documented otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Tokens() TokenLedger

	// GetStakingConfig returns ErrNotConfigured before provisioning.
	GetStakingConfig(ctx context.Context) (StakingConfig, error)
	SaveStakingConfig(ctx context.Context, config StakingConfig) error
	GetStake(ctx context.Context, account common.Address) (Amount, error)
	SaveStake(ctx context.Context, account common.Address, staked Amount) error
	GetTotalStaked(ctx context.Context) (Amount, error)
	SaveTotalStaked(ctx context.Context, total Amount) error
	ListFeeTokens(ctx context.Context) ([]common.Address, error)
	GetFeeAccumulator(ctx context.Context, token common.Address) (FeeAccumulator, error)
	SaveFeeAccumulator(ctx context.Context, accumulator FeeAccumulator) error
	GetRewardDebt(ctx context.Context, account common.Address, token common.Address) (RewardDebt, error)
	SaveRewardDebt(ctx context.Context, debt RewardDebt) error

	// GetVestingConfig returns ErrNotConfigured before provisioning.
	GetVestingConfig(ctx context.Context) (VestingConfig, error)
	SaveVestingConfig(ctx context.Context, config VestingConfig) error
	GetEligibility(ctx context.Context, day uint64, account common.Address) (bool, error)
	SaveEligibility(ctx context.Context, day uint64, account common.Address, eligible bool) error
	ClearEligibility(ctx context.Context, day uint64) error
	GetEligibilityDay(ctx context.Context, day uint64) (EligibilityDay, error)
	SaveEligibilityDay(ctx context.Context, record EligibilityDay) error
	GetDailyClaim(ctx context.Context, day uint64, account common.Address) (DailyClaim, bool, error)
	SaveDailyClaim(ctx context.Context, claim DailyClaim) error
	GetLifetimeClaimed(ctx context.Context, account common.Address) (Amount, error)
	SaveLifetimeClaimed(ctx context.Context, account common.Address, total Amount) error

	// GetMarketplaceConfig returns ErrNotConfigured before provisioning.
	GetMarketplaceConfig(ctx context.Context) (MarketplaceConfig, error)
	SaveMarketplaceConfig(ctx context.Context, config MarketplaceConfig) error
	// GetProfile returns ErrProfileDoesNotExist for unknown accounts.
	GetProfile(ctx context.Context, account common.Address) (UserProfile, error)
	SaveProfile(ctx context.Context, profile UserProfile) error
	// GetClub returns ErrClubDoesNotExist for accounts without a club.
	GetClub(ctx context.Context, caller common.Address) (Club, error)
	SaveClub(ctx context.Context, club Club) error
	GetSubscription(ctx context.Context, subscriber common.Address, clubOwner common.Address) (Subscription, error)
	SaveSubscription(ctx context.Context, subscription Subscription) error
	// CreateCall assigns the next sequential id, starting at 1.
	CreateCall(ctx context.Context, call Call) (Call, error)
	// GetCall returns ErrCallDoesNotExist for unknown ids.
	GetCall(ctx context.Context, callID uint64) (Call, error)
	ListCallsByCaller(ctx context.Context, caller common.Address) ([]Call, error)
	GetCallPayment(ctx context.Context, payer common.Address, callID uint64) (CallPayment, bool, error)
	SaveCallPayment(ctx context.Context, payment CallPayment) error
}
