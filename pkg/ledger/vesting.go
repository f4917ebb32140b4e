package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// VestingService distributes a fixed daily reward pool among the accounts
// recorded as eligible for the day.
type VestingService struct {
	serviceCore
}

// NewVestingService wires a VestingService.
func NewVestingService(store Store, now func() int64, options ...ServiceOption) (*VestingService, error) {
	core, err := newServiceCore(store, now, options)
	if err != nil {
		return nil, err
	}
	return &VestingService{serviceCore: core}, nil
}

// Provision stores the vesting configuration unless one already exists.
// A zero daily pool falls back to the default; a zero genesis starts day 1 now.
func (service *VestingService) Provision(ctx context.Context, config VestingConfig) error {
	if err := requireAddress(config.Owner, "owner"); err != nil {
		return err
	}
	if err := requireAddress(config.Custody, "custody"); err != nil {
		return err
	}
	if err := requireAddress(config.RewardToken, "reward token"); err != nil {
		return err
	}
	if config.DailyPool.IsZero() {
		config.DailyPool = mustParseAmount(DefaultDailyPoolDecimal)
	}
	if config.GenesisUnixUTC == 0 {
		config.GenesisUnixUTC = service.nowFn()
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, err := transactionStore.GetVestingConfig(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return err
		}
		if err := requireUnsharedCustody(ctx, transactionStore, ledgerVesting, config.Custody); err != nil {
			return err
		}
		return transactionStore.SaveVestingConfig(ctx, config)
	})
}

// Config returns the vesting configuration.
func (service *VestingService) Config(ctx context.Context) (VestingConfig, error) {
	return service.store.GetVestingConfig(ctx)
}

// CurrentDay returns the day index of the service clock.
func (service *VestingService) CurrentDay(ctx context.Context) (uint64, error) {
	config, err := service.store.GetVestingConfig(ctx)
	if err != nil {
		return 0, err
	}
	return DayIndex(config.GenesisUnixUTC, service.nowFn()), nil
}

// SetRecorder authorizes recorder to write eligibility snapshots.
func (service *VestingService) SetRecorder(ctx context.Context, caller common.Address, recorder common.Address) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		config, err := transactionStore.GetVestingConfig(ctx)
		if err != nil {
			return err
		}
		if err := requireOwner(config.Owner, caller); err != nil {
			return err
		}
		config.Recorder = recorder
		return transactionStore.SaveVestingConfig(ctx, config)
	})
}

// RecordEligibility sets the eligibility of account for day.
func (service *VestingService) RecordEligibility(ctx context.Context, caller common.Address, day uint64, account common.Address, eligible bool) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(account, "account"); err != nil {
			return err
		}
		if _, err := openEligibilityDay(ctx, transactionStore, caller, day); err != nil {
			return err
		}
		return transactionStore.SaveEligibility(ctx, day, account, eligible)
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationRecordEligibility,
		Caller:       caller,
		Counterparty: account,
		Day:          day,
		Error:        operationError,
	})
	return operationError
}

// RecordTotalEligible sets the number of eligible accounts for day.
func (service *VestingService) RecordTotalEligible(ctx context.Context, caller common.Address, day uint64, count uint64) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := openEligibilityDay(ctx, transactionStore, caller, day)
		if err != nil {
			return err
		}
		record.TotalEligible = count
		return transactionStore.SaveEligibilityDay(ctx, record)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRecordTotalEligible,
		Caller:    caller,
		Day:       day,
		Amount:    NewAmountFromUint64(count),
		Error:     operationError,
	})
	return operationError
}

// RecordEligibilitySnapshot replaces the eligible set of day and its count in one step.
func (service *VestingService) RecordEligibilitySnapshot(ctx context.Context, caller common.Address, day uint64, accounts []common.Address) error {
	var recorded uint64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		recorded = 0
		record, err := openEligibilityDay(ctx, transactionStore, caller, day)
		if err != nil {
			return err
		}
		if err := transactionStore.ClearEligibility(ctx, day); err != nil {
			return err
		}
		seen := make(map[common.Address]struct{}, len(accounts))
		for _, account := range accounts {
			if err := requireAddress(account, "account"); err != nil {
				return err
			}
			if _, duplicate := seen[account]; duplicate {
				continue
			}
			seen[account] = struct{}{}
			if err := transactionStore.SaveEligibility(ctx, day, account, true); err != nil {
				return err
			}
		}
		recorded = uint64(len(seen))
		record.TotalEligible = recorded
		return transactionStore.SaveEligibilityDay(ctx, record)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRecordSnapshot,
		Caller:    caller,
		Day:       day,
		Amount:    NewAmountFromUint64(recorded),
		Error:     operationError,
	})
	return operationError
}

// openEligibilityDay authorizes an eligibility writer and rejects frozen days.
func openEligibilityDay(ctx context.Context, store Store, caller common.Address, day uint64) (EligibilityDay, error) {
	config, err := store.GetVestingConfig(ctx)
	if err != nil {
		return EligibilityDay{}, err
	}
	if caller == (common.Address{}) || (caller != config.Owner && caller != config.Recorder) {
		return EligibilityDay{}, fmt.Errorf("%w: %s cannot record eligibility", ErrUnauthorized, caller.Hex())
	}
	record, err := store.GetEligibilityDay(ctx, day)
	if err != nil {
		return EligibilityDay{}, err
	}
	record.Day = day
	if record.Frozen {
		return EligibilityDay{}, fmt.Errorf("%w: day %d", ErrEligibilityFrozen, day)
	}
	return record, nil
}

// DailyReward returns what account could claim today, or zero.
func (service *VestingService) DailyReward(ctx context.Context, account common.Address) (Amount, error) {
	config, err := service.store.GetVestingConfig(ctx)
	if err != nil {
		return Amount{}, err
	}
	day := DayIndex(config.GenesisUnixUTC, service.nowFn())
	reward, _, err := dailyRewardFor(ctx, service.store, config, day, account)
	return reward, err
}

// ClaimTokens pays today's reward share to caller.
func (service *VestingService) ClaimTokens(ctx context.Context, caller common.Address) (Amount, error) {
	var (
		reward Amount
		day    uint64
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		config, err := transactionStore.GetVestingConfig(ctx)
		if err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		day = DayIndex(config.GenesisUnixUTC, nowUnixUTC)
		var record EligibilityDay
		reward, record, err = dailyRewardFor(ctx, transactionStore, config, day, caller)
		if err != nil {
			return err
		}
		remaining, err := transactionStore.Tokens().BalanceOf(ctx, config.RewardToken, config.Custody)
		if err != nil {
			return err
		}
		if remaining.LessThan(reward) {
			return fmt.Errorf("%w: pool holds %s, reward is %s", ErrNoMoreRewardsAvailable, remaining, reward)
		}
		if reward.IsZero() {
			return ErrNothingToClaim
		}
		if err := transactionStore.SaveDailyClaim(ctx, DailyClaim{
			Day:            day,
			Account:        caller,
			Amount:         reward,
			ClaimedUnixUTC: nowUnixUTC,
		}); err != nil {
			return err
		}
		distributed, err := record.Distributed.Add(reward)
		if err != nil {
			return err
		}
		record.Frozen = true
		record.Distributed = distributed
		if err := transactionStore.SaveEligibilityDay(ctx, record); err != nil {
			return err
		}
		lifetime, err := transactionStore.GetLifetimeClaimed(ctx, caller)
		if err != nil {
			return err
		}
		lifetime, err = lifetime.Add(reward)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveLifetimeClaimed(ctx, caller, lifetime); err != nil {
			return err
		}
		return transactionStore.Tokens().Transfer(ctx, TokenTransfer{
			Token:   config.RewardToken,
			From:    config.Custody,
			To:      caller,
			Amount:  reward,
			Memo:    memoDailyReward,
			UnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationClaimTokens,
		Caller:    caller,
		Amount:    reward,
		Day:       day,
		Error:     operationError,
	})
	if operationError != nil {
		return Amount{}, operationError
	}
	return reward, nil
}

// dailyRewardFor returns the share of account on day and the day's record.
func dailyRewardFor(ctx context.Context, store Store, config VestingConfig, day uint64, account common.Address) (Amount, EligibilityDay, error) {
	record, err := store.GetEligibilityDay(ctx, day)
	if err != nil {
		return Amount{}, EligibilityDay{}, err
	}
	record.Day = day
	eligible, err := store.GetEligibility(ctx, day, account)
	if err != nil {
		return Amount{}, EligibilityDay{}, err
	}
	if !eligible || record.TotalEligible == 0 {
		return ZeroAmount(), record, nil
	}
	_, claimed, err := store.GetDailyClaim(ctx, day, account)
	if err != nil {
		return Amount{}, EligibilityDay{}, err
	}
	if claimed {
		return ZeroAmount(), record, nil
	}
	share, err := config.DailyPool.Div(NewAmountFromUint64(record.TotalEligible))
	if err != nil {
		return Amount{}, EligibilityDay{}, err
	}
	return share, record, nil
}

// Eligibility reports whether account is eligible on day.
func (service *VestingService) Eligibility(ctx context.Context, day uint64, account common.Address) (bool, error) {
	return service.store.GetEligibility(ctx, day, account)
}

// EligibilityDay returns the aggregate snapshot of day.
func (service *VestingService) EligibilityDay(ctx context.Context, day uint64) (EligibilityDay, error) {
	record, err := service.store.GetEligibilityDay(ctx, day)
	if err != nil {
		return EligibilityDay{}, err
	}
	record.Day = day
	return record, nil
}

// LifetimeClaimed returns the total reward claimed by account.
func (service *VestingService) LifetimeClaimed(ctx context.Context, account common.Address) (Amount, error) {
	return service.store.GetLifetimeClaimed(ctx, account)
}

// RemainingPool returns the reward tokens still held in custody.
func (service *VestingService) RemainingPool(ctx context.Context) (Amount, error) {
	config, err := service.store.GetVestingConfig(ctx)
	if err != nil {
		return Amount{}, err
	}
	return service.store.Tokens().BalanceOf(ctx, config.RewardToken, config.Custody)
}
