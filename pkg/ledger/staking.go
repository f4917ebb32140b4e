package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StakingService distributes deposited protocol fees to stakers pro rata.
type StakingService struct {
	serviceCore
}

// NewStakingService wires a StakingService.
func NewStakingService(store Store, now func() int64, options ...ServiceOption) (*StakingService, error) {
	core, err := newServiceCore(store, now, options)
	if err != nil {
		return nil, err
	}
	return &StakingService{serviceCore: core}, nil
}

// Provision stores the staking configuration unless one already exists.
func (service *StakingService) Provision(ctx context.Context, config StakingConfig) error {
	if err := requireAddress(config.Owner, "owner"); err != nil {
		return err
	}
	if err := requireAddress(config.Custody, "custody"); err != nil {
		return err
	}
	if err := requireAddress(config.StakingToken, "staking token"); err != nil {
		return err
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, err := transactionStore.GetStakingConfig(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return err
		}
		if err := requireUnsharedCustody(ctx, transactionStore, ledgerStaking, config.Custody); err != nil {
			return err
		}
		return transactionStore.SaveStakingConfig(ctx, config)
	})
}

// Config returns the staking configuration.
func (service *StakingService) Config(ctx context.Context) (StakingConfig, error) {
	return service.store.GetStakingConfig(ctx)
}

// Stake locks amount of the staking token from caller into custody.
func (service *StakingService) Stake(ctx context.Context, caller common.Address, amount Amount) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		if err := requirePositive(amount, "stake amount"); err != nil {
			return err
		}
		config, err := transactionStore.GetStakingConfig(ctx)
		if err != nil {
			return err
		}
		staked, err := transactionStore.GetStake(ctx, caller)
		if err != nil {
			return err
		}
		if _, err := settleAccount(ctx, transactionStore, caller, staked); err != nil {
			return err
		}
		total, err := transactionStore.GetTotalStaked(ctx)
		if err != nil {
			return err
		}
		updatedStake, err := staked.Add(amount)
		if err != nil {
			return err
		}
		updatedTotal, err := total.Add(amount)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveStake(ctx, caller, updatedStake); err != nil {
			return err
		}
		if err := transactionStore.SaveTotalStaked(ctx, updatedTotal); err != nil {
			return err
		}
		return transactionStore.Tokens().TransferFrom(ctx, config.Custody, TokenTransfer{
			Token:   config.StakingToken,
			From:    caller,
			To:      config.Custody,
			Amount:  amount,
			Memo:    memoStake,
			UnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationStake,
		Caller:    caller,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// Unstake returns amount of the staking token from custody to caller.
func (service *StakingService) Unstake(ctx context.Context, caller common.Address, amount Amount) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		if err := requirePositive(amount, "unstake amount"); err != nil {
			return err
		}
		config, err := transactionStore.GetStakingConfig(ctx)
		if err != nil {
			return err
		}
		staked, err := transactionStore.GetStake(ctx, caller)
		if err != nil {
			return err
		}
		if staked.LessThan(amount) {
			return fmt.Errorf("%w: staked %s, requested %s", ErrInsufficientStake, staked, amount)
		}
		if _, err := settleAccount(ctx, transactionStore, caller, staked); err != nil {
			return err
		}
		total, err := transactionStore.GetTotalStaked(ctx)
		if err != nil {
			return err
		}
		updatedStake, err := staked.Sub(amount)
		if err != nil {
			return err
		}
		updatedTotal, err := total.Sub(amount)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveStake(ctx, caller, updatedStake); err != nil {
			return err
		}
		if err := transactionStore.SaveTotalStaked(ctx, updatedTotal); err != nil {
			return err
		}
		return transactionStore.Tokens().Transfer(ctx, TokenTransfer{
			Token:   config.StakingToken,
			From:    config.Custody,
			To:      caller,
			Amount:  amount,
			Memo:    memoUnstake,
			UnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUnstake,
		Caller:    caller,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// DepositFees credits amount of token, already held in custody, to the current stakers.
func (service *StakingService) DepositFees(ctx context.Context, caller common.Address, token common.Address, amount Amount) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		return depositFees(ctx, transactionStore, caller, token, amount)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDepositFees,
		Caller:    caller,
		Token:     token,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// depositFees updates the reward-per-share accumulator of token inside an open transaction.
// Deposits made while nothing is staked are parked as stranded fees. The scaled remainder
// of each division is carried into the next deposit of the same token.
func depositFees(ctx context.Context, store Store, caller common.Address, token common.Address, amount Amount) error {
	if err := requireAddress(token, "fee token"); err != nil {
		return err
	}
	if err := requirePositive(amount, "fee amount"); err != nil {
		return err
	}
	config, err := store.GetStakingConfig(ctx)
	if err != nil {
		return err
	}
	if config.FeeRouter == (common.Address{}) || caller != config.FeeRouter {
		return fmt.Errorf("%w: %s is not the fee router", ErrUnauthorized, caller.Hex())
	}
	accumulator, err := store.GetFeeAccumulator(ctx, token)
	if err != nil {
		return err
	}
	accumulator.Token = token
	total, err := store.GetTotalStaked(ctx)
	if err != nil {
		return err
	}
	if total.IsZero() {
		stranded, err := accumulator.Stranded.Add(amount)
		if err != nil {
			return err
		}
		accumulator.Stranded = stranded
		return store.SaveFeeAccumulator(ctx, accumulator)
	}
	scaled, err := amount.MulDiv(rewardScale, NewAmountFromUint64(1))
	if err != nil {
		return err
	}
	numerator, err := scaled.Add(accumulator.Carry)
	if err != nil {
		return err
	}
	increment, carry, err := numerator.DivMod(total)
	if err != nil {
		return err
	}
	rewardPerShare, err := accumulator.RewardPerShare.Add(increment)
	if err != nil {
		return err
	}
	accumulator.RewardPerShare = rewardPerShare
	accumulator.Carry = carry
	return store.SaveFeeAccumulator(ctx, accumulator)
}

// Claim pays out every fee token owed to caller.
func (service *StakingService) Claim(ctx context.Context, caller common.Address) ([]TokenPayout, error) {
	var payouts []TokenPayout
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payouts = nil
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		config, err := transactionStore.GetStakingConfig(ctx)
		if err != nil {
			return err
		}
		staked, err := transactionStore.GetStake(ctx, caller)
		if err != nil {
			return err
		}
		debts, err := settleAccount(ctx, transactionStore, caller, staked)
		if err != nil {
			return err
		}
		for _, debt := range debts {
			if debt.Owed.IsZero() {
				continue
			}
			payouts = append(payouts, TokenPayout{Token: debt.Token, Amount: debt.Owed})
			debt.Owed = ZeroAmount()
			if err := transactionStore.SaveRewardDebt(ctx, debt); err != nil {
				return err
			}
		}
		if len(payouts) == 0 {
			return ErrNothingToClaim
		}
		for _, payout := range payouts {
			if err := transactionStore.Tokens().Transfer(ctx, TokenTransfer{
				Token:   payout.Token,
				From:    config.Custody,
				To:      caller,
				Amount:  payout.Amount,
				Memo:    memoClaim,
				UnixUTC: service.nowFn(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if operationError != nil {
		service.logOperation(ctx, OperationLog{Operation: operationClaim, Caller: caller, Error: operationError})
		return nil, operationError
	}
	for _, payout := range payouts {
		service.logOperation(ctx, OperationLog{
			Operation: operationClaim,
			Caller:    caller,
			Token:     payout.Token,
			Amount:    payout.Amount,
		})
	}
	return payouts, nil
}

// ClaimableBalance returns the amount of token account could claim now.
func (service *StakingService) ClaimableBalance(ctx context.Context, account common.Address, token common.Address) (Amount, error) {
	staked, err := service.store.GetStake(ctx, account)
	if err != nil {
		return Amount{}, err
	}
	accumulator, err := service.store.GetFeeAccumulator(ctx, token)
	if err != nil {
		return Amount{}, err
	}
	debt, err := service.store.GetRewardDebt(ctx, account, token)
	if err != nil {
		return Amount{}, err
	}
	pending, err := pendingReward(staked, accumulator.RewardPerShare, debt.Debt)
	if err != nil {
		return Amount{}, err
	}
	return debt.Owed.Add(pending)
}

// Position returns the stake of account and the pool total.
func (service *StakingService) Position(ctx context.Context, account common.Address) (StakePosition, error) {
	staked, err := service.store.GetStake(ctx, account)
	if err != nil {
		return StakePosition{}, err
	}
	total, err := service.store.GetTotalStaked(ctx)
	if err != nil {
		return StakePosition{}, err
	}
	return StakePosition{Account: account, Staked: staked, TotalStaked: total}, nil
}

// TotalStaked returns the sum of all stakes.
func (service *StakingService) TotalStaked(ctx context.Context) (Amount, error) {
	return service.store.GetTotalStaked(ctx)
}

// FeeTokens lists every token ever deposited as fees.
func (service *StakingService) FeeTokens(ctx context.Context) ([]common.Address, error) {
	return service.store.ListFeeTokens(ctx)
}

// Accumulator returns the reward-per-share state of token.
func (service *StakingService) Accumulator(ctx context.Context, token common.Address) (FeeAccumulator, error) {
	accumulator, err := service.store.GetFeeAccumulator(ctx, token)
	if err != nil {
		return FeeAccumulator{}, err
	}
	accumulator.Token = token
	return accumulator, nil
}

// StrandedFees returns fees of token deposited while nothing was staked.
func (service *StakingService) StrandedFees(ctx context.Context, token common.Address) (Amount, error) {
	accumulator, err := service.store.GetFeeAccumulator(ctx, token)
	if err != nil {
		return Amount{}, err
	}
	return accumulator.Stranded, nil
}

// RecoverStrandedFees moves stranded fees of token out of custody to recipient.
func (service *StakingService) RecoverStrandedFees(ctx context.Context, caller common.Address, token common.Address, recipient common.Address) (Amount, error) {
	var recovered Amount
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(recipient, "recipient"); err != nil {
			return err
		}
		config, err := transactionStore.GetStakingConfig(ctx)
		if err != nil {
			return err
		}
		if err := requireOwner(config.Owner, caller); err != nil {
			return err
		}
		accumulator, err := transactionStore.GetFeeAccumulator(ctx, token)
		if err != nil {
			return err
		}
		if accumulator.Stranded.IsZero() {
			return ErrNothingToClaim
		}
		recovered = accumulator.Stranded
		accumulator.Token = token
		accumulator.Stranded = ZeroAmount()
		if err := transactionStore.SaveFeeAccumulator(ctx, accumulator); err != nil {
			return err
		}
		return transactionStore.Tokens().Transfer(ctx, TokenTransfer{
			Token:   token,
			From:    config.Custody,
			To:      recipient,
			Amount:  recovered,
			Memo:    memoRecoverFees,
			UnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationRecoverStranded,
		Caller:       caller,
		Counterparty: recipient,
		Token:        token,
		Amount:       recovered,
		Error:        operationError,
	})
	if operationError != nil {
		return Amount{}, operationError
	}
	return recovered, nil
}

// SetFeeRouter authorizes router to deposit fees.
func (service *StakingService) SetFeeRouter(ctx context.Context, caller common.Address, router common.Address) error {
	operationError := service.updateConfig(ctx, caller, func(ctx context.Context, _ Store, config *StakingConfig) error {
		if err := requireAddress(router, "fee router"); err != nil {
			return err
		}
		config.FeeRouter = router
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationSetFeeRouter,
		Caller:       caller,
		Counterparty: router,
		Error:        operationError,
	})
	return operationError
}

// UpdateStakingToken replaces the staking token while nothing is staked.
func (service *StakingService) UpdateStakingToken(ctx context.Context, caller common.Address, token common.Address) error {
	operationError := service.updateConfig(ctx, caller, func(ctx context.Context, transactionStore Store, config *StakingConfig) error {
		if err := requireAddress(token, "staking token"); err != nil {
			return err
		}
		total, err := transactionStore.GetTotalStaked(ctx)
		if err != nil {
			return err
		}
		if !total.IsZero() {
			return fmt.Errorf("%w: %s still staked", ErrStakeOutstanding, total)
		}
		config.StakingToken = token
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateStakingToken,
		Caller:    caller,
		Token:     token,
		Error:     operationError,
	})
	return operationError
}

func (service *StakingService) updateConfig(ctx context.Context, caller common.Address, mutate func(context.Context, Store, *StakingConfig) error) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		config, err := transactionStore.GetStakingConfig(ctx)
		if err != nil {
			return err
		}
		if err := requireOwner(config.Owner, caller); err != nil {
			return err
		}
		if err := mutate(ctx, transactionStore, &config); err != nil {
			return err
		}
		return transactionStore.SaveStakingConfig(ctx, config)
	})
}

// settleAccount moves pending rewards of every fee token into owed and
// snapshots the accumulators, using the stake held before the caller mutates it.
func settleAccount(ctx context.Context, store Store, account common.Address, staked Amount) ([]RewardDebt, error) {
	tokens, err := store.ListFeeTokens(ctx)
	if err != nil {
		return nil, err
	}
	debts := make([]RewardDebt, 0, len(tokens))
	for _, token := range tokens {
		accumulator, err := store.GetFeeAccumulator(ctx, token)
		if err != nil {
			return nil, err
		}
		debt, err := store.GetRewardDebt(ctx, account, token)
		if err != nil {
			return nil, err
		}
		debt.Account = account
		debt.Token = token
		if debt.Debt.Cmp(accumulator.RewardPerShare) == 0 {
			debts = append(debts, debt)
			continue
		}
		pending, err := pendingReward(staked, accumulator.RewardPerShare, debt.Debt)
		if err != nil {
			return nil, err
		}
		owed, err := debt.Owed.Add(pending)
		if err != nil {
			return nil, err
		}
		debt.Owed = owed
		debt.Debt = accumulator.RewardPerShare
		if err := store.SaveRewardDebt(ctx, debt); err != nil {
			return nil, err
		}
		debts = append(debts, debt)
	}
	return debts, nil
}

// pendingReward returns floor(staked * (rewardPerShare - debt) / scale).
func pendingReward(staked Amount, rewardPerShare Amount, debt Amount) (Amount, error) {
	delta, err := rewardPerShare.Sub(debt)
	if err != nil {
		return Amount{}, err
	}
	if staked.IsZero() || delta.IsZero() {
		return ZeroAmount(), nil
	}
	return staked.MulDiv(delta, rewardScale)
}
