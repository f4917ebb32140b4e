package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type debtKey struct {
	account common.Address
	token   common.Address
}

type dayAccountKey struct {
	day     uint64
	account common.Address
}

type subscriptionKey struct {
	subscriber common.Address
	clubOwner  common.Address
}

type paymentKey struct {
	payer  common.Address
	callID uint64
}

type balanceKey struct {
	token   common.Address
	account common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type memoryState struct {
	stakingConfig     *StakingConfig
	stakes            map[common.Address]Amount
	totalStaked       Amount
	accumulators      map[common.Address]FeeAccumulator
	feeTokens         []common.Address
	debts             map[debtKey]RewardDebt
	vestingConfig     *VestingConfig
	eligibility       map[dayAccountKey]bool
	days              map[uint64]EligibilityDay
	dailyClaims       map[dayAccountKey]DailyClaim
	lifetime          map[common.Address]Amount
	marketplaceConfig *MarketplaceConfig
	profiles          map[common.Address]UserProfile
	clubs             map[common.Address]Club
	subscriptions     map[subscriptionKey]Subscription
	calls             []Call
	payments          map[paymentKey]CallPayment
	balances          map[balanceKey]Amount
	allowances        map[allowanceKey]Amount
	transfers         []TokenTransfer
}

func newMemoryState() *memoryState {
	return &memoryState{
		stakes:        map[common.Address]Amount{},
		accumulators:  map[common.Address]FeeAccumulator{},
		debts:         map[debtKey]RewardDebt{},
		eligibility:   map[dayAccountKey]bool{},
		days:          map[uint64]EligibilityDay{},
		dailyClaims:   map[dayAccountKey]DailyClaim{},
		lifetime:      map[common.Address]Amount{},
		profiles:      map[common.Address]UserProfile{},
		clubs:         map[common.Address]Club{},
		subscriptions: map[subscriptionKey]Subscription{},
		payments:      map[paymentKey]CallPayment{},
		balances:      map[balanceKey]Amount{},
		allowances:    map[allowanceKey]Amount{},
	}
}

func copyMap[K comparable, V any](source map[K]V) map[K]V {
	copied := make(map[K]V, len(source))
	for key, value := range source {
		copied[key] = value
	}
	return copied
}

func (state *memoryState) clone() *memoryState {
	cloned := &memoryState{
		stakes:        copyMap(state.stakes),
		totalStaked:   state.totalStaked,
		accumulators:  copyMap(state.accumulators),
		feeTokens:     append([]common.Address(nil), state.feeTokens...),
		debts:         copyMap(state.debts),
		eligibility:   copyMap(state.eligibility),
		days:          copyMap(state.days),
		dailyClaims:   copyMap(state.dailyClaims),
		lifetime:      copyMap(state.lifetime),
		profiles:      copyMap(state.profiles),
		clubs:         copyMap(state.clubs),
		subscriptions: copyMap(state.subscriptions),
		calls:         append([]Call(nil), state.calls...),
		payments:      copyMap(state.payments),
		balances:      copyMap(state.balances),
		allowances:    copyMap(state.allowances),
		transfers:     append([]TokenTransfer(nil), state.transfers...),
	}
	if state.stakingConfig != nil {
		config := *state.stakingConfig
		cloned.stakingConfig = &config
	}
	if state.vestingConfig != nil {
		config := *state.vestingConfig
		cloned.vestingConfig = &config
	}
	if state.marketplaceConfig != nil {
		config := *state.marketplaceConfig
		config.AcceptedTokens = append([]common.Address(nil), config.AcceptedTokens...)
		cloned.marketplaceConfig = &config
	}
	return cloned
}

// memoryStore is a transactional in-memory Store: a failed WithTx restores the
// state captured when the transaction began.
type memoryStore struct {
	mutex         *sync.Mutex
	state         **memoryState
	inTransaction bool
	txError       error
	transferError error
}

func newMemoryStore(test *testing.T) *memoryStore {
	test.Helper()
	state := newMemoryState()
	return &memoryStore{mutex: &sync.Mutex{}, state: &state}
}

func (store *memoryStore) current() *memoryState {
	return *store.state
}

func (store *memoryStore) lock() func() {
	if store.inTransaction {
		return func() {}
	}
	store.mutex.Lock()
	return store.mutex.Unlock
}

func (store *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.txError != nil {
		return store.txError
	}
	unlock := store.lock()
	defer unlock()
	snapshot := store.current().clone()
	transactionStore := &memoryStore{
		mutex:         store.mutex,
		state:         store.state,
		inTransaction: true,
		transferError: store.transferError,
	}
	if err := fn(ctx, transactionStore); err != nil {
		*store.state = snapshot
		return err
	}
	return nil
}

func (store *memoryStore) Tokens() TokenLedger {
	return memoryTokens{store: store}
}

func (store *memoryStore) GetStakingConfig(context.Context) (StakingConfig, error) {
	defer store.lock()()
	if store.current().stakingConfig == nil {
		return StakingConfig{}, ErrNotConfigured
	}
	return *store.current().stakingConfig, nil
}

func (store *memoryStore) SaveStakingConfig(_ context.Context, config StakingConfig) error {
	defer store.lock()()
	store.current().stakingConfig = &config
	return nil
}

func (store *memoryStore) GetStake(_ context.Context, account common.Address) (Amount, error) {
	defer store.lock()()
	return store.current().stakes[account], nil
}

func (store *memoryStore) SaveStake(_ context.Context, account common.Address, staked Amount) error {
	defer store.lock()()
	store.current().stakes[account] = staked
	return nil
}

func (store *memoryStore) GetTotalStaked(context.Context) (Amount, error) {
	defer store.lock()()
	return store.current().totalStaked, nil
}

func (store *memoryStore) SaveTotalStaked(_ context.Context, total Amount) error {
	defer store.lock()()
	store.current().totalStaked = total
	return nil
}

func (store *memoryStore) ListFeeTokens(context.Context) ([]common.Address, error) {
	defer store.lock()()
	return append([]common.Address(nil), store.current().feeTokens...), nil
}

func (store *memoryStore) GetFeeAccumulator(_ context.Context, token common.Address) (FeeAccumulator, error) {
	defer store.lock()()
	accumulator, found := store.current().accumulators[token]
	if !found {
		return FeeAccumulator{Token: token}, nil
	}
	return accumulator, nil
}

func (store *memoryStore) SaveFeeAccumulator(_ context.Context, accumulator FeeAccumulator) error {
	defer store.lock()()
	state := store.current()
	if _, found := state.accumulators[accumulator.Token]; !found {
		state.feeTokens = append(state.feeTokens, accumulator.Token)
	}
	state.accumulators[accumulator.Token] = accumulator
	return nil
}

func (store *memoryStore) GetRewardDebt(_ context.Context, account common.Address, token common.Address) (RewardDebt, error) {
	defer store.lock()()
	debt, found := store.current().debts[debtKey{account: account, token: token}]
	if !found {
		return RewardDebt{Account: account, Token: token}, nil
	}
	return debt, nil
}

func (store *memoryStore) SaveRewardDebt(_ context.Context, debt RewardDebt) error {
	defer store.lock()()
	store.current().debts[debtKey{account: debt.Account, token: debt.Token}] = debt
	return nil
}

func (store *memoryStore) GetVestingConfig(context.Context) (VestingConfig, error) {
	defer store.lock()()
	if store.current().vestingConfig == nil {
		return VestingConfig{}, ErrNotConfigured
	}
	return *store.current().vestingConfig, nil
}

func (store *memoryStore) SaveVestingConfig(_ context.Context, config VestingConfig) error {
	defer store.lock()()
	store.current().vestingConfig = &config
	return nil
}

func (store *memoryStore) GetEligibility(_ context.Context, day uint64, account common.Address) (bool, error) {
	defer store.lock()()
	return store.current().eligibility[dayAccountKey{day: day, account: account}], nil
}

func (store *memoryStore) SaveEligibility(_ context.Context, day uint64, account common.Address, eligible bool) error {
	defer store.lock()()
	store.current().eligibility[dayAccountKey{day: day, account: account}] = eligible
	return nil
}

func (store *memoryStore) ClearEligibility(_ context.Context, day uint64) error {
	defer store.lock()()
	for key := range store.current().eligibility {
		if key.day == day {
			delete(store.current().eligibility, key)
		}
	}
	return nil
}

func (store *memoryStore) GetEligibilityDay(_ context.Context, day uint64) (EligibilityDay, error) {
	defer store.lock()()
	record, found := store.current().days[day]
	if !found {
		return EligibilityDay{Day: day}, nil
	}
	return record, nil
}

func (store *memoryStore) SaveEligibilityDay(_ context.Context, record EligibilityDay) error {
	defer store.lock()()
	store.current().days[record.Day] = record
	return nil
}

func (store *memoryStore) GetDailyClaim(_ context.Context, day uint64, account common.Address) (DailyClaim, bool, error) {
	defer store.lock()()
	claim, found := store.current().dailyClaims[dayAccountKey{day: day, account: account}]
	return claim, found, nil
}

func (store *memoryStore) SaveDailyClaim(_ context.Context, claim DailyClaim) error {
	defer store.lock()()
	store.current().dailyClaims[dayAccountKey{day: claim.Day, account: claim.Account}] = claim
	return nil
}

func (store *memoryStore) GetLifetimeClaimed(_ context.Context, account common.Address) (Amount, error) {
	defer store.lock()()
	return store.current().lifetime[account], nil
}

func (store *memoryStore) SaveLifetimeClaimed(_ context.Context, account common.Address, total Amount) error {
	defer store.lock()()
	store.current().lifetime[account] = total
	return nil
}

func (store *memoryStore) GetMarketplaceConfig(context.Context) (MarketplaceConfig, error) {
	defer store.lock()()
	if store.current().marketplaceConfig == nil {
		return MarketplaceConfig{}, ErrNotConfigured
	}
	config := *store.current().marketplaceConfig
	config.AcceptedTokens = append([]common.Address(nil), config.AcceptedTokens...)
	return config, nil
}

func (store *memoryStore) SaveMarketplaceConfig(_ context.Context, config MarketplaceConfig) error {
	defer store.lock()()
	config.AcceptedTokens = append([]common.Address(nil), config.AcceptedTokens...)
	store.current().marketplaceConfig = &config
	return nil
}

func (store *memoryStore) GetProfile(_ context.Context, account common.Address) (UserProfile, error) {
	defer store.lock()()
	profile, found := store.current().profiles[account]
	if !found {
		return UserProfile{}, ErrProfileDoesNotExist
	}
	return profile, nil
}

func (store *memoryStore) SaveProfile(_ context.Context, profile UserProfile) error {
	defer store.lock()()
	store.current().profiles[profile.Account] = profile
	return nil
}

func (store *memoryStore) GetClub(_ context.Context, caller common.Address) (Club, error) {
	defer store.lock()()
	club, found := store.current().clubs[caller]
	if !found {
		return Club{}, ErrClubDoesNotExist
	}
	return club, nil
}

func (store *memoryStore) SaveClub(_ context.Context, club Club) error {
	defer store.lock()()
	store.current().clubs[club.Caller] = club
	return nil
}

func (store *memoryStore) GetSubscription(_ context.Context, subscriber common.Address, clubOwner common.Address) (Subscription, error) {
	defer store.lock()()
	subscription, found := store.current().subscriptions[subscriptionKey{subscriber: subscriber, clubOwner: clubOwner}]
	if !found {
		return Subscription{Subscriber: subscriber, ClubOwner: clubOwner}, nil
	}
	return subscription, nil
}

func (store *memoryStore) SaveSubscription(_ context.Context, subscription Subscription) error {
	defer store.lock()()
	store.current().subscriptions[subscriptionKey{subscriber: subscription.Subscriber, clubOwner: subscription.ClubOwner}] = subscription
	return nil
}

func (store *memoryStore) CreateCall(_ context.Context, call Call) (Call, error) {
	defer store.lock()()
	state := store.current()
	call.ID = uint64(len(state.calls)) + 1
	state.calls = append(state.calls, call)
	return call, nil
}

func (store *memoryStore) GetCall(_ context.Context, callID uint64) (Call, error) {
	defer store.lock()()
	calls := store.current().calls
	if callID == 0 || callID > uint64(len(calls)) {
		return Call{}, fmt.Errorf("%w: %d", ErrCallDoesNotExist, callID)
	}
	return calls[callID-1], nil
}

func (store *memoryStore) ListCallsByCaller(_ context.Context, caller common.Address) ([]Call, error) {
	defer store.lock()()
	var calls []Call
	for _, call := range store.current().calls {
		if call.Caller == caller {
			calls = append(calls, call)
		}
	}
	return calls, nil
}

func (store *memoryStore) GetCallPayment(_ context.Context, payer common.Address, callID uint64) (CallPayment, bool, error) {
	defer store.lock()()
	payment, found := store.current().payments[paymentKey{payer: payer, callID: callID}]
	return payment, found, nil
}

func (store *memoryStore) SaveCallPayment(_ context.Context, payment CallPayment) error {
	defer store.lock()()
	store.current().payments[paymentKey{payer: payment.Payer, callID: payment.CallID}] = payment
	return nil
}

// mint credits amount of token to account outside any transaction.
func (store *memoryStore) mint(test *testing.T, token common.Address, account common.Address, amount Amount) {
	test.Helper()
	defer store.lock()()
	key := balanceKey{token: token, account: account}
	updated, err := store.current().balances[key].Add(amount)
	if err != nil {
		test.Fatalf("mint failed: %v", err)
	}
	store.current().balances[key] = updated
}

func (store *memoryStore) balance(token common.Address, account common.Address) Amount {
	defer store.lock()()
	return store.current().balances[balanceKey{token: token, account: account}]
}

func (store *memoryStore) transfers() []TokenTransfer {
	defer store.lock()()
	return append([]TokenTransfer(nil), store.current().transfers...)
}

func (store *memoryStore) sortedStakers() []common.Address {
	defer store.lock()()
	stakers := make([]common.Address, 0, len(store.current().stakes))
	for account := range store.current().stakes {
		stakers = append(stakers, account)
	}
	sort.Slice(stakers, func(left, right int) bool {
		return stakers[left].Hex() < stakers[right].Hex()
	})
	return stakers
}

type memoryTokens struct {
	store *memoryStore
}

func (tokens memoryTokens) BalanceOf(_ context.Context, token common.Address, account common.Address) (Amount, error) {
	defer tokens.store.lock()()
	return tokens.store.current().balances[balanceKey{token: token, account: account}], nil
}

func (tokens memoryTokens) Allowance(_ context.Context, token common.Address, owner common.Address, spender common.Address) (Amount, error) {
	defer tokens.store.lock()()
	return tokens.store.current().allowances[allowanceKey{token: token, owner: owner, spender: spender}], nil
}

func (tokens memoryTokens) Approve(_ context.Context, token common.Address, owner common.Address, spender common.Address, amount Amount) error {
	defer tokens.store.lock()()
	tokens.store.current().allowances[allowanceKey{token: token, owner: owner, spender: spender}] = amount
	return nil
}

func (tokens memoryTokens) Transfer(_ context.Context, transfer TokenTransfer) error {
	defer tokens.store.lock()()
	return tokens.move(transfer)
}

func (tokens memoryTokens) TransferFrom(_ context.Context, spender common.Address, transfer TokenTransfer) error {
	defer tokens.store.lock()()
	key := allowanceKey{token: transfer.Token, owner: transfer.From, spender: spender}
	allowance := tokens.store.current().allowances[key]
	if allowance.LessThan(transfer.Amount) {
		return fmt.Errorf("%w: allowance %s, requested %s", ErrInsufficientAllowance, allowance, transfer.Amount)
	}
	if err := tokens.move(transfer); err != nil {
		return err
	}
	remaining, err := allowance.Sub(transfer.Amount)
	if err != nil {
		return err
	}
	tokens.store.current().allowances[key] = remaining
	return nil
}

func (tokens memoryTokens) move(transfer TokenTransfer) error {
	if tokens.store.transferError != nil {
		return tokens.store.transferError
	}
	state := tokens.store.current()
	fromKey := balanceKey{token: transfer.Token, account: transfer.From}
	toKey := balanceKey{token: transfer.Token, account: transfer.To}
	fromBalance := state.balances[fromKey]
	if fromBalance.LessThan(transfer.Amount) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, fromBalance, transfer.Amount)
	}
	if fromKey != toKey {
		debited, err := fromBalance.Sub(transfer.Amount)
		if err != nil {
			return err
		}
		credited, err := state.balances[toKey].Add(transfer.Amount)
		if err != nil {
			return err
		}
		state.balances[fromKey] = debited
		state.balances[toKey] = credited
	}
	state.transfers = append(state.transfers, transfer)
	return nil
}
