package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const (
	genesisUnixUTC  int64 = 1_700_000_000
	errorMismatch         = "expected %v, got %v"
	amountMismatch        = "expected %s, got %s"
	operationFailed       = "%s failed: %v"
)

var (
	ownerAddress          = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	recorderAddress       = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	stakingCustodyAddress = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	vestingCustodyAddress = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	marketCustodyAddress  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	teamWalletAddress     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	clubTokenAddress      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	usdcAddress           = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	daiAddress            = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	aliceAddress          = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bobAddress            = common.HexToAddress("0x0000000000000000000000000000000000000012")
	carolAddress          = common.HexToAddress("0x0000000000000000000000000000000000000013")
	creatorAddress        = common.HexToAddress("0x0000000000000000000000000000000000000021")
)

type testClock struct {
	mutex sync.Mutex
	now   int64
}

func (clock *testClock) Now() int64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *testClock) Advance(seconds int64) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now += seconds
}

type ledgerFixture struct {
	store       *memoryStore
	clock       *testClock
	staking     *StakingService
	vesting     *VestingService
	marketplace *MarketplaceService
}

func newLedgerFixture(test *testing.T, options ...ServiceOption) *ledgerFixture {
	test.Helper()
	store := newMemoryStore(test)
	clock := &testClock{now: genesisUnixUTC}
	staking, err := NewStakingService(store, clock.Now, options...)
	if err != nil {
		test.Fatalf("staking init failed: %v", err)
	}
	vesting, err := NewVestingService(store, clock.Now, options...)
	if err != nil {
		test.Fatalf("vesting init failed: %v", err)
	}
	marketplace, err := NewMarketplaceService(store, clock.Now, options...)
	if err != nil {
		test.Fatalf("marketplace init failed: %v", err)
	}
	ctx := context.Background()
	if err := staking.Provision(ctx, StakingConfig{
		Owner:        ownerAddress,
		Custody:      stakingCustodyAddress,
		StakingToken: clubTokenAddress,
		FeeRouter:    marketCustodyAddress,
	}); err != nil {
		test.Fatalf("staking provision failed: %v", err)
	}
	if err := vesting.Provision(ctx, VestingConfig{
		Owner:          ownerAddress,
		Custody:        vestingCustodyAddress,
		RewardToken:    clubTokenAddress,
		Recorder:       recorderAddress,
		GenesisUnixUTC: genesisUnixUTC,
	}); err != nil {
		test.Fatalf("vesting provision failed: %v", err)
	}
	if err := marketplace.Provision(ctx, MarketplaceConfig{
		Owner:          ownerAddress,
		Custody:        marketCustodyAddress,
		StakingLedger:  stakingCustodyAddress,
		TeamWallet:     teamWalletAddress,
		AcceptedTokens: []common.Address{usdcAddress, daiAddress},
	}); err != nil {
		test.Fatalf("marketplace provision failed: %v", err)
	}
	return &ledgerFixture{store: store, clock: clock, staking: staking, vesting: vesting, marketplace: marketplace}
}

// fund mints amount of token to account and approves spender for it.
func (fixture *ledgerFixture) fund(test *testing.T, token common.Address, account common.Address, spender common.Address, amount Amount) {
	test.Helper()
	fixture.store.mint(test, token, account, amount)
	if err := fixture.store.Tokens().Approve(context.Background(), token, account, spender, amount); err != nil {
		test.Fatalf("approve failed: %v", err)
	}
}

func (fixture *ledgerFixture) mustStake(test *testing.T, account common.Address, amount uint64) {
	test.Helper()
	fixture.fund(test, clubTokenAddress, account, stakingCustodyAddress, amountOf(amount))
	if err := fixture.staking.Stake(context.Background(), account, amountOf(amount)); err != nil {
		test.Fatalf(operationFailed, "stake", err)
	}
}

// mustDeposit places amount of token in staking custody and credits it as fees.
func (fixture *ledgerFixture) mustDeposit(test *testing.T, token common.Address, amount uint64) {
	test.Helper()
	fixture.store.mint(test, token, stakingCustodyAddress, amountOf(amount))
	if err := fixture.staking.DepositFees(context.Background(), marketCustodyAddress, token, amountOf(amount)); err != nil {
		test.Fatalf(operationFailed, "deposit fees", err)
	}
}

func (fixture *ledgerFixture) mustClaimable(test *testing.T, account common.Address, token common.Address) Amount {
	test.Helper()
	claimable, err := fixture.staking.ClaimableBalance(context.Background(), account, token)
	if err != nil {
		test.Fatalf(operationFailed, "claimable balance", err)
	}
	return claimable
}

func amountOf(value uint64) Amount {
	return NewAmountFromUint64(value)
}

func mustAmount(test *testing.T, raw string) Amount {
	test.Helper()
	amount, err := ParseAmount(raw)
	if err != nil {
		test.Fatalf("parse amount %q failed: %v", raw, err)
	}
	return amount
}

func requireAmount(test *testing.T, expected Amount, actual Amount) {
	test.Helper()
	if expected.Cmp(actual) != 0 {
		test.Fatalf(amountMismatch, expected, actual)
	}
}

func requireErrorIs(test *testing.T, err error, target error) {
	test.Helper()
	if !errors.Is(err, target) {
		test.Fatalf(errorMismatch, target, err)
	}
}
