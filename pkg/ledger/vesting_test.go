package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const thirdOfDailyPool = "3833333333333333333333"

func (fixture *ledgerFixture) fundRewardPool(test *testing.T, amount Amount) {
	test.Helper()
	fixture.store.mint(test, clubTokenAddress, vestingCustodyAddress, amount)
}

func (fixture *ledgerFixture) recordEligibleTrio(test *testing.T, day uint64) {
	test.Helper()
	ctx := context.Background()
	for _, account := range []common.Address{aliceAddress, bobAddress, carolAddress} {
		if err := fixture.vesting.RecordEligibility(ctx, recorderAddress, day, account, true); err != nil {
			test.Fatalf(operationFailed, "record eligibility", err)
		}
	}
	if err := fixture.vesting.RecordTotalEligible(ctx, recorderAddress, day, 3); err != nil {
		test.Fatalf(operationFailed, "record total eligible", err)
	}
}

func TestVestingProvisionDefaults(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	config, err := fixture.vesting.Config(context.Background())
	if err != nil {
		test.Fatalf(operationFailed, "config", err)
	}
	requireAmount(test, mustAmount(test, DefaultDailyPoolDecimal), config.DailyPool)
	day, err := fixture.vesting.CurrentDay(context.Background())
	if err != nil {
		test.Fatalf(operationFailed, "current day", err)
	}
	if day != 1 {
		test.Fatalf(errorMismatch, 1, day)
	}
}

func TestDailyRewardDividesPoolAmongEligible(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	fixture.fundRewardPool(test, mustAmount(test, RewardTokenPoolDecimal))
	fixture.recordEligibleTrio(test, 1)

	reward, err := fixture.vesting.DailyReward(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "daily reward", err)
	}
	requireAmount(test, mustAmount(test, thirdOfDailyPool), reward)

	claimed, err := fixture.vesting.ClaimTokens(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "claim tokens", err)
	}
	requireAmount(test, mustAmount(test, thirdOfDailyPool), claimed)
	requireAmount(test, mustAmount(test, thirdOfDailyPool), fixture.store.balance(clubTokenAddress, aliceAddress))

	lifetime, err := fixture.vesting.LifetimeClaimed(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "lifetime claimed", err)
	}
	requireAmount(test, mustAmount(test, thirdOfDailyPool), lifetime)

	reward, err = fixture.vesting.DailyReward(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "daily reward", err)
	}
	requireAmount(test, ZeroAmount(), reward)
	_, err = fixture.vesting.ClaimTokens(ctx, aliceAddress)
	requireErrorIs(test, err, ErrNothingToClaim)

	record, err := fixture.vesting.EligibilityDay(ctx, 1)
	if err != nil {
		test.Fatalf(operationFailed, "eligibility day", err)
	}
	if !record.Frozen || record.TotalEligible != 3 {
		test.Fatalf("unexpected day record %+v", record)
	}
	requireAmount(test, mustAmount(test, thirdOfDailyPool), record.Distributed)
}

func TestIneligibleAccountHasNoReward(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	fixture.fundRewardPool(test, mustAmount(test, RewardTokenPoolDecimal))
	fixture.recordEligibleTrio(test, 1)
	reward, err := fixture.vesting.DailyReward(ctx, creatorAddress)
	if err != nil {
		test.Fatalf(operationFailed, "daily reward", err)
	}
	requireAmount(test, ZeroAmount(), reward)
	_, err = fixture.vesting.ClaimTokens(ctx, creatorAddress)
	requireErrorIs(test, err, ErrNothingToClaim)
}

func TestZeroEligibleCountYieldsNoReward(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	if err := fixture.vesting.RecordEligibility(ctx, ownerAddress, 1, aliceAddress, true); err != nil {
		test.Fatalf(operationFailed, "record eligibility", err)
	}
	reward, err := fixture.vesting.DailyReward(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "daily reward", err)
	}
	requireAmount(test, ZeroAmount(), reward)
}

func TestExhaustedPoolRejectsClaim(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	fixture.fundRewardPool(test, amountOf(1_000))
	fixture.recordEligibleTrio(test, 1)
	_, err := fixture.vesting.ClaimTokens(context.Background(), aliceAddress)
	requireErrorIs(test, err, ErrNoMoreRewardsAvailable)
	remaining, err := fixture.vesting.RemainingPool(context.Background())
	if err != nil {
		test.Fatalf(operationFailed, "remaining pool", err)
	}
	requireAmount(test, amountOf(1_000), remaining)
}

func TestEligibilityFrozenAfterFirstClaim(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	fixture.fundRewardPool(test, mustAmount(test, RewardTokenPoolDecimal))
	fixture.recordEligibleTrio(test, 1)
	if _, err := fixture.vesting.ClaimTokens(ctx, bobAddress); err != nil {
		test.Fatalf(operationFailed, "claim tokens", err)
	}
	requireErrorIs(test, fixture.vesting.RecordTotalEligible(ctx, recorderAddress, 1, 1), ErrEligibilityFrozen)
	requireErrorIs(test, fixture.vesting.RecordEligibility(ctx, recorderAddress, 1, creatorAddress, true), ErrEligibilityFrozen)
	requireErrorIs(test, fixture.vesting.RecordEligibilitySnapshot(ctx, ownerAddress, 1, nil), ErrEligibilityFrozen)

	if err := fixture.vesting.RecordTotalEligible(ctx, recorderAddress, 2, 1); err != nil {
		test.Fatalf(operationFailed, "record next day", err)
	}
}

func TestEligibilityWritersAreAuthorized(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	requireErrorIs(test, fixture.vesting.RecordEligibility(ctx, aliceAddress, 1, aliceAddress, true), ErrUnauthorized)
	requireErrorIs(test, fixture.vesting.RecordTotalEligible(ctx, aliceAddress, 1, 1), ErrUnauthorized)
	requireErrorIs(test, fixture.vesting.SetRecorder(ctx, recorderAddress, aliceAddress), ErrUnauthorized)
	if err := fixture.vesting.SetRecorder(ctx, ownerAddress, aliceAddress); err != nil {
		test.Fatalf(operationFailed, "set recorder", err)
	}
	if err := fixture.vesting.RecordTotalEligible(ctx, aliceAddress, 1, 1); err != nil {
		test.Fatalf(operationFailed, "record total eligible", err)
	}
	requireErrorIs(test, fixture.vesting.RecordTotalEligible(ctx, recorderAddress, 1, 1), ErrUnauthorized)
}

func TestSnapshotReplacesEligibleSet(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	fixture.recordEligibleTrio(test, 1)
	if err := fixture.vesting.RecordEligibilitySnapshot(ctx, recorderAddress, 1, []common.Address{creatorAddress, aliceAddress, creatorAddress}); err != nil {
		test.Fatalf(operationFailed, "snapshot", err)
	}
	record, err := fixture.vesting.EligibilityDay(ctx, 1)
	if err != nil {
		test.Fatalf(operationFailed, "eligibility day", err)
	}
	if record.TotalEligible != 2 {
		test.Fatalf(errorMismatch, 2, record.TotalEligible)
	}
	bobEligible, err := fixture.vesting.Eligibility(ctx, 1, bobAddress)
	if err != nil {
		test.Fatalf(operationFailed, "eligibility", err)
	}
	creatorEligible, err := fixture.vesting.Eligibility(ctx, 1, creatorAddress)
	if err != nil {
		test.Fatalf(operationFailed, "eligibility", err)
	}
	if bobEligible || !creatorEligible {
		test.Fatalf("unexpected eligibility bob=%v creator=%v", bobEligible, creatorEligible)
	}
}

func TestNextDayStartsFresh(test *testing.T) {
	test.Parallel()
	fixture := newLedgerFixture(test)
	ctx := context.Background()
	fixture.fundRewardPool(test, mustAmount(test, RewardTokenPoolDecimal))
	fixture.recordEligibleTrio(test, 1)
	if _, err := fixture.vesting.ClaimTokens(ctx, aliceAddress); err != nil {
		test.Fatalf(operationFailed, "claim tokens", err)
	}
	fixture.clock.Advance(secondsPerDay)
	reward, err := fixture.vesting.DailyReward(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "daily reward", err)
	}
	requireAmount(test, ZeroAmount(), reward)

	if err := fixture.vesting.RecordEligibilitySnapshot(ctx, recorderAddress, 2, []common.Address{aliceAddress}); err != nil {
		test.Fatalf(operationFailed, "snapshot", err)
	}
	claimed, err := fixture.vesting.ClaimTokens(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "claim tokens", err)
	}
	requireAmount(test, mustAmount(test, DefaultDailyPoolDecimal), claimed)
	lifetime, err := fixture.vesting.LifetimeClaimed(ctx, aliceAddress)
	if err != nil {
		test.Fatalf(operationFailed, "lifetime claimed", err)
	}
	expected, err := mustAmount(test, DefaultDailyPoolDecimal).Add(mustAmount(test, thirdOfDailyPool))
	if err != nil {
		test.Fatalf(operationFailed, "add", err)
	}
	requireAmount(test, expected, lifetime)
}
