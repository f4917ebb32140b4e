package main

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/clubledger/internal/config"
	"github.com/MarkoPoloResearchLab/clubledger/internal/observability"
	"github.com/MarkoPoloResearchLab/clubledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"go.uber.org/zap"
)

type ledgerServices struct {
	staking     *ledger.StakingService
	vesting     *ledger.VestingService
	marketplace *ledger.MarketplaceService
}

func newLedgerServices(store ledger.Store, clock func() int64, operationLogger ledger.OperationLogger) (*ledgerServices, error) {
	option := ledger.WithOperationLogger(operationLogger)
	staking, err := ledger.NewStakingService(store, clock, option)
	if err != nil {
		return nil, fmt.Errorf("staking service init: %w", err)
	}
	vesting, err := ledger.NewVestingService(store, clock, option)
	if err != nil {
		return nil, fmt.Errorf("vesting service init: %w", err)
	}
	marketplace, err := ledger.NewMarketplaceService(store, clock, option)
	if err != nil {
		return nil, fmt.Errorf("marketplace service init: %w", err)
	}
	return &ledgerServices{staking: staking, vesting: vesting, marketplace: marketplace}, nil
}

// provisionGenesis wires the three ledgers together and mints the reward
// token supply: the team share to the team wallet, the pool to vesting custody.
// Re-running it leaves existing configuration and balances untouched.
func provisionGenesis(ctx context.Context, store *gormstore.Store, plan config.GenesisPlan, clock func() int64, logger *zap.Logger) error {
	services, err := newLedgerServices(store, clock, observability.NewZapOperationLogger(logger))
	if err != nil {
		return err
	}
	if err := services.staking.Provision(ctx, ledger.StakingConfig{
		Owner:        plan.Owner,
		Custody:      plan.StakingCustody,
		StakingToken: plan.RewardToken,
		FeeRouter:    plan.MarketCustody,
	}); err != nil {
		return fmt.Errorf("provision staking: %w", err)
	}
	if err := services.vesting.Provision(ctx, ledger.VestingConfig{
		Owner:          plan.Owner,
		Custody:        plan.VestingCustody,
		RewardToken:    plan.RewardToken,
		Recorder:       plan.Recorder,
		GenesisUnixUTC: plan.GenesisUnixUTC,
	}); err != nil {
		return fmt.Errorf("provision vesting: %w", err)
	}
	if err := services.marketplace.Provision(ctx, ledger.MarketplaceConfig{
		Owner:          plan.Owner,
		Custody:        plan.MarketCustody,
		StakingLedger:  plan.StakingCustody,
		TeamWallet:     plan.TeamWallet,
		AcceptedTokens: plan.AcceptedTokens,
	}); err != nil {
		return fmt.Errorf("provision marketplace: %w", err)
	}

	book := store.Book()
	teamBalance, err := book.BalanceOf(ctx, plan.RewardToken, plan.TeamWallet)
	if err != nil {
		return err
	}
	poolBalance, err := book.BalanceOf(ctx, plan.RewardToken, plan.VestingCustody)
	if err != nil {
		return err
	}
	if !teamBalance.IsZero() || !poolBalance.IsZero() {
		logger.Info("reward token supply already minted",
			zap.Stringer("team_balance", teamBalance),
			zap.Stringer("pool_balance", poolBalance))
		return nil
	}
	teamShare, err := ledger.ParseAmount(ledger.RewardTokenTeamShareDecimal)
	if err != nil {
		return err
	}
	pool, err := ledger.ParseAmount(ledger.RewardTokenPoolDecimal)
	if err != nil {
		return err
	}
	if err := book.Mint(ctx, plan.RewardToken, plan.TeamWallet, teamShare); err != nil {
		return fmt.Errorf("mint team share: %w", err)
	}
	if err := book.Mint(ctx, plan.RewardToken, plan.VestingCustody, pool); err != nil {
		return fmt.Errorf("mint reward pool: %w", err)
	}
	logger.Info("reward token supply minted",
		zap.String("token", plan.RewardToken.Hex()),
		zap.Stringer("team_share", teamShare),
		zap.Stringer("reward_pool", pool))
	return nil
}
