package ledger

const (
	operationStake               = "stake"
	operationUnstake             = "unstake"
	operationDepositFees         = "deposit_fees"
	operationClaim               = "claim"
	operationRecoverStranded     = "recover_stranded_fees"
	operationSetFeeRouter        = "set_fee_router"
	operationUpdateStakingToken  = "update_staking_token"
	operationRecordEligibility   = "record_eligibility"
	operationRecordTotalEligible = "record_total_eligible"
	operationRecordSnapshot      = "record_eligibility_snapshot"
	operationClaimTokens         = "claim_tokens"
	operationCreateProfile       = "create_user_profile"
	operationCreateClub          = "create_club"
	operationUpdateClubPricing   = "update_club_pricing"
	operationSubscribe           = "subscribe"
	operationUnsubscribe         = "unsubscribe"
	operationPostCall            = "post_call"
	operationPayPerCall          = "pay_per_call"
	operationSetStakingLedger    = "set_staking_ledger"
	operationSetTeamWallet       = "set_team_wallet"
	operationAddAcceptedToken    = "add_accepted_token"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	memoStake          = "stake"
	memoUnstake        = "unstake"
	memoClaim          = "fee_claim"
	memoRecoverFees    = "stranded_fee_recovery"
	memoDailyReward    = "daily_reward"
	memoCallPayment    = "call_payment"
	memoSubscription   = "subscription_payment"
	memoProtocolShare  = "protocol_share"
	memoTeamShare      = "team_share"
	memoCallerShare    = "caller_share"
	maxUsernameLength  = 64
	maxClubNameLength  = 128
	maxCallAssetLength = 64
	maxCallThesisBytes = 4096

	// Fee split of every marketplace payment, in percent.
	callerFeePercent   = 80
	protocolFeePercent = 12
	teamFeePercent     = 8
	percentDenominator = 100

	secondsPerDay          int64 = 24 * 60 * 60
	weeklyDurationSeconds        = 7 * secondsPerDay
	monthlyDurationSeconds       = 30 * secondsPerDay
	yearlyDurationSeconds        = 365 * secondsPerDay

	// LifetimeExpiryUnixUTC is the expiry sentinel of lifetime subscriptions (9999-12-31T23:59:59Z).
	LifetimeExpiryUnixUTC int64 = 253402300799
)

// RewardScaleDecimal is the fixed-point scale of reward-per-share accumulators (1e36).
const RewardScaleDecimal = "1000000000000000000000000000000000000"

// Reward token economics, in base units of an 18-decimal token.
const (
	RewardTokenTotalSupplyDecimal = "21000000000000000000000000"
	RewardTokenTeamShareDecimal   = "8400000000000000000000000"
	RewardTokenPoolDecimal        = "12600000000000000000000000"
	DefaultDailyPoolDecimal       = "11500000000000000000000"
)

var rewardScale = mustParseAmount(RewardScaleDecimal)

func mustParseAmount(raw string) Amount {
	amount, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return amount
}
