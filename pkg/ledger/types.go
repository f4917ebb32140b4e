package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Amount is an unsigned token quantity in the token's smallest unit.
type Amount struct {
	value uint256.Int
}

// ZeroAmount returns the zero amount.
func ZeroAmount() Amount {
	return Amount{}
}

// NewAmountFromUint64 wraps a uint64 quantity.
func NewAmountFromUint64(raw uint64) Amount {
	var amount Amount
	amount.value.SetUint64(raw)
	return amount
}

// NewAmountFromUint256 copies a 256-bit quantity (nil is treated as zero).
func NewAmountFromUint256(raw *uint256.Int) Amount {
	if raw == nil {
		return Amount{}
	}
	return Amount{value: *raw}
}

// ParseAmount parses a base-10 quantity.
func ParseAmount(raw string) (Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Amount{}, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	parsed, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmountFromUint256(parsed), nil
}

// NewPositiveAmount parses a base-10 quantity and rejects zero.
func NewPositiveAmount(raw string) (Amount, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return Amount{}, err
	}
	if amount.IsZero() {
		return Amount{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return amount, nil
}

// String returns the base-10 representation.
func (amount Amount) String() string {
	return amount.value.Dec()
}

// IsZero reports whether the amount is zero.
func (amount Amount) IsZero() bool {
	return amount.value.IsZero()
}

// Cmp compares two amounts and returns -1, 0 or +1.
func (amount Amount) Cmp(other Amount) int {
	return amount.value.Cmp(&other.value)
}

// LessThan reports whether amount < other.
func (amount Amount) LessThan(other Amount) bool {
	return amount.value.Lt(&other.value)
}

// Uint256 returns a copy of the underlying integer.
func (amount Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&amount.value)
}

// Add returns amount + other, failing on 256-bit overflow.
func (amount Amount) Add(other Amount) (Amount, error) {
	var result Amount
	if _, overflow := result.value.AddOverflow(&amount.value, &other.value); overflow {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, amount, other)
	}
	return result, nil
}

// Sub returns amount - other, failing when other > amount.
func (amount Amount) Sub(other Amount) (Amount, error) {
	var result Amount
	if _, underflow := result.value.SubOverflow(&amount.value, &other.value); underflow {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrArithmeticOverflow, amount, other)
	}
	return result, nil
}

// MulDiv returns floor(amount * multiplier / divisor) with a 512-bit intermediate product.
func (amount Amount) MulDiv(multiplier Amount, divisor Amount) (Amount, error) {
	if divisor.IsZero() {
		return Amount{}, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	var result Amount
	if _, overflow := result.value.MulDivOverflow(&amount.value, &multiplier.value, &divisor.value); overflow {
		return Amount{}, fmt.Errorf("%w: %s * %s / %s", ErrArithmeticOverflow, amount, multiplier, divisor)
	}
	return result, nil
}

// DivMod returns floor(amount / divisor) and the remainder.
func (amount Amount) DivMod(divisor Amount) (Amount, Amount, error) {
	if divisor.IsZero() {
		return Amount{}, Amount{}, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	var quotient, remainder Amount
	quotient.value.DivMod(&amount.value, &divisor.value, &remainder.value)
	return quotient, remainder, nil
}

// Div returns floor(amount / divisor).
func (amount Amount) Div(divisor Amount) (Amount, error) {
	if divisor.IsZero() {
		return Amount{}, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	var result Amount
	result.value.Div(&amount.value, &divisor.value)
	return result, nil
}

// MarshalJSON encodes the amount as a decimal string.
func (amount Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amount.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (amount *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*amount = parsed
	return nil
}

// NewAccountAddress validates and normalizes a hex account or token address.
func NewAccountAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %q is not a hex address", ErrInvalidAddress, raw)
	}
	address := common.HexToAddress(trimmed)
	if address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return address, nil
}

func requireAddress(address common.Address, field string) error {
	if address == (common.Address{}) {
		return fmt.Errorf("%w: %s is the zero address", ErrInvalidAddress, field)
	}
	return nil
}

// DayIndex returns the 1-based day of nowUnixUTC counted from genesisUnixUTC (0 before genesis).
func DayIndex(genesisUnixUTC int64, nowUnixUTC int64) uint64 {
	if nowUnixUTC < genesisUnixUTC {
		return 0
	}
	return uint64((nowUnixUTC-genesisUnixUTC)/secondsPerDay) + 1
}

// SubscriptionType enumerates subscription tiers.
type SubscriptionType uint8

const (
	SubscriptionNone SubscriptionType = iota
	SubscriptionWeekly
	SubscriptionMonthly
	SubscriptionYearly
	SubscriptionLifetime
)

// ParseSubscriptionType validates a raw tier value; none is not subscribable.
func ParseSubscriptionType(raw int64) (SubscriptionType, error) {
	if raw < int64(SubscriptionWeekly) || raw > int64(SubscriptionLifetime) {
		return SubscriptionNone, fmt.Errorf("%w: %d", ErrInvalidSubscriptionType, raw)
	}
	return SubscriptionType(raw), nil
}

// String returns the tier name.
func (subscriptionType SubscriptionType) String() string {
	switch subscriptionType {
	case SubscriptionNone:
		return "none"
	case SubscriptionWeekly:
		return "weekly"
	case SubscriptionMonthly:
		return "monthly"
	case SubscriptionYearly:
		return "yearly"
	case SubscriptionLifetime:
		return "lifetime"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(subscriptionType))
	}
}

// expiryFrom returns the expiry timestamp of a tier purchased at nowUnixUTC.
func (subscriptionType SubscriptionType) expiryFrom(nowUnixUTC int64) (int64, error) {
	switch subscriptionType {
	case SubscriptionWeekly:
		return nowUnixUTC + weeklyDurationSeconds, nil
	case SubscriptionMonthly:
		return nowUnixUTC + monthlyDurationSeconds, nil
	case SubscriptionYearly:
		return nowUnixUTC + yearlyDurationSeconds, nil
	case SubscriptionLifetime:
		return LifetimeExpiryUnixUTC, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSubscriptionType, uint8(subscriptionType))
	}
}

// StakingConfig links the staking ledger to its owner, custody account, staking token and fee router.
type StakingConfig struct {
	Owner        common.Address
	Custody      common.Address
	StakingToken common.Address
	FeeRouter    common.Address
}

// FeeAccumulator is the reward-per-share state of a single fee token.
type FeeAccumulator struct {
	Token          common.Address
	RewardPerShare Amount
	Stranded       Amount
	// Carry is the scaled remainder of the last deposit, folded into the next one.
	Carry          Amount
}

// RewardDebt is the settlement snapshot of an (account, fee token) pair.
type RewardDebt struct {
	Account common.Address
	Token   common.Address
	Debt    Amount
	Owed    Amount
}

// StakePosition is the staking view of an account.
type StakePosition struct {
	Account     common.Address
	Staked      Amount
	TotalStaked Amount
}

// TokenPayout is a single token transfer produced by a claim.
type TokenPayout struct {
	Token  common.Address
	Amount Amount
}

// VestingConfig describes the daily reward pool.
type VestingConfig struct {
	Owner          common.Address
	Custody        common.Address
	RewardToken    common.Address
	Recorder       common.Address
	DailyPool      Amount
	GenesisUnixUTC int64
}

// EligibilityDay aggregates the eligibility snapshot of one day.
type EligibilityDay struct {
	Day           uint64
	TotalEligible uint64
	Frozen        bool
	Distributed   Amount
}

// DailyClaim records a reward claimed by an account on a day.
type DailyClaim struct {
	Day            uint64
	Account        common.Address
	Amount         Amount
	ClaimedUnixUTC int64
}

// MarketplaceConfig wires the fee router to the staking ledger and the team wallet.
type MarketplaceConfig struct {
	Owner          common.Address
	Custody        common.Address
	StakingLedger  common.Address
	TeamWallet     common.Address
	AcceptedTokens []common.Address
}

// UserProfile is the public profile of a marketplace participant.
type UserProfile struct {
	Account        common.Address
	Username       string
	CreatedUnixUTC int64
}

// ClubPrices holds the pay-per-call price and the four subscription tier prices.
type ClubPrices struct {
	PerCall  Amount
	Weekly   Amount
	Monthly  Amount
	Yearly   Amount
	Lifetime Amount
}

// Validate enforces a positive call price and strictly increasing tier prices.
func (prices ClubPrices) Validate() error {
	if prices.PerCall.IsZero() {
		return fmt.Errorf("%w: price per call must be greater than zero", ErrInvalidCallPrice)
	}
	if !prices.Weekly.LessThan(prices.Monthly) || !prices.Monthly.LessThan(prices.Yearly) || !prices.Yearly.LessThan(prices.Lifetime) {
		return fmt.Errorf("%w: tiers must be strictly increasing (weekly %s, monthly %s, yearly %s, lifetime %s)",
			ErrInvalidSubscriptionPrices, prices.Weekly, prices.Monthly, prices.Yearly, prices.Lifetime)
	}
	return nil
}

// TierPrice returns the price of a subscription tier.
func (prices ClubPrices) TierPrice(subscriptionType SubscriptionType) (Amount, error) {
	switch subscriptionType {
	case SubscriptionWeekly:
		return prices.Weekly, nil
	case SubscriptionMonthly:
		return prices.Monthly, nil
	case SubscriptionYearly:
		return prices.Yearly, nil
	case SubscriptionLifetime:
		return prices.Lifetime, nil
	default:
		return Amount{}, fmt.Errorf("%w: %d", ErrInvalidSubscriptionType, uint8(subscriptionType))
	}
}

// Club is a creator's priced offering.
type Club struct {
	Caller         common.Address
	Name           string
	Prices         ClubPrices
	AcceptedToken  common.Address
	CreatedUnixUTC int64
	UpdatedUnixUTC int64
}

// Subscription is the subscription of a subscriber to a club.
type Subscription struct {
	Subscriber     common.Address
	ClubOwner      common.Address
	Type           SubscriptionType
	StartedUnixUTC int64
	ExpiresUnixUTC int64
}

// ActiveAt reports whether the subscription is active at the given time.
func (subscription Subscription) ActiveAt(nowUnixUTC int64) bool {
	return subscription.Type != SubscriptionNone && subscription.ExpiresUnixUTC > nowUnixUTC
}

// CallInput carries the fields of a call being posted.
type CallInput struct {
	Asset           string
	Private         bool
	Thesis          string
	EntryPrice      Amount
	TargetPrice     Amount
	DurationSeconds int64
}

// Call is a published call.
type Call struct {
	ID             uint64
	Caller         common.Address
	Asset          string
	Private        bool
	Thesis         string
	EntryPrice     Amount
	TargetPrice    Amount
	CreatedUnixUTC int64
	ExpiresUnixUTC int64
}

// CallPayment records that a payer bought access to a call.
type CallPayment struct {
	Payer       common.Address
	CallID      uint64
	Amount      Amount
	PaidUnixUTC int64
}

// FeeSplit is the three-way division of a payment.
type FeeSplit struct {
	Caller   Amount
	Protocol Amount
	Team     Amount
}

// SplitPayment divides a payment into caller, protocol and team shares.
// Protocol and team shares are floored; the remainder goes to the caller.
func SplitPayment(price Amount) (FeeSplit, error) {
	denominator := NewAmountFromUint64(percentDenominator)
	protocol, err := price.MulDiv(NewAmountFromUint64(protocolFeePercent), denominator)
	if err != nil {
		return FeeSplit{}, err
	}
	team, err := price.MulDiv(NewAmountFromUint64(teamFeePercent), denominator)
	if err != nil {
		return FeeSplit{}, err
	}
	withheld, err := protocol.Add(team)
	if err != nil {
		return FeeSplit{}, err
	}
	caller, err := price.Sub(withheld)
	if err != nil {
		return FeeSplit{}, err
	}
	return FeeSplit{Caller: caller, Protocol: protocol, Team: team}, nil
}

// TokenTransfer describes a movement of a fee token between two accounts.
type TokenTransfer struct {
	Token   common.Address
	From    common.Address
	To      common.Address
	Amount  Amount
	Memo    string
	// UnixUTC is the service clock at the time of the transfer; zero lets the ledger stamp it.
	UnixUTC int64
}
