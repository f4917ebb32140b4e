package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// singletonID is the primary key of single-row configuration tables.
const singletonID = 1

// StakingConfig mirrors the staking_configs table.
type StakingConfig struct {
	ID           uint8     `gorm:"primaryKey;autoIncrement:false"`
	Owner        string    `gorm:"type:varchar(42);not null"`
	Custody      string    `gorm:"type:varchar(42);not null"`
	StakingToken string    `gorm:"type:varchar(42);not null"`
	FeeRouter    string    `gorm:"type:varchar(42);not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (StakingConfig) TableName() string { return "staking_configs" }

// Stake mirrors the stakes table.
type Stake struct {
	Account   string    `gorm:"type:varchar(42);primaryKey"`
	Staked    string    `gorm:"type:varchar(78);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Stake) TableName() string { return "stakes" }

// StakingTotal mirrors the staking_totals table.
type StakingTotal struct {
	ID          uint8     `gorm:"primaryKey;autoIncrement:false"`
	TotalStaked string    `gorm:"type:varchar(78);not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (StakingTotal) TableName() string { return "staking_totals" }

// FeeAccumulator mirrors the fee_accumulators table.
type FeeAccumulator struct {
	Token          string    `gorm:"type:varchar(42);primaryKey"`
	RewardPerShare string    `gorm:"type:varchar(78);not null"`
	Stranded       string    `gorm:"type:varchar(78);not null"`
	Carry          string    `gorm:"type:varchar(78);not null;default:'0'"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (FeeAccumulator) TableName() string { return "fee_accumulators" }

// RewardDebt mirrors the reward_debts table.
type RewardDebt struct {
	Account   string    `gorm:"type:varchar(42);primaryKey"`
	Token     string    `gorm:"type:varchar(42);primaryKey"`
	Debt      string    `gorm:"type:varchar(78);not null"`
	Owed      string    `gorm:"type:varchar(78);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (RewardDebt) TableName() string { return "reward_debts" }

// VestingConfig mirrors the vesting_configs table.
type VestingConfig struct {
	ID             uint8     `gorm:"primaryKey;autoIncrement:false"`
	Owner          string    `gorm:"type:varchar(42);not null"`
	Custody        string    `gorm:"type:varchar(42);not null"`
	RewardToken    string    `gorm:"type:varchar(42);not null"`
	Recorder       string    `gorm:"type:varchar(42);not null"`
	DailyPool      string    `gorm:"type:varchar(78);not null"`
	GenesisUnixUTC int64     `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (VestingConfig) TableName() string { return "vesting_configs" }

// EligibilityRecord mirrors the eligibility_records table.
type EligibilityRecord struct {
	Day      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Account  string `gorm:"type:varchar(42);primaryKey"`
	Eligible bool   `gorm:"not null"`
}

func (EligibilityRecord) TableName() string { return "eligibility_records" }

// EligibilityDay mirrors the eligibility_days table.
type EligibilityDay struct {
	Day           uint64    `gorm:"primaryKey;autoIncrement:false"`
	TotalEligible uint64    `gorm:"not null"`
	Frozen        bool      `gorm:"not null"`
	Distributed   string    `gorm:"type:varchar(78);not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (EligibilityDay) TableName() string { return "eligibility_days" }

// DailyClaim mirrors the daily_claims table.
type DailyClaim struct {
	Day            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Account        string `gorm:"type:varchar(42);primaryKey"`
	Amount         string `gorm:"type:varchar(78);not null"`
	ClaimedUnixUTC int64  `gorm:"not null"`
}

func (DailyClaim) TableName() string { return "daily_claims" }

// LifetimeClaim mirrors the lifetime_claims table.
type LifetimeClaim struct {
	Account   string    `gorm:"type:varchar(42);primaryKey"`
	Total     string    `gorm:"type:varchar(78);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (LifetimeClaim) TableName() string { return "lifetime_claims" }

// MarketplaceConfig mirrors the marketplace_configs table.
type MarketplaceConfig struct {
	ID             uint8          `gorm:"primaryKey;autoIncrement:false"`
	Owner          string         `gorm:"type:varchar(42);not null"`
	Custody        string         `gorm:"type:varchar(42);not null"`
	StakingLedger  string         `gorm:"type:varchar(42);not null"`
	TeamWallet     string         `gorm:"type:varchar(42);not null"`
	AcceptedTokens datatypes.JSON `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

func (MarketplaceConfig) TableName() string { return "marketplace_configs" }

// UserProfile mirrors the user_profiles table.
type UserProfile struct {
	Account        string `gorm:"type:varchar(42);primaryKey"`
	Username       string `gorm:"type:varchar(64);not null"`
	CreatedUnixUTC int64  `gorm:"not null"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// Club mirrors the clubs table.
type Club struct {
	Caller         string `gorm:"type:varchar(42);primaryKey"`
	Name           string `gorm:"type:varchar(128);not null"`
	PricePerCall   string `gorm:"type:varchar(78);not null"`
	WeeklyPrice    string `gorm:"type:varchar(78);not null"`
	MonthlyPrice   string `gorm:"type:varchar(78);not null"`
	YearlyPrice    string `gorm:"type:varchar(78);not null"`
	LifetimePrice  string `gorm:"type:varchar(78);not null"`
	AcceptedToken  string `gorm:"type:varchar(42);not null"`
	CreatedUnixUTC int64  `gorm:"not null"`
	UpdatedUnixUTC int64  `gorm:"not null"`
}

func (Club) TableName() string { return "clubs" }

// Subscription mirrors the subscriptions table.
type Subscription struct {
	Subscriber     string `gorm:"type:varchar(42);primaryKey"`
	ClubOwner      string `gorm:"type:varchar(42);primaryKey"`
	Type           uint8  `gorm:"not null"`
	StartedUnixUTC int64  `gorm:"not null"`
	ExpiresUnixUTC int64  `gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Call mirrors the calls table.
type Call struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement:false"`
	Caller         string `gorm:"type:varchar(42);not null;index"`
	Asset          string `gorm:"type:varchar(64);not null"`
	Private        bool   `gorm:"not null"`
	Thesis         string `gorm:"type:text;not null"`
	EntryPrice     string `gorm:"type:varchar(78);not null"`
	TargetPrice    string `gorm:"type:varchar(78);not null"`
	CreatedUnixUTC int64  `gorm:"not null"`
	ExpiresUnixUTC int64  `gorm:"not null"`
}

func (Call) TableName() string { return "calls" }

// CallPayment mirrors the call_payments table.
type CallPayment struct {
	Payer       string `gorm:"type:varchar(42);primaryKey"`
	CallID      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Amount      string `gorm:"type:varchar(78);not null"`
	PaidUnixUTC int64  `gorm:"not null"`
}

func (CallPayment) TableName() string { return "call_payments" }

// TokenBalance mirrors the token_balances table.
type TokenBalance struct {
	Token     string    `gorm:"type:varchar(42);primaryKey"`
	Account   string    `gorm:"type:varchar(42);primaryKey"`
	Balance   string    `gorm:"type:varchar(78);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TokenBalance) TableName() string { return "token_balances" }

// TokenAllowance mirrors the token_allowances table.
type TokenAllowance struct {
	Token     string    `gorm:"type:varchar(42);primaryKey"`
	Owner     string    `gorm:"type:varchar(42);primaryKey"`
	Spender   string    `gorm:"type:varchar(42);primaryKey"`
	Amount    string    `gorm:"type:varchar(78);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TokenAllowance) TableName() string { return "token_allowances" }

// TokenTransfer mirrors the append-only token_transfers journal.
type TokenTransfer struct {
	EntryID     string         `gorm:"type:uuid;primaryKey"`
	Token       string         `gorm:"type:varchar(42);not null;index:idx_token_transfers_token_created,priority:1"`
	FromAccount string         `gorm:"type:varchar(42);not null;index"`
	ToAccount   string         `gorm:"type:varchar(42);not null;index"`
	Amount      string         `gorm:"type:varchar(78);not null"`
	Memo        string         `gorm:"type:varchar(64);not null"`
	Metadata    datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_token_transfers_token_created,priority:2"`
}

func (TokenTransfer) TableName() string { return "token_transfers" }

func (transfer *TokenTransfer) BeforeCreate(tx *gorm.DB) error {
	if transfer.EntryID == "" {
		transfer.EntryID = uuid.NewString()
	}
	return nil
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&StakingConfig{},
		&Stake{},
		&StakingTotal{},
		&FeeAccumulator{},
		&RewardDebt{},
		&VestingConfig{},
		&EligibilityRecord{},
		&EligibilityDay{},
		&DailyClaim{},
		&LifetimeClaim{},
		&MarketplaceConfig{},
		&UserProfile{},
		&Club{},
		&Subscription{},
		&Call{},
		&CallPayment{},
		&TokenBalance{},
		&TokenAllowance{},
		&TokenTransfer{},
	}
}
