package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectConfig      = "config"
	errorSubjectStake       = "stake"
	errorSubjectAccumulator = "accumulator"
	errorSubjectRewardDebt  = "reward_debt"
	errorSubjectEligibility = "eligibility"
	errorSubjectClaim       = "claim"
	errorSubjectProfile     = "profile"
	errorSubjectClub        = "club"
	errorSubjectSubscriber  = "subscription"
	errorSubjectCall        = "call"
	errorSubjectPayment     = "call_payment"
	errorSubjectSchema      = "schema"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeSave           = "save"
	errorCodeDelete         = "delete"
	errorCodeMigrate        = "migrate"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db            *gorm.DB
	inTransaction bool
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table used by the store.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, inTransaction: true})
	})
}

// Tokens returns the token book bound to the store's connection or transaction.
func (store *Store) Tokens() ledger.TokenLedger {
	return &TokenBook{db: store.db}
}

// Book returns the token book with its administrative operations.
func (store *Store) Book() *TokenBook {
	return &TokenBook{db: store.db}
}

// reader locks selected rows when running inside a transaction.
func (store *Store) reader(ctx context.Context) *gorm.DB {
	db := store.db.WithContext(ctx)
	if store.inTransaction {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (store *Store) upsert(ctx context.Context, subject string, model interface{}) error {
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
	if err != nil {
		return wrapStoreError(subject, errorCodeSave, err)
	}
	return nil
}

// take loads one row into model; found is false when no row matches.
func (store *Store) take(ctx context.Context, subject string, model interface{}, query string, args ...interface{}) (bool, error) {
	err := store.reader(ctx).Where(query, args...).Take(model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreError(subject, errorCodeGet, err)
	}
	return true, nil
}

func (store *Store) GetStakingConfig(ctx context.Context) (ledger.StakingConfig, error) {
	var model StakingConfig
	found, err := store.take(ctx, errorSubjectConfig, &model, "id = ?", singletonID)
	if err != nil {
		return ledger.StakingConfig{}, err
	}
	if !found {
		return ledger.StakingConfig{}, wrapStoreError(errorSubjectConfig, errorCodeGet, ledger.ErrNotConfigured)
	}
	return ledger.StakingConfig{
		Owner:        parseAddressColumn(model.Owner),
		Custody:      parseAddressColumn(model.Custody),
		StakingToken: parseAddressColumn(model.StakingToken),
		FeeRouter:    parseAddressColumn(model.FeeRouter),
	}, nil
}

func (store *Store) SaveStakingConfig(ctx context.Context, config ledger.StakingConfig) error {
	return store.upsert(ctx, errorSubjectConfig, &StakingConfig{
		ID:           singletonID,
		Owner:        config.Owner.Hex(),
		Custody:      config.Custody.Hex(),
		StakingToken: config.StakingToken.Hex(),
		FeeRouter:    config.FeeRouter.Hex(),
	})
}

func (store *Store) GetStake(ctx context.Context, account common.Address) (ledger.Amount, error) {
	var model Stake
	found, err := store.take(ctx, errorSubjectStake, &model, "account = ?", account.Hex())
	if err != nil || !found {
		return ledger.ZeroAmount(), err
	}
	return parseAmountColumn(errorSubjectStake, model.Staked)
}

func (store *Store) SaveStake(ctx context.Context, account common.Address, staked ledger.Amount) error {
	return store.upsert(ctx, errorSubjectStake, &Stake{Account: account.Hex(), Staked: staked.String()})
}

func (store *Store) GetTotalStaked(ctx context.Context) (ledger.Amount, error) {
	var model StakingTotal
	found, err := store.take(ctx, errorSubjectStake, &model, "id = ?", singletonID)
	if err != nil || !found {
		return ledger.ZeroAmount(), err
	}
	return parseAmountColumn(errorSubjectStake, model.TotalStaked)
}

func (store *Store) SaveTotalStaked(ctx context.Context, total ledger.Amount) error {
	return store.upsert(ctx, errorSubjectStake, &StakingTotal{ID: singletonID, TotalStaked: total.String()})
}

func (store *Store) ListFeeTokens(ctx context.Context) ([]common.Address, error) {
	var tokens []string
	err := store.db.WithContext(ctx).
		Model(&FeeAccumulator{}).
		Order("created_at ASC, token ASC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccumulator, errorCodeList, err)
	}
	addresses := make([]common.Address, 0, len(tokens))
	for _, token := range tokens {
		addresses = append(addresses, parseAddressColumn(token))
	}
	return addresses, nil
}

func (store *Store) GetFeeAccumulator(ctx context.Context, token common.Address) (ledger.FeeAccumulator, error) {
	var model FeeAccumulator
	found, err := store.take(ctx, errorSubjectAccumulator, &model, "token = ?", token.Hex())
	if err != nil {
		return ledger.FeeAccumulator{}, err
	}
	if !found {
		return ledger.FeeAccumulator{Token: token}, nil
	}
	rewardPerShare, err := parseAmountColumn(errorSubjectAccumulator, model.RewardPerShare)
	if err != nil {
		return ledger.FeeAccumulator{}, err
	}
	stranded, err := parseAmountColumn(errorSubjectAccumulator, model.Stranded)
	if err != nil {
		return ledger.FeeAccumulator{}, err
	}
	carry, err := parseAmountColumn(errorSubjectAccumulator, model.Carry)
	if err != nil {
		return ledger.FeeAccumulator{}, err
	}
	return ledger.FeeAccumulator{Token: token, RewardPerShare: rewardPerShare, Stranded: stranded, Carry: carry}, nil
}

func (store *Store) SaveFeeAccumulator(ctx context.Context, accumulator ledger.FeeAccumulator) error {
	return store.upsert(ctx, errorSubjectAccumulator, &FeeAccumulator{
		Token:          accumulator.Token.Hex(),
		RewardPerShare: accumulator.RewardPerShare.String(),
		Stranded:       accumulator.Stranded.String(),
		Carry:          accumulator.Carry.String(),
	})
}

func (store *Store) GetRewardDebt(ctx context.Context, account common.Address, token common.Address) (ledger.RewardDebt, error) {
	var model RewardDebt
	found, err := store.take(ctx, errorSubjectRewardDebt, &model, "account = ? AND token = ?", account.Hex(), token.Hex())
	if err != nil {
		return ledger.RewardDebt{}, err
	}
	if !found {
		return ledger.RewardDebt{Account: account, Token: token}, nil
	}
	debt, err := parseAmountColumn(errorSubjectRewardDebt, model.Debt)
	if err != nil {
		return ledger.RewardDebt{}, err
	}
	owed, err := parseAmountColumn(errorSubjectRewardDebt, model.Owed)
	if err != nil {
		return ledger.RewardDebt{}, err
	}
	return ledger.RewardDebt{Account: account, Token: token, Debt: debt, Owed: owed}, nil
}

func (store *Store) SaveRewardDebt(ctx context.Context, debt ledger.RewardDebt) error {
	return store.upsert(ctx, errorSubjectRewardDebt, &RewardDebt{
		Account: debt.Account.Hex(),
		Token:   debt.Token.Hex(),
		Debt:    debt.Debt.String(),
		Owed:    debt.Owed.String(),
	})
}

func (store *Store) GetVestingConfig(ctx context.Context) (ledger.VestingConfig, error) {
	var model VestingConfig
	found, err := store.take(ctx, errorSubjectConfig, &model, "id = ?", singletonID)
	if err != nil {
		return ledger.VestingConfig{}, err
	}
	if !found {
		return ledger.VestingConfig{}, wrapStoreError(errorSubjectConfig, errorCodeGet, ledger.ErrNotConfigured)
	}
	dailyPool, err := parseAmountColumn(errorSubjectConfig, model.DailyPool)
	if err != nil {
		return ledger.VestingConfig{}, err
	}
	return ledger.VestingConfig{
		Owner:          parseAddressColumn(model.Owner),
		Custody:        parseAddressColumn(model.Custody),
		RewardToken:    parseAddressColumn(model.RewardToken),
		Recorder:       parseAddressColumn(model.Recorder),
		DailyPool:      dailyPool,
		GenesisUnixUTC: model.GenesisUnixUTC,
	}, nil
}

func (store *Store) SaveVestingConfig(ctx context.Context, config ledger.VestingConfig) error {
	return store.upsert(ctx, errorSubjectConfig, &VestingConfig{
		ID:             singletonID,
		Owner:          config.Owner.Hex(),
		Custody:        config.Custody.Hex(),
		RewardToken:    config.RewardToken.Hex(),
		Recorder:       config.Recorder.Hex(),
		DailyPool:      config.DailyPool.String(),
		GenesisUnixUTC: config.GenesisUnixUTC,
	})
}

func (store *Store) GetEligibility(ctx context.Context, day uint64, account common.Address) (bool, error) {
	var model EligibilityRecord
	found, err := store.take(ctx, errorSubjectEligibility, &model, "day = ? AND account = ?", day, account.Hex())
	if err != nil || !found {
		return false, err
	}
	return model.Eligible, nil
}

func (store *Store) SaveEligibility(ctx context.Context, day uint64, account common.Address, eligible bool) error {
	return store.upsert(ctx, errorSubjectEligibility, &EligibilityRecord{Day: day, Account: account.Hex(), Eligible: eligible})
}

func (store *Store) ClearEligibility(ctx context.Context, day uint64) error {
	err := store.db.WithContext(ctx).Where("day = ?", day).Delete(&EligibilityRecord{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectEligibility, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) GetEligibilityDay(ctx context.Context, day uint64) (ledger.EligibilityDay, error) {
	var model EligibilityDay
	found, err := store.take(ctx, errorSubjectEligibility, &model, "day = ?", day)
	if err != nil {
		return ledger.EligibilityDay{}, err
	}
	if !found {
		return ledger.EligibilityDay{Day: day}, nil
	}
	distributed, err := parseAmountColumn(errorSubjectEligibility, model.Distributed)
	if err != nil {
		return ledger.EligibilityDay{}, err
	}
	return ledger.EligibilityDay{
		Day:           day,
		TotalEligible: model.TotalEligible,
		Frozen:        model.Frozen,
		Distributed:   distributed,
	}, nil
}

func (store *Store) SaveEligibilityDay(ctx context.Context, record ledger.EligibilityDay) error {
	return store.upsert(ctx, errorSubjectEligibility, &EligibilityDay{
		Day:           record.Day,
		TotalEligible: record.TotalEligible,
		Frozen:        record.Frozen,
		Distributed:   record.Distributed.String(),
	})
}

func (store *Store) GetDailyClaim(ctx context.Context, day uint64, account common.Address) (ledger.DailyClaim, bool, error) {
	var model DailyClaim
	found, err := store.take(ctx, errorSubjectClaim, &model, "day = ? AND account = ?", day, account.Hex())
	if err != nil || !found {
		return ledger.DailyClaim{}, false, err
	}
	amount, err := parseAmountColumn(errorSubjectClaim, model.Amount)
	if err != nil {
		return ledger.DailyClaim{}, false, err
	}
	return ledger.DailyClaim{Day: day, Account: account, Amount: amount, ClaimedUnixUTC: model.ClaimedUnixUTC}, true, nil
}

func (store *Store) SaveDailyClaim(ctx context.Context, claim ledger.DailyClaim) error {
	err := store.db.WithContext(ctx).Create(&DailyClaim{
		Day:            claim.Day,
		Account:        claim.Account.Hex(),
		Amount:         claim.Amount.String(),
		ClaimedUnixUTC: claim.ClaimedUnixUTC,
	}).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectClaim, errorCodeDuplicate, fmt.Errorf("%w: day %d already claimed", ledger.ErrNothingToClaim, claim.Day))
	}
	if err != nil {
		return wrapStoreError(errorSubjectClaim, errorCodeSave, err)
	}
	return nil
}

func (store *Store) GetLifetimeClaimed(ctx context.Context, account common.Address) (ledger.Amount, error) {
	var model LifetimeClaim
	found, err := store.take(ctx, errorSubjectClaim, &model, "account = ?", account.Hex())
	if err != nil || !found {
		return ledger.ZeroAmount(), err
	}
	return parseAmountColumn(errorSubjectClaim, model.Total)
}

func (store *Store) SaveLifetimeClaimed(ctx context.Context, account common.Address, total ledger.Amount) error {
	return store.upsert(ctx, errorSubjectClaim, &LifetimeClaim{Account: account.Hex(), Total: total.String()})
}

func (store *Store) GetMarketplaceConfig(ctx context.Context) (ledger.MarketplaceConfig, error) {
	var model MarketplaceConfig
	found, err := store.take(ctx, errorSubjectConfig, &model, "id = ?", singletonID)
	if err != nil {
		return ledger.MarketplaceConfig{}, err
	}
	if !found {
		return ledger.MarketplaceConfig{}, wrapStoreError(errorSubjectConfig, errorCodeGet, ledger.ErrNotConfigured)
	}
	var rawTokens []string
	if err := json.Unmarshal(model.AcceptedTokens, &rawTokens); err != nil {
		return ledger.MarketplaceConfig{}, wrapStoreError(errorSubjectConfig, errorCodeInvalid, err)
	}
	acceptedTokens := make([]common.Address, 0, len(rawTokens))
	for _, rawToken := range rawTokens {
		acceptedTokens = append(acceptedTokens, parseAddressColumn(rawToken))
	}
	return ledger.MarketplaceConfig{
		Owner:          parseAddressColumn(model.Owner),
		Custody:        parseAddressColumn(model.Custody),
		StakingLedger:  parseAddressColumn(model.StakingLedger),
		TeamWallet:     parseAddressColumn(model.TeamWallet),
		AcceptedTokens: acceptedTokens,
	}, nil
}

func (store *Store) SaveMarketplaceConfig(ctx context.Context, config ledger.MarketplaceConfig) error {
	rawTokens := make([]string, 0, len(config.AcceptedTokens))
	for _, token := range config.AcceptedTokens {
		rawTokens = append(rawTokens, token.Hex())
	}
	encodedTokens, err := json.Marshal(rawTokens)
	if err != nil {
		return wrapStoreError(errorSubjectConfig, errorCodeInvalid, err)
	}
	return store.upsert(ctx, errorSubjectConfig, &MarketplaceConfig{
		ID:             singletonID,
		Owner:          config.Owner.Hex(),
		Custody:        config.Custody.Hex(),
		StakingLedger:  config.StakingLedger.Hex(),
		TeamWallet:     config.TeamWallet.Hex(),
		AcceptedTokens: datatypes.JSON(encodedTokens),
	})
}

func (store *Store) GetProfile(ctx context.Context, account common.Address) (ledger.UserProfile, error) {
	var model UserProfile
	found, err := store.take(ctx, errorSubjectProfile, &model, "account = ?", account.Hex())
	if err != nil {
		return ledger.UserProfile{}, err
	}
	if !found {
		return ledger.UserProfile{}, wrapStoreError(errorSubjectProfile, errorCodeGet, ledger.ErrProfileDoesNotExist)
	}
	return ledger.UserProfile{Account: account, Username: model.Username, CreatedUnixUTC: model.CreatedUnixUTC}, nil
}

func (store *Store) SaveProfile(ctx context.Context, profile ledger.UserProfile) error {
	return store.upsert(ctx, errorSubjectProfile, &UserProfile{
		Account:        profile.Account.Hex(),
		Username:       profile.Username,
		CreatedUnixUTC: profile.CreatedUnixUTC,
	})
}

func (store *Store) GetClub(ctx context.Context, caller common.Address) (ledger.Club, error) {
	var model Club
	found, err := store.take(ctx, errorSubjectClub, &model, "caller = ?", caller.Hex())
	if err != nil {
		return ledger.Club{}, err
	}
	if !found {
		return ledger.Club{}, wrapStoreError(errorSubjectClub, errorCodeGet, ledger.ErrClubDoesNotExist)
	}
	return mapClub(model)
}

func (store *Store) SaveClub(ctx context.Context, club ledger.Club) error {
	return store.upsert(ctx, errorSubjectClub, &Club{
		Caller:         club.Caller.Hex(),
		Name:           club.Name,
		PricePerCall:   club.Prices.PerCall.String(),
		WeeklyPrice:    club.Prices.Weekly.String(),
		MonthlyPrice:   club.Prices.Monthly.String(),
		YearlyPrice:    club.Prices.Yearly.String(),
		LifetimePrice:  club.Prices.Lifetime.String(),
		AcceptedToken:  club.AcceptedToken.Hex(),
		CreatedUnixUTC: club.CreatedUnixUTC,
		UpdatedUnixUTC: club.UpdatedUnixUTC,
	})
}

func (store *Store) GetSubscription(ctx context.Context, subscriber common.Address, clubOwner common.Address) (ledger.Subscription, error) {
	var model Subscription
	found, err := store.take(ctx, errorSubjectSubscriber, &model, "subscriber = ? AND club_owner = ?", subscriber.Hex(), clubOwner.Hex())
	if err != nil {
		return ledger.Subscription{}, err
	}
	subscription := ledger.Subscription{Subscriber: subscriber, ClubOwner: clubOwner}
	if !found {
		return subscription, nil
	}
	subscription.Type = ledger.SubscriptionType(model.Type)
	subscription.StartedUnixUTC = model.StartedUnixUTC
	subscription.ExpiresUnixUTC = model.ExpiresUnixUTC
	return subscription, nil
}

func (store *Store) SaveSubscription(ctx context.Context, subscription ledger.Subscription) error {
	return store.upsert(ctx, errorSubjectSubscriber, &Subscription{
		Subscriber:     subscription.Subscriber.Hex(),
		ClubOwner:      subscription.ClubOwner.Hex(),
		Type:           uint8(subscription.Type),
		StartedUnixUTC: subscription.StartedUnixUTC,
		ExpiresUnixUTC: subscription.ExpiresUnixUTC,
	})
}

// CreateCall assigns max(id)+1 so ids stay gapless across rolled back transactions.
func (store *Store) CreateCall(ctx context.Context, call ledger.Call) (ledger.Call, error) {
	var lastID uint64
	err := store.db.WithContext(ctx).
		Model(&Call{}).
		Select("coalesce(max(id),0)").
		Scan(&lastID).Error
	if err != nil {
		return ledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeGet, err)
	}
	call.ID = lastID + 1
	model := Call{
		ID:             call.ID,
		Caller:         call.Caller.Hex(),
		Asset:          call.Asset,
		Private:        call.Private,
		Thesis:         call.Thesis,
		EntryPrice:     call.EntryPrice.String(),
		TargetPrice:    call.TargetPrice.String(),
		CreatedUnixUTC: call.CreatedUnixUTC,
		ExpiresUnixUTC: call.ExpiresUnixUTC,
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return ledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeDuplicate, err)
	}
	if err != nil {
		return ledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeSave, err)
	}
	return call, nil
}

func (store *Store) GetCall(ctx context.Context, callID uint64) (ledger.Call, error) {
	var model Call
	found, err := store.take(ctx, errorSubjectCall, &model, "id = ?", callID)
	if err != nil {
		return ledger.Call{}, err
	}
	if !found {
		return ledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeGet, fmt.Errorf("%w: %d", ledger.ErrCallDoesNotExist, callID))
	}
	return mapCall(model)
}

func (store *Store) ListCallsByCaller(ctx context.Context, caller common.Address) ([]ledger.Call, error) {
	var rows []Call
	err := store.db.WithContext(ctx).
		Where("caller = ?", caller.Hex()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCall, errorCodeList, err)
	}
	calls := make([]ledger.Call, 0, len(rows))
	for _, row := range rows {
		call, err := mapCall(row)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (store *Store) GetCallPayment(ctx context.Context, payer common.Address, callID uint64) (ledger.CallPayment, bool, error) {
	var model CallPayment
	found, err := store.take(ctx, errorSubjectPayment, &model, "payer = ? AND call_id = ?", payer.Hex(), callID)
	if err != nil || !found {
		return ledger.CallPayment{}, false, err
	}
	amount, err := parseAmountColumn(errorSubjectPayment, model.Amount)
	if err != nil {
		return ledger.CallPayment{}, false, err
	}
	return ledger.CallPayment{Payer: payer, CallID: callID, Amount: amount, PaidUnixUTC: model.PaidUnixUTC}, true, nil
}

func (store *Store) SaveCallPayment(ctx context.Context, payment ledger.CallPayment) error {
	err := store.db.WithContext(ctx).Create(&CallPayment{
		Payer:       payment.Payer.Hex(),
		CallID:      payment.CallID,
		Amount:      payment.Amount.String(),
		PaidUnixUTC: payment.PaidUnixUTC,
	}).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, fmt.Errorf("%w: call %d", ledger.ErrAlreadyPaid, payment.CallID))
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeSave, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func parseAmountColumn(subject string, raw string) (ledger.Amount, error) {
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		return ledger.Amount{}, wrapStoreError(subject, errorCodeInvalid, err)
	}
	return amount, nil
}

func parseAddressColumn(raw string) common.Address {
	return common.HexToAddress(raw)
}

func mapClub(model Club) (ledger.Club, error) {
	columns := []string{model.PricePerCall, model.WeeklyPrice, model.MonthlyPrice, model.YearlyPrice, model.LifetimePrice}
	prices := make([]ledger.Amount, 0, len(columns))
	for _, column := range columns {
		price, err := parseAmountColumn(errorSubjectClub, column)
		if err != nil {
			return ledger.Club{}, err
		}
		prices = append(prices, price)
	}
	return ledger.Club{
		Caller: parseAddressColumn(model.Caller),
		Name:   model.Name,
		Prices: ledger.ClubPrices{
			PerCall:  prices[0],
			Weekly:   prices[1],
			Monthly:  prices[2],
			Yearly:   prices[3],
			Lifetime: prices[4],
		},
		AcceptedToken:  parseAddressColumn(model.AcceptedToken),
		CreatedUnixUTC: model.CreatedUnixUTC,
		UpdatedUnixUTC: model.UpdatedUnixUTC,
	}, nil
}

func mapCall(model Call) (ledger.Call, error) {
	entryPrice, err := parseAmountColumn(errorSubjectCall, model.EntryPrice)
	if err != nil {
		return ledger.Call{}, err
	}
	targetPrice, err := parseAmountColumn(errorSubjectCall, model.TargetPrice)
	if err != nil {
		return ledger.Call{}, err
	}
	return ledger.Call{
		ID:             model.ID,
		Caller:         parseAddressColumn(model.Caller),
		Asset:          model.Asset,
		Private:        model.Private,
		Thesis:         model.Thesis,
		EntryPrice:     entryPrice,
		TargetPrice:    targetPrice,
		CreatedUnixUTC: model.CreatedUnixUTC,
		ExpiresUnixUTC: model.ExpiresUnixUTC,
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
