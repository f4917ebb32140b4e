package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// MarketplaceService runs clubs, subscriptions and paid calls, and routes the
// protocol share of every payment into the staking ledger.
type MarketplaceService struct {
	serviceCore
}

// ClubInput carries the fields of a club being created.
type ClubInput struct {
	Name          string
	Prices        ClubPrices
	AcceptedToken common.Address
}

// NewMarketplaceService wires a MarketplaceService.
func NewMarketplaceService(store Store, now func() int64, options ...ServiceOption) (*MarketplaceService, error) {
	core, err := newServiceCore(store, now, options)
	if err != nil {
		return nil, err
	}
	return &MarketplaceService{serviceCore: core}, nil
}

// Provision stores the marketplace configuration unless one already exists.
func (service *MarketplaceService) Provision(ctx context.Context, config MarketplaceConfig) error {
	if err := requireAddress(config.Owner, "owner"); err != nil {
		return err
	}
	if err := requireAddress(config.Custody, "custody"); err != nil {
		return err
	}
	if err := requireAddress(config.TeamWallet, "team wallet"); err != nil {
		return err
	}
	config.AcceptedTokens = dedupeAddresses(config.AcceptedTokens)
	for _, token := range config.AcceptedTokens {
		if err := requireAddress(token, "accepted token"); err != nil {
			return err
		}
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, err := transactionStore.GetMarketplaceConfig(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			return err
		}
		if err := requireUnsharedCustody(ctx, transactionStore, ledgerMarketplace, config.Custody); err != nil {
			return err
		}
		return transactionStore.SaveMarketplaceConfig(ctx, config)
	})
}

// Config returns the marketplace configuration.
func (service *MarketplaceService) Config(ctx context.Context) (MarketplaceConfig, error) {
	return service.store.GetMarketplaceConfig(ctx)
}

// CreateUserProfile stores or renames the profile of caller.
func (service *MarketplaceService) CreateUserProfile(ctx context.Context, caller common.Address, username string) (UserProfile, error) {
	var profile UserProfile
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		trimmed := strings.TrimSpace(username)
		if trimmed == "" || utf8.RuneCountInString(trimmed) > maxUsernameLength {
			return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
		}
		existing, err := transactionStore.GetProfile(ctx, caller)
		switch {
		case err == nil:
			profile = existing
		case errors.Is(err, ErrProfileDoesNotExist):
			profile = UserProfile{Account: caller, CreatedUnixUTC: service.nowFn()}
		default:
			return err
		}
		profile.Username = trimmed
		return transactionStore.SaveProfile(ctx, profile)
	})
	service.logOperation(ctx, OperationLog{Operation: operationCreateProfile, Caller: caller, Error: operationError})
	if operationError != nil {
		return UserProfile{}, operationError
	}
	return profile, nil
}

// Profile returns the profile of account.
func (service *MarketplaceService) Profile(ctx context.Context, account common.Address) (UserProfile, error) {
	return service.store.GetProfile(ctx, account)
}

// CreateClub creates or replaces the club owned by caller.
func (service *MarketplaceService) CreateClub(ctx context.Context, caller common.Address, input ClubInput) (Club, error) {
	var club Club
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		name := strings.TrimSpace(input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxClubNameLength {
			return fmt.Errorf("%w: %q", ErrInvalidClubName, input.Name)
		}
		if err := input.Prices.Validate(); err != nil {
			return err
		}
		config, err := transactionStore.GetMarketplaceConfig(ctx)
		if err != nil {
			return err
		}
		if !containsAddress(config.AcceptedTokens, input.AcceptedToken) {
			return fmt.Errorf("%w: %s", ErrTokenNotAccepted, input.AcceptedToken.Hex())
		}
		nowUnixUTC := service.nowFn()
		createdUnixUTC := nowUnixUTC
		existing, err := transactionStore.GetClub(ctx, caller)
		switch {
		case err == nil:
			createdUnixUTC = existing.CreatedUnixUTC
		case !errors.Is(err, ErrClubDoesNotExist):
			return err
		}
		club = Club{
			Caller:         caller,
			Name:           name,
			Prices:         input.Prices,
			AcceptedToken:  input.AcceptedToken,
			CreatedUnixUTC: createdUnixUTC,
			UpdatedUnixUTC: nowUnixUTC,
		}
		return transactionStore.SaveClub(ctx, club)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateClub,
		Caller:    caller,
		Token:     input.AcceptedToken,
		Amount:    input.Prices.PerCall,
		Error:     operationError,
	})
	if operationError != nil {
		return Club{}, operationError
	}
	return club, nil
}

// UpdateClubPricing replaces the prices of the club owned by clubOwner.
func (service *MarketplaceService) UpdateClubPricing(ctx context.Context, caller common.Address, clubOwner common.Address, prices ClubPrices) (Club, error) {
	var club Club
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if caller == (common.Address{}) || caller != clubOwner {
			return fmt.Errorf("%w: %s does not own the club", ErrUnauthorized, caller.Hex())
		}
		existing, err := transactionStore.GetClub(ctx, clubOwner)
		if err != nil {
			return err
		}
		if err := prices.Validate(); err != nil {
			return err
		}
		existing.Prices = prices
		existing.UpdatedUnixUTC = service.nowFn()
		club = existing
		return transactionStore.SaveClub(ctx, club)
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationUpdateClubPricing,
		Caller:       caller,
		Counterparty: clubOwner,
		Amount:       prices.PerCall,
		Error:        operationError,
	})
	if operationError != nil {
		return Club{}, operationError
	}
	return club, nil
}

// Club returns the club owned by caller.
func (service *MarketplaceService) Club(ctx context.Context, caller common.Address) (Club, error) {
	return service.store.GetClub(ctx, caller)
}

// Subscribe buys a subscription tier of the club owned by clubOwner.
func (service *MarketplaceService) Subscribe(ctx context.Context, caller common.Address, clubOwner common.Address, subscriptionType SubscriptionType) (Subscription, error) {
	var (
		subscription Subscription
		price        Amount
		token        common.Address
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		tier, err := ParseSubscriptionType(int64(subscriptionType))
		if err != nil {
			return err
		}
		club, err := transactionStore.GetClub(ctx, clubOwner)
		if err != nil {
			return err
		}
		config, err := transactionStore.GetMarketplaceConfig(ctx)
		if err != nil {
			return err
		}
		price, err = club.Prices.TierPrice(tier)
		if err != nil {
			return err
		}
		token = club.AcceptedToken
		nowUnixUTC := service.nowFn()
		expiresUnixUTC, err := tier.expiryFrom(nowUnixUTC)
		if err != nil {
			return err
		}
		subscription = Subscription{
			Subscriber:     caller,
			ClubOwner:      clubOwner,
			Type:           tier,
			StartedUnixUTC: nowUnixUTC,
			ExpiresUnixUTC: expiresUnixUTC,
		}
		if err := transactionStore.SaveSubscription(ctx, subscription); err != nil {
			return err
		}
		_, err = collectPayment(ctx, transactionStore, config, club, caller, price, memoSubscription, nowUnixUTC)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationSubscribe,
		Caller:       caller,
		Counterparty: clubOwner,
		Token:        token,
		Amount:       price,
		Error:        operationError,
	})
	if operationError != nil {
		return Subscription{}, operationError
	}
	return subscription, nil
}

// Unsubscribe drops the subscription of caller to clubOwner without refund.
func (service *MarketplaceService) Unsubscribe(ctx context.Context, caller common.Address, clubOwner common.Address) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		return transactionStore.SaveSubscription(ctx, Subscription{Subscriber: caller, ClubOwner: clubOwner})
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationUnsubscribe,
		Caller:       caller,
		Counterparty: clubOwner,
		Error:        operationError,
	})
	return operationError
}

// Subscription returns the subscription of subscriber to clubOwner; expired
// subscriptions read as none.
func (service *MarketplaceService) Subscription(ctx context.Context, subscriber common.Address, clubOwner common.Address) (Subscription, error) {
	subscription, err := service.store.GetSubscription(ctx, subscriber, clubOwner)
	if err != nil {
		return Subscription{}, err
	}
	if !subscription.ActiveAt(service.nowFn()) {
		return Subscription{Subscriber: subscriber, ClubOwner: clubOwner}, nil
	}
	return subscription, nil
}

// PostCall publishes a call by caller.
func (service *MarketplaceService) PostCall(ctx context.Context, caller common.Address, input CallInput) (Call, error) {
	var call Call
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		asset := strings.TrimSpace(input.Asset)
		if asset == "" || utf8.RuneCountInString(asset) > maxCallAssetLength {
			return fmt.Errorf("%w: asset %q", ErrInvalidCall, input.Asset)
		}
		if len(input.Thesis) > maxCallThesisBytes {
			return fmt.Errorf("%w: thesis exceeds %d bytes", ErrInvalidCall, maxCallThesisBytes)
		}
		if input.DurationSeconds <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalidCall)
		}
		nowUnixUTC := service.nowFn()
		created, err := transactionStore.CreateCall(ctx, Call{
			Caller:         caller,
			Asset:          asset,
			Private:        input.Private,
			Thesis:         input.Thesis,
			EntryPrice:     input.EntryPrice,
			TargetPrice:    input.TargetPrice,
			CreatedUnixUTC: nowUnixUTC,
			ExpiresUnixUTC: nowUnixUTC + input.DurationSeconds,
		})
		if err != nil {
			return err
		}
		call = created
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationPostCall,
		Caller:    caller,
		CallID:    call.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Call{}, operationError
	}
	return call, nil
}

// Call returns a call by id.
func (service *MarketplaceService) Call(ctx context.Context, callID uint64) (Call, error) {
	return service.store.GetCall(ctx, callID)
}

// CallsByCaller lists the calls posted by caller in id order.
func (service *MarketplaceService) CallsByCaller(ctx context.Context, caller common.Address) ([]Call, error) {
	return service.store.ListCallsByCaller(ctx, caller)
}

// PayPerCall buys access to a single call at the club's per-call price.
func (service *MarketplaceService) PayPerCall(ctx context.Context, caller common.Address, callID uint64) (FeeSplit, error) {
	var (
		split FeeSplit
		call  Call
		club  Club
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := requireAddress(caller, "caller"); err != nil {
			return err
		}
		var err error
		call, err = transactionStore.GetCall(ctx, callID)
		if err != nil {
			return err
		}
		club, err = transactionStore.GetClub(ctx, call.Caller)
		if err != nil {
			return err
		}
		_, paid, err := transactionStore.GetCallPayment(ctx, caller, callID)
		if err != nil {
			return err
		}
		if paid {
			return fmt.Errorf("%w: call %d", ErrAlreadyPaid, callID)
		}
		config, err := transactionStore.GetMarketplaceConfig(ctx)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveCallPayment(ctx, CallPayment{
			Payer:       caller,
			CallID:      callID,
			Amount:      club.Prices.PerCall,
			PaidUnixUTC: service.nowFn(),
		}); err != nil {
			return err
		}
		split, err = collectPayment(ctx, transactionStore, config, club, caller, club.Prices.PerCall, memoCallPayment, service.nowFn())
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationPayPerCall,
		Caller:       caller,
		Counterparty: call.Caller,
		Token:        club.AcceptedToken,
		Amount:       club.Prices.PerCall,
		CallID:       callID,
		Error:        operationError,
	})
	if operationError != nil {
		return FeeSplit{}, operationError
	}
	return split, nil
}

// HasPaidForCall reports whether payer bought access to callID.
func (service *MarketplaceService) HasPaidForCall(ctx context.Context, payer common.Address, callID uint64) (bool, error) {
	_, paid, err := service.store.GetCallPayment(ctx, payer, callID)
	return paid, err
}

// AccessPaidCall returns the call if caller paid for it.
func (service *MarketplaceService) AccessPaidCall(ctx context.Context, caller common.Address, callID uint64) (Call, error) {
	call, err := service.store.GetCall(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	_, paid, err := service.store.GetCallPayment(ctx, caller, callID)
	if err != nil {
		return Call{}, err
	}
	if !paid {
		return Call{}, fmt.Errorf("%w: call %d", ErrPaymentRequired, callID)
	}
	return call, nil
}

// AcceptedTokens lists the tokens clubs may price in.
func (service *MarketplaceService) AcceptedTokens(ctx context.Context) ([]common.Address, error) {
	config, err := service.store.GetMarketplaceConfig(ctx)
	if err != nil {
		return nil, err
	}
	return config.AcceptedTokens, nil
}

// AcceptedToken returns the accepted token at index.
func (service *MarketplaceService) AcceptedToken(ctx context.Context, index int) (common.Address, error) {
	tokens, err := service.AcceptedTokens(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if index < 0 || index >= len(tokens) {
		return common.Address{}, fmt.Errorf("%w: no accepted token at index %d", ErrTokenNotAccepted, index)
	}
	return tokens[index], nil
}

// SetStakingLedger points protocol shares at the staking custody account.
func (service *MarketplaceService) SetStakingLedger(ctx context.Context, caller common.Address, stakingLedger common.Address) error {
	operationError := service.updateConfig(ctx, caller, func(config *MarketplaceConfig) error {
		if err := requireAddress(stakingLedger, "staking ledger"); err != nil {
			return err
		}
		config.StakingLedger = stakingLedger
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationSetStakingLedger,
		Caller:       caller,
		Counterparty: stakingLedger,
		Error:        operationError,
	})
	return operationError
}

// SetTeamWallet replaces the recipient of team shares.
func (service *MarketplaceService) SetTeamWallet(ctx context.Context, caller common.Address, teamWallet common.Address) error {
	operationError := service.updateConfig(ctx, caller, func(config *MarketplaceConfig) error {
		if err := requireAddress(teamWallet, "team wallet"); err != nil {
			return err
		}
		config.TeamWallet = teamWallet
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationSetTeamWallet,
		Caller:       caller,
		Counterparty: teamWallet,
		Error:        operationError,
	})
	return operationError
}

// AddAcceptedToken allows clubs to price in token.
func (service *MarketplaceService) AddAcceptedToken(ctx context.Context, caller common.Address, token common.Address) error {
	operationError := service.updateConfig(ctx, caller, func(config *MarketplaceConfig) error {
		if err := requireAddress(token, "token"); err != nil {
			return err
		}
		config.AcceptedTokens = dedupeAddresses(append(config.AcceptedTokens, token))
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddAcceptedToken,
		Caller:    caller,
		Token:     token,
		Error:     operationError,
	})
	return operationError
}

func (service *MarketplaceService) updateConfig(ctx context.Context, caller common.Address, mutate func(*MarketplaceConfig) error) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		config, err := transactionStore.GetMarketplaceConfig(ctx)
		if err != nil {
			return err
		}
		if err := requireOwner(config.Owner, caller); err != nil {
			return err
		}
		if err := mutate(&config); err != nil {
			return err
		}
		return transactionStore.SaveMarketplaceConfig(ctx, config)
	})
}

// collectPayment pulls price from payer into custody, credits the protocol
// share to the stakers and pays out the protocol, team and caller shares.
func collectPayment(ctx context.Context, store Store, config MarketplaceConfig, club Club, payer common.Address, price Amount, memo string, nowUnixUTC int64) (FeeSplit, error) {
	split, err := SplitPayment(price)
	if err != nil {
		return FeeSplit{}, err
	}
	if !split.Protocol.IsZero() {
		stakingConfig, err := store.GetStakingConfig(ctx)
		if err != nil {
			return FeeSplit{}, err
		}
		if config.StakingLedger == (common.Address{}) || config.StakingLedger != stakingConfig.Custody {
			return FeeSplit{}, fmt.Errorf("%w: staking ledger is not wired to the staking custody", ErrNotConfigured)
		}
		if err := depositFees(ctx, store, config.Custody, club.AcceptedToken, split.Protocol); err != nil {
			return FeeSplit{}, err
		}
	}
	tokens := store.Tokens()
	if err := tokens.TransferFrom(ctx, config.Custody, TokenTransfer{
		Token:   club.AcceptedToken,
		From:    payer,
		To:      config.Custody,
		Amount:  price,
		Memo:    memo,
		UnixUTC: nowUnixUTC,
	}); err != nil {
		return FeeSplit{}, err
	}
	shares := []TokenTransfer{
		{Token: club.AcceptedToken, From: config.Custody, To: config.StakingLedger, Amount: split.Protocol, Memo: memoProtocolShare, UnixUTC: nowUnixUTC},
		{Token: club.AcceptedToken, From: config.Custody, To: config.TeamWallet, Amount: split.Team, Memo: memoTeamShare, UnixUTC: nowUnixUTC},
		{Token: club.AcceptedToken, From: config.Custody, To: club.Caller, Amount: split.Caller, Memo: memoCallerShare, UnixUTC: nowUnixUTC},
	}
	for _, share := range shares {
		if err := transferIfPositive(ctx, tokens, share); err != nil {
			return FeeSplit{}, err
		}
	}
	return split, nil
}

func containsAddress(addresses []common.Address, target common.Address) bool {
	if target == (common.Address{}) {
		return false
	}
	for _, address := range addresses {
		if address == target {
			return true
		}
	}
	return false
}

func dedupeAddresses(addresses []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addresses))
	unique := make([]common.Address, 0, len(addresses))
	for _, address := range addresses {
		if _, duplicate := seen[address]; duplicate {
			continue
		}
		seen[address] = struct{}{}
		unique = append(unique, address)
	}
	return unique
}
