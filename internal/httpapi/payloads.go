package httpapi

import (
	"encoding/json"

	"github.com/MarkoPoloResearchLab/clubledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
)

type amountRequest struct {
	Amount ledger.Amount `json:"amount"`
}

type depositFeesRequest struct {
	Token  common.Address `json:"token"`
	Amount ledger.Amount  `json:"amount"`
}

type addressRequest struct {
	Address common.Address `json:"address"`
}

type recoverStrandedRequest struct {
	Recipient common.Address `json:"recipient"`
}

type eligibilityRequest struct {
	Eligible bool `json:"eligible"`
}

type totalEligibleRequest struct {
	Count uint64 `json:"count"`
}

type snapshotRequest struct {
	Accounts []common.Address `json:"accounts"`
}

type profileRequest struct {
	Username string `json:"username"`
}

type pricesPayload struct {
	PerCall  ledger.Amount `json:"per_call"`
	Weekly   ledger.Amount `json:"weekly"`
	Monthly  ledger.Amount `json:"monthly"`
	Yearly   ledger.Amount `json:"yearly"`
	Lifetime ledger.Amount `json:"lifetime"`
}

func (payload pricesPayload) prices() ledger.ClubPrices {
	return ledger.ClubPrices{
		PerCall:  payload.PerCall,
		Weekly:   payload.Weekly,
		Monthly:  payload.Monthly,
		Yearly:   payload.Yearly,
		Lifetime: payload.Lifetime,
	}
}

func newPricesPayload(prices ledger.ClubPrices) pricesPayload {
	return pricesPayload{
		PerCall:  prices.PerCall,
		Weekly:   prices.Weekly,
		Monthly:  prices.Monthly,
		Yearly:   prices.Yearly,
		Lifetime: prices.Lifetime,
	}
}

type clubRequest struct {
	Name          string         `json:"name"`
	Prices        pricesPayload  `json:"prices"`
	AcceptedToken common.Address `json:"accepted_token"`
}

type subscribeRequest struct {
	Type int64 `json:"type"`
}

type callRequest struct {
	Asset           string        `json:"asset"`
	Private         bool          `json:"private"`
	Thesis          string        `json:"thesis"`
	EntryPrice      ledger.Amount `json:"entry_price"`
	TargetPrice     ledger.Amount `json:"target_price"`
	DurationSeconds int64         `json:"duration_seconds"`
}

type approveRequest struct {
	Spender common.Address `json:"spender"`
	Amount  ledger.Amount  `json:"amount"`
}

type stakingConfigPayload struct {
	Owner        common.Address `json:"owner"`
	Custody      common.Address `json:"custody"`
	StakingToken common.Address `json:"staking_token"`
	FeeRouter    common.Address `json:"fee_router"`
}

type positionPayload struct {
	Account     common.Address `json:"account"`
	Staked      ledger.Amount  `json:"staked"`
	TotalStaked ledger.Amount  `json:"total_staked"`
}

type accumulatorPayload struct {
	Token          common.Address `json:"token"`
	RewardPerShare ledger.Amount  `json:"reward_per_share"`
	Stranded       ledger.Amount  `json:"stranded"`
}

type payoutPayload struct {
	Token  common.Address `json:"token"`
	Amount ledger.Amount  `json:"amount"`
}

type vestingConfigPayload struct {
	Owner          common.Address `json:"owner"`
	Custody        common.Address `json:"custody"`
	RewardToken    common.Address `json:"reward_token"`
	Recorder       common.Address `json:"recorder"`
	DailyPool      ledger.Amount  `json:"daily_pool"`
	GenesisUnixUTC int64          `json:"genesis_unix_utc"`
}

type eligibilityDayPayload struct {
	Day           uint64        `json:"day"`
	TotalEligible uint64        `json:"total_eligible"`
	Frozen        bool          `json:"frozen"`
	Distributed   ledger.Amount `json:"distributed"`
}

type marketplaceConfigPayload struct {
	Owner          common.Address   `json:"owner"`
	Custody        common.Address   `json:"custody"`
	StakingLedger  common.Address   `json:"staking_ledger"`
	TeamWallet     common.Address   `json:"team_wallet"`
	AcceptedTokens []common.Address `json:"accepted_tokens"`
}

type profilePayload struct {
	Account        common.Address `json:"account"`
	Username       string         `json:"username"`
	CreatedUnixUTC int64          `json:"created_unix_utc"`
}

type clubPayload struct {
	Owner          common.Address `json:"owner"`
	Name           string         `json:"name"`
	Prices         pricesPayload  `json:"prices"`
	AcceptedToken  common.Address `json:"accepted_token"`
	CreatedUnixUTC int64          `json:"created_unix_utc"`
	UpdatedUnixUTC int64          `json:"updated_unix_utc"`
}

func newClubPayload(club ledger.Club) clubPayload {
	return clubPayload{
		Owner:          club.Caller,
		Name:           club.Name,
		Prices:         newPricesPayload(club.Prices),
		AcceptedToken:  club.AcceptedToken,
		CreatedUnixUTC: club.CreatedUnixUTC,
		UpdatedUnixUTC: club.UpdatedUnixUTC,
	}
}

type subscriptionPayload struct {
	Subscriber     common.Address `json:"subscriber"`
	ClubOwner      common.Address `json:"club_owner"`
	Type           string         `json:"type"`
	StartedUnixUTC int64          `json:"started_unix_utc"`
	ExpiresUnixUTC int64          `json:"expires_unix_utc"`
}

func newSubscriptionPayload(subscription ledger.Subscription) subscriptionPayload {
	return subscriptionPayload{
		Subscriber:     subscription.Subscriber,
		ClubOwner:      subscription.ClubOwner,
		Type:           subscription.Type.String(),
		StartedUnixUTC: subscription.StartedUnixUTC,
		ExpiresUnixUTC: subscription.ExpiresUnixUTC,
	}
}

type callPayload struct {
	ID             uint64         `json:"id"`
	Caller         common.Address `json:"caller"`
	Asset          string         `json:"asset"`
	Private        bool           `json:"private"`
	Thesis         string         `json:"thesis,omitempty"`
	EntryPrice     ledger.Amount  `json:"entry_price"`
	TargetPrice    ledger.Amount  `json:"target_price"`
	CreatedUnixUTC int64          `json:"created_unix_utc"`
	ExpiresUnixUTC int64          `json:"expires_unix_utc"`
}

// newCallPayload redacts the thesis of private calls unless revealed is set.
func newCallPayload(call ledger.Call, revealed bool) callPayload {
	thesis := call.Thesis
	if call.Private && !revealed {
		thesis = ""
	}
	return callPayload{
		ID:             call.ID,
		Caller:         call.Caller,
		Asset:          call.Asset,
		Private:        call.Private,
		Thesis:         thesis,
		EntryPrice:     call.EntryPrice,
		TargetPrice:    call.TargetPrice,
		CreatedUnixUTC: call.CreatedUnixUTC,
		ExpiresUnixUTC: call.ExpiresUnixUTC,
	}
}

type feeSplitPayload struct {
	Caller   ledger.Amount `json:"caller"`
	Protocol ledger.Amount `json:"protocol"`
	Team     ledger.Amount `json:"team"`
}

type transferPayload struct {
	EntryID        string          `json:"entry_id"`
	Token          common.Address  `json:"token"`
	From           common.Address  `json:"from"`
	To             common.Address  `json:"to"`
	Amount         ledger.Amount   `json:"amount"`
	Memo           string          `json:"memo"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

func newTransferPayload(record gormstore.TransferRecord) transferPayload {
	return transferPayload{
		EntryID:        record.EntryID,
		Token:          record.Token,
		From:           record.From,
		To:             record.To,
		Amount:         record.Amount,
		Memo:           record.Memo,
		Metadata:       record.Metadata,
		CreatedUnixUTC: record.CreatedUnixUTC,
	}
}
