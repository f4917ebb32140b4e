package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/internal/apierrors"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	staking     *ledger.StakingService
	vesting     *ledger.VestingService
	marketplace *ledger.MarketplaceService
	tokens      TokenBook
	logger      *zap.Logger
	timeout     time.Duration
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.timeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	classification := apierrors.Classify(err)
	message := err.Error()
	if classification.Code == apierrors.CodeInternal {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		message = "internal error"
	}
	ctx.JSON(classification.HTTPStatus, errorResponse(classification.Code, message))
}

func callerFrom(ctx *gin.Context) common.Address {
	value, _ := ctx.Get(callerContextKey)
	account, _ := value.(common.Address)
	return account
}

func bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidPayload, err.Error()))
		return false
	}
	return true
}

func pathAddress(ctx *gin.Context, name string) (common.Address, bool) {
	address, err := ledger.NewAccountAddress(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidAddress, err.Error()))
		return common.Address{}, false
	}
	return address, true
}

func pathUint(ctx *gin.Context, name string) (uint64, bool) {
	value, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidPayload, name+" must be a non-negative integer"))
		return 0, false
	}
	return value, true
}

// Staking

func (handler *httpHandler) handleStakingConfig(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	config, err := handler.staking.Config(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stakingConfigPayload{
		Owner:        config.Owner,
		Custody:      config.Custody,
		StakingToken: config.StakingToken,
		FeeRouter:    config.FeeRouter,
	})
}

func (handler *httpHandler) handleTotalStaked(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	total, err := handler.staking.TotalStaked(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"total_staked": total})
}

func (handler *httpHandler) handleFeeTokens(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	tokens, err := handler.staking.FeeTokens(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (handler *httpHandler) handleAccumulator(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	accumulator, err := handler.staking.Accumulator(requestCtx, token)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, accumulatorPayload{
		Token:          accumulator.Token,
		RewardPerShare: accumulator.RewardPerShare,
		Stranded:       accumulator.Stranded,
	})
}

func (handler *httpHandler) handlePosition(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	position, err := handler.staking.Position(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, positionPayload{Account: position.Account, Staked: position.Staked, TotalStaked: position.TotalStaked})
}

func (handler *httpHandler) handleClaimable(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	claimable, err := handler.staking.ClaimableBalance(requestCtx, account, token)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": account, "token": token, "claimable": claimable})
}

func (handler *httpHandler) handleStake(ctx *gin.Context) {
	var request amountRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	caller := callerFrom(ctx)
	if err := handler.staking.Stake(requestCtx, caller, request.Amount); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondPosition(ctx, requestCtx, caller)
}

func (handler *httpHandler) handleUnstake(ctx *gin.Context) {
	var request amountRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	caller := callerFrom(ctx)
	if err := handler.staking.Unstake(requestCtx, caller, request.Amount); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondPosition(ctx, requestCtx, caller)
}

func (handler *httpHandler) respondPosition(ctx *gin.Context, requestCtx context.Context, account common.Address) {
	position, err := handler.staking.Position(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, positionPayload{Account: position.Account, Staked: position.Staked, TotalStaked: position.TotalStaked})
}

func (handler *httpHandler) handleClaim(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	payouts, err := handler.staking.Claim(requestCtx, callerFrom(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	response := make([]payoutPayload, 0, len(payouts))
	for _, payout := range payouts {
		response = append(response, payoutPayload{Token: payout.Token, Amount: payout.Amount})
	}
	ctx.JSON(http.StatusOK, gin.H{"payouts": response})
}

func (handler *httpHandler) handleDepositFees(ctx *gin.Context) {
	var request depositFeesRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.staking.DepositFees(requestCtx, callerFrom(ctx), request.Token, request.Amount); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deposited"})
}

func (handler *httpHandler) handleRecoverStranded(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	var request recoverStrandedRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	recovered, err := handler.staking.RecoverStrandedFees(requestCtx, callerFrom(ctx), token, request.Recipient)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"token": token, "recovered": recovered})
}

func (handler *httpHandler) handleSetFeeRouter(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.staking.SetFeeRouter)
}

func (handler *httpHandler) handleUpdateStakingToken(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.staking.UpdateStakingToken)
}

// updateAddress serves the owner-only endpoints that replace one configured address.
func (handler *httpHandler) updateAddress(ctx *gin.Context, update func(context.Context, common.Address, common.Address) error) {
	var request addressRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := update(requestCtx, callerFrom(ctx), request.Address); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"address": request.Address})
}

// Vesting

func (handler *httpHandler) handleVestingConfig(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	config, err := handler.vesting.Config(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, vestingConfigPayload{
		Owner:          config.Owner,
		Custody:        config.Custody,
		RewardToken:    config.RewardToken,
		Recorder:       config.Recorder,
		DailyPool:      config.DailyPool,
		GenesisUnixUTC: config.GenesisUnixUTC,
	})
}

func (handler *httpHandler) handleCurrentDay(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	day, err := handler.vesting.CurrentDay(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"day": day})
}

func (handler *httpHandler) handleRemainingPool(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	remaining, err := handler.vesting.RemainingPool(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"remaining": remaining})
}

func (handler *httpHandler) handleEligibilityDay(ctx *gin.Context) {
	day, ok := pathUint(ctx, "day")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	record, err := handler.vesting.EligibilityDay(requestCtx, day)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, eligibilityDayPayload{
		Day:           record.Day,
		TotalEligible: record.TotalEligible,
		Frozen:        record.Frozen,
		Distributed:   record.Distributed,
	})
}

func (handler *httpHandler) handleEligibility(ctx *gin.Context) {
	day, ok := pathUint(ctx, "day")
	if !ok {
		return
	}
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	eligible, err := handler.vesting.Eligibility(requestCtx, day, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"day": day, "account": account, "eligible": eligible})
}

func (handler *httpHandler) handleDailyReward(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reward, err := handler.vesting.DailyReward(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": account, "reward": reward})
}

func (handler *httpHandler) handleLifetimeClaimed(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	claimed, err := handler.vesting.LifetimeClaimed(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": account, "claimed": claimed})
}

func (handler *httpHandler) handleSetRecorder(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.vesting.SetRecorder)
}

func (handler *httpHandler) handleRecordEligibility(ctx *gin.Context) {
	day, ok := pathUint(ctx, "day")
	if !ok {
		return
	}
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	var request eligibilityRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.vesting.RecordEligibility(requestCtx, callerFrom(ctx), day, account, request.Eligible); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"day": day, "account": account, "eligible": request.Eligible})
}

func (handler *httpHandler) handleRecordTotalEligible(ctx *gin.Context) {
	day, ok := pathUint(ctx, "day")
	if !ok {
		return
	}
	var request totalEligibleRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.vesting.RecordTotalEligible(requestCtx, callerFrom(ctx), day, request.Count); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"day": day, "total_eligible": request.Count})
}

func (handler *httpHandler) handleRecordSnapshot(ctx *gin.Context) {
	day, ok := pathUint(ctx, "day")
	if !ok {
		return
	}
	var request snapshotRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.vesting.RecordEligibilitySnapshot(requestCtx, callerFrom(ctx), day, request.Accounts); err != nil {
		handler.respondError(ctx, err)
		return
	}
	record, err := handler.vesting.EligibilityDay(requestCtx, day)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, eligibilityDayPayload{
		Day:           record.Day,
		TotalEligible: record.TotalEligible,
		Frozen:        record.Frozen,
		Distributed:   record.Distributed,
	})
}

func (handler *httpHandler) handleClaimTokens(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	claimed, err := handler.vesting.ClaimTokens(requestCtx, callerFrom(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"claimed": claimed})
}

// Marketplace

func (handler *httpHandler) handleMarketplaceConfig(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	config, err := handler.marketplace.Config(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, marketplaceConfigPayload{
		Owner:          config.Owner,
		Custody:        config.Custody,
		StakingLedger:  config.StakingLedger,
		TeamWallet:     config.TeamWallet,
		AcceptedTokens: config.AcceptedTokens,
	})
}

func (handler *httpHandler) handleAcceptedTokens(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	tokens, err := handler.marketplace.AcceptedTokens(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (handler *httpHandler) handleAcceptedToken(ctx *gin.Context) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidPayload, "index must be an integer"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	token, err := handler.marketplace.AcceptedToken(requestCtx, index)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"index": index, "token": token})
}

func (handler *httpHandler) handleAddAcceptedToken(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.marketplace.AddAcceptedToken)
}

func (handler *httpHandler) handleSetStakingLedger(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.marketplace.SetStakingLedger)
}

func (handler *httpHandler) handleSetTeamWallet(ctx *gin.Context) {
	handler.updateAddress(ctx, handler.marketplace.SetTeamWallet)
}

func (handler *httpHandler) handleProfile(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	profile, err := handler.marketplace.Profile(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, profilePayload{Account: profile.Account, Username: profile.Username, CreatedUnixUTC: profile.CreatedUnixUTC})
}

func (handler *httpHandler) handleCreateProfile(ctx *gin.Context) {
	var request profileRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	profile, err := handler.marketplace.CreateUserProfile(requestCtx, callerFrom(ctx), request.Username)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, profilePayload{Account: profile.Account, Username: profile.Username, CreatedUnixUTC: profile.CreatedUnixUTC})
}

func (handler *httpHandler) handleClub(ctx *gin.Context) {
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	club, err := handler.marketplace.Club(requestCtx, owner)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newClubPayload(club))
}

func (handler *httpHandler) handleCreateClub(ctx *gin.Context) {
	var request clubRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	club, err := handler.marketplace.CreateClub(requestCtx, callerFrom(ctx), ledger.ClubInput{
		Name:          request.Name,
		Prices:        request.Prices.prices(),
		AcceptedToken: request.AcceptedToken,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newClubPayload(club))
}

func (handler *httpHandler) handleUpdateClubPricing(ctx *gin.Context) {
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	var request pricesPayload
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	club, err := handler.marketplace.UpdateClubPricing(requestCtx, callerFrom(ctx), owner, request.prices())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newClubPayload(club))
}

func (handler *httpHandler) handleSubscription(ctx *gin.Context) {
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	subscriber, ok := pathAddress(ctx, "subscriber")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	subscription, err := handler.marketplace.Subscription(requestCtx, subscriber, owner)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSubscriptionPayload(subscription))
}

func (handler *httpHandler) handleSubscribe(ctx *gin.Context) {
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	var request subscribeRequest
	if !bindJSON(ctx, &request) {
		return
	}
	subscriptionType, err := ledger.ParseSubscriptionType(request.Type)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	subscription, err := handler.marketplace.Subscribe(requestCtx, callerFrom(ctx), owner, subscriptionType)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSubscriptionPayload(subscription))
}

func (handler *httpHandler) handleUnsubscribe(ctx *gin.Context) {
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.marketplace.Unsubscribe(requestCtx, callerFrom(ctx), owner); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}

func (handler *httpHandler) handleCall(ctx *gin.Context) {
	callID, ok := pathUint(ctx, "id")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	call, err := handler.marketplace.Call(requestCtx, callID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCallPayload(call, false))
}

func (handler *httpHandler) handleHasPaid(ctx *gin.Context) {
	callID, ok := pathUint(ctx, "id")
	if !ok {
		return
	}
	payer, ok := pathAddress(ctx, "payer")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	paid, err := handler.marketplace.HasPaidForCall(requestCtx, payer, callID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"call_id": callID, "payer": payer, "paid": paid})
}

func (handler *httpHandler) handleCallsByCaller(ctx *gin.Context) {
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	calls, err := handler.marketplace.CallsByCaller(requestCtx, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	response := make([]callPayload, 0, len(calls))
	for _, call := range calls {
		response = append(response, newCallPayload(call, false))
	}
	ctx.JSON(http.StatusOK, gin.H{"calls": response})
}

func (handler *httpHandler) handlePostCall(ctx *gin.Context) {
	var request callRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	call, err := handler.marketplace.PostCall(requestCtx, callerFrom(ctx), ledger.CallInput{
		Asset:           request.Asset,
		Private:         request.Private,
		Thesis:          request.Thesis,
		EntryPrice:      request.EntryPrice,
		TargetPrice:     request.TargetPrice,
		DurationSeconds: request.DurationSeconds,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCallPayload(call, true))
}

func (handler *httpHandler) handlePayPerCall(ctx *gin.Context) {
	callID, ok := pathUint(ctx, "id")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	split, err := handler.marketplace.PayPerCall(requestCtx, callerFrom(ctx), callID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, feeSplitPayload{Caller: split.Caller, Protocol: split.Protocol, Team: split.Team})
}

func (handler *httpHandler) handleAccessPaidCall(ctx *gin.Context) {
	callID, ok := pathUint(ctx, "id")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	call, err := handler.marketplace.AccessPaidCall(requestCtx, callerFrom(ctx), callID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCallPayload(call, true))
}

// Tokens

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	balance, err := handler.tokens.BalanceOf(requestCtx, token, account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"token": token, "account": account, "balance": balance})
}

func (handler *httpHandler) handleAllowance(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	owner, ok := pathAddress(ctx, "owner")
	if !ok {
		return
	}
	spender, ok := pathAddress(ctx, "spender")
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	allowance, err := handler.tokens.Allowance(requestCtx, token, owner, spender)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"token": token, "owner": owner, "spender": spender, "allowance": allowance})
}

func (handler *httpHandler) handleHistory(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	account, ok := pathAddress(ctx, "account")
	if !ok {
		return
	}
	limit := defaultHistorySize
	if rawLimit := ctx.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 || parsed > maxHistorySize {
			ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidPayload, "limit must be between 1 and "+strconv.Itoa(maxHistorySize)))
			return
		}
		limit = parsed
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	records, err := handler.tokens.History(requestCtx, token, account, limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entries := make([]transferPayload, 0, len(records))
	for _, record := range records {
		entries = append(entries, newTransferPayload(record))
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (handler *httpHandler) handleApprove(ctx *gin.Context) {
	token, ok := pathAddress(ctx, "token")
	if !ok {
		return
	}
	var request approveRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if request.Spender == (common.Address{}) {
		ctx.JSON(http.StatusBadRequest, errorResponse(apierrors.CodeInvalidAddress, "spender is required"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	caller := callerFrom(ctx)
	if err := handler.tokens.Approve(requestCtx, token, caller, request.Spender, request.Amount); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"token": token, "owner": caller, "spender": request.Spender, "allowance": request.Amount})
}
