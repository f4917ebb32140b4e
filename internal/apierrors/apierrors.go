package apierrors

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/clubledger/internal/auth"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"google.golang.org/grpc/codes"
)

// Stable error codes shared by the HTTP and gRPC surfaces.
const (
	CodeInvalidAmount             = "invalid_amount"
	CodeInvalidAddress            = "invalid_address"
	CodeInvalidSubscriptionType   = "invalid_subscription_type"
	CodeInvalidSubscriptionPrices = "invalid_subscription_prices"
	CodeInvalidCallPrice          = "invalid_call_price"
	CodeInvalidUsername           = "invalid_username"
	CodeInvalidClubName           = "invalid_club_name"
	CodeInvalidCall               = "invalid_call"
	CodeTokenNotAccepted          = "token_not_accepted"
	CodeUnauthenticated           = "unauthenticated"
	CodeUnauthorized              = "unauthorized"
	CodeInsufficientStake         = "insufficient_stake"
	CodeNothingToClaim            = "nothing_to_claim"
	CodeNoMoreRewardsAvailable    = "no_more_rewards_available"
	CodeInsufficientAllowance     = "insufficient_allowance"
	CodeInsufficientBalance       = "insufficient_balance"
	CodeEligibilityFrozen         = "eligibility_frozen"
	CodeStakeOutstanding          = "stake_outstanding"
	CodeAlreadyPaid               = "already_paid"
	CodePaymentRequired           = "payment_required"
	CodeCallNotFound              = "call_not_found"
	CodeClubNotFound              = "club_not_found"
	CodeProfileNotFound           = "profile_not_found"
	CodeArithmeticOverflow        = "arithmetic_overflow"
	CodeNotConfigured             = "not_configured"
	CodeDeadlineExceeded          = "deadline_exceeded"
	CodeInvalidPayload            = "invalid_payload"
	CodeInternal                  = "internal_error"
)

// Classification is the transport-facing description of an error.
type Classification struct {
	Code       string
	HTTPStatus int
	GRPCCode   codes.Code
}

var classifications = []struct {
	target         error
	classification Classification
}{
	{auth.ErrMissingToken, Classification{CodeUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated}},
	{auth.ErrInvalidToken, Classification{CodeUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated}},
	{ledger.ErrInvalidAmount, Classification{CodeInvalidAmount, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidAddress, Classification{CodeInvalidAddress, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidSubscriptionType, Classification{CodeInvalidSubscriptionType, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidSubscriptionPrices, Classification{CodeInvalidSubscriptionPrices, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidCallPrice, Classification{CodeInvalidCallPrice, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidUsername, Classification{CodeInvalidUsername, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidClubName, Classification{CodeInvalidClubName, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrInvalidCall, Classification{CodeInvalidCall, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrTokenNotAccepted, Classification{CodeTokenNotAccepted, http.StatusBadRequest, codes.InvalidArgument}},
	{ledger.ErrUnauthorized, Classification{CodeUnauthorized, http.StatusForbidden, codes.PermissionDenied}},
	{ledger.ErrInsufficientStake, Classification{CodeInsufficientStake, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrNothingToClaim, Classification{CodeNothingToClaim, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrNoMoreRewardsAvailable, Classification{CodeNoMoreRewardsAvailable, http.StatusConflict, codes.ResourceExhausted}},
	{ledger.ErrInsufficientAllowance, Classification{CodeInsufficientAllowance, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrInsufficientBalance, Classification{CodeInsufficientBalance, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrEligibilityFrozen, Classification{CodeEligibilityFrozen, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrStakeOutstanding, Classification{CodeStakeOutstanding, http.StatusConflict, codes.FailedPrecondition}},
	{ledger.ErrAlreadyPaid, Classification{CodeAlreadyPaid, http.StatusConflict, codes.AlreadyExists}},
	{ledger.ErrPaymentRequired, Classification{CodePaymentRequired, http.StatusPaymentRequired, codes.PermissionDenied}},
	{ledger.ErrCallDoesNotExist, Classification{CodeCallNotFound, http.StatusNotFound, codes.NotFound}},
	{ledger.ErrClubDoesNotExist, Classification{CodeClubNotFound, http.StatusNotFound, codes.NotFound}},
	{ledger.ErrProfileDoesNotExist, Classification{CodeProfileNotFound, http.StatusNotFound, codes.NotFound}},
	{ledger.ErrArithmeticOverflow, Classification{CodeArithmeticOverflow, http.StatusUnprocessableEntity, codes.OutOfRange}},
	{ledger.ErrNotConfigured, Classification{CodeNotConfigured, http.StatusServiceUnavailable, codes.FailedPrecondition}},
	{context.DeadlineExceeded, Classification{CodeDeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded}},
}

var internalClassification = Classification{CodeInternal, http.StatusInternalServerError, codes.Internal}

// Classify maps err onto its stable code; unknown errors classify as internal.
func Classify(err error) Classification {
	for _, candidate := range classifications {
		if errors.Is(err, candidate.target) {
			return candidate.classification
		}
	}
	return internalClassification
}

// IsInternal reports whether err has no domain classification.
func IsInternal(err error) bool {
	return Classify(err).Code == CodeInternal
}
