package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/internal/apierrors"
	"github.com/MarkoPoloResearchLab/clubledger/internal/auth"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "clubledger.v1.LedgerService"

const authorizationMetadataKey = "authorization"

// LedgerAPI is the handler surface registered under ServiceName.
type LedgerAPI interface {
	Stake(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unstake(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Claim(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimableBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Position(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DailyReward(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimTokens(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PayPerCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AccessPaidCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ledgerMethod struct {
	name          string
	authenticated bool
	invoke        func(LedgerAPI, context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ledgerMethods = []ledgerMethod{
	{name: "Stake", authenticated: true, invoke: LedgerAPI.Stake},
	{name: "Unstake", authenticated: true, invoke: LedgerAPI.Unstake},
	{name: "Claim", authenticated: true, invoke: LedgerAPI.Claim},
	{name: "ClaimableBalance", invoke: LedgerAPI.ClaimableBalance},
	{name: "Position", invoke: LedgerAPI.Position},
	{name: "DailyReward", invoke: LedgerAPI.DailyReward},
	{name: "ClaimTokens", authenticated: true, invoke: LedgerAPI.ClaimTokens},
	{name: "Subscribe", authenticated: true, invoke: LedgerAPI.Subscribe},
	{name: "PayPerCall", authenticated: true, invoke: LedgerAPI.PayPerCall},
	{name: "AccessPaidCall", authenticated: true, invoke: LedgerAPI.AccessPaidCall},
}

// Register adds the ledger service to server.
func Register(server grpc.ServiceRegistrar, api LedgerAPI) {
	methods := make([]grpc.MethodDesc, 0, len(ledgerMethods))
	for _, method := range ledgerMethods {
		methods = append(methods, grpc.MethodDesc{
			MethodName: method.name,
			Handler:    unaryHandler(method),
		})
	}
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*LedgerAPI)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    "clubledger/v1/ledger.proto",
	}, api)
}

func fullMethodName(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method ledgerMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := &structpb.Struct{}
		if err := dec(request); err != nil {
			return nil, err
		}
		api, ok := srv.(LedgerAPI)
		if !ok {
			return nil, status.Error(codes.Internal, "ledger service is not registered")
		}
		if interceptor == nil {
			return method.invoke(api, ctx, request)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethodName(method.name),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return method.invoke(api, ctx, typed)
		}
		return interceptor(ctx, request, info, handler)
	}
}

type callerContextKey struct{}

// AuthInterceptor verifies the bearer token of authenticated methods and
// attaches the caller account to the request context.
func AuthInterceptor(authenticator *auth.Authenticator) grpc.UnaryServerInterceptor {
	authenticated := make(map[string]struct{}, len(ledgerMethods))
	for _, method := range ledgerMethods {
		if method.authenticated {
			authenticated[fullMethodName(method.name)] = struct{}{}
		}
	}
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, required := authenticated[info.FullMethod]; !required {
			return handler(ctx, request)
		}
		header := ""
		if incoming, ok := metadata.FromIncomingContext(ctx); ok {
			if values := incoming.Get(authorizationMetadataKey); len(values) > 0 {
				header = values[0]
			}
		}
		account, err := authenticator.VerifyHeader(header)
		if err != nil {
			return nil, mapToGRPCError(err)
		}
		return handler(context.WithValue(ctx, callerContextKey{}, account), request)
	}
}

// LoggingInterceptor logs every unary call with its status code and latency.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		response, err := handler(ctx, request)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(started)),
		)
		return response, err
	}
}

// LedgerServer exposes the staking, vesting and marketplace services over gRPC.
type LedgerServer struct {
	staking     *ledger.StakingService
	vesting     *ledger.VestingService
	marketplace *ledger.MarketplaceService
	logger      *zap.Logger
}

// NewLedgerServer constructs a gRPC server for the ledger services.
func NewLedgerServer(staking *ledger.StakingService, vesting *ledger.VestingService, marketplace *ledger.MarketplaceService, logger *zap.Logger) (*LedgerServer, error) {
	if staking == nil || vesting == nil || marketplace == nil {
		return nil, errors.New("grpcserver: ledger services are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerServer{staking: staking, vesting: vesting, marketplace: marketplace, logger: logger}, nil
}

func (server *LedgerServer) Stake(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	amount, err := amountField(request, "amount")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	if operationError := server.staking.Stake(ctx, caller, amount); operationError != nil {
		return nil, server.fail(operationError)
	}
	return server.position(ctx, caller)
}

func (server *LedgerServer) Unstake(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	amount, err := amountField(request, "amount")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	if operationError := server.staking.Unstake(ctx, caller, amount); operationError != nil {
		return nil, server.fail(operationError)
	}
	return server.position(ctx, caller)
}

func (server *LedgerServer) Claim(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	payouts, operationError := server.staking.Claim(ctx, caller)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	entries := make([]any, 0, len(payouts))
	for _, payout := range payouts {
		entries = append(entries, map[string]any{
			"token":  payout.Token.Hex(),
			"amount": payout.Amount.String(),
		})
	}
	return newResponse(map[string]any{"payouts": entries})
}

func (server *LedgerServer) ClaimableBalance(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	account, err := addressField(request, "account")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	token, err := addressField(request, "token")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	claimable, operationError := server.staking.ClaimableBalance(ctx, account, token)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{
		"account":   account.Hex(),
		"token":     token.Hex(),
		"claimable": claimable.String(),
	})
}

func (server *LedgerServer) Position(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	account, err := addressField(request, "account")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	return server.position(ctx, account)
}

func (server *LedgerServer) position(ctx context.Context, account common.Address) (*structpb.Struct, error) {
	position, err := server.staking.Position(ctx, account)
	if err != nil {
		return nil, server.fail(err)
	}
	return newResponse(map[string]any{
		"account":      position.Account.Hex(),
		"staked":       position.Staked.String(),
		"total_staked": position.TotalStaked.String(),
	})
}

func (server *LedgerServer) DailyReward(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	account, err := addressField(request, "account")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	reward, operationError := server.vesting.DailyReward(ctx, account)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{"account": account.Hex(), "reward": reward.String()})
}

func (server *LedgerServer) ClaimTokens(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	claimed, operationError := server.vesting.ClaimTokens(ctx, caller)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{"claimed": claimed.String()})
}

func (server *LedgerServer) Subscribe(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	clubOwner, err := addressField(request, "club_owner")
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	rawType, err := uintField(request, "type")
	if err != nil {
		return nil, mapToGRPCError(fmt.Errorf("%w: %v", ledger.ErrInvalidSubscriptionType, err))
	}
	subscriptionType, err := ledger.ParseSubscriptionType(int64(rawType))
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	subscription, operationError := server.marketplace.Subscribe(ctx, caller, clubOwner, subscriptionType)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{
		"subscriber":       subscription.Subscriber.Hex(),
		"club_owner":       subscription.ClubOwner.Hex(),
		"type":             subscription.Type.String(),
		"started_unix_utc": subscription.StartedUnixUTC,
		"expires_unix_utc": subscription.ExpiresUnixUTC,
	})
}

func (server *LedgerServer) PayPerCall(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	callID, err := uintField(request, "call_id")
	if err != nil {
		return nil, mapToGRPCError(fmt.Errorf("%w: %v", ledger.ErrInvalidCall, err))
	}
	split, operationError := server.marketplace.PayPerCall(ctx, caller, callID)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{
		"caller":   split.Caller.String(),
		"protocol": split.Protocol.String(),
		"team":     split.Team.String(),
	})
}

func (server *LedgerServer) AccessPaidCall(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	callID, err := uintField(request, "call_id")
	if err != nil {
		return nil, mapToGRPCError(fmt.Errorf("%w: %v", ledger.ErrInvalidCall, err))
	}
	call, operationError := server.marketplace.AccessPaidCall(ctx, caller, callID)
	if operationError != nil {
		return nil, server.fail(operationError)
	}
	return newResponse(map[string]any{
		"id":               float64(call.ID),
		"caller":           call.Caller.Hex(),
		"asset":            call.Asset,
		"private":          call.Private,
		"thesis":           call.Thesis,
		"entry_price":      call.EntryPrice.String(),
		"target_price":     call.TargetPrice.String(),
		"created_unix_utc": call.CreatedUnixUTC,
		"expires_unix_utc": call.ExpiresUnixUTC,
	})
}

// fail maps err and logs failures that carry no domain classification.
func (server *LedgerServer) fail(err error) error {
	if apierrors.IsInternal(err) {
		server.logger.Error("grpc operation failed", zap.Error(err))
	}
	return mapToGRPCError(err)
}

func callerFrom(ctx context.Context) (common.Address, error) {
	account, ok := ctx.Value(callerContextKey{}).(common.Address)
	if !ok || account == (common.Address{}) {
		return common.Address{}, auth.ErrMissingToken
	}
	return account, nil
}

func stringField(request *structpb.Struct, name string) string {
	return request.GetFields()[name].GetStringValue()
}

func amountField(request *structpb.Struct, name string) (ledger.Amount, error) {
	return ledger.ParseAmount(stringField(request, name))
}

func addressField(request *structpb.Struct, name string) (common.Address, error) {
	return ledger.NewAccountAddress(stringField(request, name))
}

func uintField(request *structpb.Struct, name string) (uint64, error) {
	value, ok := request.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	number := value.GetNumberValue()
	if number < 0 || number != math.Trunc(number) || number > math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return uint64(number), nil
}

func newResponse(fields map[string]any) (*structpb.Struct, error) {
	response, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return response, nil
}

func mapToGRPCError(source error) error {
	classification := apierrors.Classify(source)
	if classification.Code == apierrors.CodeInternal {
		return status.Error(codes.Internal, source.Error())
	}
	return status.Error(classification.GRPCCode, classification.Code)
}
