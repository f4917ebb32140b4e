package grpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/MarkoPoloResearchLab/clubledger/internal/auth"
	"github.com/MarkoPoloResearchLab/clubledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"
)

const (
	bufconnSize              = 1 << 20
	testGenesisUnixUTC int64 = 1_700_000_000
)

var (
	ownerAccount   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stakingCustody = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	vestingCustody = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	marketCustody  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	teamWallet     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	clubToken      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	usdcToken      = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	aliceAccount   = common.HexToAddress("0x0000000000000000000000000000000000000011")
)

type grpcFixture struct {
	conn          *grpc.ClientConn
	store         *gormstore.Store
	authenticator *auth.Authenticator
}

func startLedgerServer(test *testing.T) *grpcFixture {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/clubledger.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	store := gormstore.New(database)
	if err := store.Migrate(ctx); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	clock := func() int64 { return testGenesisUnixUTC }
	staking, err := ledger.NewStakingService(store, clock)
	if err != nil {
		test.Fatalf("staking service: %v", err)
	}
	vesting, err := ledger.NewVestingService(store, clock)
	if err != nil {
		test.Fatalf("vesting service: %v", err)
	}
	marketplace, err := ledger.NewMarketplaceService(store, clock)
	if err != nil {
		test.Fatalf("marketplace service: %v", err)
	}
	if err := staking.Provision(ctx, ledger.StakingConfig{Owner: ownerAccount, Custody: stakingCustody, StakingToken: clubToken, FeeRouter: marketCustody}); err != nil {
		test.Fatalf("provision staking: %v", err)
	}
	if err := vesting.Provision(ctx, ledger.VestingConfig{Owner: ownerAccount, Custody: vestingCustody, RewardToken: clubToken, Recorder: ownerAccount, GenesisUnixUTC: testGenesisUnixUTC}); err != nil {
		test.Fatalf("provision vesting: %v", err)
	}
	if err := marketplace.Provision(ctx, ledger.MarketplaceConfig{Owner: ownerAccount, Custody: marketCustody, StakingLedger: stakingCustody, TeamWallet: teamWallet, AcceptedTokens: []common.Address{usdcToken}}); err != nil {
		test.Fatalf("provision marketplace: %v", err)
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{SigningKey: []byte("0123456789abcdef0123456789abcdef"), Issuer: "clubledger-test"})
	if err != nil {
		test.Fatalf("authenticator: %v", err)
	}
	logger := zaptest.NewLogger(test)
	server, err := NewLedgerServer(staking, vesting, marketplace, logger)
	if err != nil {
		test.Fatalf("ledger server: %v", err)
	}

	listener := bufconn.Listen(bufconnSize)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(logger), AuthInterceptor(authenticator)))
	Register(grpcServer, server)
	go func() {
		_ = grpcServer.Serve(listener)
	}()
	test.Cleanup(grpcServer.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		test.Fatalf("gRPC client init failed: %v", err)
	}
	test.Cleanup(func() { _ = conn.Close() })
	return &grpcFixture{conn: conn, store: store, authenticator: authenticator}
}

func mustStruct(test *testing.T, fields map[string]any) *structpb.Struct {
	test.Helper()
	value, err := structpb.NewStruct(fields)
	if err != nil {
		test.Fatalf("struct: %v", err)
	}
	return value
}

func (fixture *grpcFixture) invoke(test *testing.T, method string, account *common.Address, fields map[string]any) (*structpb.Struct, error) {
	test.Helper()
	ctx := context.Background()
	if account != nil {
		token, err := fixture.authenticator.Issue(*account)
		if err != nil {
			test.Fatalf("issue token: %v", err)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, authorizationMetadataKey, "Bearer "+token)
	}
	response := &structpb.Struct{}
	err := fixture.conn.Invoke(ctx, fullMethodName(method), mustStruct(test, fields), response)
	return response, err
}

func requireCode(test *testing.T, err error, expected codes.Code, message string) {
	test.Helper()
	if status.Code(err) != expected {
		test.Fatalf("expected %s, got %v", expected, err)
	}
	if got := status.Convert(err).Message(); got != message {
		test.Fatalf("expected message %q, got %q", message, got)
	}
}

func TestStakeAndClaimOverGRPC(test *testing.T) {
	test.Parallel()
	fixture := startLedgerServer(test)
	ctx := context.Background()
	book := fixture.store.Book()
	if err := book.Mint(ctx, clubToken, aliceAccount, ledger.NewAmountFromUint64(50)); err != nil {
		test.Fatalf("mint: %v", err)
	}
	if err := book.Approve(ctx, clubToken, aliceAccount, stakingCustody, ledger.NewAmountFromUint64(50)); err != nil {
		test.Fatalf("approve: %v", err)
	}

	position, err := fixture.invoke(test, "Stake", &aliceAccount, map[string]any{"amount": "50"})
	if err != nil {
		test.Fatalf("stake: %v", err)
	}
	if staked := position.GetFields()["staked"].GetStringValue(); staked != "50" {
		test.Fatalf("expected staked 50, got %s", staked)
	}

	if err := book.Mint(ctx, usdcToken, stakingCustody, ledger.NewAmountFromUint64(9)); err != nil {
		test.Fatalf("mint fees: %v", err)
	}
	claimable, err := fixture.invoke(test, "ClaimableBalance", nil, map[string]any{"account": aliceAccount.Hex(), "token": usdcToken.Hex()})
	if err != nil {
		test.Fatalf("claimable: %v", err)
	}
	if amount := claimable.GetFields()["claimable"].GetStringValue(); amount != "0" {
		test.Fatalf("undeposited fees must not be claimable, got %s", amount)
	}

	_, err = fixture.invoke(test, "Claim", &aliceAccount, map[string]any{})
	requireCode(test, err, codes.FailedPrecondition, "nothing_to_claim")

	public, err := fixture.invoke(test, "Position", nil, map[string]any{"account": aliceAccount.Hex()})
	if err != nil {
		test.Fatalf("position: %v", err)
	}
	if total := public.GetFields()["total_staked"].GetStringValue(); total != "50" {
		test.Fatalf("expected total 50, got %s", total)
	}
}

func TestAuthenticatedMethodsRejectMissingToken(test *testing.T) {
	test.Parallel()
	fixture := startLedgerServer(test)

	_, err := fixture.invoke(test, "Stake", nil, map[string]any{"amount": "1"})
	requireCode(test, err, codes.Unauthenticated, "unauthenticated")

	_, err = fixture.invoke(test, "ClaimTokens", nil, map[string]any{})
	requireCode(test, err, codes.Unauthenticated, "unauthenticated")
}

func TestRequestValidationMapsToStableCodes(test *testing.T) {
	test.Parallel()
	fixture := startLedgerServer(test)

	_, err := fixture.invoke(test, "Position", nil, map[string]any{"account": "nope"})
	requireCode(test, err, codes.InvalidArgument, "invalid_address")

	_, err = fixture.invoke(test, "Stake", &aliceAccount, map[string]any{"amount": "0"})
	requireCode(test, err, codes.InvalidArgument, "invalid_amount")

	_, err = fixture.invoke(test, "Subscribe", &aliceAccount, map[string]any{"club_owner": ownerAccount.Hex(), "type": 9})
	requireCode(test, err, codes.InvalidArgument, "invalid_subscription_type")

	_, err = fixture.invoke(test, "PayPerCall", &aliceAccount, map[string]any{"call_id": 4})
	requireCode(test, err, codes.NotFound, "call_not_found")

	_, err = fixture.invoke(test, "AccessPaidCall", &aliceAccount, map[string]any{"call_id": 1.5})
	requireCode(test, err, codes.InvalidArgument, "invalid_call")
}

func TestMapToGRPCErrorFallsBackToInternal(test *testing.T) {
	test.Parallel()
	err := mapToGRPCError(context.Canceled)
	if status.Code(err) != codes.Internal {
		test.Fatalf("expected internal, got %v", err)
	}
	err = mapToGRPCError(ledger.ErrUnauthorized)
	requireCode(test, err, codes.PermissionDenied, "unauthorized")
}
