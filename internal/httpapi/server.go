package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/internal/apierrors"
	"github.com/MarkoPoloResearchLab/clubledger/internal/auth"
	"github.com/MarkoPoloResearchLab/clubledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	callerContextKey   = "caller_account"
	defaultTimeout     = 5 * time.Second
	defaultMaxAge      = 12 * time.Hour
	defaultHistorySize = 50
	maxHistorySize     = 200
)

// TokenBook is the token ledger surface exposed over HTTP.
type TokenBook interface {
	BalanceOf(ctx context.Context, token common.Address, account common.Address) (ledger.Amount, error)
	Allowance(ctx context.Context, token common.Address, owner common.Address, spender common.Address) (ledger.Amount, error)
	Approve(ctx context.Context, token common.Address, owner common.Address, spender common.Address, amount ledger.Amount) error
	History(ctx context.Context, token common.Address, account common.Address, limit int) ([]gormstore.TransferRecord, error)
}

// Dependencies wires the ledger services behind the HTTP API.
type Dependencies struct {
	Staking       *ledger.StakingService
	Vesting       *ledger.VestingService
	Marketplace   *ledger.MarketplaceService
	Tokens        TokenBook
	Authenticator *auth.Authenticator
	Gatherer      prometheus.Gatherer
	Logger        *zap.Logger
}

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine serving the ledger API.
func NewRouter(dependencies Dependencies, options Options) (*gin.Engine, error) {
	if dependencies.Staking == nil || dependencies.Vesting == nil || dependencies.Marketplace == nil {
		return nil, errors.New("httpapi: ledger services are required")
	}
	if dependencies.Tokens == nil || dependencies.Authenticator == nil {
		return nil, errors.New("httpapi: token book and authenticator are required")
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := dependencies.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	handler := &httpHandler{
		staking:     dependencies.Staking,
		vesting:     dependencies.Vesting,
		marketplace: dependencies.Marketplace,
		tokens:      dependencies.Tokens,
		logger:      logger,
		timeout:     timeout,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(options.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     options.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept"},
			AllowCredentials: true,
			MaxAge:           defaultMaxAge,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	authenticated := api.Group("")
	authenticated.Use(requireCaller(dependencies.Authenticator))

	api.GET("/staking/config", handler.handleStakingConfig)
	api.GET("/staking/total", handler.handleTotalStaked)
	api.GET("/staking/fee-tokens", handler.handleFeeTokens)
	api.GET("/staking/accumulators/:token", handler.handleAccumulator)
	api.GET("/staking/positions/:account", handler.handlePosition)
	api.GET("/staking/claimable/:account/:token", handler.handleClaimable)
	authenticated.POST("/staking/stake", handler.handleStake)
	authenticated.POST("/staking/unstake", handler.handleUnstake)
	authenticated.POST("/staking/claim", handler.handleClaim)
	authenticated.POST("/staking/fees", handler.handleDepositFees)
	authenticated.POST("/staking/stranded/:token/recover", handler.handleRecoverStranded)
	authenticated.PUT("/staking/fee-router", handler.handleSetFeeRouter)
	authenticated.PUT("/staking/token", handler.handleUpdateStakingToken)

	api.GET("/vesting/config", handler.handleVestingConfig)
	api.GET("/vesting/current-day", handler.handleCurrentDay)
	api.GET("/vesting/pool", handler.handleRemainingPool)
	api.GET("/vesting/days/:day", handler.handleEligibilityDay)
	api.GET("/vesting/days/:day/eligibility/:account", handler.handleEligibility)
	api.GET("/vesting/rewards/:account", handler.handleDailyReward)
	api.GET("/vesting/lifetime/:account", handler.handleLifetimeClaimed)
	authenticated.PUT("/vesting/recorder", handler.handleSetRecorder)
	authenticated.PUT("/vesting/days/:day/eligibility/:account", handler.handleRecordEligibility)
	authenticated.PUT("/vesting/days/:day/total", handler.handleRecordTotalEligible)
	authenticated.PUT("/vesting/days/:day/snapshot", handler.handleRecordSnapshot)
	authenticated.POST("/vesting/claim", handler.handleClaimTokens)

	api.GET("/marketplace/config", handler.handleMarketplaceConfig)
	api.GET("/marketplace/tokens", handler.handleAcceptedTokens)
	api.GET("/marketplace/tokens/:index", handler.handleAcceptedToken)
	authenticated.POST("/marketplace/tokens", handler.handleAddAcceptedToken)
	authenticated.PUT("/marketplace/staking-ledger", handler.handleSetStakingLedger)
	authenticated.PUT("/marketplace/team-wallet", handler.handleSetTeamWallet)

	api.GET("/profiles/:account", handler.handleProfile)
	authenticated.POST("/profiles", handler.handleCreateProfile)

	api.GET("/clubs/:owner", handler.handleClub)
	api.GET("/clubs/:owner/subscriptions/:subscriber", handler.handleSubscription)
	authenticated.POST("/clubs", handler.handleCreateClub)
	authenticated.PUT("/clubs/:owner/prices", handler.handleUpdateClubPricing)
	authenticated.POST("/clubs/:owner/subscription", handler.handleSubscribe)
	authenticated.DELETE("/clubs/:owner/subscription", handler.handleUnsubscribe)

	api.GET("/calls/:id", handler.handleCall)
	api.GET("/calls/:id/payments/:payer", handler.handleHasPaid)
	api.GET("/callers/:account/calls", handler.handleCallsByCaller)
	authenticated.POST("/calls", handler.handlePostCall)
	authenticated.POST("/calls/:id/payment", handler.handlePayPerCall)
	authenticated.GET("/calls/:id/access", handler.handleAccessPaidCall)

	api.GET("/tokens/:token/balances/:account", handler.handleBalance)
	api.GET("/tokens/:token/allowances/:owner/:spender", handler.handleAllowance)
	api.GET("/tokens/:token/history/:account", handler.handleHistory)
	authenticated.POST("/tokens/:token/approvals", handler.handleApprove)

	return router, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down within grace.
func Serve(ctx context.Context, listenAddr string, handler http.Handler, grace time.Duration, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", listenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requireCaller(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		account, err := authenticator.VerifyHeader(ctx.GetHeader("Authorization"))
		if err != nil {
			classification := apierrors.Classify(err)
			ctx.AbortWithStatusJSON(classification.HTTPStatus, errorResponse(classification.Code, err.Error()))
			return
		}
		ctx.Set(callerContextKey, account)
		ctx.Next()
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
