package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/internal/auth"
	"github.com/MarkoPoloResearchLab/clubledger/internal/config"
	"github.com/MarkoPoloResearchLab/clubledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/clubledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/clubledger/internal/observability"
	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	envPrefix = "CLUBLEDGER"

	flagDatabaseURL    = "database-url"
	flagHTTPListenAddr = "http-listen-addr"
	flagGRPCListenAddr = "grpc-listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagTokenTTL       = "token-ttl"
	flagRequestTimeout = "request-timeout"
	flagShutdownGrace  = "shutdown-grace"

	flagOwner          = "owner"
	flagRecorder       = "recorder"
	flagRewardToken    = "reward-token"
	flagStakingCustody = "staking-custody"
	flagVestingCustody = "vesting-custody"
	flagMarketCustody  = "market-custody"
	flagTeamWallet     = "team-wallet"
	flagAcceptedTokens = "accepted-tokens"
	flagGenesisUnix    = "genesis-unix"

	flagAccount = "account"

	defaultDatabaseURL    = "sqlite:///tmp/clubledger.db"
	defaultHTTPListenAddr = ":8080"
	defaultGRPCListenAddr = ":7000"
	defaultAllowedOrigins = "http://localhost:8000"
	defaultJWTIssuer      = "clubledger"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clubledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	settings := viper.New()
	cmd := &cobra.Command{
		Use:           "clubledgerd",
		Short:         "Club staking, vesting and marketplace ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindSettings(cmd, settings)
		},
	}
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")

	cmd.AddCommand(newServeCommand(settings), newBootstrapCommand(settings), newTokenCommand(settings))
	return cmd
}

// bindSettings layers CLUBLEDGER_* environment variables under the parsed flags.
func bindSettings(cmd *cobra.Command, settings *viper.Viper) error {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	return settings.BindPFlags(cmd.Flags())
}

func addAuthFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagJWTSigningKey, "", "HMAC key used to sign caller tokens")
	cmd.Flags().String(flagJWTIssuer, defaultJWTIssuer, "issuer claim of caller tokens")
	cmd.Flags().Duration(flagTokenTTL, time.Hour, "lifetime of issued caller tokens")
}

func newServeCommand(settings *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC ledger APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				DatabaseURL:    settings.GetString(flagDatabaseURL),
				HTTPListenAddr: settings.GetString(flagHTTPListenAddr),
				GRPCListenAddr: settings.GetString(flagGRPCListenAddr),
				AllowedOrigins: config.ParseList(settings.GetString(flagAllowedOrigins)),
				JWTSigningKey:  settings.GetString(flagJWTSigningKey),
				JWTIssuer:      settings.GetString(flagJWTIssuer),
				TokenTTL:       settings.GetDuration(flagTokenTTL),
				RequestTimeout: settings.GetDuration(flagRequestTimeout),
				ShutdownGrace:  settings.GetDuration(flagShutdownGrace),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().String(flagHTTPListenAddr, defaultHTTPListenAddr, "HTTP listen address")
	cmd.Flags().String(flagGRPCListenAddr, defaultGRPCListenAddr, "gRPC listen address")
	cmd.Flags().String(flagAllowedOrigins, defaultAllowedOrigins, "comma-separated CORS origins")
	cmd.Flags().Duration(flagRequestTimeout, 5*time.Second, "per-request timeout")
	cmd.Flags().Duration(flagShutdownGrace, 5*time.Second, "graceful shutdown window")
	addAuthFlags(cmd)
	return cmd
}

func newBootstrapCommand(settings *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Provision the ledgers and mint the reward token supply",
		RunE: func(cmd *cobra.Command, args []string) error {
			genesis := config.Genesis{
				Owner:          settings.GetString(flagOwner),
				Recorder:       settings.GetString(flagRecorder),
				RewardToken:    settings.GetString(flagRewardToken),
				StakingCustody: settings.GetString(flagStakingCustody),
				VestingCustody: settings.GetString(flagVestingCustody),
				MarketCustody:  settings.GetString(flagMarketCustody),
				TeamWallet:     settings.GetString(flagTeamWallet),
				AcceptedTokens: config.ParseList(settings.GetString(flagAcceptedTokens)),
				GenesisUnixUTC: settings.GetInt64(flagGenesisUnix),
			}
			plan, err := genesis.Plan()
			if err != nil {
				return fmt.Errorf("genesis: %w", err)
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx, settings.GetString(flagDatabaseURL))
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()
			return provisionGenesis(ctx, store, plan, utcClock, logger)
		},
	}
	cmd.Flags().String(flagOwner, "", "owner account of all three ledgers")
	cmd.Flags().String(flagRecorder, "", "eligibility recorder (defaults to the owner)")
	cmd.Flags().String(flagRewardToken, "", "reward and staking token address")
	cmd.Flags().String(flagStakingCustody, "", "staking custody account")
	cmd.Flags().String(flagVestingCustody, "", "vesting custody account")
	cmd.Flags().String(flagMarketCustody, "", "marketplace custody account and fee router")
	cmd.Flags().String(flagTeamWallet, "", "team wallet")
	cmd.Flags().String(flagAcceptedTokens, "", "comma-separated payment tokens")
	cmd.Flags().Int64(flagGenesisUnix, 0, "genesis unix time (defaults to now)")
	return cmd
}

func newTokenCommand(settings *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a caller token for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := ledger.NewAccountAddress(settings.GetString(flagAccount))
			if err != nil {
				return err
			}
			authenticator, err := auth.NewAuthenticator(auth.Config{
				SigningKey: []byte(settings.GetString(flagJWTSigningKey)),
				Issuer:     settings.GetString(flagJWTIssuer),
				TokenTTL:   settings.GetDuration(flagTokenTTL),
			})
			if err != nil {
				return err
			}
			token, err := authenticator.Issue(account)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String(flagAccount, "", "account address carried as the token subject")
	addAuthFlags(cmd)
	return cmd
}

func utcClock() int64 {
	return time.Now().UTC().Unix()
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewOperationMetrics(registry)
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}
	operationLogger := observability.OperationLoggers{observability.NewZapOperationLogger(logger), metrics}
	services, err := newLedgerServices(store, utcClock, operationLogger)
	if err != nil {
		return err
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{
		SigningKey: []byte(cfg.JWTSigningKey),
		Issuer:     cfg.JWTIssuer,
		TokenTTL:   cfg.TokenTTL,
	})
	if err != nil {
		return err
	}

	router, err := httpapi.NewRouter(httpapi.Dependencies{
		Staking:       services.staking,
		Vesting:       services.vesting,
		Marketplace:   services.marketplace,
		Tokens:        store.Book(),
		Authenticator: authenticator,
		Gatherer:      registry,
		Logger:        logger,
	}, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	ledgerServer, err := grpcserver.NewLedgerServer(services.staking, services.vesting, services.marketplace, logger)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcserver.LoggingInterceptor(logger),
		grpcserver.AuthInterceptor(authenticator),
	))
	grpcserver.Register(grpcServer, ledgerServer)

	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	errCh := make(chan error, 2)
	go func() {
		errCh <- httpapi.Serve(serveCtx, cfg.HTTPListenAddr, router, cfg.ShutdownGrace, logger)
	}()
	go func() {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		errCh <- grpcServer.Serve(lis)
	}()

	running := 2
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case serveErr = <-errCh:
		running--
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			serveErr = nil
		}
	}
	stopServing()
	grpcServer.GracefulStop()
	for ; running > 0; running-- {
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr = errors.Join(serveErr, err)
		}
	}
	return serveErr
}
