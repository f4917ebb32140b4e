package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultDatabaseURL    = "sqlite:///tmp/clubledger.db"
	defaultHTTPListenAddr = ":8080"
	defaultGRPCListenAddr = ":7000"
	defaultAllowedOrigin  = "http://localhost:8000"
	defaultJWTIssuer      = "clubledger"
	defaultTokenTTL       = time.Hour
	defaultRequestTimeout = 5 * time.Second
	defaultShutdownGrace  = 5 * time.Second
	minSigningKeyBytes    = 16
)

// Config aggregates runtime settings for the clubledger daemon.
type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	GRPCListenAddr string
	AllowedOrigins []string
	JWTSigningKey  string
	JWTIssuer      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.HTTPListenAddr = defaultIfEmpty(cfg.HTTPListenAddr, defaultHTTPListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}
	if len(cfg.JWTSigningKey) < minSigningKeyBytes {
		return fmt.Errorf("jwt signing key must be at least %d bytes", minSigningKeyBytes)
	}
	if cfg.HTTPListenAddr == cfg.GRPCListenAddr {
		return fmt.Errorf("http and grpc listen addresses must differ (%s)", cfg.HTTPListenAddr)
	}
	return nil
}

// Genesis describes the accounts wired together by the bootstrap command.
type Genesis struct {
	Owner          string
	Recorder       string
	RewardToken    string
	StakingCustody string
	VestingCustody string
	MarketCustody  string
	TeamWallet     string
	AcceptedTokens []string
	GenesisUnixUTC int64
}

// GenesisPlan is a validated Genesis with parsed addresses.
type GenesisPlan struct {
	Owner          common.Address
	Recorder       common.Address
	RewardToken    common.Address
	StakingCustody common.Address
	VestingCustody common.Address
	MarketCustody  common.Address
	TeamWallet     common.Address
	AcceptedTokens []common.Address
	GenesisUnixUTC int64
}

// Plan parses every address of the genesis description.
func (genesis Genesis) Plan() (GenesisPlan, error) {
	var plan GenesisPlan
	fields := []struct {
		name   string
		raw    string
		target *common.Address
	}{
		{name: "owner", raw: genesis.Owner, target: &plan.Owner},
		{name: "recorder", raw: defaultIfEmpty(genesis.Recorder, genesis.Owner), target: &plan.Recorder},
		{name: "reward token", raw: genesis.RewardToken, target: &plan.RewardToken},
		{name: "staking custody", raw: genesis.StakingCustody, target: &plan.StakingCustody},
		{name: "vesting custody", raw: genesis.VestingCustody, target: &plan.VestingCustody},
		{name: "marketplace custody", raw: genesis.MarketCustody, target: &plan.MarketCustody},
		{name: "team wallet", raw: genesis.TeamWallet, target: &plan.TeamWallet},
	}
	for _, field := range fields {
		address, err := ledger.NewAccountAddress(field.raw)
		if err != nil {
			return GenesisPlan{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.target = address
	}
	if err := requireDistinctAccounts(map[string]common.Address{
		"staking custody":     plan.StakingCustody,
		"vesting custody":     plan.VestingCustody,
		"marketplace custody": plan.MarketCustody,
		"team wallet":         plan.TeamWallet,
	}); err != nil {
		return GenesisPlan{}, err
	}
	if len(genesis.AcceptedTokens) == 0 {
		return GenesisPlan{}, fmt.Errorf("at least one accepted payment token is required")
	}
	for _, raw := range genesis.AcceptedTokens {
		token, err := ledger.NewAccountAddress(raw)
		if err != nil {
			return GenesisPlan{}, fmt.Errorf("accepted token: %w", err)
		}
		plan.AcceptedTokens = append(plan.AcceptedTokens, token)
	}
	plan.GenesisUnixUTC = genesis.GenesisUnixUTC
	return plan, nil
}

// requireDistinctAccounts fails when two roles share one account; every custody keeps its own balance.
func requireDistinctAccounts(roles map[string]common.Address) error {
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	seen := make(map[common.Address]string, len(roles))
	for _, name := range names {
		address := roles[name]
		if previous, exists := seen[address]; exists {
			return fmt.Errorf("%s and %s must be different accounts (%s)", previous, name, address.Hex())
		}
		seen[address] = name
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseList splits comma-delimited values into a slice.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
