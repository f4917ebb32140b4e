package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func TestValidateFillsDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{JWTSigningKey: testSigningKey}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate failed: %v", err)
	}
	if cfg.DatabaseURL != defaultDatabaseURL || cfg.HTTPListenAddr != defaultHTTPListenAddr || cfg.GRPCListenAddr != defaultGRPCListenAddr {
		test.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != time.Hour || cfg.RequestTimeout != defaultRequestTimeout || cfg.ShutdownGrace != defaultShutdownGrace {
		test.Fatalf("unexpected durations: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{defaultAllowedOrigin}) {
		test.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestValidateRejectsUnsafeSettings(test *testing.T) {
	test.Parallel()
	short := Config{JWTSigningKey: "short"}
	if err := short.Validate(); err == nil {
		test.Fatalf("expected short signing key to be rejected")
	}
	clash := Config{JWTSigningKey: testSigningKey, HTTPListenAddr: ":9000", GRPCListenAddr: ":9000"}
	if err := clash.Validate(); err == nil {
		test.Fatalf("expected identical listen addresses to be rejected")
	}
}

func TestParseList(test *testing.T) {
	test.Parallel()
	parsed := ParseList(" http://a.example , ,http://b.example")
	if !reflect.DeepEqual(parsed, []string{"http://a.example", "http://b.example"}) {
		test.Fatalf("unexpected list: %v", parsed)
	}
	if len(ParseList("  ")) != 0 {
		test.Fatalf("expected empty list")
	}
}

func TestGenesisPlanParsesAddresses(test *testing.T) {
	test.Parallel()
	genesis := Genesis{
		Owner:          "0x00000000000000000000000000000000000000a1",
		RewardToken:    "0x00000000000000000000000000000000000000b1",
		StakingCustody: "0x00000000000000000000000000000000000000c1",
		VestingCustody: "0x00000000000000000000000000000000000000c2",
		MarketCustody:  "0x00000000000000000000000000000000000000c3",
		TeamWallet:     "0x00000000000000000000000000000000000000e1",
		AcceptedTokens: []string{"0x00000000000000000000000000000000000000f1"},
	}
	plan, err := genesis.Plan()
	if err != nil {
		test.Fatalf("plan failed: %v", err)
	}
	if plan.Recorder != plan.Owner {
		test.Fatalf("expected recorder to default to owner, got %s", plan.Recorder.Hex())
	}
	if plan.MarketCustody != common.HexToAddress("0xc3") {
		test.Fatalf("unexpected market custody %s", plan.MarketCustody.Hex())
	}

	genesis.TeamWallet = "not-an-address"
	if _, err := genesis.Plan(); !errors.Is(err, ledger.ErrInvalidAddress) {
		test.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	genesis.TeamWallet = "0x00000000000000000000000000000000000000e1"
	genesis.AcceptedTokens = nil
	if _, err := genesis.Plan(); err == nil {
		test.Fatalf("expected missing accepted tokens to be rejected")
	}
}

func TestGenesisPlanRejectsSharedCustody(test *testing.T) {
	test.Parallel()
	base := Genesis{
		Owner:          "0x00000000000000000000000000000000000000a1",
		RewardToken:    "0x00000000000000000000000000000000000000b1",
		StakingCustody: "0x00000000000000000000000000000000000000c1",
		VestingCustody: "0x00000000000000000000000000000000000000c2",
		MarketCustody:  "0x00000000000000000000000000000000000000c3",
		TeamWallet:     "0x00000000000000000000000000000000000000e1",
		AcceptedTokens: []string{"0x00000000000000000000000000000000000000f1"},
	}
	testCases := []struct {
		name   string
		mutate func(genesis *Genesis)
	}{
		{name: "vesting shares staking", mutate: func(genesis *Genesis) { genesis.VestingCustody = genesis.StakingCustody }},
		{name: "marketplace shares staking", mutate: func(genesis *Genesis) { genesis.MarketCustody = genesis.StakingCustody }},
		{name: "marketplace shares vesting", mutate: func(genesis *Genesis) { genesis.MarketCustody = genesis.VestingCustody }},
		{name: "team wallet shares vesting", mutate: func(genesis *Genesis) { genesis.TeamWallet = genesis.VestingCustody }},
	}
	for _, testCase := range testCases {
		test.Run(testCase.name, func(test *testing.T) {
			genesis := base
			testCase.mutate(&genesis)
			_, err := genesis.Plan()
			if err == nil || !strings.Contains(err.Error(), "must be different accounts") {
				test.Fatalf("expected shared custody to be rejected, got %v", err)
			}
		})
	}
}
