package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadServeDefaults(t *testing.T) {
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Network != "Ganache" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.Store.Backend)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
}

func TestLoadServeEnvAndFlags(t *testing.T) {
	t.Setenv("MARKET_COLLECTORS", "0xaaaa, ,0xbbbb")
	t.Setenv("MARKET_STORE", "Badger")
	t.Setenv("MARKET_LISTEN", ":9000")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("listen", ":8080", "")
	flags.String("network", "Ganache", "")
	if err := flags.Parse([]string{"--network", "Mumbai Testnet"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadServe("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Collectors) != 2 || cfg.Collectors[1] != "0xbbbb" {
		t.Fatalf("unexpected collectors %v", cfg.Collectors)
	}
	if cfg.Store.Backend != StoreBadger {
		t.Fatalf("expected badger store, got %q", cfg.Store.Backend)
	}
	if cfg.Network != "Mumbai Testnet" {
		t.Fatalf("flag not applied: %q", cfg.Network)
	}
	// env wins over an unchanged flag default
	if cfg.Listen != ":9000" {
		t.Fatalf("env not applied: %q", cfg.Listen)
	}
}

func TestLoadDeployFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	body := "owner: \"0x1000000000000000000000000000000000000001\"\n" +
		"mint-cost: \"10\"\n" +
		"mock-token:\n  - mDAI:0x5FbDB2315678afecb367f032d93F642f64180aa3:18\n" +
		"store: postgres\n" +
		"pg-dsn: postgres://localhost/market\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadDeploy(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MintCost != "10" || !cfg.Open {
		t.Fatalf("unexpected deploy config %+v", cfg)
	}
	if len(cfg.MockTokens) != 1 {
		t.Fatalf("expected one mock token, got %v", cfg.MockTokens)
	}
	if err := cfg.Store.Validate(); err != nil {
		t.Fatalf("validate store: %v", err)
	}
}

func TestStoreValidate(t *testing.T) {
	cases := []struct {
		cfg StoreConfig
		ok  bool
	}{
		{StoreConfig{Backend: StoreMemory}, true},
		{StoreConfig{Backend: StoreBadger}, false},
		{StoreConfig{Backend: StoreBadger, BadgerPath: "./data"}, true},
		{StoreConfig{Backend: StorePostgres}, false},
		{StoreConfig{Backend: "sqlite"}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%+v: got err %v", tc.cfg, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MARKET_NETWORK=\"Dnero Mainnet\"\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("MARKET_NETWORK", "")
	os.Unsetenv("MARKET_NETWORK")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	cfg, err := LoadTokens("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != "Dnero Mainnet" {
		t.Fatalf("expected network from env file, got %q", cfg.Network)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file: %v", err)
	}
}

func TestLoadEventsTypesFromEnv(t *testing.T) {
	t.Setenv("MARKET_TYPE", "Sold, ,Withdrawn")

	cfg, err := LoadEvents("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Events != "./data/events.jsonl" {
		t.Fatalf("unexpected events path %q", cfg.Events)
	}
	if len(cfg.Types) != 2 || cfg.Types[0] != "Sold" || cfg.Types[1] != "Withdrawn" {
		t.Fatalf("unexpected types %v", cfg.Types)
	}
}
