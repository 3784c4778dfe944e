package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dgnmMarket/internal/config"
	"dgnmMarket/internal/registry"
)

func main() {
	root := &cobra.Command{
		Use:          "market",
		Short:        "Multi-token NFT marketplace settlement engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "optional env file loaded before config")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement engine HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("network", "Ganache", "registry network the market settles on")
	serveCmd.Flags().String("tokens-file", "", "token registry YAML (built-in tables if empty)")
	addStoreFlags(serveCmd)
	serveCmd.Flags().String("events", "./data/events.jsonl", "event JSONL path (empty disables)")
	serveCmd.Flags().StringSlice("collectors", nil, "vault collector addresses (comma-separated)")
	serveCmd.Flags().String("owner", "", "collection owner, used when the ledger has no collection yet")
	serveCmd.Flags().String("mint-cost", "0", "mint cost in base units of the native coin")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().Duration("badger-gc-interval", 5*time.Minute, "badger value log GC interval")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Initialize the collection and open minting",
		RunE:  runDeploy,
	}

	deployCmd.Flags().String("network", "Ganache", "registry network")
	deployCmd.Flags().String("tokens-file", "", "token registry YAML (built-in tables if empty)")
	deployCmd.Flags().String("tokens-out", "", "write the extended registry to this YAML path")
	deployCmd.Flags().StringSlice("mock-token", nil, "mock token to register as SYMBOL:ADDRESS:DECIMALS (repeatable)")
	addStoreFlags(deployCmd)
	deployCmd.Flags().String("owner", "", "collection owner address")
	deployCmd.Flags().String("mint-cost", "0", "mint cost in base units of the native coin")
	deployCmd.Flags().Bool("open", true, "open minting after initialization")
	deployCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(deployCmd)
	root.AddCommand(newTokensCmd(), newEventsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", config.StoreMemory, "ledger store (memory, badger, postgres)")
	cmd.Flags().String("badger-path", "./data/ledger", "badger database directory")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Bool("migrate", true, "create Postgres tables on start")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokens file: %w", err)
	}
	return reg, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAddresses(field string, raws []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raws))
	for _, raw := range raws {
		addr, err := parseAddress(field, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseBaseUnits(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return v, nil
}
