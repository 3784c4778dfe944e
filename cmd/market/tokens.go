package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dgnmMarket/internal/chain"
	"dgnmMarket/internal/config"
	"dgnmMarket/internal/model"
	"dgnmMarket/internal/registry"
)

func newTokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect the payment token registry",
	}
	tokensCmd.PersistentFlags().String("network", "Ganache", "registry network")
	tokensCmd.PersistentFlags().String("tokens-file", "", "token registry YAML (built-in tables if empty)")
	tokensCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tokens registered on a network",
		Args:  cobra.NoArgs,
		RunE:  runTokensList,
	}

	convertCmd := &cobra.Command{
		Use:   "convert TOKEN AMOUNT",
		Short: "Convert between human amounts and base units",
		Long:  "TOKEN is a symbol or address. AMOUNT is a human amount, or base units with --raw.",
		Args:  cobra.ExactArgs(2),
		RunE:  runTokensConvert,
	}
	convertCmd.Flags().Bool("raw", false, "AMOUNT is in base units")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check registered decimals against the ERC20 contracts on chain",
		Args:  cobra.NoArgs,
		RunE:  runTokensVerify,
	}
	verifyCmd.Flags().String("rpc", "", "JSON-RPC URL of the network")
	verifyCmd.Flags().Int("max-retries", 3, "maximum retry attempts per call")
	verifyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	tokensCmd.AddCommand(listCmd, convertCmd, verifyCmd)
	return tokensCmd
}

func loadTokensConfig(cmd *cobra.Command) (config.TokensConfig, *registry.Registry, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTokens(cfgFile, cmd.Flags())
	if err != nil {
		return config.TokensConfig{}, nil, err
	}
	reg, err := loadRegistry(cfg.TokensFile)
	if err != nil {
		return config.TokensConfig{}, nil, err
	}
	return cfg, reg, nil
}

func runTokensList(cmd *cobra.Command, _ []string) error {
	cfg, reg, err := loadTokensConfig(cmd)
	if err != nil {
		return err
	}
	tokens, err := reg.Tokens(cfg.Network)
	if err != nil {
		return fmt.Errorf("%w (networks: %s)", err, strings.Join(reg.Networks(), ", "))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "# %s, registry v%d\n", cfg.Network, reg.Version())
	fmt.Fprintln(w, "INDEX\tSYMBOL\tADDRESS\tDECIMALS")
	for _, token := range tokens {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", token.Index, token.Symbol, token.Address.Hex(), token.Decimals)
	}
	return w.Flush()
}

func runTokensConvert(cmd *cobra.Command, args []string) error {
	cfg, reg, err := loadTokensConfig(cmd)
	if err != nil {
		return err
	}
	token, err := resolveToken(reg, cfg.Network, args[0])
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetBool("raw")

	out := cmd.OutOrStdout()
	if raw {
		units, err := parseBaseUnits("amount", args[1])
		if err != nil {
			return err
		}
		human, err := reg.ToHuman(cfg.Network, token.Address, units)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", human.String(), token.Symbol)
		return nil
	}

	human, err := decimal.NewFromString(strings.TrimSpace(args[1]))
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	units, err := reg.ToRaw(cfg.Network, token.Address, human)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", units.String())
	return nil
}

func runTokensVerify(cmd *cobra.Command, _ []string) error {
	cfg, reg, err := loadTokensConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	logger.Info("verifying registry", zap.String("network", cfg.Network), zap.String("chain_id", chainID.String()))

	mismatches, err := reg.Verify(ctx, cfg.Network, client)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, m := range mismatches {
		if m.Err != nil {
			fmt.Fprintf(out, "%s\t%s\terror: %v\n", m.Token.Symbol, m.Token.Address.Hex(), m.Err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\tregistered %d, on chain %d\n", m.Token.Symbol, m.Token.Address.Hex(), m.Token.Decimals, m.OnChain)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d token(s) failed verification on %s", len(mismatches), cfg.Network)
	}
	fmt.Fprintf(out, "all tokens on %s match (chain id %s)\n", cfg.Network, chainID)
	return nil
}

func resolveToken(reg *registry.Registry, network, ref string) (model.Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return reg.Lookup(network, common.HexToAddress(ref))
	}
	return reg.LookupSymbol(network, ref)
}
