package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dgnmMarket/internal/config"
	"dgnmMarket/internal/market"
	"dgnmMarket/internal/model"
	"dgnmMarket/internal/registry"
)

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDeploy(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	owner, err := parseAddress("owner", cfg.Owner)
	if err != nil {
		return err
	}
	mintCost, err := parseBaseUnits("mint-cost", cfg.MintCost)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(cfg.TokensFile)
	if err != nil {
		return err
	}
	for _, raw := range cfg.MockTokens {
		token, err := parseMockToken(raw)
		if err != nil {
			return err
		}
		if reg, err = reg.Extend(cfg.Network, token); err != nil {
			return fmt.Errorf("register %s: %w", token.Symbol, err)
		}
		logger.Info("mock token registered",
			zap.String("network", cfg.Network),
			zap.String("symbol", token.Symbol),
			zap.String("address", token.Address.Hex()),
			zap.Uint8("decimals", token.Decimals),
		)
	}
	if cfg.TokensOut != "" {
		if err := registry.WriteFile(cfg.TokensOut, reg); err != nil {
			return fmt.Errorf("write tokens file: %w", err)
		}
		logger.Info("registry written", zap.String("path", cfg.TokensOut), zap.Uint64("version", reg.Version()))
	} else if len(cfg.MockTokens) > 0 {
		logger.Warn("mock tokens registered without --tokens-out, serve will not see them")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.close()

	engine, err := market.Open(ctx, reg, store, market.Options{
		Network: cfg.Network,
		Logger:  logger.Named("engine"),
	})
	if err != nil {
		return err
	}

	if err := engine.Initialize(ctx, owner, mintCost); err != nil {
		if !errors.Is(err, market.ErrAlreadyInitialized) {
			return fmt.Errorf("initialize collection: %w", err)
		}
		logger.Info("collection already initialized")
	}

	coll, err := engine.Collection()
	if err != nil {
		return err
	}
	if coll.State == model.StateUnset {
		if err := engine.SetState(ctx, coll.Owner, model.StatePaused); err != nil {
			return err
		}
	}
	if cfg.Open {
		coll, err = engine.Collection()
		if err != nil {
			return err
		}
		if coll.State == model.StatePaused {
			if err := engine.SetState(ctx, coll.Owner, model.StateMintingOpen); err != nil {
				return err
			}
		}
	}

	coll, err = engine.Collection()
	if err != nil {
		return err
	}
	logger.Info("deploy complete",
		zap.String("network", cfg.Network),
		zap.String("owner", coll.Owner.Hex()),
		zap.String("mint_cost", coll.MintCost.String()),
		zap.Stringer("state", coll.State),
		zap.String("store", cfg.Store.Backend),
	)
	return nil
}

// parseMockToken parses SYMBOL:ADDRESS:DECIMALS.
func parseMockToken(raw string) (model.Token, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return model.Token{}, fmt.Errorf("mock token %q: expected SYMBOL:ADDRESS:DECIMALS", raw)
	}
	addr, err := parseAddress("mock token", parts[1])
	if err != nil {
		return model.Token{}, err
	}
	decimals, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 8)
	if err != nil {
		return model.Token{}, fmt.Errorf("mock token %q decimals: %w", raw, err)
	}
	return model.Token{
		Symbol:   strings.TrimSpace(parts[0]),
		Address:  addr,
		Decimals: uint8(decimals),
	}, nil
}
