package market

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dgnmMarket/internal/model"
)

// vault tracks proceeds per token. Balances only grow through credit, which
// the engine calls from settlement and mint paths, and only shrink through a
// collector's withdrawal.
type vault struct {
	collectors map[common.Address]struct{}
	balances   map[common.Address]*big.Int
}

func newVault(collectors []common.Address) *vault {
	v := &vault{
		collectors: make(map[common.Address]struct{}, len(collectors)),
		balances:   make(map[common.Address]*big.Int),
	}
	for _, c := range collectors {
		v.collectors[c] = struct{}{}
	}
	return v
}

func (v *vault) isCollector(addr common.Address) bool {
	_, ok := v.collectors[addr]
	return ok
}

func (v *vault) balance(token common.Address) *big.Int {
	if bal, ok := v.balances[token]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// credit returns the balance row after adding amount. It does not change the vault.
func (v *vault) credit(token common.Address, amount *big.Int) model.VaultBalance {
	next := v.balance(token)
	next.Add(next, amount)
	return model.VaultBalance{Token: token, Amount: next}
}

// debit returns the balance row after subtracting amount.
func (v *vault) debit(token common.Address, amount *big.Int) (model.VaultBalance, error) {
	next := v.balance(token)
	next.Sub(next, amount)
	if next.Sign() < 0 {
		return model.VaultBalance{}, fmt.Errorf("%w: vault balance of %s would underflow", ErrIntegrity, token.Hex())
	}
	return model.VaultBalance{Token: token, Amount: next}, nil
}

func (v *vault) apply(rows []model.VaultBalance) {
	for _, row := range rows {
		v.balances[row.Token] = new(big.Int).Set(row.Amount)
	}
}

// Withdraw releases amount of token from the vault to caller, who must be a
// designated collector. The Withdrawn event is the payout instruction for the
// layer that moves funds on chain.
func (e *Engine) Withdraw(ctx context.Context, caller, token common.Address, amount *big.Int) (err error) {
	defer func() { e.metrics.observe("withdraw", err) }()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if !e.vault.isCollector(caller) {
		return fmt.Errorf("%w: %s is not a collector", ErrUnauthorized, caller.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdraw %s", ErrInvalidAmount, amountString(amount))
	}
	balance := e.vault.balance(token)
	if amount.Cmp(balance) > 0 {
		return fmt.Errorf("%w: requested %s, balance %s", ErrInsufficientVaultBalance, amount, balance)
	}

	row, err := e.vault.debit(token, amount)
	if err != nil {
		e.logger.Error("vault debit failed", zap.String("token", token.Hex()), zap.Error(err))
		return err
	}
	events := []model.Event{e.event(model.EventWithdrawn, model.WithdrawnEvent{
		Token:  token.Hex(),
		Amount: amount.String(),
		To:     caller.Hex(),
	})}
	if err := e.commit(ctx, "withdraw", model.Mutation{Balances: []model.VaultBalance{row}}, events); err != nil {
		return err
	}

	e.logger.Info("vault withdrawal",
		zap.String("collector", caller.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.String("remaining", row.Amount.String()),
	)
	return nil
}

// Balance returns the vault balance of token.
func (e *Engine) Balance(token common.Address) *big.Int {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return e.vault.balance(token)
}

// Balances returns every tracked vault balance, ordered by token address.
func (e *Engine) Balances() []model.VaultBalance {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	out := make([]model.VaultBalance, 0, len(e.vault.balances))
	for token, amount := range e.vault.balances {
		out = append(out, model.VaultBalance{Token: token, Amount: new(big.Int).Set(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.Hex() < out[j].Token.Hex() })
	return out
}

// IsCollector reports whether addr may withdraw from the vault.
func (e *Engine) IsCollector(addr common.Address) bool {
	return e.vault.isCollector(addr)
}
