package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"redbutton/internal/contracts"
	"redbutton/internal/decoder"
	"redbutton/internal/keys"
)

// accumulate mints zero-cost common draws until the tracked item value
// covers what the wallet's balance is short of the target. Mint
// attempts are bounded; exhausting them aborts the wallet.
func (r *Runner) accumulate(ctx context.Context, logger *slog.Logger, acct keys.Account) (*Accumulation, error) {
	balance, err := r.tokenBalance(ctx, acct.Address)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	needed := new(big.Int).Sub(r.cfg.Target, balance)
	acc := newAccumulation(needed)
	if needed.Sign() <= 0 {
		logger.Info("balance already meets target", "balance_wei", balance, "target_wei", r.cfg.Target)
		return acc, nil
	}
	logger.Info("accumulation start", "balance_wei", balance, "needed_wei", needed)

	for attempt := 1; attempt <= r.cfg.MaxMintAttempts; attempt++ {
		item, value, err := r.mintOnce(ctx, logger, acct)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("mint failed", "attempt", attempt, "error", err)
			if err := r.pause(ctx, r.cfg.ErrorDelayMin, r.cfg.ErrorDelayMax); err != nil {
				return nil, err
			}
			continue
		}
		acc.add(item, value)
		logger.Info("mint confirmed",
			"token_id", item.TokenID, "rarity", item.RarityIndex,
			"value_wei", value, "accumulated_wei", acc.Accumulated, "needed_wei", acc.Target)
		if acc.funded() {
			logger.Info("accumulation complete", "items", len(acc.Items), "accumulated_wei", acc.Accumulated)
			return acc, nil
		}
		if err := r.pause(ctx, r.cfg.MintDelayMin, r.cfg.MintDelayMax); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %d mint attempts", ErrBudgetExhausted, r.cfg.MaxMintAttempts)
}

// mintOnce sends one free draw and recovers the minted item. The
// rarity comes from tokenInfo, with the event's own rarity as a
// fallback so a confirmed mint is never dropped from tracking.
func (r *Runner) mintOnce(ctx context.Context, logger *slog.Logger, acct keys.Account) (MintedItem, *big.Int, error) {
	deadline := big.NewInt(r.now().Add(r.cfg.DeadlineWindow).Unix())
	data, err := contracts.PackDrawItem(gachaCommon, deadline, nil)
	if err != nil {
		return MintedItem{}, nil, err
	}
	receipt, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Main, nil, data, fallbackGasAction)
	if err != nil {
		return MintedItem{}, nil, err
	}
	ev, ok := decoder.FirstMintedFor(receipt, r.cfg.Addresses.Item, acct.Address)
	if !ok {
		return MintedItem{}, nil, errors.New("confirmed draw carries no minted event")
	}
	item := MintedItem{TokenID: ev.TokenID, Owner: ev.Owner}
	info, err := r.tokenInfo(ctx, ev.TokenID)
	if err != nil {
		logger.Warn("token info read failed, using event rarity", "token_id", ev.TokenID, "error", err)
		item.RarityIndex = uint8(ev.RarityIndex.Uint64())
	} else {
		item.RarityIndex = uint8(info.RarityIndex.Uint64())
	}
	return item, r.cfg.Values.ValueOf(item.RarityIndex), nil
}
