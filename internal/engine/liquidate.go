package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"redbutton/internal/contracts"
	"redbutton/internal/keys"
)

// liquidate sells the tracked items in chunks, then re-reads the token
// balance to decide whether the target is funded. Per-chunk sums are
// never trusted over the balance read.
func (r *Runner) liquidate(ctx context.Context, logger *slog.Logger, acct keys.Account, acc *Accumulation) (LiquidationOutcome, error) {
	if ids := acc.ItemIDs(); len(ids) > 0 {
		r.sellBatches(ctx, logger, acct, ids)
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	balance, err := r.tokenBalance(ctx, acct.Address)
	if err != nil {
		return 0, fmt.Errorf("token balance after liquidation: %w", err)
	}
	if balance.Cmp(r.cfg.Target) >= 0 {
		logger.Info("liquidation outcome", "outcome", Funded, "balance_wei", balance, "target_wei", r.cfg.Target)
		return Funded, nil
	}
	logger.Info("liquidation outcome", "outcome", NeedsMoreAccumulation, "balance_wei", balance, "target_wei", r.cfg.Target)
	return NeedsMoreAccumulation, nil
}

// sellBatches sends one sellItemBatch per chunk of at most ChunkSize
// ids, confirming each receipt before the next chunk. A failed chunk
// is logged and the pass continues.
func (r *Runner) sellBatches(ctx context.Context, logger *slog.Logger, acct keys.Account, ids []*big.Int) {
	for start := 0; start < len(ids); start += r.cfg.ChunkSize {
		if ctx.Err() != nil {
			return
		}
		end := start + r.cfg.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		data, err := contracts.PackSellItemBatch(chunk)
		if err != nil {
			logger.Warn("sell chunk encode failed", "offset", start, "size", len(chunk), "error", err)
			continue
		}
		if _, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Main, nil, data, fallbackGasAction); err != nil {
			logger.Warn("sell chunk failed", "offset", start, "size", len(chunk), "error", err)
			continue
		}
		logger.Info("sell chunk confirmed", "offset", start, "size", len(chunk))
	}
}

// resellItem sells a single item when the wallet still owns it.
// Failures only log; the caller never depends on the proceeds.
func (r *Runner) resellItem(ctx context.Context, logger *slog.Logger, acct keys.Account, item *MintedItem) {
	if item == nil || item.TokenID == nil {
		return
	}
	owned, err := r.ownedBy(ctx, item.TokenID, acct.Address)
	if err != nil {
		logger.Warn("owner check failed, skipping resale", "token_id", item.TokenID, "error", err)
		return
	}
	if !owned {
		logger.Info("item no longer owned, skipping resale", "token_id", item.TokenID)
		return
	}
	r.sellBatches(ctx, logger, acct, []*big.Int{item.TokenID})
}
