package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/core/types"

	"redbutton/internal/contracts"
	"redbutton/internal/decoder"
	"redbutton/internal/keys"
)

// errBelowDrawCost sends the cycle back to accumulation instead of
// drawing with a balance the pool would reject.
var errBelowDrawCost = errors.New("balance below draw cost")

// draw runs one permit-authorized jackpot attempt. The receipt must
// confirm before any outcome is read; a revert or timeout is a
// retryable error, never a miss.
func (r *Runner) draw(ctx context.Context, logger *slog.Logger, acct keys.Account) (DrawResult, error) {
	balance, err := r.tokenBalance(ctx, acct.Address)
	if err != nil {
		return DrawResult{}, fmt.Errorf("token balance: %w", err)
	}
	if balance.Cmp(r.cfg.Target) < 0 {
		return DrawResult{}, errBelowDrawCost
	}
	if err := r.ensureAllowance(ctx, logger, acct); err != nil {
		return DrawResult{}, err
	}
	msg, sig, err := r.signer.Sign(ctx, acct.Key, r.cfg.Addresses.RewardPool, r.cfg.Target)
	if err != nil {
		return DrawResult{}, fmt.Errorf("permit: %w", err)
	}
	data, err := contracts.PackDrawItem(gachaJackpot, msg.Deadline, sig)
	if err != nil {
		return DrawResult{}, err
	}
	logger.Info("jackpot draw", "cost_wei", r.cfg.Target, "deadline", msg.Deadline, "permit_nonce", msg.Nonce)
	receipt, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Main, nil, data, fallbackGasAction)
	if err != nil {
		return DrawResult{}, fmt.Errorf("draw: %w", err)
	}
	return r.drawOutcome(ctx, logger, acct, receipt), nil
}

// drawOutcome inspects a confirmed draw receipt. Decoded Minted events
// decide first; with none, the has-jackpot view is consulted and a
// view error counts as a miss.
func (r *Runner) drawOutcome(ctx context.Context, logger *slog.Logger, acct keys.Account, receipt *types.Receipt) DrawResult {
	events := decoder.MintedEvents(receipt.Logs, r.cfg.Addresses.Item, acct.Address)
	if len(events) > 0 {
		for _, ev := range events {
			if uint8(ev.RarityIndex.Uint64()) == r.cfg.JackpotRarity {
				return DrawResult{
					Outcome: JackpotHit,
					Item:    &MintedItem{TokenID: ev.TokenID, RarityIndex: r.cfg.JackpotRarity, Owner: ev.Owner},
				}
			}
		}
		ev := events[0]
		return DrawResult{
			Outcome: JackpotMissed,
			Item:    &MintedItem{TokenID: ev.TokenID, RarityIndex: uint8(ev.RarityIndex.Uint64()), Owner: ev.Owner},
		}
	}
	held, err := r.hasUnique(ctx, acct.Address)
	if err != nil {
		logger.Warn("jackpot view failed, treating as miss", "error", err)
		return DrawResult{Outcome: JackpotMissed}
	}
	if held {
		return DrawResult{Outcome: JackpotHit}
	}
	return DrawResult{Outcome: JackpotMissed}
}

// ensureAllowance tops up the reward-pool allowance to the draw cost
// when it is short, confirming the approve and letting it settle
// before the draw is sent.
func (r *Runner) ensureAllowance(ctx context.Context, logger *slog.Logger, acct keys.Account) error {
	current, err := r.allowance(ctx, acct.Address, r.cfg.Addresses.RewardPool)
	if err != nil {
		return fmt.Errorf("allowance: %w", err)
	}
	if current.Cmp(r.cfg.Target) >= 0 {
		return nil
	}
	data, err := contracts.PackApprove(r.cfg.Addresses.RewardPool, r.cfg.Target)
	if err != nil {
		return err
	}
	if _, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Token, nil, data, fallbackGasAction); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	logger.Info("reward pool approve confirmed", "value_wei", r.cfg.Target)
	return r.sleep(ctx, approveSettleDelay)
}
