package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"redbutton/internal/contracts"
	"redbutton/internal/keys"
	"redbutton/internal/lifi"
)

// finalize claims the credential and persists completion, then runs
// the best-effort cleanups. The run is terminal once the claim
// receipt confirms; cleanup failures only log.
func (r *Runner) finalize(ctx context.Context, logger *slog.Logger, acct keys.Account, jackpot *MintedItem) error {
	data, err := contracts.PackMintSBT()
	if err != nil {
		return err
	}
	receipt, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Main, nil, data, fallbackGasAction)
	if err != nil {
		return fmt.Errorf("credential claim: %w", err)
	}
	logger.Info("credential claimed", "tx", receipt.TxHash)
	if err := r.store.MarkCompleted(ctx, acct.Address, r.cfg.Module, 1, 1); err != nil {
		logger.Warn("completion store write failed", "error", err)
	}
	r.resellItem(ctx, logger, acct, jackpot)
	r.swapResidual(ctx, logger, acct)
	return nil
}

// swapResidual converts the wallet's full token balance to the native
// coin through the quote aggregator. Every failure logs and returns.
func (r *Runner) swapResidual(ctx context.Context, logger *slog.Logger, acct keys.Account) {
	if r.quoter == nil {
		return
	}
	balance, err := r.tokenBalance(ctx, acct.Address)
	if err != nil {
		logger.Warn("residual balance read failed", "error", err)
		return
	}
	if balance.Sign() == 0 {
		return
	}
	quote, err := r.quoter.Quote(ctx, lifi.QuoteRequest{
		FromChain:   r.cfg.ChainID.Uint64(),
		ToChain:     r.cfg.ChainID.Uint64(),
		FromToken:   r.cfg.Addresses.Token,
		ToToken:     common.Address{},
		FromAmount:  balance,
		FromAddress: acct.Address,
		Slippage:    r.cfg.SwapSlippage,
		Order:       r.cfg.SwapOrder,
	})
	if err != nil {
		logger.Warn("swap quote failed", "error", err)
		return
	}
	router, err := quote.TransactionRequest.ToAddress()
	if err != nil {
		logger.Warn("swap quote invalid", "error", err)
		return
	}
	callData, err := quote.TransactionRequest.DataBytes()
	if err != nil {
		logger.Warn("swap quote invalid", "error", err)
		return
	}
	value, err := quote.TransactionRequest.ValueWei()
	if err != nil {
		logger.Warn("swap quote invalid", "error", err)
		return
	}
	if err := r.ensureRouterAllowance(ctx, logger, acct, router, balance); err != nil {
		logger.Warn("router approve failed", "router", router, "error", err)
		return
	}
	if _, err := r.sendAndWait(ctx, logger, acct, router, value, callData, fallbackGasSwap); err != nil {
		logger.Warn("residual swap failed", "error", err)
		return
	}
	estimated := ""
	if quote.Estimate != nil {
		estimated = quote.Estimate.ToAmount
	}
	logger.Info("residual swap confirmed", "amount_wei", balance, "estimated_out", estimated)
}

// ensureRouterAllowance grants the router a max-uint approval when the
// current allowance cannot cover amount.
func (r *Runner) ensureRouterAllowance(ctx context.Context, logger *slog.Logger, acct keys.Account, router common.Address, amount *big.Int) error {
	current, err := r.allowance(ctx, acct.Address, router)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	data, err := contracts.PackApprove(router, math.MaxBig256)
	if err != nil {
		return err
	}
	if _, err := r.sendAndWait(ctx, logger, acct, r.cfg.Addresses.Token, nil, data, fallbackGasAction); err != nil {
		return err
	}
	logger.Info("router approve confirmed", "router", router)
	return nil
}
