// Package engine drives wallets through the accumulate, liquidate,
// draw and completion phases of the collectible jackpot flow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"redbutton/internal/contracts"
	"redbutton/internal/keys"
	"redbutton/internal/lifi"
	"redbutton/internal/permit"
	"redbutton/internal/txbuilder"
	"redbutton/internal/util"
)

const (
	gachaCommon  uint8 = 0
	gachaJackpot uint8 = 3

	// Fixed gas limits used when estimation fails.
	fallbackGasAction uint64 = 650000
	fallbackGasSwap   uint64 = 200000

	approveSettleDelay = 2 * time.Second

	viewRetries = 2
	viewBackoff = time.Second
)

// ErrBudgetExhausted reports that a wallet ran out of cycle or mint
// attempts before reaching completion.
var ErrBudgetExhausted = errors.New("attempt budget exhausted")

// Chain is the gateway surface the engine drives. chain.Gateway
// satisfies it.
type Chain interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// FeeSource estimates fees and gas limits. txbuilder.Estimator
// satisfies it.
type FeeSource interface {
	Fees(ctx context.Context) (txbuilder.FeeParams, error)
	EstimateGasLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Store records wallet completion. quests.Store satisfies it.
type Store interface {
	IsCompleted(ctx context.Context, address common.Address, module string) (bool, error)
	MarkCompleted(ctx context.Context, address common.Address, module string, completed, target int) error
}

// Quoter fetches swap quotes for the residual-balance conversion.
// lifi.Client satisfies it; a nil Quoter disables the swap.
type Quoter interface {
	Quote(ctx context.Context, req lifi.QuoteRequest) (*lifi.Quote, error)
}

// Addresses is the contract set one engine instance operates on.
type Addresses struct {
	Main       common.Address
	Item       common.Address
	RewardPool common.Address
	Token      common.Address
	SBT        common.Address
}

// Config tunes one engine instance. Target is both the accumulation
// goal and the jackpot draw cost, in wei.
type Config struct {
	ChainID         *big.Int
	Addresses       Addresses
	Target          *big.Int
	JackpotRarity   uint8
	Values          RarityValues
	ChunkSize       int
	MaxCycles       int
	MaxMintAttempts int
	MintDelayMin    time.Duration
	MintDelayMax    time.Duration
	ErrorDelayMin   time.Duration
	ErrorDelayMax   time.Duration
	DeadlineWindow  time.Duration
	Module          string
	SwapSlippage    float64
	SwapOrder       string
}

func (c Config) validate() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return errors.New("chain id is required")
	}
	zero := common.Address{}
	if c.Addresses.Main == zero || c.Addresses.Item == zero || c.Addresses.RewardPool == zero ||
		c.Addresses.Token == zero || c.Addresses.SBT == zero {
		return errors.New("all contract addresses are required")
	}
	if c.Target == nil || c.Target.Sign() <= 0 {
		return errors.New("target must be positive")
	}
	if len(c.Values) == 0 {
		return errors.New("rarity values are required")
	}
	if c.ChunkSize < 1 {
		return errors.New("chunk size must be at least 1")
	}
	if c.MaxCycles < 1 {
		return errors.New("max cycles must be at least 1")
	}
	if c.MaxMintAttempts < 1 {
		return errors.New("max mint attempts must be at least 1")
	}
	if c.DeadlineWindow <= 0 {
		return errors.New("deadline window must be positive")
	}
	if c.Module == "" {
		return errors.New("module slug is required")
	}
	return nil
}

// Runner executes the full flow for one wallet at a time. It is not
// safe for concurrent RunWallet calls with the same wallet.
type Runner struct {
	cfg     Config
	logger  *slog.Logger
	chain   Chain
	fees    FeeSource
	builder *txbuilder.Builder
	signer  *permit.Signer
	store   Store
	quoter  Quoter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

func NewRunner(cfg Config, logger *slog.Logger, chain Chain, fees FeeSource, store Store, quoter Quoter) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if chain == nil {
		return nil, errors.New("chain is required")
	}
	if fees == nil {
		return nil, errors.New("fee source is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		chain:   chain,
		fees:    fees,
		builder: txbuilder.NewBuilder(cfg.ChainID),
		store:   store,
		quoter:  quoter,
		now:     time.Now,
		sleep:   sleepContext,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	signer, err := permit.NewSignerWithClock(cfg.ChainID, cfg.Addresses.Token, r, cfg.DeadlineWindow,
		func() time.Time { return r.now() })
	if err != nil {
		return nil, err
	}
	r.signer = signer
	return r, nil
}

// RunWallet drives one wallet to completion, a skip, or an error. A
// wallet that already holds the credential is recorded and skipped
// without any mutating call.
func (r *Runner) RunWallet(ctx context.Context, acct keys.Account) (RunResult, error) {
	res := RunResult{Wallet: acct.Address, State: StateIdle}
	logger := r.logger.With("wallet", acct.Address)

	done, err := r.store.IsCompleted(ctx, acct.Address, r.cfg.Module)
	if err != nil {
		logger.Warn("completion store read failed", "error", err)
	}
	if done {
		logger.Info("already completed, skipping")
		res.Skipped = true
		res.State = StateCompleted
		return res, nil
	}
	sbtBalance, err := r.sbtBalance(ctx, acct.Address)
	if err != nil {
		return res, fmt.Errorf("credential balance: %w", err)
	}
	if sbtBalance.Sign() > 0 {
		logger.Info("credential already held, recording completion")
		if err := r.store.MarkCompleted(ctx, acct.Address, r.cfg.Module, 1, 1); err != nil {
			logger.Warn("completion store write failed", "error", err)
		}
		res.Skipped = true
		res.State = StateCompleted
		return res, nil
	}

	for cycle := 1; cycle <= r.cfg.MaxCycles; cycle++ {
		res.Cycles = cycle
		logger.Info("cycle start", "cycle", cycle, "max_cycles", r.cfg.MaxCycles)

		held, err := r.hasUnique(ctx, acct.Address)
		if err != nil {
			logger.Warn("jackpot view failed", "error", err)
		} else if held {
			logger.Info("jackpot item already held, finalizing")
			transition(&res, logger, StateFinalizing)
			if err := r.finalize(ctx, logger, acct, nil); err != nil {
				logger.Warn("finalize failed, retrying next cycle", "error", err)
				if err := r.pause(ctx, r.cfg.ErrorDelayMin, r.cfg.ErrorDelayMax); err != nil {
					return res, err
				}
				continue
			}
			transition(&res, logger, StateCompleted)
			return res, nil
		}

		transition(&res, logger, StateMinting)
		acc, err := r.accumulate(ctx, logger, acct)
		if err != nil {
			return res, err
		}
		res.Minted += len(acc.Items)
		transition(&res, logger, StateAccumulated)

		transition(&res, logger, StateLiquidating)
		outcome, err := r.liquidate(ctx, logger, acct, acc)
		if err != nil {
			return res, err
		}
		if outcome == NeedsMoreAccumulation {
			logger.Info("balance below target after liquidation, accumulating again")
			continue
		}
		transition(&res, logger, StateFunded)

		transition(&res, logger, StateDrawing)
		draw, err := r.draw(ctx, logger, acct)
		if err != nil {
			if errors.Is(err, errBelowDrawCost) {
				logger.Info("balance below draw cost, accumulating again")
				continue
			}
			if isFatal(err) || ctx.Err() != nil {
				return res, err
			}
			logger.Warn("draw failed, retrying cycle", "error", err)
			if err := r.pause(ctx, r.cfg.ErrorDelayMin, r.cfg.ErrorDelayMax); err != nil {
				return res, err
			}
			continue
		}
		switch draw.Outcome {
		case JackpotMissed:
			logger.Info("draw outcome", "outcome", draw.Outcome)
			r.resellItem(ctx, logger, acct, draw.Item)
		case JackpotHit:
			logger.Info("draw outcome", "outcome", draw.Outcome)
			transition(&res, logger, StateFinalizing)
			if err := r.finalize(ctx, logger, acct, draw.Item); err != nil {
				logger.Warn("finalize failed, retrying next cycle", "error", err)
				if err := r.pause(ctx, r.cfg.ErrorDelayMin, r.cfg.ErrorDelayMax); err != nil {
					return res, err
				}
				continue
			}
			transition(&res, logger, StateCompleted)
			return res, nil
		}
	}
	return res, fmt.Errorf("%w: %d cycles", ErrBudgetExhausted, r.cfg.MaxCycles)
}

// sendAndWait drives one mutating call end to end: fresh fees and
// pending nonce, gas estimate with a fixed fallback, build, sign,
// broadcast, receipt. The error is nil only for a status-1 receipt.
func (r *Runner) sendAndWait(ctx context.Context, logger *slog.Logger, acct keys.Account, to common.Address, value *big.Int, data []byte, fallbackGas uint64) (*types.Receipt, error) {
	fees, err := r.fees.Fees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	msg := ethereum.CallMsg{From: acct.Address, To: &to, Value: value, Data: data}
	gasLimit, err := r.fees.EstimateGasLimit(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("gas estimate failed, using fallback", "to", to, "fallback_gas", fallbackGas, "error", err)
		gasLimit = fallbackGas
	}
	nonce, err := r.chain.PendingNonceAt(ctx, acct.Address)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	tx, err := r.builder.Build(to, value, data, txbuilder.BuildParams{Nonce: nonce, GasLimit: gasLimit, Fee: fees})
	if err != nil {
		return nil, err
	}
	signed, err := r.builder.Sign(tx, acct.Key)
	if err != nil {
		return nil, err
	}
	if err := r.chain.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	receipt, err := r.chain.WaitReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("tx %s reverted", signed.Hash())
	}
	return receipt, nil
}

// view runs a read-only call with a short retry.
func (r *Runner) view(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := util.Retry(ctx, viewRetries, viewBackoff, func() error {
		var callErr error
		out, callErr = r.chain.CallContract(ctx, to, data)
		return callErr
	})
	return out, err
}

func (r *Runner) tokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := contracts.PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBalanceOf(out)
}

func (r *Runner) sbtBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := contracts.PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.SBT, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackBalanceOf(out)
}

func (r *Runner) allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	data, err := contracts.PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackAllowance(out)
}

func (r *Runner) tokenInfo(ctx context.Context, tokenID *big.Int) (contracts.TokenInfo, error) {
	data, err := contracts.PackTokenInfo(tokenID)
	if err != nil {
		return contracts.TokenInfo{}, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Item, data)
	if err != nil {
		return contracts.TokenInfo{}, err
	}
	return contracts.UnpackTokenInfo(out)
}

func (r *Runner) ownedBy(ctx context.Context, tokenID *big.Int, owner common.Address) (bool, error) {
	data, err := contracts.PackOwnerOf(tokenID)
	if err != nil {
		return false, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Item, data)
	if err != nil {
		return false, err
	}
	current, err := contracts.UnpackOwnerOf(out)
	if err != nil {
		return false, err
	}
	return current == owner, nil
}

func (r *Runner) hasUnique(ctx context.Context, owner common.Address) (bool, error) {
	data, err := contracts.PackHasUniqueMinted(owner)
	if err != nil {
		return false, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Item, data)
	if err != nil {
		return false, err
	}
	return contracts.UnpackHasUniqueMinted(out)
}

// PermitNonce reads the owner's permit nonce from the token. It makes
// the Runner a permit.NonceSource.
func (r *Runner) PermitNonce(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := contracts.PackNonces(owner)
	if err != nil {
		return nil, err
	}
	out, err := r.view(ctx, r.cfg.Addresses.Token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackNonces(out)
}

// CheckPermitDomain compares the locally computed EIP-712 domain hash
// with the token's DOMAIN_SEPARATOR. A mismatch or read failure only
// logs a warning.
func (r *Runner) CheckPermitDomain(ctx context.Context) {
	data, err := contracts.PackDomainSeparator()
	if err != nil {
		r.logger.Warn("permit domain check skipped", "error", err)
		return
	}
	out, err := r.view(ctx, r.cfg.Addresses.Token, data)
	if err != nil {
		r.logger.Warn("permit domain check skipped", "error", err)
		return
	}
	onchain, err := contracts.UnpackDomainSeparator(out)
	if err != nil {
		r.logger.Warn("permit domain check skipped", "error", err)
		return
	}
	local := r.signer.DomainSeparator()
	if onchain != local {
		r.logger.Warn("permit domain separator mismatch", "onchain", onchain, "local", local)
		return
	}
	r.logger.Debug("permit domain separator verified")
}

func transition(res *RunResult, logger *slog.Logger, s State) {
	res.State = s
	logger.Debug("state transition", "state", s)
}

func (r *Runner) pause(ctx context.Context, min, max time.Duration) error {
	return r.sleep(ctx, r.randDelay(min, max))
}

func (r *Runner) randDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.rng.Int63n(int64(max-min)))
}

func isFatal(err error) bool {
	var sigErr *permit.SignatureLengthError
	return errors.As(err, &sigErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ResolveAddresses reads the orchestrator's managed-contract registry.
// Indexes (1,2,3) map to (item, reward pool, sbt); when any read in
// that tier fails, indexes (0,1,2) are tried; when both tiers fail the
// configured fallback is kept. Reads within a tier run concurrently.
func ResolveAddresses(ctx context.Context, logger *slog.Logger, chain Chain, fallback Addresses) Addresses {
	for _, tier := range [][3]int64{{1, 2, 3}, {0, 1, 2}} {
		resolved, err := resolveTier(ctx, chain, fallback.Main, tier)
		if err != nil {
			logger.Warn("managed contract tier failed", "first_index", tier[0], "error", err)
			continue
		}
		out := fallback
		out.Item = resolved[0]
		out.RewardPool = resolved[1]
		out.SBT = resolved[2]
		logger.Info("managed contracts resolved",
			"item", out.Item, "reward_pool", out.RewardPool, "sbt", out.SBT)
		return out
	}
	logger.Warn("managed contract resolution failed, using configured addresses")
	return fallback
}

func resolveTier(ctx context.Context, chain Chain, main common.Address, indexes [3]int64) ([3]common.Address, error) {
	var out [3]common.Address
	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range indexes {
		i, idx := i, idx
		g.Go(func() error {
			data, err := contracts.PackManagedContracts(idx)
			if err != nil {
				return err
			}
			raw, err := chain.CallContract(gctx, main, data)
			if err != nil {
				return fmt.Errorf("managedContracts(%d): %w", idx, err)
			}
			addr, err := contracts.UnpackManagedContracts(raw)
			if err != nil {
				return fmt.Errorf("managedContracts(%d): %w", idx, err)
			}
			if addr == (common.Address{}) {
				return fmt.Errorf("managedContracts(%d): zero address", idx)
			}
			out[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
