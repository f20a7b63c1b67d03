package main

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/joho/godotenv"

	"redbutton/internal/chain"
	"redbutton/internal/config"
	"redbutton/internal/engine"
	"redbutton/internal/keys"
	"redbutton/internal/lifi"
	"redbutton/internal/quests"
	"redbutton/internal/txbuilder"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := quests.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	gateway, err := chain.Dial(cfg.RPC.HTTP, chain.Options{
		RequestTimeout:      cfg.RPC.RequestTimeout.Duration,
		ReceiptTimeout:      cfg.Receipt.Timeout.Duration,
		ReceiptPollInterval: cfg.Receipt.PollInterval.Duration,
	})
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer gateway.Close()
	logger.Info("rpc connected", "url", cfg.RPC.HTTP)

	chainID, err := gateway.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if chainID.Uint64() != cfg.ChainID {
		logger.Warn("chain id mismatch", "configured", cfg.ChainID, "reported", chainID)
	}

	fallback := engine.Addresses{
		Main:       cfg.MainAddress(),
		Item:       cfg.ItemAddress(),
		RewardPool: cfg.RewardPoolAddress(),
		Token:      cfg.TokenAddress(),
		SBT:        cfg.SBTAddress(),
	}
	addrs := engine.ResolveAddresses(ctx, logger, gateway, fallback)

	manager, err := keys.Load(cfg.Keys.Path)
	if err != nil {
		return fmt.Errorf("load keys: %w", err)
	}
	logger.Info("keys loaded", "wallets", manager.Len())

	target := new(big.Int).Mul(new(big.Int).SetUint64(cfg.Engine.TargetTokens), big.NewInt(params.Ether))
	runner, err := engine.NewRunner(engine.Config{
		ChainID:         new(big.Int).SetUint64(cfg.ChainID),
		Addresses:       addrs,
		Target:          target,
		JackpotRarity:   cfg.Engine.JackpotRarity,
		Values:          engine.RarityValues(cfg.Engine.RarityValues),
		ChunkSize:       cfg.Engine.ChunkSize,
		MaxCycles:       cfg.Engine.MaxCycles,
		MaxMintAttempts: cfg.Engine.MaxMintAttempts,
		MintDelayMin:    cfg.Engine.MintDelayMin.Duration,
		MintDelayMax:    cfg.Engine.MintDelayMax.Duration,
		ErrorDelayMin:   cfg.Engine.ErrorDelayMin.Duration,
		ErrorDelayMax:   cfg.Engine.ErrorDelayMax.Duration,
		DeadlineWindow:  cfg.Engine.DeadlineWindow.Duration,
		Module:          cfg.Engine.Module,
		SwapSlippage:    cfg.LiFi.Slippage,
		SwapOrder:       cfg.LiFi.Order,
	}, logger, gateway, txbuilder.NewEstimator(gateway), store,
		lifi.NewClient(cfg.LiFi.BaseURL, os.Getenv(cfg.LiFi.APIKeyEnv)))
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	runner.CheckPermitDomain(ctx)

	accounts := manager.Accounts()
	rng := newRand()
	rng.Shuffle(len(accounts), func(i, j int) {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	})

	var completed, skipped, failed int
	for i, acct := range accounts {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := startDelay(ctx, rng, cfg.Engine.MintDelayMin.Duration, cfg.Engine.MintDelayMax.Duration); err != nil {
				break
			}
		}
		logger.Info("wallet start", "index", i+1, "total", len(accounts), "wallet", acct.Address)
		if gas, gerr := gateway.BalanceAt(ctx, acct.Address); gerr != nil {
			logger.Warn("gas balance read failed", "wallet", acct.Address, "error", gerr)
		} else if gas.Sign() == 0 {
			logger.Warn("wallet holds no gas", "wallet", acct.Address)
		}
		res, err := runner.RunWallet(ctx, acct)
		switch {
		case err != nil:
			failed++
			logger.Error("wallet failed", "wallet", acct.Address, "state", res.State, "cycles", res.Cycles, "error", err)
		case res.Skipped:
			skipped++
			if p, perr := store.Progress(ctx, acct.Address, cfg.Engine.Module); perr == nil && p != nil {
				logger.Info("wallet skipped", "wallet", acct.Address, "completed_at", p.CompletedAt)
			} else {
				logger.Info("wallet skipped", "wallet", acct.Address)
			}
		default:
			completed++
			logger.Info("wallet completed", "wallet", acct.Address, "cycles", res.Cycles, "minted", res.Minted)
		}
	}

	logger.Info("run summary", "wallets", len(accounts), "completed", completed, "skipped", skipped, "failed", failed)
	return ctx.Err()
}

// newRand seeds from crypto/rand, falling back to the clock.
func newRand() *rand.Rand {
	var seed [8]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

func startDelay(ctx context.Context, rng *rand.Rand, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rng.Int63n(int64(max - min)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
