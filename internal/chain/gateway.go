package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type Options struct {
	RequestTimeout      time.Duration
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	UserAgent           string
}

func (o *Options) applyDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 180 * time.Second
	}
	if o.ReceiptPollInterval <= 0 {
		o.ReceiptPollInterval = 2 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "redbutton"
	}
}

// Gateway is the single point of chain access: view calls, broadcast and
// bounded receipt polling. It is stateless between calls and safe to share.
type Gateway struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	opts Options
}

func Dial(url string, opts Options) (*Gateway, error) {
	opts.applyDefaults()
	httpClient := &http.Client{
		Timeout: opts.RequestTimeout,
	}
	rpcClient, err := rpc.DialHTTPWithClient(url, httpClient)
	if err != nil {
		return nil, err
	}
	rpcClient.SetHeader("User-Agent", opts.UserAgent)
	return &Gateway{
		rpc:  rpcClient,
		eth:  ethclient.NewClient(rpcClient),
		opts: opts,
	}, nil
}

func (g *Gateway) Close() {
	g.rpc.Close()
}

func (g *Gateway) ChainID(ctx context.Context) (*big.Int, error) {
	return g.eth.ChainID(ctx)
}

func (g *Gateway) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	return g.eth.CallContract(ctx, msg, nil)
}

func (g *Gateway) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return g.eth.SendTransaction(ctx, tx)
}

// WaitReceipt polls for the receipt of hash until it appears, the parent
// context is cancelled, or the configured receipt timeout elapses. A timeout
// leaves the transaction in unknown state; callers decide how to proceed.
func (g *Gateway) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.eth.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ReceiptTimeoutError{Hash: hash, Wait: g.opts.ReceiptTimeout}
		case <-ticker.C:
		}
	}
}

func (g *Gateway) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return g.eth.PendingNonceAt(ctx, account)
}

// BalanceAt reads the account's native-coin balance at the latest block.
func (g *Gateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return g.eth.BalanceAt(ctx, account, nil)
}

func (g *Gateway) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return g.eth.HeaderByNumber(ctx, number)
}

func (g *Gateway) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return g.eth.SuggestGasTipCap(ctx)
}

func (g *Gateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return g.eth.SuggestGasPrice(ctx)
}

func (g *Gateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return g.eth.EstimateGas(ctx, msg)
}

// ReceiptTimeoutError reports that a transaction was broadcast but no receipt
// was observed within the wait bound.
type ReceiptTimeoutError struct {
	Hash common.Hash
	Wait time.Duration
}

func (e *ReceiptTimeoutError) Error() string {
	if e == nil {
		return "receipt wait timed out"
	}
	return fmt.Sprintf("no receipt for %s after %s", e.Hash.Hex(), e.Wait)
}
