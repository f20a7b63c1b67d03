package txbuilder

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/params"
)

// Public endpoints routinely report a zero tip; floor it at 1 gwei.
var minPriorityFee = big.NewInt(params.GWei)

const gasLimitPad = 10000

type Estimator struct {
	client ChainClient
}

func NewEstimator(client ChainClient) *Estimator {
	return &Estimator{client: client}
}

// Fees reads the latest header and picks dynamic fee caps when it exposes a
// base fee: maxFee = 2*baseFee + tip. Chains without a base fee fall back to
// the legacy suggested gas price.
func (e *Estimator) Fees(ctx context.Context) (FeeParams, error) {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeParams{}, err
	}
	if header.BaseFee == nil {
		price, err := e.client.SuggestGasPrice(ctx)
		if err != nil {
			return FeeParams{}, err
		}
		return FeeParams{GasPrice: price}, nil
	}
	tip := e.priorityFee(ctx)
	maxFee := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return FeeParams{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
	}, nil
}

func (e *Estimator) priorityFee(ctx context.Context) *big.Int {
	tip, err := e.client.SuggestGasTipCap(ctx)
	if err != nil || tip == nil || tip.Cmp(minPriorityFee) < 0 {
		return new(big.Int).Set(minPriorityFee)
	}
	return tip
}

// EstimateGasLimit simulates msg and buffers the result. Failures wrap the
// cause in *EstimateGasError; callers pick their own fallback limit.
func (e *Estimator) EstimateGasLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, &EstimateGasError{Err: err, CallMsg: msg}
	}
	return applyGasBuffer(gas), nil
}

// applyGasBuffer adds 20% headroom, rounded up, plus a fixed pad.
func applyGasBuffer(gas uint64) uint64 {
	return gas + (gas+4)/5 + gasLimitPad
}

type EstimateGasError struct {
	Err     error
	CallMsg ethereum.CallMsg
}

func (e *EstimateGasError) Error() string {
	if e == nil || e.Err == nil {
		return "estimate gas failed"
	}
	return "estimate gas failed: " + e.Err.Error()
}

func (e *EstimateGasError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
