package txbuilder

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeParams carries either a legacy gas price or dynamic fee caps, depending
// on whether the chain's latest block exposed a base fee.
type FeeParams struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func (f FeeParams) Dynamic() bool {
	return f.MaxFeePerGas != nil
}

type BuildParams struct {
	Nonce    uint64
	GasLimit uint64
	Fee      FeeParams
}

type Builder struct {
	ChainID *big.Int
}

func NewBuilder(chainID *big.Int) *Builder {
	if chainID == nil {
		return &Builder{}
	}
	return &Builder{ChainID: new(big.Int).Set(chainID)}
}

// Build assembles an unsigned transaction from raw fields. The caller is
// responsible for fetching the pending nonce immediately beforehand.
func (b *Builder) Build(to common.Address, value *big.Int, data []byte, p BuildParams) (*types.Transaction, error) {
	if b.ChainID == nil {
		return nil, errors.New("chainID is required")
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, errors.New("value must be non-negative")
	}
	if p.GasLimit == 0 {
		return nil, errors.New("gasLimit is required")
	}
	if p.Fee.Dynamic() {
		if p.Fee.MaxPriorityFeePerGas == nil {
			return nil, errors.New("maxPriorityFeePerGas is required")
		}
		if p.Fee.MaxFeePerGas.Sign() < 0 || p.Fee.MaxPriorityFeePerGas.Sign() < 0 {
			return nil, errors.New("fee values must be non-negative")
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   b.ChainID,
			Nonce:     p.Nonce,
			Gas:       p.GasLimit,
			GasFeeCap: p.Fee.MaxFeePerGas,
			GasTipCap: p.Fee.MaxPriorityFeePerGas,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}
	if p.Fee.GasPrice == nil {
		return nil, errors.New("gasPrice or maxFeePerGas is required")
	}
	if p.Fee.GasPrice.Sign() < 0 {
		return nil, errors.New("gasPrice must be non-negative")
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    p.Nonce,
		GasPrice: p.Fee.GasPrice,
		Gas:      p.GasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

func (b *Builder) Sign(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if b.ChainID == nil {
		return nil, errors.New("chainID is required")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(b.ChainID), key)
}
