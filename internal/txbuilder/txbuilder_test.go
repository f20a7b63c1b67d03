package txbuilder

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

type fakeChainClient struct {
	baseFee   *big.Int
	tip       *big.Int
	tipErr    error
	gasPrice  *big.Int
	gas       uint64
	gasErr    error
	headerErr error
}

func (f *fakeChainClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return f.tip, nil
}

func (f *fakeChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.gasErr != nil {
		return 0, f.gasErr
	}
	return f.gas, nil
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.GWei))
}

func TestFeesFloorsZeroTip(t *testing.T) {
	est := NewEstimator(&fakeChainClient{baseFee: gwei(10), tip: big.NewInt(0)})

	fees, err := est.Fees(context.Background())
	if err != nil {
		t.Fatalf("Fees error: %v", err)
	}
	if !fees.Dynamic() {
		t.Fatalf("expected dynamic fees")
	}
	if fees.MaxPriorityFeePerGas.Cmp(gwei(1)) != 0 {
		t.Fatalf("unexpected tip: %s", fees.MaxPriorityFeePerGas)
	}
	if fees.MaxFeePerGas.Cmp(gwei(21)) != 0 {
		t.Fatalf("unexpected max fee: %s", fees.MaxFeePerGas)
	}
}

func TestFeesFloorsSubGweiTip(t *testing.T) {
	halfGwei := big.NewInt(params.GWei / 2)
	est := NewEstimator(&fakeChainClient{baseFee: gwei(10), tip: halfGwei})

	fees, err := est.Fees(context.Background())
	if err != nil {
		t.Fatalf("Fees error: %v", err)
	}
	if fees.MaxPriorityFeePerGas.Cmp(gwei(1)) != 0 {
		t.Fatalf("unexpected tip: %s", fees.MaxPriorityFeePerGas)
	}
	if fees.MaxFeePerGas.Cmp(gwei(21)) != 0 {
		t.Fatalf("unexpected max fee: %s", fees.MaxFeePerGas)
	}
}

func TestFeesFloorsTipError(t *testing.T) {
	est := NewEstimator(&fakeChainClient{baseFee: gwei(10), tipErr: errors.New("not supported")})

	fees, err := est.Fees(context.Background())
	if err != nil {
		t.Fatalf("Fees error: %v", err)
	}
	if fees.MaxPriorityFeePerGas.Cmp(gwei(1)) != 0 {
		t.Fatalf("unexpected tip: %s", fees.MaxPriorityFeePerGas)
	}
}

func TestFeesKeepsReportedTip(t *testing.T) {
	est := NewEstimator(&fakeChainClient{baseFee: gwei(10), tip: gwei(2)})

	fees, err := est.Fees(context.Background())
	if err != nil {
		t.Fatalf("Fees error: %v", err)
	}
	if fees.MaxPriorityFeePerGas.Cmp(gwei(2)) != 0 {
		t.Fatalf("unexpected tip: %s", fees.MaxPriorityFeePerGas)
	}
	if fees.MaxFeePerGas.Cmp(gwei(22)) != 0 {
		t.Fatalf("unexpected max fee: %s", fees.MaxFeePerGas)
	}
}

func TestFeesLegacyFallback(t *testing.T) {
	est := NewEstimator(&fakeChainClient{gasPrice: gwei(7)})

	fees, err := est.Fees(context.Background())
	if err != nil {
		t.Fatalf("Fees error: %v", err)
	}
	if fees.Dynamic() {
		t.Fatalf("expected legacy fees")
	}
	if fees.GasPrice.Cmp(gwei(7)) != 0 {
		t.Fatalf("unexpected gas price: %s", fees.GasPrice)
	}
}

func TestEstimateGasLimitBuffer(t *testing.T) {
	est := NewEstimator(&fakeChainClient{gas: 100000})

	limit, err := est.EstimateGasLimit(context.Background(), ethereum.CallMsg{})
	if err != nil {
		t.Fatalf("EstimateGasLimit error: %v", err)
	}
	if limit != 130000 {
		t.Fatalf("unexpected gas limit: %d", limit)
	}
}

func TestEstimateGasLimitWrapsFailure(t *testing.T) {
	cause := errors.New("execution reverted")
	est := NewEstimator(&fakeChainClient{gasErr: cause})

	_, err := est.EstimateGasLimit(context.Background(), ethereum.CallMsg{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var estErr *EstimateGasError
	if !errors.As(err, &estErr) {
		t.Fatalf("expected EstimateGasError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestBuildDynamicTx(t *testing.T) {
	builder := NewBuilder(big.NewInt(1868))
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data := []byte{0x01, 0x02}

	tx, err := builder.Build(to, nil, data, BuildParams{
		Nonce:    7,
		GasLimit: 650000,
		Fee: FeeParams{
			MaxFeePerGas:         gwei(21),
			MaxPriorityFeePerGas: gwei(1),
		},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("unexpected tx type: %d", tx.Type())
	}
	if tx.Nonce() != 7 || tx.Gas() != 650000 {
		t.Fatalf("unexpected nonce/gas: %d/%d", tx.Nonce(), tx.Gas())
	}
	if tx.GasFeeCap().Cmp(gwei(21)) != 0 || tx.GasTipCap().Cmp(gwei(1)) != 0 {
		t.Fatalf("unexpected fee caps: %s/%s", tx.GasFeeCap(), tx.GasTipCap())
	}
	if *tx.To() != to {
		t.Fatalf("unexpected to: %s", tx.To())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("unexpected value: %s", tx.Value())
	}
}

func TestBuildLegacyTx(t *testing.T) {
	builder := NewBuilder(big.NewInt(1868))
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	tx, err := builder.Build(to, big.NewInt(5), nil, BuildParams{
		Nonce:    1,
		GasLimit: 21000,
		Fee:      FeeParams{GasPrice: gwei(7)},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("unexpected tx type: %d", tx.Type())
	}
	if tx.GasPrice().Cmp(gwei(7)) != 0 {
		t.Fatalf("unexpected gas price: %s", tx.GasPrice())
	}
	if tx.Value().Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected value: %s", tx.Value())
	}
}

func TestBuildRejectsMissingFields(t *testing.T) {
	builder := NewBuilder(big.NewInt(1868))
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	if _, err := builder.Build(to, nil, nil, BuildParams{GasLimit: 0, Fee: FeeParams{GasPrice: gwei(1)}}); err == nil {
		t.Fatalf("expected error for zero gas limit")
	}
	if _, err := builder.Build(to, nil, nil, BuildParams{GasLimit: 21000}); err == nil {
		t.Fatalf("expected error for missing fees")
	}
	if _, err := builder.Build(to, nil, nil, BuildParams{
		GasLimit: 21000,
		Fee:      FeeParams{MaxFeePerGas: gwei(2)},
	}); err == nil {
		t.Fatalf("expected error for missing priority fee")
	}
}

func TestSignRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	builder := NewBuilder(big.NewInt(1868))
	to := common.HexToAddress("0x4444444444444444444444444444444444444444")

	tx, err := builder.Build(to, nil, nil, BuildParams{
		Nonce:    0,
		GasLimit: 21000,
		Fee: FeeParams{
			MaxFeePerGas:         gwei(21),
			MaxPriorityFeePerGas: gwei(1),
		},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	signed, err := builder.Sign(tx, key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1868)), signed)
	if err != nil {
		t.Fatalf("Sender error: %v", err)
	}
	if sender != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected sender: %s", sender)
	}
}
