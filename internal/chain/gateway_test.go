package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type rpcCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer serves canned JSON-RPC results keyed by method name and the
// per-method call count, starting at 1.
func newRPCServer(t *testing.T, result func(method string, call int) string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	counts := make(map[string]int)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		mu.Lock()
		counts[call.Method]++
		n := counts[call.Method]
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, call.ID, result(call.Method, n))
	}))
}

func receiptJSON(hash common.Hash) string {
	return fmt.Sprintf(`{
		"type": "0x2",
		"status": "0x1",
		"cumulativeGasUsed": "0x5208",
		"logsBloom": "0x%s",
		"logs": [],
		"transactionHash": "%s",
		"gasUsed": "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"blockHash": "0x%s",
		"blockNumber": "0x64",
		"transactionIndex": "0x0",
		"contractAddress": null
	}`, strings.Repeat("00", 256), hash.Hex(), strings.Repeat("11", 32))
}

func TestWaitReceiptReturnsOnceMined(t *testing.T) {
	hash := common.HexToHash("0x" + strings.Repeat("ab", 32))
	server := newRPCServer(t, func(method string, call int) string {
		if method != "eth_getTransactionReceipt" {
			t.Errorf("unexpected method %s", method)
			return "null"
		}
		if call < 3 {
			return "null"
		}
		return receiptJSON(hash)
	})
	defer server.Close()

	gw, err := Dial(server.URL, Options{ReceiptTimeout: 5 * time.Second, ReceiptPollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer gw.Close()

	receipt, err := gw.WaitReceipt(context.Background(), hash)
	if err != nil {
		t.Fatalf("WaitReceipt error: %v", err)
	}
	if receipt.Status != 1 {
		t.Fatalf("unexpected status: %d", receipt.Status)
	}
	if receipt.TxHash != hash {
		t.Fatalf("unexpected tx hash: %s", receipt.TxHash)
	}
}

func TestWaitReceiptTimesOut(t *testing.T) {
	hash := common.HexToHash("0x" + strings.Repeat("cd", 32))
	server := newRPCServer(t, func(method string, call int) string {
		return "null"
	})
	defer server.Close()

	gw, err := Dial(server.URL, Options{ReceiptTimeout: 100 * time.Millisecond, ReceiptPollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer gw.Close()

	_, err = gw.WaitReceipt(context.Background(), hash)
	var timeoutErr *ReceiptTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected ReceiptTimeoutError, got %v", err)
	}
	if timeoutErr.Hash != hash {
		t.Fatalf("unexpected hash in error: %s", timeoutErr.Hash)
	}
	if !strings.Contains(err.Error(), hash.Hex()) {
		t.Fatalf("error does not name the transaction: %s", err)
	}
}

func TestWaitReceiptHonoursParentCancel(t *testing.T) {
	hash := common.HexToHash("0x" + strings.Repeat("ef", 32))
	server := newRPCServer(t, func(method string, call int) string {
		return "null"
	})
	defer server.Close()

	gw, err := Dial(server.URL, Options{ReceiptTimeout: 10 * time.Second, ReceiptPollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	_, err = gw.WaitReceipt(ctx, hash)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChainID(t *testing.T) {
	server := newRPCServer(t, func(method string, call int) string {
		if method != "eth_chainId" {
			t.Errorf("unexpected method %s", method)
		}
		return `"0x74c"`
	})
	defer server.Close()

	gw, err := Dial(server.URL, Options{})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer gw.Close()

	id, err := gw.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID error: %v", err)
	}
	if id.Cmp(big.NewInt(1868)) != 0 {
		t.Fatalf("unexpected chain id: %s", id)
	}
}

func TestBalanceAt(t *testing.T) {
	server := newRPCServer(t, func(method string, call int) string {
		if method != "eth_getBalance" {
			t.Errorf("unexpected method %s", method)
		}
		return `"0xde0b6b3a7640000"`
	})
	defer server.Close()

	gw, err := Dial(server.URL, Options{})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer gw.Close()

	balance, err := gw.BalanceAt(context.Background(), common.HexToAddress("0x1111111111111111111111111111111111111111"))
	if err != nil {
		t.Fatalf("BalanceAt error: %v", err)
	}
	if balance.Cmp(big.NewInt(1e18)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	opts.applyDefaults()
	if opts.RequestTimeout != 60*time.Second {
		t.Fatalf("unexpected request timeout: %s", opts.RequestTimeout)
	}
	if opts.ReceiptTimeout != 180*time.Second {
		t.Fatalf("unexpected receipt timeout: %s", opts.ReceiptTimeout)
	}
	if opts.ReceiptPollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", opts.ReceiptPollInterval)
	}
	if opts.UserAgent != "redbutton" {
		t.Fatalf("unexpected user agent: %s", opts.UserAgent)
	}
}
