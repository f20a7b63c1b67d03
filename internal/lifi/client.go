// Package lifi is a minimal client for the LI.FI quote API, used to
// swap residual reward tokens back to the native coin.
package lifi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	defaultBaseURL = "https://li.quest/v1"
	requestTimeout = 30 * time.Second
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient builds a quote client. An empty baseURL selects the public
// endpoint. An empty apiKey sends unauthenticated requests.
func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// QuoteRequest describes a swap of an ERC-20 amount into another asset.
// The zero ToToken address selects the native coin.
type QuoteRequest struct {
	FromChain   uint64
	ToChain     uint64
	FromToken   common.Address
	ToToken     common.Address
	FromAmount  *big.Int
	FromAddress common.Address
	Slippage    float64
	Order       string
}

type Quote struct {
	Estimate           *Estimate           `json:"estimate"`
	TransactionRequest *TransactionRequest `json:"transactionRequest"`
}

type Estimate struct {
	ToAmount string `json:"toAmount"`
}

// TransactionRequest is the prebuilt call LI.FI returns: the router
// address, calldata and native value to send.
type TransactionRequest struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

func (t *TransactionRequest) ToAddress() (common.Address, error) {
	if !common.IsHexAddress(t.To) {
		return common.Address{}, fmt.Errorf("quote to %q is not an address", t.To)
	}
	return common.HexToAddress(t.To), nil
}

func (t *TransactionRequest) DataBytes() ([]byte, error) {
	data, err := hexutil.Decode(t.Data)
	if err != nil {
		return nil, fmt.Errorf("quote data: %w", err)
	}
	return data, nil
}

// ValueWei parses the quote value, which LI.FI reports either as a hex
// quantity or a decimal string. An empty value means zero.
func (t *TransactionRequest) ValueWei() (*big.Int, error) {
	v := strings.TrimSpace(t.Value)
	if v == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		n, ok := new(big.Int).SetString(v[2:], 16)
		if !ok {
			return nil, fmt.Errorf("quote value %q is not a hex quantity", v)
		}
		return n, nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("quote value %q is not a number", v)
	}
	return n, nil
}

// Quote fetches a swap quote. The response must carry a transaction
// request with a router address and calldata.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.FromAmount == nil || req.FromAmount.Sign() <= 0 {
		return nil, errors.New("from amount must be positive")
	}
	q := url.Values{}
	q.Set("fromChain", strconv.FormatUint(req.FromChain, 10))
	q.Set("toChain", strconv.FormatUint(req.ToChain, 10))
	q.Set("fromToken", req.FromToken.Hex())
	q.Set("toToken", req.ToToken.Hex())
	q.Set("fromAmount", req.FromAmount.String())
	q.Set("fromAddress", req.FromAddress.Hex())
	if req.Slippage > 0 {
		q.Set("slippage", strconv.FormatFloat(req.Slippage, 'f', -1, 64))
	}
	if req.Order != "" {
		q.Set("order", req.Order)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("x-lifi-api-key", c.apiKey)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lifi quote: status %d: %s", resp.StatusCode, snippet(body))
	}
	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("lifi quote: %w", err)
	}
	if quote.TransactionRequest == nil || quote.TransactionRequest.To == "" || quote.TransactionRequest.Data == "" {
		return nil, errors.New("lifi quote: no transaction request in response")
	}
	return &quote, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
