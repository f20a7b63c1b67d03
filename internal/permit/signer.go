// Package permit signs EIP-2612 approvals for the reward token.
package permit

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	domainName    = "RedButton Token"
	domainVersion = "1"

	eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	permitType       = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"
)

// NonceSource reads an owner's current permit nonce from the token
// contract.
type NonceSource interface {
	PermitNonce(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Message is the signed permit payload. Deadline is shared with the
// draw call that consumes the permit.
type Message struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// SignatureLengthError reports a signature that is not the 65 bytes the
// token contract expects. It is not retryable.
type SignatureLengthError struct {
	Len int
}

func (e *SignatureLengthError) Error() string {
	return fmt.Sprintf("permit signature is %d bytes, want 65", e.Len)
}

// Signer builds EIP-2612 permits for a fixed token and chain.
type Signer struct {
	chainID *big.Int
	token   common.Address
	nonces  NonceSource
	window  time.Duration
	now     func() time.Time
}

func NewSigner(chainID *big.Int, token common.Address, nonces NonceSource, window time.Duration) (*Signer, error) {
	return NewSignerWithClock(chainID, token, nonces, window, time.Now)
}

func NewSignerWithClock(chainID *big.Int, token common.Address, nonces NonceSource, window time.Duration, now func() time.Time) (*Signer, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if token == (common.Address{}) {
		return nil, errors.New("token address is required")
	}
	if nonces == nil {
		return nil, errors.New("nonce source is required")
	}
	if window <= 0 {
		return nil, errors.New("deadline window must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{
		chainID: new(big.Int).Set(chainID),
		token:   token,
		nonces:  nonces,
		window:  window,
		now:     now,
	}, nil
}

// DomainSeparator computes the token's EIP-712 domain hash.
func (s *Signer) DomainSeparator() common.Hash {
	return crypto.Keccak256Hash(
		crypto.Keccak256([]byte(eip712DomainType)),
		crypto.Keccak256([]byte(domainName)),
		crypto.Keccak256([]byte(domainVersion)),
		math.U256Bytes(new(big.Int).Set(s.chainID)),
		common.LeftPadBytes(s.token.Bytes(), 32),
	)
}

// Sign produces a permit for spender over value, valid until the clock
// plus the deadline window. The owner's nonce is read from the token at
// call time.
func (s *Signer) Sign(ctx context.Context, key *ecdsa.PrivateKey, spender common.Address, value *big.Int) (Message, []byte, error) {
	if key == nil {
		return Message{}, nil, errors.New("key is required")
	}
	if spender == (common.Address{}) {
		return Message{}, nil, errors.New("spender address is required")
	}
	if value == nil || value.Sign() < 0 {
		return Message{}, nil, errors.New("value must be non-negative")
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := s.nonces.PermitNonce(ctx, owner)
	if err != nil {
		return Message{}, nil, fmt.Errorf("permit nonce for %s: %w", owner, err)
	}
	if nonce == nil {
		return Message{}, nil, fmt.Errorf("permit nonce for %s: nil result", owner)
	}
	msg := Message{
		Owner:    owner,
		Spender:  spender,
		Value:    new(big.Int).Set(value),
		Nonce:    new(big.Int).Set(nonce),
		Deadline: big.NewInt(s.now().Add(s.window).Unix()),
	}
	structHash := crypto.Keccak256Hash(
		crypto.Keccak256([]byte(permitType)),
		common.LeftPadBytes(msg.Owner.Bytes(), 32),
		common.LeftPadBytes(msg.Spender.Bytes(), 32),
		math.U256Bytes(new(big.Int).Set(msg.Value)),
		math.U256Bytes(new(big.Int).Set(msg.Nonce)),
		math.U256Bytes(new(big.Int).Set(msg.Deadline)),
	)
	digest := crypto.Keccak256Hash([]byte("\x19\x01"), s.DomainSeparator().Bytes(), structHash.Bytes())
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Message{}, nil, fmt.Errorf("sign permit: %w", err)
	}
	if len(sig) != 65 {
		return Message{}, nil, &SignatureLengthError{Len: len(sig)}
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return msg, sig, nil
}
