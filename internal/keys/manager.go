// Package keys loads operator wallets from a plaintext key file.
package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyLine matches a 32-byte hex private key with an optional 0x prefix.
var keyLine = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// Account pairs a wallet address with its signing key.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// Manager holds the wallets loaded from a key file, in file order.
type Manager struct {
	accounts []Account
}

// Load reads one private key per line from path. Blank lines and lines
// starting with # are skipped; anything else must be 64 hex characters
// with an optional 0x prefix. Duplicate keys keep the first occurrence.
func Load(path string) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keys path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{}
	seen := map[common.Address]struct{}{}
	for i, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !keyLine.MatchString(line) {
			return nil, fmt.Errorf("%s:%d: not a 64-character hex key", path, i+1)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(line, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		m.accounts = append(m.accounts, Account{Address: addr, Key: key})
	}
	if len(m.accounts) == 0 {
		return nil, fmt.Errorf("%s: no usable keys", path)
	}
	return m, nil
}

// Accounts returns a copy of the loaded wallets in file order.
func (m *Manager) Accounts() []Account {
	out := make([]Account, len(m.accounts))
	copy(out, m.accounts)
	return out
}

func (m *Manager) Len() int {
	return len(m.accounts)
}
