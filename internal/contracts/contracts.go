// Package contracts holds the fixed ABI surface of the quest contracts:
// the orchestrator (draw/sell/claim), the item collection, the permit-enabled
// reward token and the completion badge. Calldata is packed and results are
// unpacked against these ABIs only; anything shaped differently is rejected.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const mainABIJSON = `[
  {"inputs":[{"name":"_gachaTypeIndex","type":"uint8"},{"name":"_deadline","type":"uint256"},{"name":"_permitSig","type":"bytes"}],"name":"drawItem","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"name":"_itemIds","type":"uint256[]"}],"name":"sellItemBatch","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"mintSBT","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"","type":"uint256"}],"name":"managedContracts","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const itemABIJSON = `[
  {"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenInfo","outputs":[{"name":"raritiesIndex","type":"uint256"},{"name":"partsIndex","type":"uint256"},{"name":"setNum","type":"uint256"},{"name":"typeHash","type":"bytes32"},{"name":"typeName","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"","type":"address"}],"name":"hasUniqueMinted","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":true,"name":"owner","type":"address"},{"indexed":false,"name":"rarityIndex","type":"uint256"},{"indexed":false,"name":"partIndex","type":"uint256"},{"indexed":false,"name":"setNum","type":"uint256"},{"indexed":false,"name":"sequenceNumber","type":"uint256"},{"indexed":false,"name":"randomSeed","type":"uint256"},{"indexed":false,"name":"score","type":"uint256"}],"name":"Minted","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`

const tokenABIJSON = `[
  {"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"},{"name":"value","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"name":"permit","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"owner","type":"address"}],"name":"nonces","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"DOMAIN_SEPARATOR","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const sbtABIJSON = `[
  {"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	MainABI  = mustParse(mainABIJSON)
	ItemABI  = mustParse(itemABIJSON)
	TokenABI = mustParse(tokenABIJSON)
	SBTABI   = mustParse(sbtABIJSON)

	MintedEventID   = ItemABI.Events["Minted"].ID
	TransferEventID = ItemABI.Events["Transfer"].ID
)

// TokenInfo is the item contract's per-token record.
type TokenInfo struct {
	RarityIndex *big.Int
	PartIndex   *big.Int
	SetNum      *big.Int
	TypeHash    [32]byte
	TypeName    string
}

// MintedEvent is a decoded Minted log from the item contract.
type MintedEvent struct {
	TokenID        *big.Int
	Owner          common.Address
	RarityIndex    *big.Int
	PartIndex      *big.Int
	SetNum         *big.Int
	SequenceNumber *big.Int
	RandomSeed     *big.Int
	Score          *big.Int
}

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid ABI: %v", err))
	}
	return parsed
}
