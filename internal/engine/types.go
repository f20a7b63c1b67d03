package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// State names the phase a wallet run is in.
type State int

const (
	StateIdle State = iota
	StateMinting
	StateAccumulated
	StateLiquidating
	StateFunded
	StateDrawing
	StateFinalizing
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMinting:
		return "minting"
	case StateAccumulated:
		return "accumulated"
	case StateLiquidating:
		return "liquidating"
	case StateFunded:
		return "funded"
	case StateDrawing:
		return "drawing"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// LiquidationOutcome reports where a liquidation pass left the wallet.
type LiquidationOutcome int

const (
	Funded LiquidationOutcome = iota + 1
	NeedsMoreAccumulation
)

func (o LiquidationOutcome) String() string {
	switch o {
	case Funded:
		return "funded"
	case NeedsMoreAccumulation:
		return "needs more accumulation"
	default:
		return "unknown"
	}
}

// DrawOutcome is the result of a confirmed jackpot draw.
type DrawOutcome int

const (
	JackpotHit DrawOutcome = iota + 1
	JackpotMissed
)

func (o DrawOutcome) String() string {
	switch o {
	case JackpotHit:
		return "jackpot hit"
	case JackpotMissed:
		return "jackpot missed"
	default:
		return "unknown"
	}
}

// MintedItem is one collectible recovered from a Minted event.
type MintedItem struct {
	TokenID     *big.Int
	RarityIndex uint8
	Owner       common.Address
}

// RarityValues maps a rarity index to its fixed exchange value in whole
// tokens. Unknown rarities value as zero.
type RarityValues map[uint8]uint64

// ValueOf returns the wei value of one item of the given rarity.
func (rv RarityValues) ValueOf(rarity uint8) *big.Int {
	whole := new(big.Int).SetUint64(rv[rarity])
	return whole.Mul(whole, big.NewInt(params.Ether))
}

// Accumulation tracks the items minted during one cycle and their
// summed value against the amount still needed.
type Accumulation struct {
	Target      *big.Int
	Accumulated *big.Int
	Items       []MintedItem
}

func newAccumulation(target *big.Int) *Accumulation {
	return &Accumulation{
		Target:      new(big.Int).Set(target),
		Accumulated: new(big.Int),
	}
}

func (a *Accumulation) add(item MintedItem, value *big.Int) {
	a.Items = append(a.Items, item)
	a.Accumulated.Add(a.Accumulated, value)
}

func (a *Accumulation) funded() bool {
	return a.Accumulated.Cmp(a.Target) >= 0
}

// ItemIDs returns the token ids of all tracked items.
func (a *Accumulation) ItemIDs() []*big.Int {
	out := make([]*big.Int, len(a.Items))
	for i, item := range a.Items {
		out[i] = item.TokenID
	}
	return out
}

// DrawResult pairs a draw outcome with the drawn item when one could be
// recovered from the receipt.
type DrawResult struct {
	Outcome DrawOutcome
	Item    *MintedItem
}

// RunResult summarizes one wallet run.
type RunResult struct {
	Wallet  common.Address
	State   State
	Skipped bool
	Cycles  int
	Minted  int
}
