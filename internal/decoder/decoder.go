// Package decoder extracts typed Minted events from receipt logs.
package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"redbutton/internal/contracts"
)

// MintedEvents decodes every Minted log emitted by the item contract.
// Logs from other contracts, other events, or with malformed payloads
// are skipped. A non-zero owner restricts the result to that recipient.
func MintedEvents(logs []*types.Log, item common.Address, owner common.Address) []contracts.MintedEvent {
	filter := owner != (common.Address{})
	out := make([]contracts.MintedEvent, 0, len(logs))
	for _, l := range logs {
		if l == nil || l.Address != item {
			continue
		}
		if len(l.Topics) != 3 || l.Topics[0] != contracts.MintedEventID {
			continue
		}
		ev, err := unpackMinted(l)
		if err != nil {
			continue
		}
		if filter && ev.Owner != owner {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// FirstMintedFor returns the first Minted event in the receipt credited
// to owner, or false when the receipt carries none.
func FirstMintedFor(receipt *types.Receipt, item common.Address, owner common.Address) (contracts.MintedEvent, bool) {
	if receipt == nil {
		return contracts.MintedEvent{}, false
	}
	events := MintedEvents(receipt.Logs, item, owner)
	if len(events) == 0 {
		return contracts.MintedEvent{}, false
	}
	return events[0], true
}

func unpackMinted(l *types.Log) (contracts.MintedEvent, error) {
	var ev contracts.MintedEvent
	vals, err := contracts.ItemABI.Events["Minted"].Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return ev, err
	}
	if len(vals) != 6 {
		return ev, fmt.Errorf("minted log: %d data fields, want 6", len(vals))
	}
	fields := make([]*big.Int, len(vals))
	for i, v := range vals {
		n, ok := v.(*big.Int)
		if !ok {
			return ev, fmt.Errorf("minted log: field %d is %T, want *big.Int", i, v)
		}
		fields[i] = n
	}
	ev.TokenID = new(big.Int).SetBytes(l.Topics[1].Bytes())
	ev.Owner = common.BytesToAddress(l.Topics[2].Bytes())
	ev.RarityIndex = fields[0]
	ev.PartIndex = fields[1]
	ev.SetNum = fields[2]
	ev.SequenceNumber = fields[3]
	ev.RandomSeed = fields[4]
	ev.Score = fields[5]
	return ev, nil
}
