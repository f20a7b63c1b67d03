package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func PackDrawItem(gachaType uint8, deadline *big.Int, permitSig []byte) ([]byte, error) {
	if deadline == nil {
		return nil, errors.New("deadline is required")
	}
	if permitSig == nil {
		permitSig = []byte{}
	}
	return MainABI.Pack("drawItem", gachaType, deadline, permitSig)
}

func PackSellItemBatch(itemIDs []*big.Int) ([]byte, error) {
	if len(itemIDs) == 0 {
		return nil, errors.New("itemIds are required")
	}
	for i, id := range itemIDs {
		if id == nil {
			return nil, fmt.Errorf("itemIds[%d] is nil", i)
		}
	}
	return MainABI.Pack("sellItemBatch", itemIDs)
}

func PackMintSBT() ([]byte, error) {
	return MainABI.Pack("mintSBT")
}

func PackManagedContracts(index int64) ([]byte, error) {
	if index < 0 {
		return nil, errors.New("index must be non-negative")
	}
	return MainABI.Pack("managedContracts", big.NewInt(index))
}

func UnpackManagedContracts(data []byte) (common.Address, error) {
	v, err := unpackOne(MainABI, "managedContracts", data)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("managedContracts: unexpected type %T", v)
	}
	return addr, nil
}

func PackTokenInfo(tokenID *big.Int) ([]byte, error) {
	if tokenID == nil {
		return nil, errors.New("tokenId is required")
	}
	return ItemABI.Pack("tokenInfo", tokenID)
}

func UnpackTokenInfo(data []byte) (TokenInfo, error) {
	values, err := ItemABI.Unpack("tokenInfo", data)
	if err != nil {
		return TokenInfo{}, err
	}
	if len(values) != 5 {
		return TokenInfo{}, fmt.Errorf("tokenInfo: expected 5 outputs, got %d", len(values))
	}
	info := TokenInfo{}
	if info.RarityIndex, err = asBig(values[0], "raritiesIndex"); err != nil {
		return TokenInfo{}, err
	}
	if info.PartIndex, err = asBig(values[1], "partsIndex"); err != nil {
		return TokenInfo{}, err
	}
	if info.SetNum, err = asBig(values[2], "setNum"); err != nil {
		return TokenInfo{}, err
	}
	hash, ok := values[3].([32]byte)
	if !ok {
		return TokenInfo{}, fmt.Errorf("tokenInfo: typeHash has unexpected type %T", values[3])
	}
	info.TypeHash = hash
	name, ok := values[4].(string)
	if !ok {
		return TokenInfo{}, fmt.Errorf("tokenInfo: typeName has unexpected type %T", values[4])
	}
	info.TypeName = name
	return info, nil
}

// PackBalanceOf covers the token, item and badge contracts; all three expose
// the same balanceOf(address) shape.
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return TokenABI.Pack("balanceOf", owner)
}

func UnpackBalanceOf(data []byte) (*big.Int, error) {
	v, err := unpackOne(TokenABI, "balanceOf", data)
	if err != nil {
		return nil, err
	}
	return asBig(v, "balanceOf")
}

func PackOwnerOf(tokenID *big.Int) ([]byte, error) {
	if tokenID == nil {
		return nil, errors.New("tokenId is required")
	}
	return ItemABI.Pack("ownerOf", tokenID)
}

func UnpackOwnerOf(data []byte) (common.Address, error) {
	v, err := unpackOne(ItemABI, "ownerOf", data)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected type %T", v)
	}
	return addr, nil
}

func PackTotalSupply() ([]byte, error) {
	return ItemABI.Pack("totalSupply")
}

func UnpackTotalSupply(data []byte) (*big.Int, error) {
	v, err := unpackOne(ItemABI, "totalSupply", data)
	if err != nil {
		return nil, err
	}
	return asBig(v, "totalSupply")
}

func PackHasUniqueMinted(owner common.Address) ([]byte, error) {
	return ItemABI.Pack("hasUniqueMinted", owner)
}

func UnpackHasUniqueMinted(data []byte) (bool, error) {
	v, err := unpackOne(ItemABI, "hasUniqueMinted", data)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("hasUniqueMinted: unexpected type %T", v)
	}
	return b, nil
}

func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, errors.New("amount is required")
	}
	return TokenABI.Pack("approve", spender, amount)
}

func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return TokenABI.Pack("allowance", owner, spender)
}

func UnpackAllowance(data []byte) (*big.Int, error) {
	v, err := unpackOne(TokenABI, "allowance", data)
	if err != nil {
		return nil, err
	}
	return asBig(v, "allowance")
}

func PackNonces(owner common.Address) ([]byte, error) {
	return TokenABI.Pack("nonces", owner)
}

func UnpackNonces(data []byte) (*big.Int, error) {
	v, err := unpackOne(TokenABI, "nonces", data)
	if err != nil {
		return nil, err
	}
	return asBig(v, "nonces")
}

func PackDomainSeparator() ([]byte, error) {
	return TokenABI.Pack("DOMAIN_SEPARATOR")
}

func UnpackDomainSeparator(data []byte) (common.Hash, error) {
	v, err := unpackOne(TokenABI, "DOMAIN_SEPARATOR", data)
	if err != nil {
		return common.Hash{}, err
	}
	b, ok := v.([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("DOMAIN_SEPARATOR: unexpected type %T", v)
	}
	return common.Hash(b), nil
}

func unpackOne(parsed abi.ABI, method string, data []byte) (interface{}, error) {
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: expected 1 output, got %d", method, len(values))
	}
	return values[0], nil
}

func asBig(v interface{}, field string) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", field, v)
	}
	if n == nil {
		return nil, fmt.Errorf("%s: nil value", field)
	}
	return n, nil
}
