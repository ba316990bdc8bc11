package parser

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/chainlens/evm-indexer/internal/model"
)

// decodeBigInt normalizes a 0x-hex quantity into the big-integer carrier
// required for any field that can exceed 2^63, per spec.md §3/§4.3.
func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex big int %q: %w", s, err)
	}
	return v, nil
}

func decodeBigIntPtr(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	return decodeBigInt(*s)
}

// decodeUint64 normalizes a 0x-hex quantity that is known to fit in 64 bits.
func decodeUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("decode hex uint64 %q: %w", s, err)
	}
	return v, nil
}

func decodeUint64Ptr(s *string) (uint64, bool, error) {
	if s == nil {
		return 0, false, nil
	}
	v, err := decodeUint64(*s)
	return v, true, err
}

// decodeBytes normalizes a 0x-hex byte string, returning an empty (non-nil)
// slice for an absent/empty value rather than leaving it nil, since absence
// is semantically "empty" per spec.md §4.3.
func decodeBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex bytes %q: %w", s, err)
	}
	return b, nil
}

func decodeAddress(s string) (model.Address, error) {
	var out model.Address
	if s == "" {
		return out, nil
	}
	if !common.IsHexAddress(s) {
		return out, fmt.Errorf("invalid address %q", s)
	}
	copy(out[:], common.HexToAddress(s).Bytes())
	return out, nil
}

func decodeAddressPtr(s *string) (*model.Address, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	a, err := decodeAddress(*s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeHash(s string) (model.Hash, error) {
	var out model.Hash
	if s == "" {
		return out, nil
	}
	trimmed := strings.TrimPrefix(s, "0x")
	b := common.HexToHash(s)
	if len(trimmed) > 64 {
		return out, fmt.Errorf("hash %q longer than 32 bytes", s)
	}
	copy(out[:], b.Bytes())
	return out, nil
}
