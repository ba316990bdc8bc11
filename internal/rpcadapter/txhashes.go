package rpcadapter

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ExtractTxHashes pulls the ordered transaction hash list out of a raw
// eth_getBlockByNumber(n, true) response, for callers that need to drive
// GetReceiptsForBlock's per-tx fallback without re-parsing the full block
// into the internal model (that full decode is internal/parser's job).
func ExtractTxHashes(raw []byte) ([]common.Hash, error) {
	var block struct {
		Transactions []struct {
			Hash string `json:"hash"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("extract tx hashes: %w", err)
	}

	out := make([]common.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		out[i] = common.HexToHash(tx.Hash)
	}
	return out, nil
}
