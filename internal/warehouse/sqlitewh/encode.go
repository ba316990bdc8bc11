package sqlitewh

import (
	"encoding/json"
	"math/big"

	"github.com/chainlens/evm-indexer/internal/model"
)

// bigIntString renders a nullable *big.Int as a decimal string, the wire
// format spec.md §3 specifies for any warehouse boundary crossing since
// sqlite (like BigQuery's NUMERIC) cannot hold a full 256-bit integer.
func bigIntString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func extensionsJSON(ext map[string]any) string {
	if len(ext) == 0 {
		return ""
	}
	b, err := json.Marshal(ext)
	if err != nil {
		return ""
	}
	return string(b)
}

type accessTupleJSON struct {
	Address     string   `json:"address"`
	StorageKeys []string `json:"storage_keys"`
}

func accessListJSON(list []model.AccessTuple) string {
	if len(list) == 0 {
		return ""
	}
	out := make([]accessTupleJSON, len(list))
	for i, at := range list {
		keys := make([]string, len(at.StorageKeys))
		for j, k := range at.StorageKeys {
			keys[j] = k.String()
		}
		out[i] = accessTupleJSON{Address: at.Address.String(), StorageKeys: keys}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(b)
}
