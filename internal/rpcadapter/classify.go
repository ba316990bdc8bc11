package rpcadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainlens/evm-indexer/internal/ierrors"
)

// jsonRPCError is the shape go-ethereum's rpc.Client surfaces for JSON-RPC
// error responses; it implements rpc.Error via ErrorCode()/Error().
type jsonRPCError interface {
	Error() string
	ErrorCode() int
}

// translateRPCError converts a transport-level error into one of this
// package's ierrors sentinels, so downstream Classify() calls see the
// taxonomy kinds rather than raw client error strings.
func translateRPCError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr jsonRPCError
	if errors.As(err, &rpcErr) {
		return &ierrors.RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}

	return err
}

func blockNumberHex(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex integer")
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex uint64 %q: %w", s, err)
	}
	return v, nil
}

// hasZkBatchFields reports whether a raw receipt carries the ZKsync-Era
// l1BatchTxIndex/l1BatchNumber fields the node sometimes lags on populating.
func hasZkBatchFields(raw json.RawMessage) bool {
	var probe struct {
		L1BatchTxIndex *string `json:"l1BatchTxIndex"`
		L1BatchNumber  *string `json:"l1BatchNumber"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.L1BatchTxIndex != nil && probe.L1BatchNumber != nil
}

// allHaveZkBatchFields checks every receipt in a batched response and
// returns the index of the first one missing fields, or -1 if all are
// present.
func allHaveZkBatchFields(receipts []json.RawMessage) (ok bool, missingIdx int) {
	for i, r := range receipts {
		if !hasZkBatchFields(r) {
			return false, i
		}
	}
	return true, -1
}
