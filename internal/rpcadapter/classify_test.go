package rpcadapter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainlens/evm-indexer/internal/ierrors"
)

type fakeJSONRPCError struct {
	code int
	msg  string
}

func (e fakeJSONRPCError) Error() string  { return e.msg }
func (e fakeJSONRPCError) ErrorCode() int { return e.code }

func TestTranslateRPCError_ConvertsKnownShape(t *testing.T) {
	err := translateRPCError(fakeJSONRPCError{code: -32008, msg: "response too large"})

	var rpcErr *ierrors.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32008, rpcErr.Code)
	require.Equal(t, "response too large", rpcErr.Message)
}

func TestTranslateRPCError_PassesThroughUnknownShape(t *testing.T) {
	plain := errors.New("boring network error")
	require.Equal(t, plain, translateRPCError(plain))
}

func TestTranslateRPCError_NilIsNil(t *testing.T) {
	require.NoError(t, translateRPCError(nil))
}

func TestHasZkBatchFields(t *testing.T) {
	complete := json.RawMessage(`{"l1BatchTxIndex":"0x1","l1BatchNumber":"0x2"}`)
	require.True(t, hasZkBatchFields(complete))

	missingOne := json.RawMessage(`{"l1BatchTxIndex":"0x1"}`)
	require.False(t, hasZkBatchFields(missingOne))

	missingBoth := json.RawMessage(`{"status":"0x1"}`)
	require.False(t, hasZkBatchFields(missingBoth))

	malformed := json.RawMessage(`not json`)
	require.False(t, hasZkBatchFields(malformed))
}

func TestAllHaveZkBatchFields(t *testing.T) {
	complete := json.RawMessage(`{"l1BatchTxIndex":"0x1","l1BatchNumber":"0x2"}`)
	incomplete := json.RawMessage(`{"status":"0x1"}`)

	ok, idx := allHaveZkBatchFields([]json.RawMessage{complete, complete})
	require.True(t, ok)
	require.Equal(t, -1, idx)

	ok, idx = allHaveZkBatchFields([]json.RawMessage{complete, incomplete, complete})
	require.False(t, ok)
	require.Equal(t, 1, idx)
}

func TestParseHexUint64(t *testing.T) {
	v, err := parseHexUint64("0x1a")
	require.NoError(t, err)
	require.Equal(t, uint64(26), v)

	_, err = parseHexUint64("0x")
	require.Error(t, err)

	_, err = parseHexUint64("not-hex")
	require.Error(t, err)
}

func TestBlockNumberHex(t *testing.T) {
	require.Equal(t, "0x1a", blockNumberHex(26))
	require.Equal(t, "0x0", blockNumberHex(0))
}
