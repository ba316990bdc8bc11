package ierrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"oversized trace", &OversizedTraceError{BlockNumber: 10}, BlockSkip},
		{"null block", &NullBlockError{BlockNumber: 10}, Retriable},
		{"zksync missing batch fields", &ZkSyncMissingBatchFieldsError{TxHash: "0xabc"}, DataShapeRecoverable},
		{"missing receipt", &MissingReceiptError{TxHash: "0xabc"}, BlockFail},
		{"pre-bedrock strict", &PreBedrockBlockError{BlockNumber: 5}, Fatal},
		{"rpc -32008", &RPCError{Code: -32008, Message: "trace too large"}, BlockSkip},
		{"rpc -32603 internal error", &RPCError{Code: -32603, Message: "internal"}, Retriable},
		{"rpc server error range", &RPCError{Code: -32050, Message: "server busy"}, Retriable},
		{"rpc method not found", &RPCError{Code: -32601, Message: "method not found"}, Fatal},
		{"http 429", &HTTPStatusError{Status: 429}, Retriable},
		{"http 503", &HTTPStatusError{Status: 503}, Retriable},
		{"http 400", &HTTPStatusError{Status: 400}, Fatal},
		{"deadline exceeded", context.DeadlineExceeded, Retriable},
		{"context canceled", context.Canceled, Fatal},
		{"wrapped deadline exceeded", fmt.Errorf("dial: %w", context.DeadlineExceeded), Retriable},
		{"connection refused text", errors.New("dial tcp: connection refused"), Retriable},
		{"connection reset text", errors.New("read: connection reset by peer"), Retriable},
		{"eof text", errors.New("unexpected EOF"), Retriable},
		{"timeout text", errors.New("request timeout"), Retriable},
		{"malformed text", errors.New("malformed json response"), Fatal},
		{"invalid character text", errors.New("invalid character 'x' looking for beginning of value"), Fatal},
		{"unrecognized error", errors.New("something weird happened"), Unknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassify_WrapsThroughFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("processing block: %w", &MissingReceiptError{TxHash: "0xdead"})
	require.Equal(t, BlockFail, Classify(wrapped))
}

func TestIsRetriable(t *testing.T) {
	require.True(t, IsRetriable(&NullBlockError{BlockNumber: 1}))
	require.True(t, IsRetriable(&ZkSyncMissingBatchFieldsError{TxHash: "0xabc"}))
	require.False(t, IsRetriable(&MissingReceiptError{TxHash: "0xabc"}))
	require.False(t, IsRetriable(&PreBedrockBlockError{BlockNumber: 1}))
	require.False(t, IsRetriable(nil))
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "retriable", Retriable.String())
	require.Equal(t, "data_shape_recoverable", DataShapeRecoverable.String())
	require.Equal(t, "block_skip", BlockSkip.String())
	require.Equal(t, "block_fail", BlockFail.String())
	require.Equal(t, "fatal", Fatal.String())
	require.Equal(t, "unknown", Unknown.String())
}

func TestRPCError_ErrorMessageIncludesCode(t *testing.T) {
	err := &RPCError{Code: -32008, Message: "trace too large"}
	require.Contains(t, err.Error(), "-32008")
	require.Contains(t, err.Error(), "trace too large")
}
