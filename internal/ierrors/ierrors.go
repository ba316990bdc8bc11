// Package ierrors classifies errors into the indexer's error taxonomy:
// retriable, data-shape recoverable, block-skip, block-fail, and fatal. The
// classification is centralized here so the RPC adapter and the pipeline
// Driver agree on how to react to the same underlying error shapes, following
// the switch-on-known-shapes style of zk/stages/stage_l1syncer.go's
// parseLogType rather than a deep error-wrapper hierarchy.
package ierrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is one of the five error classes from the error handling design.
type Kind int

const (
	// Unknown errors are treated as fatal by default: silently retrying or
	// skipping an unrecognized failure risks masking real problems.
	Unknown Kind = iota
	Retriable
	DataShapeRecoverable
	BlockSkip
	BlockFail
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Retriable:
		return "retriable"
	case DataShapeRecoverable:
		return "data_shape_recoverable"
	case BlockSkip:
		return "block_skip"
	case BlockFail:
		return "block_fail"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RPCError carries a JSON-RPC error code alongside the message, since the
// classification depends on the numeric code (-32008, -32603, -32000..-32099).
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// HTTPStatusError carries the status code for non-JSON-RPC transport
// failures (429, 5xx, other 4xx).
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

// OversizedTraceError is the sentinel returned by the RPC adapter when a
// trace fetch hits JSON-RPC code -32008. It is always a BlockSkip.
type OversizedTraceError struct {
	BlockNumber uint64
}

func (e *OversizedTraceError) Error() string {
	return fmt.Sprintf("trace response too large for block %d", e.BlockNumber)
}

// ZkSyncMissingBatchFieldsError marks a ZKsync receipt missing
// l1BatchTxIndex/l1BatchNumber; always DataShapeRecoverable (retry).
type ZkSyncMissingBatchFieldsError struct {
	TxHash string
}

func (e *ZkSyncMissingBatchFieldsError) Error() string {
	return fmt.Sprintf("receipt for %s missing l1BatchTxIndex/l1BatchNumber", e.TxHash)
}

// NullBlockError marks an eth_getBlockByNumber result of null for a block
// below the buffered tip: the node hasn't caught up yet. Always Retriable.
type NullBlockError struct {
	BlockNumber uint64
}

func (e *NullBlockError) Error() string {
	return fmt.Sprintf("block %d not yet available at node (null result)", e.BlockNumber)
}

// MissingReceiptError marks a transaction whose receipt could not be
// obtained after all adapter retries were exhausted; always BlockFail.
type MissingReceiptError struct {
	TxHash string
}

func (e *MissingReceiptError) Error() string {
	return fmt.Sprintf("receipt missing for tx %s after exhausting retries", e.TxHash)
}

// PreBedrockBlockError marks an Optimism OVM1 pre-Bedrock block (extraData
// length 97) under chainfamily.Traits.StrictPreBedrock; always Fatal. See
// spec.md's Open Question on pre-Bedrock handling and DESIGN.md's decision.
type PreBedrockBlockError struct {
	BlockNumber uint64
}

func (e *PreBedrockBlockError) Error() string {
	return fmt.Sprintf("block %d looks like pre-Bedrock OVM1 (extraData length 97) and strict_pre_bedrock is set", e.BlockNumber)
}

// Classify maps an error to its Kind, per spec.md §7.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	var oversized *OversizedTraceError
	if errors.As(err, &oversized) {
		return BlockSkip
	}

	var nullBlock *NullBlockError
	if errors.As(err, &nullBlock) {
		return Retriable
	}

	var zkGap *ZkSyncMissingBatchFieldsError
	if errors.As(err, &zkGap) {
		return DataShapeRecoverable
	}

	var missingReceipt *MissingReceiptError
	if errors.As(err, &missingReceipt) {
		return BlockFail
	}

	var preBedrock *PreBedrockBlockError
	if errors.As(err, &preBedrock) {
		return Fatal
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch {
		case rpcErr.Code == -32008:
			return BlockSkip
		case rpcErr.Code == -32603:
			return Retriable
		case rpcErr.Code <= -32000 && rpcErr.Code >= -32099:
			return Retriable
		default:
			return Fatal
		}
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.Status == 429 || httpErr.Status >= 500 {
			return Retriable
		}
		return Fatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Retriable
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retriable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return Retriable
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"), strings.Contains(msg, "eof"):
		return Retriable
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "invalid character"):
		return Fatal
	}

	return Unknown
}

// IsRetriable is a convenience predicate used by the retrier.
func IsRetriable(err error) bool {
	k := Classify(err)
	return k == Retriable || k == DataShapeRecoverable
}
