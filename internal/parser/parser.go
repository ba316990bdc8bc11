// Package parser decodes raw JSON-RPC responses into the internal
// model.ParsedBlock, applying chain-family field maps. It is a pure
// function of its input: no I/O, no retries, deterministic — the same raw
// bytes always produce a byte-identical ParsedBlock (spec.md §4.3, invariant
// #3 of §8).
package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainlens/evm-indexer/internal/chainfamily"
	"github.com/chainlens/evm-indexer/internal/ierrors"
	"github.com/chainlens/evm-indexer/internal/model"
)

// Input bundles the three raw RPC responses for one block, as returned by
// internal/rpcadapter.
type Input struct {
	ChainID     uint64
	BlockNumber uint64
	Block       json.RawMessage
	Receipts    []json.RawMessage
	Traces      json.RawMessage
	TracesOmitted bool
}

// Parse decodes Input into a ParsedBlock for the given chain family. Receipt
// joining (matching receipts to transactions by hash) happens here, since
// both come from the same raw fetch and the result is still "parsing", not
// the cross-block transformation work the Transformer does.
func Parse(traits chainfamily.Traits, in Input) (*model.ParsedBlock, error) {
	var wb wireBlock
	if err := json.Unmarshal(in.Block, &wb); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", in.BlockNumber, err)
	}

	header, err := decodeHeader(traits, in.ChainID, wb)
	if err != nil {
		return nil, fmt.Errorf("decode header for block %d: %w", in.BlockNumber, err)
	}
	header.TxCount = len(wb.Transactions)

	receiptByHash, err := indexReceiptsByHash(in.Receipts)
	if err != nil {
		return nil, fmt.Errorf("index receipts for block %d: %w", in.BlockNumber, err)
	}

	txs := make([]model.Transaction, 0, len(wb.Transactions))
	logs := make([]model.Log, 0)
	for _, wtx := range wb.Transactions {
		tx, txLogs, err := decodeTransaction(traits, wtx, receiptByHash)
		if err != nil {
			return nil, fmt.Errorf("decode tx in block %d: %w", in.BlockNumber, err)
		}
		txs = append(txs, tx)
		logs = append(logs, txLogs...)
	}

	var traces []model.TraceFrame
	if !in.TracesOmitted && len(in.Traces) > 0 {
		traces, err = decodeTraces(in.Traces)
		if err != nil {
			return nil, fmt.Errorf("decode traces for block %d: %w", in.BlockNumber, err)
		}
	}

	return &model.ParsedBlock{
		Header:        header,
		Transactions:  txs,
		Logs:          logs,
		Traces:        traces,
		TracesOmitted: in.TracesOmitted,
	}, nil
}

func decodeHeader(traits chainfamily.Traits, chainID uint64, wb wireBlock) (model.Header, error) {
	var h model.Header
	h.ChainID = chainID

	num, err := decodeUint64(wb.Number)
	if err != nil {
		return h, err
	}
	h.BlockNumber = num

	if h.BlockHash, err = decodeHash(wb.Hash); err != nil {
		return h, err
	}
	if h.ParentHash, err = decodeHash(wb.ParentHash); err != nil {
		return h, err
	}

	ts, err := decodeUint64(wb.Timestamp)
	if err != nil {
		return h, err
	}
	h.BlockTime = time.Unix(int64(ts), 0).UTC()

	if h.Miner, err = decodeAddress(wb.Miner); err != nil {
		return h, err
	}
	if h.GasUsed, err = decodeUint64(wb.GasUsed); err != nil {
		return h, err
	}
	if h.GasLimit, err = decodeUint64(wb.GasLimit); err != nil {
		return h, err
	}
	if h.BaseFee, err = decodeBigIntPtr(wb.BaseFeePerGas); err != nil {
		return h, err
	}
	if h.Size, err = decodeUint64(wb.Size); err != nil {
		return h, err
	}
	if h.ExtraData, err = decodeBytes(wb.ExtraData); err != nil {
		return h, err
	}
	// OVM1 pre-Bedrock Optimism blocks carry a 97-byte extraData payload; the
	// source corpus does not prescribe whether to index or reject these (see
	// SPEC_FULL.md Open Question #2), so it is a configurable strict mode
	// rather than a silent guess.
	if traits.Family == chainfamily.Optimism && traits.StrictPreBedrock && len(h.ExtraData) == 97 {
		return h, &ierrors.PreBedrockBlockError{BlockNumber: h.BlockNumber}
	}
	if h.StateRoot, err = decodeHash(wb.StateRoot); err != nil {
		return h, err
	}
	if h.ReceiptsRoot, err = decodeHash(wb.ReceiptsRoot); err != nil {
		return h, err
	}
	if h.LogsBloom, err = decodeBytes(wb.LogsBloom); err != nil {
		return h, err
	}

	ext, err := decodeHeaderExtensions(traits.Family, wb)
	if err != nil {
		return h, err
	}
	h.ExtensionData = ext

	return h, nil
}

func indexReceiptsByHash(raw []json.RawMessage) (map[model.Hash]wireReceipt, error) {
	out := make(map[model.Hash]wireReceipt, len(raw))
	for _, r := range raw {
		var wr wireReceipt
		if err := json.Unmarshal(r, &wr); err != nil {
			return nil, err
		}
		h, err := decodeHash(wr.TransactionHash)
		if err != nil {
			return nil, err
		}
		out[h] = wr
	}
	return out, nil
}

// decodeTransaction merges a transaction body with its receipt. If the
// receipt is absent (after all adapter retries were exhausted upstream),
// that is surfaced as a MissingReceiptError so the block fails as a whole,
// per spec.md §4.4 ("transaction-without-receipt is never emitted").
func decodeTransaction(traits chainfamily.Traits, wtx wireTransaction, receipts map[model.Hash]wireReceipt) (model.Transaction, []model.Log, error) {
	var tx model.Transaction
	var err error

	txHash, err := decodeHash(wtx.Hash)
	if err != nil {
		return tx, nil, err
	}
	tx.TxHash = txHash

	receipt, ok := receipts[txHash]
	if !ok {
		return tx, nil, &ierrors.MissingReceiptError{TxHash: txHash.String()}
	}

	txIndex, err := decodeUint64(receipt.TransactionIndex)
	if err != nil {
		return tx, nil, err
	}
	tx.TxIndex = int(txIndex)

	if tx.From, err = decodeAddress(wtx.From); err != nil {
		return tx, nil, err
	}
	if tx.To, err = decodeAddressPtr(wtx.To); err != nil {
		return tx, nil, err
	}
	if tx.Value, err = decodeBigInt(wtx.Value); err != nil {
		return tx, nil, err
	}
	if tx.Gas, err = decodeUint64(wtx.Gas); err != nil {
		return tx, nil, err
	}
	if tx.GasPrice, err = decodeBigIntPtr(wtx.GasPrice); err != nil {
		return tx, nil, err
	}
	if tx.MaxFeePerGas, err = decodeBigIntPtr(wtx.MaxFeePerGas); err != nil {
		return tx, nil, err
	}
	if tx.MaxPriorityFeePerGas, err = decodeBigIntPtr(wtx.MaxPriorityFeePerGas); err != nil {
		return tx, nil, err
	}
	nonce, err := decodeUint64(wtx.Nonce)
	if err != nil {
		return tx, nil, err
	}
	tx.Nonce = nonce
	if tx.Input, err = decodeBytes(wtx.Input); err != nil {
		return tx, nil, err
	}

	if wtx.Type != nil {
		typ, err := decodeUint64(*wtx.Type)
		if err != nil {
			return tx, nil, err
		}
		tx.TxType = uint8(typ)
	}

	if tx.ChainIDField, err = decodeBigIntPtr(wtx.ChainID); err != nil {
		return tx, nil, err
	}

	// Decode access lists; produce an empty (non-nil) list when absent, even
	// on chains that sometimes omit the field for pre-EIP-2930 transactions.
	tx.AccessList = make([]model.AccessTuple, 0, len(wtx.AccessList))
	for _, at := range wtx.AccessList {
		addr, err := decodeAddress(at.Address)
		if err != nil {
			return tx, nil, err
		}
		keys := make([]model.Hash, 0, len(at.StorageKeys))
		for _, k := range at.StorageKeys {
			hk, err := decodeHash(k)
			if err != nil {
				return tx, nil, err
			}
			keys = append(keys, hk)
		}
		tx.AccessList = append(tx.AccessList, model.AccessTuple{Address: addr, StorageKeys: keys})
	}

	if receipt.Status != nil {
		status, err := decodeUint64(*receipt.Status)
		if err != nil {
			return tx, nil, err
		}
		tx.Status = &status
	}
	if tx.CumulativeGasUsed, err = decodeUint64(receipt.CumulativeGasUsed); err != nil {
		return tx, nil, err
	}
	gasUsed, err := decodeUint64(receipt.GasUsed)
	if err != nil {
		return tx, nil, err
	}
	if tx.EffectiveGasPrice, err = decodeBigIntPtr(receipt.EffectiveGasPrice); err != nil {
		return tx, nil, err
	}
	if tx.EffectiveGasPrice == nil {
		tx.EffectiveGasPrice = tx.GasPrice
	}
	if tx.ContractAddress, err = decodeAddressPtr(receipt.ContractAddress); err != nil {
		return tx, nil, err
	}

	ext, err := decodeReceiptExtensions(traits.Family, receipt)
	if err != nil {
		return tx, nil, err
	}
	ext["gas_used"] = gasUsed
	tx.ExtensionData = ext

	logs := make([]model.Log, 0, len(receipt.Logs))
	for _, wl := range receipt.Logs {
		l, err := decodeLog(wl, txHash, tx.TxIndex)
		if err != nil {
			return tx, nil, err
		}
		logs = append(logs, l)
	}

	return tx, logs, nil
}

// decodeLog decodes a log entry, recovering tx_index from the caller when
// the wire payload omits it (spec.md §4.4).
func decodeLog(wl wireLog, fallbackTxHash model.Hash, fallbackTxIndex int) (model.Log, error) {
	var l model.Log
	var err error

	if l.TxHash, err = decodeHash(wl.TransactionHash); err != nil {
		return l, err
	}
	if l.TxHash == (model.Hash{}) {
		l.TxHash = fallbackTxHash
	}

	if wl.TransactionIndex != nil {
		idx, err := decodeUint64(*wl.TransactionIndex)
		if err != nil {
			return l, err
		}
		l.TxIndex = int(idx)
	} else {
		l.TxIndex = fallbackTxIndex
	}

	logIdx, err := decodeUint64(wl.LogIndex)
	if err != nil {
		return l, err
	}
	l.LogIndex = int(logIdx)

	if l.Address, err = decodeAddress(wl.Address); err != nil {
		return l, err
	}

	l.Topics = make([]model.Hash, 0, len(wl.Topics))
	for _, t := range wl.Topics {
		h, err := decodeHash(t)
		if err != nil {
			return l, err
		}
		l.Topics = append(l.Topics, h)
	}

	if l.Data, err = decodeBytes(wl.Data); err != nil {
		return l, err
	}
	l.Removed = wl.Removed

	return l, nil
}

// ParseChainID extracts a numeric chain id from an eth_chainId hex string,
// exposed for callers that don't go through rpcadapter.Client.ChainID.
func ParseChainID(hexStr string) (uint64, error) {
	return decodeUint64(hexStr)
}
