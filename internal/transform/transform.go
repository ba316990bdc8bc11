// Package transform turns a parser.Parse result into the four warehouse row
// sets (blocks, transactions, logs, traces), assigning primary keys and
// block-time/date enrichment, and applying the cross-record rules that
// depend on the whole block being assembled at once: the tx_index recovery
// for trace frames, and the orphan-trace-drop-with-warn rule for frames
// whose tx_hash doesn't match any transaction in the block.
package transform

import (
	"github.com/chainlens/evm-indexer/internal/ierrors"
	"github.com/chainlens/evm-indexer/internal/model"
)

// Warner receives a message for conditions that are logged, not fatal: a
// dropped orphan trace, a zero-length trace set believed non-empty. Callers
// typically plug in internal/logx; tests can use a slice-collecting stub.
type Warner interface {
	Warnf(format string, args ...any)
}

type noopWarner struct{}

func (noopWarner) Warnf(string, ...any) {}

// Transform builds a RowSet for one block. It returns a BlockFail-classified
// error if any invariant that must hold across the whole block is violated,
// per spec.md §4.4 ("a block either commits in full or not at all").
func Transform(pb *model.ParsedBlock, warner Warner) (*model.RowSet, error) {
	if warner == nil {
		warner = noopWarner{}
	}

	blockDate := pb.Header.BlockTime.Format("2006-01-02")

	blockRow := model.BlockRow{
		ChainID:      pb.Header.ChainID,
		BlockNumber:  pb.Header.BlockNumber,
		BlockHash:    pb.Header.BlockHash,
		ParentHash:   pb.Header.ParentHash,
		BlockTime:    pb.Header.BlockTime,
		BlockDate:    blockDate,
		Miner:        pb.Header.Miner,
		GasUsed:      pb.Header.GasUsed,
		GasLimit:     pb.Header.GasLimit,
		BaseFee:      pb.Header.BaseFee,
		Size:         pb.Header.Size,
		TxCount:      pb.Header.TxCount,
		ExtraData:    pb.Header.ExtraData,
		StateRoot:    pb.Header.StateRoot,
		ReceiptsRoot: pb.Header.ReceiptsRoot,
		LogsBloom:    pb.Header.LogsBloom,
		Extensions:   pb.Header.ExtensionData,
	}

	// txIndexByHash backs the trace-frame enrichment
	// pass below, since the Parser only resolves tx_index for the
	// transaction/log layer, not for trace frames (which come from a
	// separate RPC call addressed by tx_hash).
	txIndexByHash := make(map[model.Hash]int, len(pb.Transactions))

	txRows := make([]model.TransactionRow, 0, len(pb.Transactions))
	for _, tx := range pb.Transactions {
		if tx.Status == nil {
			return nil, &ierrors.MissingReceiptError{TxHash: tx.TxHash.String()}
		}
		txIndexByHash[tx.TxHash] = tx.TxIndex

		txRows = append(txRows, model.TransactionRow{
			ChainID:              pb.Header.ChainID,
			BlockNumber:          pb.Header.BlockNumber,
			BlockTime:            pb.Header.BlockTime,
			BlockDate:            blockDate,
			TxHash:               tx.TxHash,
			TxIndex:              tx.TxIndex,
			From:                 tx.From,
			To:                   tx.To,
			Value:                tx.Value,
			Gas:                  tx.Gas,
			GasPrice:             tx.GasPrice,
			MaxFeePerGas:         tx.MaxFeePerGas,
			MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
			Nonce:                tx.Nonce,
			Input:                tx.Input,
			TxType:               tx.TxType,
			ChainIDField:         tx.ChainIDField,
			AccessList:           tx.AccessList,
			Status:               *tx.Status,
			CumulativeGasUsed:    tx.CumulativeGasUsed,
			EffectiveGasPrice:    tx.EffectiveGasPrice,
			ContractAddress:      tx.ContractAddress,
			Extensions:           tx.ExtensionData,
		})
	}

	logRows := make([]model.LogRow, 0, len(pb.Logs))
	for _, l := range pb.Logs {
		logRows = append(logRows, model.LogRow{
			ChainID:     pb.Header.ChainID,
			BlockNumber: pb.Header.BlockNumber,
			BlockTime:   pb.Header.BlockTime,
			BlockDate:   blockDate,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			LogIndex:    l.LogIndex,
			Address:     l.Address,
			Topics:      padTopics(l.Topics),
			Data:        l.Data,
			Removed:     l.Removed,
		})
	}

	traceRows := make([]model.TraceRow, 0, len(pb.Traces))
	for _, tf := range pb.Traces {
		txIndex, ok := txIndexByHash[tf.TxHash]
		if !ok {
			// A trace frame referencing a tx_hash absent from this block's
			// transaction list is a wire-shape inconsistency, not a data-loss
			// risk for the rest of the block: drop it and warn rather than
			// failing the block, per spec.md §4.4's orphan-trace rule.
			warner.Warnf("transform: dropping orphan trace frame for tx %s at block %d: no matching transaction", tf.TxHash, pb.Header.BlockNumber)
			continue
		}

		traceRows = append(traceRows, model.TraceRow{
			ChainID:      pb.Header.ChainID,
			BlockNumber:  pb.Header.BlockNumber,
			BlockTime:    pb.Header.BlockTime,
			BlockDate:    blockDate,
			TxHash:       tf.TxHash,
			TxIndex:      txIndex,
			TraceAddress: tf.TraceAddress,
			Subtraces:    tf.Subtraces,
			Type:         tf.Type,
			From:         tf.From,
			To:           tf.To,
			Value:        tf.Value,
			Gas:          tf.Gas,
			GasUsed:      tf.GasUsed,
			Input:        tf.Input,
			Output:       tf.Output,
			Error:        tf.Error,
			Omitted:      pb.TracesOmitted,
		})
	}

	if pb.TracesOmitted {
		warner.Warnf("transform: block %d committed without trace data (oversized trace response)", pb.Header.BlockNumber)
	}

	return &model.RowSet{
		BlockNumber:   pb.Header.BlockNumber,
		Blocks:        []model.BlockRow{blockRow},
		Transactions:  txRows,
		Logs:          logRows,
		Traces:        traceRows,
		TracesOmitted: pb.TracesOmitted,
	}, nil
}

// padTopics fits a variable-length topic list into LogRow's fixed four-slot
// layout, leaving unused slots nil — the warehouse schema reserves four
// columns (topic0..topic3) since no EVM log can emit more.
func padTopics(topics []model.Hash) [4]*model.Hash {
	var out [4]*model.Hash
	for i := range topics {
		if i >= 4 {
			break
		}
		h := topics[i]
		out[i] = &h
	}
	return out
}
