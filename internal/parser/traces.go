package parser

import "github.com/chainlens/evm-indexer/internal/model"

// decodeTraces flattens the callTracer call-tree for every transaction in a
// block into TraceFrame rows, each addressed by a left-to-right
// depth-first trace_address path (root call is []int{}), per spec.md §3/§4.3.
func decodeTraces(raw []byte) ([]model.TraceFrame, error) {
	txTraces, err := decodeTraceArray(raw)
	if err != nil {
		return nil, err
	}

	var out []model.TraceFrame
	for _, tt := range txTraces {
		txHash, err := decodeHash(tt.TxHash)
		if err != nil {
			return nil, err
		}
		frames, err := flattenCallFrame(txHash, tt.Result, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
	}
	return out, nil
}

// flattenCallFrame walks one call tree depth-first, assigning each frame its
// trace_address path and computing tx_index lazily by the caller (the
// Transformer resolves tx_index from tx_hash via its block map — see
// internal/transform). Every frame here carries tx_index 0 as a
// placeholder; transform.go overwrites it from the authoritative map.
func flattenCallFrame(txHash model.Hash, frame wireCallFrame, path []int) ([]model.TraceFrame, error) {
	f, err := decodeCallFrame(txHash, frame, path)
	if err != nil {
		return nil, err
	}
	f.Subtraces = len(frame.Calls)

	out := []model.TraceFrame{f}
	for i, child := range frame.Calls {
		childPath := append(append([]int{}, path...), i)
		childFrames, err := flattenCallFrame(txHash, child, childPath)
		if err != nil {
			return nil, err
		}
		out = append(out, childFrames...)
	}
	return out, nil
}

func decodeCallFrame(txHash model.Hash, frame wireCallFrame, path []int) (model.TraceFrame, error) {
	var f model.TraceFrame
	var err error

	f.TxHash = txHash
	f.TraceAddress = append([]int{}, path...)
	f.Type = frame.Type

	if f.From, err = decodeAddress(frame.From); err != nil {
		return f, err
	}
	if f.To, err = decodeAddressPtr(frame.To); err != nil {
		return f, err
	}
	if frame.Value != nil {
		if f.Value, err = decodeBigInt(*frame.Value); err != nil {
			return f, err
		}
	}
	if f.Gas, err = decodeUint64(frame.Gas); err != nil {
		return f, err
	}
	if f.GasUsed, err = decodeUint64(frame.GasUsed); err != nil {
		return f, err
	}
	if f.Input, err = decodeBytes(frame.Input); err != nil {
		return f, err
	}
	if f.Output, err = decodeBytes(frame.Output); err != nil {
		return f, err
	}
	f.Error = frame.Error

	return f, nil
}
