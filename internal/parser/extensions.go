package parser

import "github.com/chainlens/evm-indexer/internal/chainfamily"

// decodeHeaderExtensions pulls the family-specific header fields named in
// chainfamily.Traits.ExtensionColumns into a loose map, so BlockRow never
// carries a union of every family's columns (spec.md §3, Arbitrum/ZKsync-Era
// notes).
func decodeHeaderExtensions(family chainfamily.Family, wb wireBlock) (map[string]any, error) {
	ext := map[string]any{}

	switch family {
	case chainfamily.Arbitrum:
		if wb.L1BlockNumber != nil {
			v, err := decodeUint64(*wb.L1BlockNumber)
			if err != nil {
				return nil, err
			}
			ext["l1_block_number"] = v
		}
		if wb.SendCount != nil {
			v, err := decodeUint64(*wb.SendCount)
			if err != nil {
				return nil, err
			}
			ext["send_count"] = v
		}
		if wb.SendRoot != nil {
			ext["send_root"] = *wb.SendRoot
		}
	case chainfamily.ZkSyncEra:
		if wb.L1BatchNumber != nil {
			v, err := decodeUint64(*wb.L1BatchNumber)
			if err != nil {
				return nil, err
			}
			ext["l1_batch_number"] = v
		}
		if wb.L1BatchTimestamp != nil {
			v, err := decodeUint64(*wb.L1BatchTimestamp)
			if err != nil {
				return nil, err
			}
			ext["l1_batch_timestamp"] = v
		}
		if len(wb.L2ToL1Logs) > 0 {
			ext["l2_to_l1_logs"] = wb.L2ToL1Logs
		}
	}

	return ext, nil
}

// decodeReceiptExtensions mirrors decodeHeaderExtensions for per-receipt
// fields (Optimism's L1 fee accounting, Arbitrum's L1 gas split, ZKsync-Era's
// batch linkage).
func decodeReceiptExtensions(family chainfamily.Family, receipt wireReceipt) (map[string]any, error) {
	ext := map[string]any{}

	switch family {
	case chainfamily.Optimism:
		if receipt.L1Fee != nil {
			v, err := decodeBigInt(*receipt.L1Fee)
			if err != nil {
				return nil, err
			}
			ext["l1_fee"] = v
		}
		if receipt.L1FeeScalar != nil {
			ext["l1_fee_scalar"] = *receipt.L1FeeScalar
		}
		if receipt.L1GasPrice != nil {
			v, err := decodeBigInt(*receipt.L1GasPrice)
			if err != nil {
				return nil, err
			}
			ext["l1_gas_price"] = v
		}
		if receipt.L1GasUsed != nil {
			v, err := decodeUint64(*receipt.L1GasUsed)
			if err != nil {
				return nil, err
			}
			ext["l1_gas_used"] = v
		}
	case chainfamily.Arbitrum:
		if receipt.GasUsedForL1 != nil {
			v, err := decodeUint64(*receipt.GasUsedForL1)
			if err != nil {
				return nil, err
			}
			ext["gas_used_for_l1"] = v
		}
	case chainfamily.ZkSyncEra:
		if receipt.L1BatchTxIndex != nil {
			v, err := decodeUint64(*receipt.L1BatchTxIndex)
			if err != nil {
				return nil, err
			}
			ext["l1_batch_tx_index"] = v
		}
		if receipt.L1BatchNumber != nil {
			v, err := decodeUint64(*receipt.L1BatchNumber)
			if err != nil {
				return nil, err
			}
			ext["l1_batch_number"] = v
		}
	}

	return ext, nil
}
