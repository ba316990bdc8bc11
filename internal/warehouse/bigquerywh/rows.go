package bigquerywh

import (
	"encoding/json"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"

	"github.com/chainlens/evm-indexer/internal/model"
	"github.com/chainlens/evm-indexer/internal/warehouse"
)

// savedRow adapts one warehouse row to bigquery.ValueSaver, using its
// PrimaryKey() as the InsertID for BigQuery's best-effort streaming dedup.
type savedRow struct {
	values    map[string]bigquery.Value
	insertID  string
}

func (r savedRow) Save() (map[string]bigquery.Value, string, error) {
	return r.values, r.insertID, nil
}

// BlocksSchema is the blocks dataset's table schema.
func BlocksSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "chain_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_number", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "parent_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "block_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "block_date", Type: bigquery.DateFieldType, Required: true},
		{Name: "miner", Type: bigquery.StringFieldType, Required: true},
		{Name: "gas_used", Type: bigquery.IntegerFieldType},
		{Name: "gas_limit", Type: bigquery.IntegerFieldType},
		{Name: "base_fee", Type: bigquery.NumericFieldType},
		{Name: "size", Type: bigquery.IntegerFieldType},
		{Name: "tx_count", Type: bigquery.IntegerFieldType},
		{Name: "extra_data", Type: bigquery.BytesFieldType},
		{Name: "state_root", Type: bigquery.StringFieldType},
		{Name: "receipts_root", Type: bigquery.StringFieldType},
		{Name: "logs_bloom", Type: bigquery.BytesFieldType},
		{Name: "extensions", Type: bigquery.JSONFieldType},
	}
}

// ToBlockRows converts a commit batch (always a single block's rows) into
// bigquery.ValueSaver entries, for use as a bigquerywh.Sink's toRows func.
func ToBlockRows(rowsAny any) ([]bigquery.ValueSaver, error) {
	rows, ok := rowsAny.([]model.BlockRow)
	if !ok {
		return nil, fmt.Errorf("bigquerywh: expected []model.BlockRow, got %T", rowsAny)
	}
	out := make([]bigquery.ValueSaver, 0, len(rows))
	for _, r := range rows {
		out = append(out, savedRow{
			insertID: r.PrimaryKey(),
			values: map[string]bigquery.Value{
				"chain_id":      r.ChainID,
				"block_number":  r.BlockNumber,
				"block_hash":    r.BlockHash.String(),
				"parent_hash":   r.ParentHash.String(),
				"block_time":    r.BlockTime,
				"block_date":    r.BlockDate,
				"miner":         r.Miner.String(),
				"gas_used":      r.GasUsed,
				"gas_limit":     r.GasLimit,
				"base_fee":      bigIntValue(r.BaseFee),
				"size":          r.Size,
				"tx_count":      r.TxCount,
				"extra_data":    r.ExtraData,
				"state_root":    r.StateRoot.String(),
				"receipts_root": r.ReceiptsRoot.String(),
				"logs_bloom":    r.LogsBloom,
				"extensions":    jsonValue(r.Extensions),
			},
		})
	}
	return out, nil
}

// TransactionsSchema is the transactions dataset's table schema.
func TransactionsSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "chain_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_number", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "block_date", Type: bigquery.DateFieldType, Required: true},
		{Name: "tx_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "tx_index", Type: bigquery.IntegerFieldType},
		{Name: "from_address", Type: bigquery.StringFieldType},
		{Name: "to_address", Type: bigquery.StringFieldType},
		{Name: "value", Type: bigquery.NumericFieldType},
		{Name: "gas", Type: bigquery.IntegerFieldType},
		{Name: "gas_price", Type: bigquery.NumericFieldType},
		{Name: "max_fee_per_gas", Type: bigquery.NumericFieldType},
		{Name: "max_priority_fee_per_gas", Type: bigquery.NumericFieldType},
		{Name: "nonce", Type: bigquery.IntegerFieldType},
		{Name: "input", Type: bigquery.BytesFieldType},
		{Name: "tx_type", Type: bigquery.IntegerFieldType},
		{Name: "chain_id_field", Type: bigquery.NumericFieldType},
		{Name: "access_list", Type: bigquery.JSONFieldType},
		{Name: "status", Type: bigquery.IntegerFieldType},
		{Name: "cumulative_gas_used", Type: bigquery.IntegerFieldType},
		{Name: "effective_gas_price", Type: bigquery.NumericFieldType},
		{Name: "contract_address", Type: bigquery.StringFieldType},
		{Name: "extensions", Type: bigquery.JSONFieldType},
	}
}

func ToTransactionRows(rowsAny any) ([]bigquery.ValueSaver, error) {
	rows, ok := rowsAny.([]model.TransactionRow)
	if !ok {
		return nil, fmt.Errorf("bigquerywh: expected []model.TransactionRow, got %T", rowsAny)
	}
	out := make([]bigquery.ValueSaver, 0, len(rows))
	for _, r := range rows {
		var toAddr, contractAddr bigquery.Value
		if r.To != nil {
			toAddr = r.To.String()
		}
		if r.ContractAddress != nil {
			contractAddr = r.ContractAddress.String()
		}
		out = append(out, savedRow{
			insertID: r.PrimaryKey(),
			values: map[string]bigquery.Value{
				"chain_id":                 r.ChainID,
				"block_number":             r.BlockNumber,
				"block_time":               r.BlockTime,
				"block_date":               r.BlockDate,
				"tx_hash":                  r.TxHash.String(),
				"tx_index":                 r.TxIndex,
				"from_address":             r.From.String(),
				"to_address":               toAddr,
				"value":                    bigIntValue(r.Value),
				"gas":                      r.Gas,
				"gas_price":                bigIntValue(r.GasPrice),
				"max_fee_per_gas":          bigIntValue(r.MaxFeePerGas),
				"max_priority_fee_per_gas": bigIntValue(r.MaxPriorityFeePerGas),
				"nonce":                    r.Nonce,
				"input":                    r.Input,
				"tx_type":                  r.TxType,
				"chain_id_field":           bigIntValue(r.ChainIDField),
				"access_list":              jsonValue(r.AccessList),
				"status":                   r.Status,
				"cumulative_gas_used":      r.CumulativeGasUsed,
				"effective_gas_price":      bigIntValue(r.EffectiveGasPrice),
				"contract_address":         contractAddr,
				"extensions":               jsonValue(r.Extensions),
			},
		})
	}
	return out, nil
}

// LogsSchema is the logs dataset's table schema.
func LogsSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "chain_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_number", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "block_date", Type: bigquery.DateFieldType, Required: true},
		{Name: "tx_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "tx_index", Type: bigquery.IntegerFieldType},
		{Name: "log_index", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "address", Type: bigquery.StringFieldType},
		{Name: "topic0", Type: bigquery.StringFieldType},
		{Name: "topic1", Type: bigquery.StringFieldType},
		{Name: "topic2", Type: bigquery.StringFieldType},
		{Name: "topic3", Type: bigquery.StringFieldType},
		{Name: "data", Type: bigquery.BytesFieldType},
		{Name: "removed", Type: bigquery.BooleanFieldType},
	}
}

func ToLogRows(rowsAny any) ([]bigquery.ValueSaver, error) {
	rows, ok := rowsAny.([]model.LogRow)
	if !ok {
		return nil, fmt.Errorf("bigquerywh: expected []model.LogRow, got %T", rowsAny)
	}
	out := make([]bigquery.ValueSaver, 0, len(rows))
	for _, r := range rows {
		out = append(out, savedRow{
			insertID: r.PrimaryKey(),
			values: map[string]bigquery.Value{
				"chain_id":     r.ChainID,
				"block_number": r.BlockNumber,
				"block_time":   r.BlockTime,
				"block_date":   r.BlockDate,
				"tx_hash":      r.TxHash.String(),
				"tx_index":     r.TxIndex,
				"log_index":    r.LogIndex,
				"address":      r.Address.String(),
				"topic0":       topicValue(r.Topics[0]),
				"topic1":       topicValue(r.Topics[1]),
				"topic2":       topicValue(r.Topics[2]),
				"topic3":       topicValue(r.Topics[3]),
				"data":         r.Data,
				"removed":      r.Removed,
			},
		})
	}
	return out, nil
}

// TracesSchema is the traces dataset's table schema.
func TracesSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "chain_id", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_number", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "block_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "block_date", Type: bigquery.DateFieldType, Required: true},
		{Name: "tx_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "tx_index", Type: bigquery.IntegerFieldType},
		{Name: "trace_address", Type: bigquery.StringFieldType, Required: true},
		{Name: "subtraces", Type: bigquery.IntegerFieldType},
		{Name: "type", Type: bigquery.StringFieldType},
		{Name: "from_address", Type: bigquery.StringFieldType},
		{Name: "to_address", Type: bigquery.StringFieldType},
		{Name: "value", Type: bigquery.NumericFieldType},
		{Name: "gas", Type: bigquery.IntegerFieldType},
		{Name: "gas_used", Type: bigquery.IntegerFieldType},
		{Name: "input", Type: bigquery.BytesFieldType},
		{Name: "output", Type: bigquery.BytesFieldType},
		{Name: "error", Type: bigquery.StringFieldType},
		{Name: "omitted", Type: bigquery.BooleanFieldType},
	}
}

// ToTraceRows expects a warehouse.TracesBatch (not a bare []model.TraceRow),
// since NewTraces' isOmitted also reads that batch's Omitted flag from the
// same rowsAny value passed to Sink.Append.
func ToTraceRows(rowsAny any) ([]bigquery.ValueSaver, error) {
	batch, ok := rowsAny.(warehouse.TracesBatch)
	if !ok {
		return nil, fmt.Errorf("bigquerywh: expected warehouse.TracesBatch, got %T", rowsAny)
	}
	out := make([]bigquery.ValueSaver, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		var toAddr bigquery.Value
		if r.To != nil {
			toAddr = r.To.String()
		}
		out = append(out, savedRow{
			insertID: r.PrimaryKey(),
			values: map[string]bigquery.Value{
				"chain_id":      r.ChainID,
				"block_number":  r.BlockNumber,
				"block_time":    r.BlockTime,
				"block_date":    r.BlockDate,
				"tx_hash":       r.TxHash.String(),
				"tx_index":      r.TxIndex,
				"trace_address": model.TraceAddressString(r.TraceAddress),
				"subtraces":     r.Subtraces,
				"type":          r.Type,
				"from_address":  r.From.String(),
				"to_address":    toAddr,
				"value":         bigIntValue(r.Value),
				"gas":           r.Gas,
				"gas_used":      r.GasUsed,
				"input":         r.Input,
				"output":        r.Output,
				"error":         r.Error,
				"omitted":       r.Omitted,
			},
		})
	}
	return out, nil
}

func bigIntValue(v *big.Int) bigquery.Value {
	if v == nil {
		return nil
	}
	return bigquery.Value(v.String())
}

func topicValue(h *model.Hash) bigquery.Value {
	if h == nil {
		return nil
	}
	return bigquery.Value(h.String())
}

// jsonValue marshals an access list or extension map to a JSON string for a
// JSONFieldType column, returning nil for the BigQuery column when there is
// nothing to store.
func jsonValue(v any) bigquery.Value {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	case []model.AccessTuple:
		if len(t) == 0 {
			return nil
		}
	case nil:
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return bigquery.Value(string(b))
}
