// Package model holds the internal representation of chain data, from the
// parser's raw-to-typed output through the transformer's warehouse row sets.
package model

import (
	"math/big"
	"time"
)

// Hash is a 32-byte hash rendered as lowercase hex at the warehouse boundary.
type Hash [32]byte

// Address is a 20-byte account address rendered as lowercase hex.
type Address [20]byte

// AccessTuple mirrors an EIP-2930 access-list entry.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Header carries the subset of block-header fields every family shares.
type Header struct {
	ChainID       uint64
	BlockNumber   uint64
	BlockHash     Hash
	ParentHash    Hash
	BlockTime     time.Time
	Miner         Address
	GasUsed       uint64
	GasLimit      uint64
	BaseFee       *big.Int // nil when pre-EIP-1559
	Size          uint64
	TxCount       int
	ExtraData     []byte
	StateRoot     Hash
	ReceiptsRoot  Hash
	LogsBloom     []byte
	ExtensionData map[string]any
}

// Transaction merges a transaction body with its receipt.
type Transaction struct {
	TxHash               Hash
	TxIndex              int
	From                 Address
	To                   *Address
	Value                *big.Int
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	Input                []byte
	TxType               uint8
	ChainIDField         *big.Int
	AccessList           []AccessTuple
	Status               *uint64 // nil only while unresolved; Transformer requires it resolved
	CumulativeGasUsed    uint64
	EffectiveGasPrice    *big.Int
	ContractAddress      *Address
	ExtensionData         map[string]any
}

// Log is a single EVM log entry, topics preserved in emitted order.
type Log struct {
	TxHash   Hash
	TxIndex  int
	LogIndex int
	Address  Address
	Topics   []Hash
	Data     []byte
	Removed  bool
}

// TraceFrame is one flattened frame of a call tree, addressed by its DFS path.
type TraceFrame struct {
	TxHash       Hash
	TxIndex      int
	TraceAddress []int
	Subtraces    int
	Type         string
	From         Address
	To           *Address
	Value        *big.Int
	Gas          uint64
	GasUsed      uint64
	Input        []byte
	Output       []byte
	Error        string
}

// ParsedBlock is the pure, deterministic output of the Parser: raw RPC JSON
// decoded into typed Go values, before block-time/tx-index enrichment.
type ParsedBlock struct {
	Header       Header
	Transactions []Transaction // unenriched: Status may be nil if receipts pending join
	Logs         []Log
	Traces       []TraceFrame
	TracesOmitted bool // set when the adapter hit -32008 and skipped tracing
}

// BlockRow, TransactionRow, LogRow and TraceRow are the four warehouse row
// shapes the Transformer emits. They carry block-time and date enrichment so
// each row is self-sufficient for partitioning and dedup.
type BlockRow struct {
	ChainID      uint64
	BlockNumber  uint64
	BlockHash    Hash
	ParentHash   Hash
	BlockTime    time.Time
	BlockDate    string // YYYY-MM-DD, utc_date(BlockTime)
	Miner        Address
	GasUsed      uint64
	GasLimit     uint64
	BaseFee      *big.Int
	Size         uint64
	TxCount      int
	ExtraData    []byte
	StateRoot    Hash
	ReceiptsRoot Hash
	LogsBloom    []byte
	Extensions   map[string]any
}

// PrimaryKey implements the (chain_id, block_number) dedup key.
func (b BlockRow) PrimaryKey() string {
	return pkString(b.ChainID, b.BlockNumber)
}

type TransactionRow struct {
	ChainID              uint64
	BlockNumber          uint64
	BlockTime            time.Time
	BlockDate            string
	TxHash               Hash
	TxIndex              int
	From                 Address
	To                   *Address
	Value                *big.Int
	Gas                  uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	Input                []byte
	TxType               uint8
	ChainIDField         *big.Int
	AccessList           []AccessTuple
	Status               uint64
	CumulativeGasUsed    uint64
	EffectiveGasPrice    *big.Int
	ContractAddress      *Address
	Extensions           map[string]any
}

// PrimaryKey implements the (chain_id, tx_hash) dedup key.
func (t TransactionRow) PrimaryKey() string {
	return pkString(t.ChainID, t.TxHash)
}

type LogRow struct {
	ChainID     uint64
	BlockNumber uint64
	BlockTime   time.Time
	BlockDate   string
	TxHash      Hash
	TxIndex     int
	LogIndex    int
	Address     Address
	Topics      [4]*Hash // padded to four slots at the warehouse boundary only
	Data        []byte
	Removed     bool
}

// PrimaryKey implements the (chain_id, tx_hash, log_index) dedup key.
func (l LogRow) PrimaryKey() string {
	return pkString(l.ChainID, l.TxHash, l.LogIndex)
}

type TraceRow struct {
	ChainID      uint64
	BlockNumber  uint64
	BlockTime    time.Time
	BlockDate    string
	TxHash       Hash
	TxIndex      int
	TraceAddress []int
	Subtraces    int
	Type         string
	From         Address
	To           *Address
	Value        *big.Int
	Gas          uint64
	GasUsed      uint64
	Input        []byte
	Output       []byte
	Error        string
	Omitted      bool
}

// PrimaryKey implements the (chain_id, tx_hash, trace_address) dedup key.
func (t TraceRow) PrimaryKey() string {
	return pkString(t.ChainID, t.TxHash, traceAddressString(t.TraceAddress))
}

// RowSet is the four output row sets the Transformer builds for one block.
type RowSet struct {
	BlockNumber  uint64
	Blocks       []BlockRow
	Transactions []TransactionRow
	Logs         []LogRow
	Traces       []TraceRow

	// TracesOmitted mirrors ParsedBlock.TracesOmitted: true when the traces
	// dataset is incomplete for this block (oversized trace response), which
	// a Sink must treat as "not durable" even when Traces happens to be
	// empty already for an unrelated reason (a block with zero internal calls).
	TracesOmitted bool
}
