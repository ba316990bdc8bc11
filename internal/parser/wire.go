package parser

import "encoding/json"

// The wire* types mirror the JSON-RPC response shapes exactly (field names
// and optionality) the way go-ethereum's own ethclient package keeps private
// rpcBlock/rpcTransaction structs for this purpose — kept here instead of
// imported because ethclient's are unexported, and DanDo385-solidity-edu's
// geth-* tutorials show the idiom of hand-decoding raw JSON-RPC objects for
// exactly this reason (see geth-13-trace's CallContext(&result, ...) use).

type wireBlock struct {
	Number           string            `json:"number"`
	Hash             string            `json:"hash"`
	ParentHash       string            `json:"parentHash"`
	Timestamp        string            `json:"timestamp"`
	Miner            string            `json:"miner"`
	GasUsed          string            `json:"gasUsed"`
	GasLimit         string            `json:"gasLimit"`
	BaseFeePerGas    *string           `json:"baseFeePerGas"`
	Size             string            `json:"size"`
	ExtraData        string            `json:"extraData"`
	StateRoot        string            `json:"stateRoot"`
	ReceiptsRoot     string            `json:"receiptsRoot"`
	LogsBloom        string            `json:"logsBloom"`
	Transactions     []wireTransaction `json:"transactions"`
	L1BlockNumber    *string           `json:"l1BlockNumber"`    // Arbitrum
	SendCount        *string           `json:"sendCount"`        // Arbitrum
	SendRoot         *string           `json:"sendRoot"`         // Arbitrum
	L1BatchNumber    *string           `json:"l1BatchNumber"`    // ZKsync-Era
	L1BatchTimestamp *string           `json:"l1BatchTimestamp"` // ZKsync-Era
	L2ToL1Logs       []json.RawMessage `json:"l2ToL1Logs"`       // ZKsync-Era
}

type wireAccessTuple struct {
	Address     string   `json:"address"`
	StorageKeys []string `json:"storageKeys"`
}

type wireTransaction struct {
	Hash                 string             `json:"hash"`
	Nonce                string             `json:"nonce"`
	From                 string             `json:"from"`
	To                   *string            `json:"to"`
	Value                string             `json:"value"`
	Gas                  string             `json:"gas"`
	GasPrice             *string            `json:"gasPrice"`
	MaxFeePerGas         *string            `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *string            `json:"maxPriorityFeePerGas"`
	Input                string             `json:"input"`
	Type                 *string            `json:"type"`
	ChainID              *string            `json:"chainId"`
	AccessList           []wireAccessTuple  `json:"accessList"`
	TransactionIndex     *string            `json:"transactionIndex"`
}

type wireReceipt struct {
	TransactionHash   string     `json:"transactionHash"`
	TransactionIndex  string     `json:"transactionIndex"`
	Status            *string    `json:"status"`
	CumulativeGasUsed string     `json:"cumulativeGasUsed"`
	GasUsed           string     `json:"gasUsed"`
	EffectiveGasPrice *string    `json:"effectiveGasPrice"`
	ContractAddress   *string    `json:"contractAddress"`
	Logs              []wireLog  `json:"logs"`
	L1Fee             *string    `json:"l1Fee"`             // Optimism
	L1FeeScalar       *string    `json:"l1FeeScalar"`       // Optimism
	L1GasPrice        *string    `json:"l1GasPrice"`        // Optimism
	L1GasUsed         *string    `json:"l1GasUsed"`         // Optimism
	GasUsedForL1      *string    `json:"gasUsedForL1"`      // Arbitrum
	L1BatchTxIndex    *string    `json:"l1BatchTxIndex"`    // ZKsync-Era
	L1BatchNumber     *string    `json:"l1BatchNumber"`     // ZKsync-Era
}

type wireLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex *string  `json:"transactionIndex"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

// wireCallFrame mirrors the callTracer output tree: a frame with nested
// calls, decoded recursively by the DFS flattener in traces.go.
type wireCallFrame struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	To      *string         `json:"to"`
	Value   *string         `json:"value"`
	Gas     string          `json:"gas"`
	GasUsed string          `json:"gasUsed"`
	Input   string          `json:"input"`
	Output  string          `json:"output"`
	Error   string          `json:"error"`
	Calls   []wireCallFrame `json:"calls"`
}

// wireTxTrace wraps one transaction's call tree, as returned in the array
// form of debug_traceBlockByNumber.
type wireTxTrace struct {
	TxHash string          `json:"txHash"`
	Result wireCallFrame   `json:"result"`
	Error  string          `json:"error"`
}

func decodeTraceArray(raw json.RawMessage) ([]wireTxTrace, error) {
	var out []wireTxTrace
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
