// Package sqlitewh backs warehouse.Sink with modernc.org/sqlite, the
// pure-Go driver DanDo385-solidity-edu's geth-17-indexer example registers
// via database/sql for exactly this "small local warehouse" role. It is the
// test/dev counterpart to internal/warehouse/bigquerywh, and what the
// restart/idempotence tests in this repo commit against.
package sqlitewh

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chainlens/evm-indexer/internal/model"
	"github.com/chainlens/evm-indexer/internal/warehouse"
)

// Open opens (creating if absent) a sqlite database file for warehouse use.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// base holds what every dataset sink needs: a handle, its table name, and
// the marker table tracking which block numbers it has committed, used to
// answer MaxContiguousBlock without scanning the (possibly large) data rows.
type base struct {
	db        *sql.DB
	table     string
	markerTbl string
}

func newBase(db *sql.DB, table string) base {
	return base{db: db, table: table, markerTbl: table + "_committed_blocks"}
}

func (b base) bootstrapMarker(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (block_number INTEGER PRIMARY KEY)`, b.markerTbl))
	return err
}

func (b base) markBlock(ctx context.Context, tx *sql.Tx, blockNumber uint64) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (block_number) VALUES (?)`, b.markerTbl),
		blockNumber)
	return err
}

// maxContiguousBlock scans the marker table for the highest N such that
// every block number from the lowest marked block up to N has a row. Fine at
// sqlite's intended test/dev scale; a production-sized dataset uses
// bigquerywh instead, whose watermark is a SELECT MAX(block_number) query,
// not a marker-table scan.
func (b base) maxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	rows, err := b.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT block_number FROM %s ORDER BY block_number ASC`, b.markerTbl))
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	var (
		expected uint64
		have     bool
		max      uint64
	)
	for rows.Next() {
		var n uint64
		if err := rows.Scan(&n); err != nil {
			return 0, false, err
		}
		if !have {
			expected = n
			have = true
		}
		if n != expected {
			break
		}
		max = n
		expected++
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	return max, have, nil
}

// BlocksSink persists model.BlockRow.
type BlocksSink struct{ base }

func NewBlocksSink(db *sql.DB, table string) *BlocksSink {
	return &BlocksSink{newBase(db, table)}
}

func (s *BlocksSink) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chain_id INTEGER, block_number INTEGER, block_hash TEXT, parent_hash TEXT,
		block_time INTEGER, block_date TEXT, miner TEXT, gas_used INTEGER, gas_limit INTEGER,
		base_fee TEXT, size INTEGER, tx_count INTEGER, extra_data BLOB, state_root TEXT,
		receipts_root TEXT, logs_bloom BLOB, extensions TEXT,
		PRIMARY KEY (chain_id, block_number)
	)`, s.table)); err != nil {
		return err
	}
	return s.bootstrapMarker(ctx)
}

func (s *BlocksSink) Append(ctx context.Context, blockNumber uint64, rowsAny any) error {
	rows, ok := rowsAny.([]model.BlockRow)
	if !ok {
		return fmt.Errorf("sqlitewh.BlocksSink.Append: unexpected row type %T", rowsAny)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(chain_id, block_number, block_hash, parent_hash, block_time, block_date, miner,
		 gas_used, gas_limit, base_fee, size, tx_count, extra_data, state_root,
		 receipts_root, logs_bloom, extensions)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ChainID, r.BlockNumber, r.BlockHash.String(), r.ParentHash.String(),
			r.BlockTime.Unix(), r.BlockDate, r.Miner.String(), r.GasUsed, r.GasLimit,
			bigIntString(r.BaseFee), r.Size, r.TxCount, r.ExtraData, r.StateRoot.String(),
			r.ReceiptsRoot.String(), r.LogsBloom, extensionsJSON(r.Extensions)); err != nil {
			return err
		}
	}
	if err := s.markBlock(ctx, tx, blockNumber); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *BlocksSink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	return s.maxContiguousBlock(ctx)
}

// TransactionsSink persists model.TransactionRow.
type TransactionsSink struct{ base }

func NewTransactionsSink(db *sql.DB, table string) *TransactionsSink {
	return &TransactionsSink{newBase(db, table)}
}

func (s *TransactionsSink) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chain_id INTEGER, block_number INTEGER, block_time INTEGER, block_date TEXT,
		tx_hash TEXT, tx_index INTEGER, from_address TEXT, to_address TEXT, value TEXT,
		gas INTEGER, gas_price TEXT, max_fee_per_gas TEXT, max_priority_fee_per_gas TEXT,
		nonce INTEGER, input BLOB, tx_type INTEGER, chain_id_field TEXT, access_list TEXT,
		status INTEGER, cumulative_gas_used INTEGER, effective_gas_price TEXT,
		contract_address TEXT, extensions TEXT,
		PRIMARY KEY (chain_id, tx_hash)
	)`, s.table)); err != nil {
		return err
	}
	return s.bootstrapMarker(ctx)
}

func (s *TransactionsSink) Append(ctx context.Context, blockNumber uint64, rowsAny any) error {
	rows, ok := rowsAny.([]model.TransactionRow)
	if !ok {
		return fmt.Errorf("sqlitewh.TransactionsSink.Append: unexpected row type %T", rowsAny)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(chain_id, block_number, block_time, block_date, tx_hash, tx_index, from_address,
		 to_address, value, gas, gas_price, max_fee_per_gas, max_priority_fee_per_gas, nonce,
		 input, tx_type, chain_id_field, access_list, status, cumulative_gas_used,
		 effective_gas_price, contract_address, extensions)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		var toAddr string
		if r.To != nil {
			toAddr = r.To.String()
		}
		var contractAddr string
		if r.ContractAddress != nil {
			contractAddr = r.ContractAddress.String()
		}
		if _, err := stmt.ExecContext(ctx,
			r.ChainID, r.BlockNumber, r.BlockTime.Unix(), r.BlockDate, r.TxHash.String(),
			r.TxIndex, r.From.String(), toAddr, bigIntString(r.Value), r.Gas,
			bigIntString(r.GasPrice), bigIntString(r.MaxFeePerGas), bigIntString(r.MaxPriorityFeePerGas),
			r.Nonce, r.Input, r.TxType, bigIntString(r.ChainIDField), accessListJSON(r.AccessList),
			r.Status, r.CumulativeGasUsed, bigIntString(r.EffectiveGasPrice), contractAddr,
			extensionsJSON(r.Extensions)); err != nil {
			return err
		}
	}
	if err := s.markBlock(ctx, tx, blockNumber); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *TransactionsSink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	return s.maxContiguousBlock(ctx)
}

// LogsSink persists model.LogRow.
type LogsSink struct{ base }

func NewLogsSink(db *sql.DB, table string) *LogsSink {
	return &LogsSink{newBase(db, table)}
}

func (s *LogsSink) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chain_id INTEGER, block_number INTEGER, block_time INTEGER, block_date TEXT,
		tx_hash TEXT, tx_index INTEGER, log_index INTEGER, address TEXT,
		topic0 TEXT, topic1 TEXT, topic2 TEXT, topic3 TEXT, data BLOB, removed INTEGER,
		PRIMARY KEY (chain_id, tx_hash, log_index)
	)`, s.table)); err != nil {
		return err
	}
	return s.bootstrapMarker(ctx)
}

func (s *LogsSink) Append(ctx context.Context, blockNumber uint64, rowsAny any) error {
	rows, ok := rowsAny.([]model.LogRow)
	if !ok {
		return fmt.Errorf("sqlitewh.LogsSink.Append: unexpected row type %T", rowsAny)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(chain_id, block_number, block_time, block_date, tx_hash, tx_index, log_index, address,
		 topic0, topic1, topic2, topic3, data, removed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ChainID, r.BlockNumber, r.BlockTime.Unix(), r.BlockDate, r.TxHash.String(),
			r.TxIndex, r.LogIndex, r.Address.String(),
			topicString(r.Topics[0]), topicString(r.Topics[1]), topicString(r.Topics[2]), topicString(r.Topics[3]),
			r.Data, r.Removed); err != nil {
			return err
		}
	}
	if err := s.markBlock(ctx, tx, blockNumber); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LogsSink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	return s.maxContiguousBlock(ctx)
}

// TracesSink persists model.TraceRow.
type TracesSink struct{ base }

func NewTracesSink(db *sql.DB, table string) *TracesSink {
	return &TracesSink{newBase(db, table)}
}

func (s *TracesSink) Bootstrap(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chain_id INTEGER, block_number INTEGER, block_time INTEGER, block_date TEXT,
		tx_hash TEXT, tx_index INTEGER, trace_address TEXT, subtraces INTEGER, type TEXT,
		from_address TEXT, to_address TEXT, value TEXT, gas INTEGER, gas_used INTEGER,
		input BLOB, output BLOB, error TEXT, omitted INTEGER,
		PRIMARY KEY (chain_id, tx_hash, trace_address)
	)`, s.table)); err != nil {
		return err
	}
	return s.bootstrapMarker(ctx)
}

func (s *TracesSink) Append(ctx context.Context, blockNumber uint64, rowsAny any) error {
	batch, ok := rowsAny.(warehouse.TracesBatch)
	if !ok {
		return fmt.Errorf("sqlitewh.TracesSink.Append: unexpected row type %T", rowsAny)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(chain_id, block_number, block_time, block_date, tx_hash, tx_index, trace_address,
		 subtraces, type, from_address, to_address, value, gas, gas_used, input, output,
		 error, omitted)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch.Rows {
		var toAddr string
		if r.To != nil {
			toAddr = r.To.String()
		}
		if _, err := stmt.ExecContext(ctx,
			r.ChainID, r.BlockNumber, r.BlockTime.Unix(), r.BlockDate, r.TxHash.String(),
			r.TxIndex, model.TraceAddressString(r.TraceAddress), r.Subtraces, r.Type,
			r.From.String(), toAddr, bigIntString(r.Value), r.Gas, r.GasUsed, r.Input,
			r.Output, r.Error, r.Omitted); err != nil {
			return err
		}
	}
	// A block with zero internal calls is a complete traces dataset (mark
	// it); a block whose traces were dropped for being oversized (-32008) is
	// not, per batch.Omitted rather than a per-row signal that an empty
	// batch wouldn't carry.
	if !batch.Omitted {
		if err := s.markBlock(ctx, tx, blockNumber); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *TracesSink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	return s.maxContiguousBlock(ctx)
}

func topicString(h *model.Hash) string {
	if h == nil {
		return ""
	}
	return h.String()
}
