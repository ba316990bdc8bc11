// Package bigquerywh backs warehouse.Sink with cloud.google.com/go/bigquery,
// the production warehouse target named in spec.md §1. There is no
// equivalent in the teacher repo's own dependency stack — BigQuery is the
// one domain dependency this indexer needs that the corpus never reaches
// for (see DESIGN.md, "named, not grounded") — so this package follows the
// client library's own documented idioms (Inserter + ValueSaver,
// dataset/table metadata for partitioning and clustering) rather than a
// teacher pattern.
package bigquerywh

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/chainlens/evm-indexer/internal/warehouse"
)

const (
	// insertBatchSize caps the rows Append sends in one Inserter.Put call.
	// insertFlushInterval is not referenced: Append writes a block's rows as
	// soon as it is called, with no time-based flush.
	insertBatchSize     = 500
	insertFlushInterval = 5 * time.Second
)

// Table is the subset of *bigquery.Table this package calls, so tests can
// fake the client without a live GCP project.
type Table interface {
	Metadata(ctx context.Context, opts ...bigquery.TableMetadataOption) (*bigquery.TableMetadata, error)
	Create(ctx context.Context, meta *bigquery.TableMetadata) error
	Inserter() *bigquery.Inserter
}

// Sink is a generic row-type Sink backed by one BigQuery table. One Sink per
// dataset (blocks/transactions/logs/traces); cmd/indexer wires four of them
// into a warehouse.Sinks.
type Sink struct {
	table  Table
	schema bigquery.Schema
	toRows func(rowsAny any) ([]bigquery.ValueSaver, error)

	// isOmitted reports whether a given Append call's rowsAny represents an
	// incomplete dataset for its block rather than a legitimately empty one.
	// nil means "never omitted" — true for every dataset except traces.
	isOmitted func(rowsAny any) bool

	// client and fqTableName back a real SELECT MAX(block_number) query in
	// MaxContiguousBlock (spec.md §4.6). A nil client (as fakeTable-backed
	// tests construct) falls back to the in-process maxBlock hint set by
	// Append, so cold-start resume against a real warehouse never needs a
	// local sidecar file.
	client      *bigquery.Client
	fqTableName string

	// maxBlock is a same-process fallback hint, read by MaxContiguousBlock
	// only when client is nil (tests).
	maxBlock *uint64
}

// New builds a Sink over an already-created *bigquery.Dataset's table
// reference. client and fqTableName (a fully qualified "project.dataset.table"
// name) back MaxContiguousBlock's resume query; schema defines the table DDL
// used on first Bootstrap; toRows converts a commit batch into BigQuery rows.
func New(client *bigquery.Client, table Table, fqTableName string, schema bigquery.Schema, toRows func(any) ([]bigquery.ValueSaver, error)) *Sink {
	return &Sink{client: client, fqTableName: fqTableName, table: table, schema: schema, toRows: toRows}
}

// NewTraces builds the traces dataset's Sink. It differs from New only in
// recognizing warehouse.TracesBatch.Omitted, so an oversized-trace block
// (zero rows, but not because the block genuinely made no internal calls)
// doesn't advance the watermark hint as if it were complete.
func NewTraces(client *bigquery.Client, table Table, fqTableName string, schema bigquery.Schema, toRows func(any) ([]bigquery.ValueSaver, error)) *Sink {
	return &Sink{
		client:      client,
		fqTableName: fqTableName,
		table:       table,
		schema:      schema,
		toRows:      toRows,
		isOmitted: func(rowsAny any) bool {
			b, ok := rowsAny.(warehouse.TracesBatch)
			return ok && b.Omitted
		},
	}
}

// Bootstrap creates the table, partitioned by block_date and clustered by
// (chain_id, block_number), if it doesn't already exist.
func (s *Sink) Bootstrap(ctx context.Context) error {
	if _, err := s.table.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("bigquerywh: metadata check: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: s.schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "block_date",
			Type:  bigquery.DayPartitioningType,
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"chain_id", "block_number"},
		},
	}
	if err := s.table.Create(ctx, meta); err != nil {
		return fmt.Errorf("bigquerywh: create table: %w", err)
	}
	return nil
}

// Append streams a batch of rows via the Inserter, chunked to
// insertBatchSize and using each row's primary key as the InsertID so
// BigQuery's best-effort dedup window collapses replayed rows after a
// partial commit retry (spec.md §4.6).
func (s *Sink) Append(ctx context.Context, blockNumber uint64, rowsAny any) error {
	rows, err := s.toRows(rowsAny)
	if err != nil {
		return err
	}

	inserter := s.table.Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("bigquerywh: insert rows [%d:%d) for block %d: %w", start, end, blockNumber, err)
		}
	}

	// A block with no rows for this dataset still advances the watermark
	// hint (spec.md invariant #2), unless isOmitted reports the dataset is
	// actually incomplete for this block rather than legitimately empty.
	omitted := s.isOmitted != nil && s.isOmitted(rowsAny)
	if !omitted && (s.maxBlock == nil || blockNumber > *s.maxBlock) {
		s.maxBlock = &blockNumber
	}
	return nil
}

// maxBlockRow is the single-row result shape of the SELECT MAX(block_number)
// resume query; NullInt64 distinguishes an empty table (no rows yet, NULL
// max) from a genuine watermark of 0.
type maxBlockRow struct {
	MaxBlock bigquery.NullInt64 `bigquery:"max_block"`
}

// MaxContiguousBlock implements the resume cursor spec.md §4.6/§9 describe:
// authoritative state lives in the warehouse itself (SELECT MAX(block_number)),
// not a local sidecar file, so a fresh process picks up after the highest
// block the last one wrote. Blocks missing below that maximum are not
// detected. When client is nil (unit tests against a fake Table), this falls
// back to the in-process hint Append maintains.
func (s *Sink) MaxContiguousBlock(ctx context.Context) (uint64, bool, error) {
	if s.client == nil {
		if s.maxBlock == nil {
			return 0, false, nil
		}
		return *s.maxBlock, true, nil
	}

	q := s.client.Query(fmt.Sprintf("SELECT MAX(block_number) AS max_block FROM `%s`", s.fqTableName))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("bigquerywh: query max(block_number): %w", err)
	}

	var row maxBlockRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("bigquerywh: read max(block_number): %w", err)
	}
	if !row.MaxBlock.Valid {
		return 0, false, nil
	}
	return uint64(row.MaxBlock.Int64), true, nil
}

func isNotFound(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == 404
	}
	return false
}
