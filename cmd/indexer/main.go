// Command indexer runs a single chain's extract/transform/load loop against
// a configured JSON-RPC endpoint and warehouse. Flag parsing stays a thin
// urfave/cli/v2 wrapper around internal/config.Load, the way the teacher
// keeps its own cmd entrypoints thin around turbo/logging and its staged
// sync setup — CLI ergonomics are out of scope here, just enough surface to
// point a process at a config file and go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ledgerwatch/log/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/googleapi"

	"github.com/chainlens/evm-indexer/internal/chainfamily"
	"github.com/chainlens/evm-indexer/internal/config"
	"github.com/chainlens/evm-indexer/internal/logx"
	"github.com/chainlens/evm-indexer/internal/metrics"
	"github.com/chainlens/evm-indexer/internal/pipeline"
	"github.com/chainlens/evm-indexer/internal/rpcadapter"
	"github.com/chainlens/evm-indexer/internal/warehouse"
	"github.com/chainlens/evm-indexer/internal/warehouse/bigquerywh"
	"github.com/chainlens/evm-indexer/internal/warehouse/sqlitewh"
)

func main() {
	app := &cli.App{
		Name:  "indexer",
		Usage: "extract EVM chain data into a warehouse",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to config.yaml"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "indexer:", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	consoleLevel, err := log.LvlFromString(cfg.Logging.ConsoleVerbosity)
	if err != nil {
		consoleLevel = log.LvlInfo
	}
	logger := logx.Setup(logx.Options{
		ConsoleLevel: consoleLevel,
		DirLevel:     consoleLevel,
		DirPath:      cfg.Logging.DirPath,
		FilePrefix:   cfg.ChainName,
		JSON:         cfg.Logging.JSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics.Init()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, cfg.Metrics.Port, logger)
	}

	client, err := rpcadapter.Dial(ctx, cfg.RPCURL, rpcadapter.DefaultRetryConfig(), metrics.RPCCounter{Chain: cfg.ChainName})
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}
	traits := chainfamily.DefaultRegistry().Traits(chainID)
	traits.StrictPreBedrock = cfg.StrictPreBedrock
	logger.Info("resolved chain family", "chain_id", chainID, "family", traits.Family)

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build warehouse sinks: %w", err)
	}
	sinks.Enabled = cfg.EnabledDatasetSet()
	if err := sinks.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap warehouse: %w", err)
	}

	driver := pipeline.NewDriver(pipeline.Config{
		ChainID:         chainID,
		Traits:          traits,
		StartBlock:      cfg.StartBlock,
		EndBlock:        cfg.EndBlock,
		ChainTipBuffer:  cfg.ChainTipBuffer,
		Concurrency:     cfg.Concurrency,
		HeadCacheTTL:    2 * time.Second,
		PollInterval:    3 * time.Second,
		StrictDedup:     cfg.StrictDedup,
		ResumeGapCheck:  cfg.ResumeGapCheck,
		EnabledDatasets: cfg.EnabledDatasetSet(),
	}, rpcSourceAdapter{client: client, traits: traits}, sinks, logger, cfg.ChainName)

	runErr := driver.Run(ctx)
	if ctx.Err() != nil {
		return cli.Exit("indexer: interrupted", 130)
	}
	return runErr
}

func serveMetrics(address string, port int, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf("%s:%d", address, port)
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}

// buildSinks wires the four dataset sinks. A non-empty dataset_location
// selects bigquerywh; an empty dataset_location selects a local sqlite
// warehouse, the dev/test path this repo's own tests exercise.
func buildSinks(ctx context.Context, cfg config.Config) (warehouse.Sinks, error) {
	if cfg.DatasetLocation == "" {
		return buildSQLiteSinks(cfg)
	}
	return buildBigQuerySinks(ctx, cfg)
}

func buildSQLiteSinks(cfg config.Config) (warehouse.Sinks, error) {
	path := cfg.ChainName + ".sqlite"
	db, err := sqlitewh.Open(path)
	if err != nil {
		return warehouse.Sinks{}, err
	}
	return warehouse.Sinks{
		Blocks:       sqlitewh.NewBlocksSink(db, firstNonEmpty(cfg.Datasets.Blocks, "blocks")),
		Transactions: sqlitewh.NewTransactionsSink(db, firstNonEmpty(cfg.Datasets.Transactions, "transactions")),
		Logs:         sqlitewh.NewLogsSink(db, firstNonEmpty(cfg.Datasets.Logs, "logs")),
		Traces:       sqlitewh.NewTracesSink(db, firstNonEmpty(cfg.Datasets.Traces, "traces")),
	}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// buildBigQuerySinks wires the four dataset sinks against a real BigQuery
// project: one dataset named "{chain_name}_raw" holding the four tables, the
// way spec.md §6's chain_name/dataset_location knobs describe it.
func buildBigQuerySinks(ctx context.Context, cfg config.Config) (warehouse.Sinks, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return warehouse.Sinks{}, fmt.Errorf("bigquery client: %w", err)
	}

	dataset := client.Dataset(cfg.ChainName + "_raw")
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{Location: cfg.DatasetLocation}); err != nil && !isAlreadyExists(err) {
		return warehouse.Sinks{}, fmt.Errorf("create dataset %s: %w", dataset.DatasetID, err)
	}

	blocksTable := firstNonEmpty(cfg.Datasets.Blocks, "blocks")
	txsTable := firstNonEmpty(cfg.Datasets.Transactions, "transactions")
	logsTable := firstNonEmpty(cfg.Datasets.Logs, "logs")
	tracesTable := firstNonEmpty(cfg.Datasets.Traces, "traces")

	return warehouse.Sinks{
		Blocks: bigquerywh.New(
			client, dataset.Table(blocksTable), fqTableName(dataset, blocksTable),
			bigquerywh.BlocksSchema(), bigquerywh.ToBlockRows),
		Transactions: bigquerywh.New(
			client, dataset.Table(txsTable), fqTableName(dataset, txsTable),
			bigquerywh.TransactionsSchema(), bigquerywh.ToTransactionRows),
		Logs: bigquerywh.New(
			client, dataset.Table(logsTable), fqTableName(dataset, logsTable),
			bigquerywh.LogsSchema(), bigquerywh.ToLogRows),
		Traces: bigquerywh.NewTraces(
			client, dataset.Table(tracesTable), fqTableName(dataset, tracesTable),
			bigquerywh.TracesSchema(), bigquerywh.ToTraceRows),
	}, nil
}

// fqTableName builds the backtick-quotable "project.dataset.table" name the
// resume query's FROM clause needs.
func fqTableName(dataset *bigquery.Dataset, table string) string {
	return fmt.Sprintf("%s.%s.%s", dataset.ProjectID, dataset.DatasetID, table)
}

func isAlreadyExists(err error) bool {
	apiErr, ok := err.(*googleapi.Error)
	return ok && apiErr.Code == 409
}

// rpcSourceAdapter adapts *rpcadapter.Client to pipeline.RPCSource, closing
// over the resolved chain traits so pipeline itself never needs to know
// about chainfamily at all.
type rpcSourceAdapter struct {
	client *rpcadapter.Client
	traits chainfamily.Traits
}

func (a rpcSourceAdapter) ChainID(ctx context.Context) (uint64, error) {
	return a.client.ChainID(ctx)
}

func (a rpcSourceAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	return a.client.BlockNumber(ctx)
}

func (a rpcSourceAdapter) GetBlockWithTxs(ctx context.Context, number uint64) (*pipeline.RawBlock, error) {
	b, err := a.client.GetBlockWithTxs(ctx, number)
	if err != nil {
		return nil, err
	}
	return &pipeline.RawBlock{Raw: b.Raw}, nil
}

func (a rpcSourceAdapter) GetReceiptsForBlock(ctx context.Context, number uint64, block *pipeline.RawBlock) (*pipeline.RawReceipts, error) {
	hashes, err := rpcadapter.ExtractTxHashes(block.Raw)
	if err != nil {
		return nil, err
	}
	r, err := a.client.GetReceiptsForBlock(ctx, a.traits, number, hashes)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(r.Raw))
	for i, raw := range r.Raw {
		out[i] = raw
	}
	return &pipeline.RawReceipts{Raw: out}, nil
}

func (a rpcSourceAdapter) GetTracesForBlock(ctx context.Context, number uint64) (*pipeline.RawTraces, error) {
	t, err := a.client.GetTracesForBlock(ctx, a.traits, number)
	if err != nil {
		return nil, err
	}
	return &pipeline.RawTraces{Raw: t.Raw, Omitted: t.Omitted}, nil
}
