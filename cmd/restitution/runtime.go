package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
	"drainReversal/internal/config"
	"drainReversal/internal/deployment"
	"drainReversal/internal/events"
	"drainReversal/internal/model"
	"drainReversal/internal/storage"
	"drainReversal/internal/storage/postgres"
)

// runtime is one CLI invocation: the deployment restored from the last
// saved world state plus the sinks its calls publish to.
type runtime struct {
	ctx        context.Context
	stop       context.CancelFunc
	cfg        config.Config
	logger     *zap.Logger
	deployment *deployment.Deployment
	store      deployment.StateStore
	logs       storage.Storage
	typed      *storage.JsonlStorage
	errs       *storage.JsonlStorage
	decoder    *events.Decoder
	pg         *postgres.Store
}

func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rt := &runtime{ctx: ctx, stop: stop, cfg: cfg, logger: logger}
	if err := rt.open(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *runtime) open() error {
	genesis, err := config.LoadDeployment(r.cfg.Deployment)
	if err != nil {
		return err
	}
	d, err := deployment.Build(genesis, r.logger)
	if err != nil {
		return fmt.Errorf("build deployment: %w", err)
	}
	r.deployment = d

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}
	r.decoder = decoder

	stores := deployment.MultiStateStore{&deployment.FileStateStore{Path: r.cfg.StateFile}}
	sinks := storage.Multi{storage.NewJsonlStorage(r.cfg.EventsOut)}
	if r.cfg.PGDSN != "" {
		pg, err := postgres.NewStore(r.ctx, r.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		r.pg = pg
		if err := pg.Migrate(r.ctx); err != nil {
			return err
		}
		stores = append(stores, &deployment.DBStateStore{Store: pg, Name: fmt.Sprintf("deployment:%d", genesis.ChainID)})
		sinks = append(sinks, pg)
	}
	r.store = stores
	r.logs = sinks
	r.typed = storage.NewJsonlStorage(r.cfg.TypedOut)
	r.errs = storage.NewJsonlStorage(r.cfg.ErrorsOut)

	world, ok, err := r.store.Load(r.ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if ok {
		if err := d.Restore(world); err != nil {
			return err
		}
	}

	r.logger.Info("deployment loaded",
		zap.String("deployment", r.cfg.Deployment),
		zap.String("state_file", r.cfg.StateFile),
		zap.String("pg_dsn", redactDSN(r.cfg.PGDSN)),
		zap.Bool("restored", ok),
		zap.Uint64("block", d.State.BlockNumber()),
	)
	return nil
}

func (r *runtime) Close() {
	if r.pg != nil {
		r.pg.Close()
	}
	if r.stop != nil {
		r.stop()
	}
	_ = r.logger.Sync()
}

func (r *runtime) caller() (common.Address, error) {
	if r.cfg.Caller == "" {
		return common.Address{}, fmt.Errorf("caller is required")
	}
	return chain.ParseAddress(r.cfg.Caller)
}

// execute runs fn as one call from the configured caller, then saves the
// world state and publishes the call's logs.
func (r *runtime) execute(cmd *cobra.Command, method string, fn func(c *chain.Call) error) error {
	caller, err := r.caller()
	if err != nil {
		return err
	}
	receipt, err := r.deployment.State.Execute(caller, method, fn)
	if err != nil {
		return fmt.Errorf("%s reverted: %w", method, err)
	}
	if err := r.store.Save(r.ctx, r.deployment.Export()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := r.publish(receipt); err != nil {
		return err
	}

	r.logger.Info("call executed",
		zap.String("method", method),
		zap.String("caller", caller.Hex()),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Int("logs", len(receipt.Logs)),
	)
	return printJSON(cmd, receiptView{
		Method: method,
		Caller: caller.Hex(),
		TxHash: receipt.TxHash.Hex(),
		Block:  receipt.BlockNumber,
		Logs:   len(receipt.Logs),
	})
}

func (r *runtime) publish(receipt *chain.Receipt) error {
	now := time.Now()
	chainID := r.deployment.ChainID()

	records := make([]model.LogRecord, 0, len(receipt.Logs))
	typed := make([]model.TypedEvent, 0, len(receipt.Logs))
	var failed []model.DecodeError
	for _, log := range receipt.Logs {
		record := events.BuildLogRecord(chainID, *log, receipt.Caller, receipt.Method, now)
		records = append(records, record)

		event, err := r.decoder.Decode(record)
		if err != nil {
			failed = append(failed, decodeErrorFromRecord(record, err))
			continue
		}
		event.Caller = record.Caller
		event.Method = record.Method
		typed = append(typed, *event)
	}

	if err := r.logs.PutLogBatch(r.ctx, records); err != nil {
		return fmt.Errorf("write logs: %w", err)
	}
	if err := r.typed.PutTypedEvents(typed); err != nil {
		return fmt.Errorf("write typed events: %w", err)
	}
	if len(failed) > 0 {
		r.logger.Warn("undecodable logs", zap.Int("count", len(failed)))
		if err := r.errs.PutDecodeErrors(failed); err != nil {
			return fmt.Errorf("write decode errors: %w", err)
		}
	}
	return nil
}

type receiptView struct {
	Method string `json:"method"`
	Caller string `json:"caller"`
	TxHash string `json:"tx_hash"`
	Block  uint64 `json:"block"`
	Logs   int    `json:"logs"`
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
