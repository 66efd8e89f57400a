package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/config"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/logger"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/parser"
	"hypercertsIndexer/internal/storage"
)

// errNeedsChainReads marks events that cannot be validated without an RPC.
var errNeedsChainReads = errors.New("event data requires chain reads")

type validateFunc func(log model.RawLog, pctx model.ParserContext) (interface{}, error)

func validator[R any](fn parser.ValidateFunc[R]) validateFunc {
	return func(log model.RawLog, pctx model.ParserContext) (interface{}, error) {
		return fn(log, pctx)
	}
}

var offlineValidators = map[string]validateFunc{
	events.EventClaimStored:        validator(events.ValidateClaimStored),
	events.EventTransferSingle:     validator(events.ValidateTransferSingle),
	events.EventTransferBatch:      validator(events.ValidateTransferBatch),
	events.EventValueTransfer:      validator(events.ValidateValueTransfer),
	events.EventBatchValueTransfer: validator(events.ValidateBatchValueTransfer),
	events.EventLeafClaimed:        validator(events.ValidateLeafClaimed),
	events.EventAllowlistCreated:   validator(events.ValidateAllowlistCreated),
}

// decodedEvent is one validated log in the decode output.
type decodedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Records     interface{} `json:"records"`
}

type decodeStats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := storage.NewWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	log.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeStream(ctx, inputFile, decoder, cfg.ChainID, outWriter, errWriter)
	if err != nil {
		return err
	}

	log.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

type jsonWriter interface {
	Write(value interface{}) error
}

// decodeStream decodes and validates every LogRecord line of in. Logs of
// unknown events are skipped; failures go to errOut.
func decodeStream(ctx context.Context, in io.Reader, decoder *events.Decoder, chainID uint64, out, errOut jsonWriter) (decodeStats, error) {
	var stats decodeStats

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			writeDecodeError(errOut, model.DecodeError{Stage: "parse", Error: err.Error()})
			continue
		}
		if record.ChainID == 0 {
			record.ChainID = chainID
		}
		if len(record.Topics) == 0 {
			stats.Failed++
			writeDecodeError(errOut, decodeErrorFromRecord(record, "", "decode", fmt.Errorf("missing topic0")))
			continue
		}
		if !decoder.CanDecode(common.HexToHash(record.Topics[0])) {
			stats.Skipped++
			continue
		}

		raw, err := decoder.DecodeRecord(record)
		if err != nil {
			stats.Failed++
			writeDecodeError(errOut, decodeErrorFromRecord(record, "", "decode", err))
			continue
		}

		validate, ok := offlineValidators[raw.EventName]
		if !ok {
			stats.Failed++
			writeDecodeError(errOut, decodeErrorFromRecord(record, raw.EventName, string(parser.StageEnrich), errNeedsChainReads))
			continue
		}
		records, err := validate(raw, model.ParserContext{
			EventName:       raw.EventName,
			ChainID:         record.ChainID,
			ContractAddress: raw.ContractAddress,
			Block: model.Block{
				Number:    record.BlockNumber,
				Hash:      record.BlockHash,
				Timestamp: record.Timestamp,
			},
		})
		if err != nil {
			stats.Failed++
			writeDecodeError(errOut, decodeErrorFromRecord(record, raw.EventName, string(parser.StageValidate), err))
			continue
		}

		if err := out.Write(decodedEvent{
			ChainID:     record.ChainID,
			BlockNumber: record.BlockNumber,
			TxHash:      record.TxHash,
			LogIndex:    record.LogIndex,
			Address:     record.Address,
			EventName:   raw.EventName,
			Timestamp:   record.Timestamp,
			Records:     records,
		}); err != nil {
			return stats, err
		}
		stats.Decoded++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

func decodeErrorFromRecord(record model.LogRecord, event, stage string, err error) model.DecodeError {
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Event:       event,
		Stage:       stage,
		Error:       err.Error(),
	}
}

func writeDecodeError(writer jsonWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
