package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"hypercertsIndexer/internal/model"
)

// Decoder turns raw EVM logs into RawLog parameter bags.
type Decoder struct {
	eventsABI   abi.ABI
	topicToName map[common.Hash]string
}

// NewDecoder builds a decoder for every known event.
func NewDecoder() (*Decoder, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse events abi: %w", err)
	}
	topicToName := make(map[common.Hash]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[event.ID] = name
	}
	return &Decoder{eventsABI: parsed, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToName[topic0]
	return ok
}

// Topic0 returns the signature hash for an event name.
func (d *Decoder) Topic0(name string) (common.Hash, bool) {
	event, ok := d.eventsABI.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	return event.ID, true
}

// Decode converts a log into a RawLog. Values in Params keep the types the
// abi package produces; validation is left to the event validators.
func (d *Decoder) Decode(chainID uint64, log types.Log) (model.RawLog, error) {
	if len(log.Topics) == 0 {
		return model.RawLog{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return model.RawLog{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	event := d.eventsABI.Events[name]

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics)-1 != len(indexed) {
		return model.RawLog{}, fmt.Errorf("%s: expected %d indexed topics, got %d", name, len(indexed), len(log.Topics)-1)
	}

	params := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(params, indexed, log.Topics[1:]); err != nil {
		return model.RawLog{}, fmt.Errorf("%s: parse topics: %w", name, err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(params, log.Data); err != nil {
		return model.RawLog{}, fmt.Errorf("%s: unpack data: %w", name, err)
	}

	return model.RawLog{
		ChainID:         chainID,
		ContractAddress: log.Address,
		EventName:       name,
		BlockNumber:     log.BlockNumber,
		BlockHash:       log.BlockHash,
		TxHash:          log.TxHash,
		LogIndex:        log.Index,
		Params:          params,
	}, nil
}

// DecodeRecord decodes a stored LogRecord.
func (d *Decoder) DecodeRecord(record model.LogRecord) (model.RawLog, error) {
	log, err := record.EthLog()
	if err != nil {
		return model.RawLog{}, err
	}
	return d.Decode(record.ChainID, log)
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	var out abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}
