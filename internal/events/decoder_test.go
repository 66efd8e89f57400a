package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"hypercertsIndexer/internal/model"
)

func TestDecoderClaimStored(t *testing.T) {
	parsed, err := EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	event := parsed.Events[EventClaimStored]
	claimID := new(big.Int).Lsh(big.NewInt(1), 128)
	data, err := event.Inputs.NonIndexed().Pack("ipfs://bafyclaim", big.NewInt(10000))
	if err != nil {
		t.Fatalf("pack claim: %v", err)
	}

	contract := common.HexToAddress("0x822F17A9A5EeCFd66dBAFf7946a8071C265D1d07")
	log := types.Log{
		Address:     contract,
		Topics:      []common.Hash{event.ID, common.BigToHash(claimID)},
		Data:        data,
		BlockNumber: 120,
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
	}

	raw, err := decoder.Decode(10, log)
	if err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if raw.EventName != EventClaimStored || raw.ChainID != 10 || raw.LogIndex != 3 {
		t.Fatalf("raw log mismatch: %+v", raw)
	}

	records, err := ValidateClaimStored(raw, model.ParserContext{Block: model.Block{Number: 120, Timestamp: 1700000000}})
	if err != nil {
		t.Fatalf("validate claim: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	claim := records[0]
	if claim.ClaimID.Cmp(claimID) != 0 || claim.URI != "ipfs://bafyclaim" || claim.TotalUnits.Int64() != 10000 {
		t.Fatalf("claim mismatch: %+v", claim)
	}
	if claim.BlockTimestamp != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", claim.BlockTimestamp)
	}
}

func TestDecoderTransferBatch(t *testing.T) {
	parsed, err := EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	event := parsed.Events[EventTransferBatch]
	base := new(big.Int).Lsh(big.NewInt(1), 128)
	fraction := new(big.Int).Add(base, big.NewInt(1))
	data, err := event.Inputs.NonIndexed().Pack(
		[]*big.Int{base, fraction},
		[]*big.Int{big.NewInt(1), big.NewInt(250)},
	)
	if err != nil {
		t.Fatalf("pack batch: %v", err)
	}

	operator := common.HexToAddress("0x1111111111111111111111111111111111111111")
	from := common.HexToAddress("0x0000000000000000000000000000000000000000")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := types.Log{
		Address: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(operator.Bytes()),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: data,
	}

	raw, err := decoder.Decode(8453, log)
	if err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	records, err := ValidateTransferBatch(raw, model.ParserContext{})
	if err != nil {
		t.Fatalf("validate batch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].IsClaim || records[1].IsClaim {
		t.Fatalf("classification mismatch: %+v", records)
	}
	if records[1].ClaimID.Cmp(base) != 0 || records[1].Value.Int64() != 250 || records[1].BatchIndex != 1 {
		t.Fatalf("record 1 mismatch: %+v", records[1])
	}
	if records[0].To != to.Hex() || records[0].Operator != operator.Hex() {
		t.Fatalf("party mismatch: %+v", records[0])
	}
}

func TestDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	_, err = decoder.Decode(10, types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	if err == nil {
		t.Fatalf("expected error for unknown topic")
	}
	if decoder.CanDecode(common.HexToHash("0xdead")) {
		t.Fatalf("unexpected CanDecode for unknown topic")
	}
	topic, ok := decoder.Topic0(EventLeafClaimed)
	if !ok || !decoder.CanDecode(topic) {
		t.Fatalf("LeafClaimed topic not registered")
	}
}

func TestDecoderTopicCountMismatch(t *testing.T) {
	parsed, err := EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	_, err = decoder.Decode(10, types.Log{Topics: []common.Hash{parsed.Events[EventClaimStored].ID}})
	if err == nil {
		t.Fatalf("expected error for missing indexed topic")
	}
}
