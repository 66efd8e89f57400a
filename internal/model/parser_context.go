package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Block carries the source block of a log.
type Block struct {
	Number    uint64 `json:"number"`
	Hash      string `json:"hash"`
	Timestamp uint64 `json:"timestamp"`
}

// ParserContext is built once per log by the caller and not modified while
// the log is processed.
type ParserContext struct {
	EventName       string
	ChainID         uint64
	EventID         uuid.UUID
	ContractID      uuid.UUID
	ContractAddress common.Address
	Block           Block
	Schema          *AttestationSchema
}
