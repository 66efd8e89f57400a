package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ContractEvent is one (contract, event-type) pairing that gets its own
// ingestion loop.
type ContractEvent struct {
	ContractID       uuid.UUID
	ChainID          uint64
	ContractAddress  common.Address
	StartBlock       uint64
	EventID          uuid.UUID
	EventName        string
	LastBlockIndexed uint64
}
