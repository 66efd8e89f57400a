package model

import "github.com/ethereum/go-ethereum/common"

// RawLog is a decoded log as delivered by the log source. Params holds the
// event arguments by ABI name; values are not trusted.
type RawLog struct {
	ChainID         uint64                 `json:"chain_id"`
	ContractAddress common.Address         `json:"contract_address"`
	EventName       string                 `json:"event_name"`
	BlockNumber     uint64                 `json:"block_number"`
	BlockHash       common.Hash            `json:"block_hash"`
	TxHash          common.Hash            `json:"tx_hash"`
	LogIndex        uint                   `json:"log_index"`
	Params          map[string]interface{} `json:"params"`
}

// Param returns a parameter value and whether it was present and non-nil.
func (l RawLog) Param(name string) (interface{}, bool) {
	if l.Params == nil {
		return nil, false
	}
	v, ok := l.Params[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
