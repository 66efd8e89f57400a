package model

// DecodeError records a failed log for offline replay output.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Event       string `json:"event,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error"`
}
