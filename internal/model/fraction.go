package model

import (
	"math/big"

	"github.com/google/uuid"
)

// Fraction is the current state of a fraction token. An empty Owner keeps
// the stored owner.
type Fraction struct {
	ContractsID uuid.UUID `json:"contracts_id"`
	ClaimID     *big.Int  `json:"claim_id"`
	TokenID     *big.Int  `json:"token_id"`
	Owner       string    `json:"owner_address"`
	Units       *big.Int  `json:"units"`
	BlockNumber uint64    `json:"last_update_block"`
}

// ContractSeed registers a contract to index.
type ContractSeed struct {
	ChainID    uint64 `json:"chain_id"`
	Address    string `json:"address"`
	StartBlock uint64 `json:"start_block"`
	Events     []string
}
