package model

import (
	"math/big"

	"github.com/google/uuid"
)

// ClaimStored is a newly minted claim.
type ClaimStored struct {
	ContractsID    uuid.UUID `json:"contracts_id"`
	ClaimID        *big.Int  `json:"claim_id"`
	URI            string    `json:"uri"`
	TotalUnits     *big.Int  `json:"total_units"`
	BlockNumber    uint64    `json:"block_number"`
	BlockTimestamp uint64    `json:"block_timestamp"`
	TxHash         string    `json:"tx_hash"`
}

// TokenTransfer is one ERC-1155 transfer of a claim or fraction token.
// TransferBatch logs produce one TokenTransfer per id.
type TokenTransfer struct {
	ContractsID    uuid.UUID `json:"contracts_id"`
	Operator       string    `json:"operator"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	TokenID        *big.Int  `json:"token_id"`
	ClaimID        *big.Int  `json:"claim_id"`
	IsClaim        bool      `json:"is_claim"`
	Value          *big.Int  `json:"value"`
	BlockNumber    uint64    `json:"block_number"`
	BlockTimestamp uint64    `json:"block_timestamp"`
	TxHash         string    `json:"tx_hash"`
	LogIndex       uint      `json:"log_index"`
	BatchIndex     int       `json:"batch_index"`
}

// ValueTransfer moves units between fractions of one claim.
type ValueTransfer struct {
	ContractsID    uuid.UUID `json:"contracts_id"`
	ClaimID        *big.Int  `json:"claim_id"`
	FromTokenID    *big.Int  `json:"from_token_id"`
	ToTokenID      *big.Int  `json:"to_token_id"`
	Units          *big.Int  `json:"units"`
	BlockNumber    uint64    `json:"block_number"`
	BlockTimestamp uint64    `json:"block_timestamp"`
	TxHash         string    `json:"tx_hash"`
	LogIndex       uint      `json:"log_index"`
	BatchIndex     int       `json:"batch_index"`
}

// LeafClaimed marks an allow-list leaf as redeemed for a fraction.
type LeafClaimed struct {
	ContractsID uuid.UUID `json:"contracts_id"`
	TokenID     *big.Int  `json:"token_id"`
	ClaimID     *big.Int  `json:"claim_id"`
	Leaf        string    `json:"leaf"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
}

// AllowlistCreated binds a claim to the Merkle root of its allow list.
type AllowlistCreated struct {
	ContractsID uuid.UUID `json:"contracts_id"`
	ClaimID     *big.Int  `json:"claim_id"`
	Root        string    `json:"root"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
}

// AttestationData is an EAS attestation decoded against its schema.
type AttestationData struct {
	SupportedSchemaID uuid.UUID              `json:"supported_schemas_id"`
	UID               string                 `json:"uid"`
	SchemaUID         string                 `json:"schema_uid"`
	Attester          string                 `json:"attester"`
	Recipient         string                 `json:"recipient"`
	RefUID            string                 `json:"ref_uid"`
	Time              uint64                 `json:"time"`
	ExpirationTime    uint64                 `json:"expiration_time"`
	RevocationTime    uint64                 `json:"revocation_time"`
	Revocable         bool                   `json:"revocable"`
	RawData           string                 `json:"raw_data"`
	Data              map[string]interface{} `json:"data"`
	ClaimChainID      *big.Int               `json:"claim_chain_id,omitempty"`
	ContractAddress   string                 `json:"contract_address,omitempty"`
	TokenID           *big.Int               `json:"token_id,omitempty"`
	BlockNumber       uint64                 `json:"block_number"`
	BlockTimestamp    uint64                 `json:"block_timestamp"`
	TxHash            string                 `json:"tx_hash"`
}
