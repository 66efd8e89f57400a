package model

import (
	"math/big"

	"github.com/google/uuid"
)

// AllowListData is an off-chain allow list referenced by URI. Data is
// backfilled by the reconciler.
type AllowListData struct {
	ID     uuid.UUID `json:"id"`
	URI    string    `json:"uri"`
	Root   string    `json:"root"`
	Data   []byte    `json:"data,omitempty"`
	Parsed bool      `json:"parsed"`
	Valid  *bool     `json:"valid,omitempty"`
}

// UnparsedAllowList links a claim to allow-list data whose records have not
// been committed yet.
type UnparsedAllowList struct {
	ListID  uuid.UUID
	ClaimID uuid.UUID
	Data    AllowListData
}

// AllowListRecord is one holder entitlement expanded from a Merkle leaf.
type AllowListRecord struct {
	ListID      uuid.UUID `json:"hypercert_allow_lists_id"`
	UserAddress string    `json:"user_address"`
	Units       *big.Int  `json:"units"`
	Entry       int       `json:"entry"`
	Leaf        string    `json:"leaf"`
	Proof       []string  `json:"proof"`
	Claimed     bool      `json:"claimed"`
}
