package model

import "github.com/google/uuid"

// AttestationSchema describes a supported EAS schema.
type AttestationSchema struct {
	ID        uuid.UUID `json:"id"`
	ChainID   uint64    `json:"chain_id"`
	UID       string    `json:"uid"`
	Schema    string    `json:"schema"`
	Resolver  string    `json:"resolver"`
	Revocable bool      `json:"revocable"`
}
