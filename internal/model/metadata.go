package model

import "github.com/google/uuid"

// ClaimRef identifies a claim whose metadata is not stored yet, or whose
// stored metadata names an allow list that is not linked to it. In the
// second case AllowListURI holds that allow list.
type ClaimRef struct {
	ID           uuid.UUID
	ContractsID  uuid.UUID
	URI          string
	AllowListURI string
}

// Dimension is one hypercert scope or timeframe property.
type Dimension struct {
	Name         string        `json:"name"`
	Value        []interface{} `json:"value"`
	DisplayValue string        `json:"display_value"`
}

// ClaimMetadata is validated off-chain metadata for a claim URI.
type ClaimMetadata struct {
	URI             string   `json:"uri"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Image           string   `json:"image"`
	ExternalURL     string   `json:"external_url,omitempty"`
	AllowListURI    string   `json:"allow_list_uri,omitempty"`
	WorkScope       []string `json:"work_scope,omitempty"`
	ImpactScope     []string `json:"impact_scope,omitempty"`
	Contributors    []string `json:"contributors,omitempty"`
	Rights          []string `json:"rights,omitempty"`
	WorkTimeframe   []int64  `json:"work_timeframe,omitempty"`
	ImpactTimeframe []int64  `json:"impact_timeframe,omitempty"`
	Canonical       []byte   `json:"-"`
}
