package events

import (
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/token"
)

// ValidateLeafClaimed validates a LeafClaimed log.
func ValidateLeafClaimed(log model.RawLog, pctx model.ParserContext) ([]model.LeafClaimed, error) {
	rawID, err := requireParam(log, EventLeafClaimed, "tokenID")
	if err != nil {
		return nil, err
	}
	tokenID, err := asUint256(EventLeafClaimed, "tokenID", rawID)
	if err != nil {
		return nil, err
	}
	rawLeaf, err := requireParam(log, EventLeafClaimed, "leaf")
	if err != nil {
		return nil, err
	}
	leaf, err := asBytes32(EventLeafClaimed, "leaf", rawLeaf)
	if err != nil {
		return nil, err
	}

	return []model.LeafClaimed{{
		ContractsID: pctx.ContractID,
		TokenID:     tokenID,
		ClaimID:     token.ClaimIDOf(tokenID),
		Leaf:        leaf,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}}, nil
}

// ValidateAllowlistCreated validates an AllowlistCreated log.
func ValidateAllowlistCreated(log model.RawLog, pctx model.ParserContext) ([]model.AllowlistCreated, error) {
	rawID, err := requireParam(log, EventAllowlistCreated, "tokenID")
	if err != nil {
		return nil, err
	}
	tokenID, err := asUint256(EventAllowlistCreated, "tokenID", rawID)
	if err != nil {
		return nil, err
	}
	rawRoot, err := requireParam(log, EventAllowlistCreated, "root")
	if err != nil {
		return nil, err
	}
	root, err := asBytes32(EventAllowlistCreated, "root", rawRoot)
	if err != nil {
		return nil, err
	}

	return []model.AllowlistCreated{{
		ContractsID: pctx.ContractID,
		ClaimID:     token.ClaimIDOf(tokenID),
		Root:        root,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}}, nil
}
