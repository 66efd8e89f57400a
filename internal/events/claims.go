package events

import "hypercertsIndexer/internal/model"

// ValidateClaimStored validates a ClaimStored log.
func ValidateClaimStored(log model.RawLog, pctx model.ParserContext) ([]model.ClaimStored, error) {
	rawID, err := requireParam(log, EventClaimStored, "claimID")
	if err != nil {
		return nil, err
	}
	claimID, err := asUint256(EventClaimStored, "claimID", rawID)
	if err != nil {
		return nil, err
	}

	rawURI, err := requireParam(log, EventClaimStored, "uri")
	if err != nil {
		return nil, err
	}
	uri, err := asString(EventClaimStored, "uri", rawURI)
	if err != nil {
		return nil, err
	}

	rawUnits, err := requireParam(log, EventClaimStored, "totalUnits")
	if err != nil {
		return nil, err
	}
	units, err := asUint256(EventClaimStored, "totalUnits", rawUnits)
	if err != nil {
		return nil, err
	}

	return []model.ClaimStored{{
		ContractsID:    pctx.ContractID,
		ClaimID:        claimID,
		URI:            uri,
		TotalUnits:     units,
		BlockNumber:    log.BlockNumber,
		BlockTimestamp: pctx.Block.Timestamp,
		TxHash:         log.TxHash.Hex(),
	}}, nil
}
