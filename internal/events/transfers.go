package events

import (
	"math/big"

	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/token"
)

// ValidateTransferSingle validates an ERC-1155 TransferSingle log.
func ValidateTransferSingle(log model.RawLog, pctx model.ParserContext) ([]model.TokenTransfer, error) {
	parties, err := transferParties(log, EventTransferSingle)
	if err != nil {
		return nil, err
	}

	rawID, err := requireParam(log, EventTransferSingle, "id")
	if err != nil {
		return nil, err
	}
	id, err := asUint256(EventTransferSingle, "id", rawID)
	if err != nil {
		return nil, err
	}
	rawValue, err := requireParam(log, EventTransferSingle, "value")
	if err != nil {
		return nil, err
	}
	value, err := asUint256(EventTransferSingle, "value", rawValue)
	if err != nil {
		return nil, err
	}

	return []model.TokenTransfer{buildTransfer(log, pctx, parties, id, value, 0)}, nil
}

// ValidateTransferBatch validates a TransferBatch log. The ids and values
// arrays must have equal length; record i carries ids[i] and values[i].
func ValidateTransferBatch(log model.RawLog, pctx model.ParserContext) ([]model.TokenTransfer, error) {
	parties, err := transferParties(log, EventTransferBatch)
	if err != nil {
		return nil, err
	}

	rawIDs, err := requireParam(log, EventTransferBatch, "ids")
	if err != nil {
		return nil, err
	}
	ids, err := asUint256Slice(EventTransferBatch, "ids", rawIDs)
	if err != nil {
		return nil, err
	}
	rawValues, err := requireParam(log, EventTransferBatch, "values")
	if err != nil {
		return nil, err
	}
	values, err := asUint256Slice(EventTransferBatch, "values", rawValues)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(values) {
		return nil, model.NewValidationError(EventTransferBatch, "values", "length %d does not match ids length %d", len(values), len(ids))
	}

	out := make([]model.TokenTransfer, 0, len(ids))
	for i := range ids {
		out = append(out, buildTransfer(log, pctx, parties, ids[i], values[i], i))
	}
	return out, nil
}

// ValidateValueTransfer validates a ValueTransfer log.
func ValidateValueTransfer(log model.RawLog, pctx model.ParserContext) ([]model.ValueTransfer, error) {
	fields := [4]string{"claimID", "fromTokenID", "toTokenID", "value"}
	var nums [4]*big.Int
	for i, field := range fields {
		raw, err := requireParam(log, EventValueTransfer, field)
		if err != nil {
			return nil, err
		}
		n, err := asUint256(EventValueTransfer, field, raw)
		if err != nil {
			return nil, err
		}
		nums[i] = n
	}
	return []model.ValueTransfer{buildValueTransfer(log, pctx, nums, 0)}, nil
}

// ValidateBatchValueTransfer validates a BatchValueTransfer log. All four
// arrays must have equal length.
func ValidateBatchValueTransfer(log model.RawLog, pctx model.ParserContext) ([]model.ValueTransfer, error) {
	fields := [4]string{"claimIDs", "fromTokenIDs", "toTokenIDs", "values"}
	var arrays [4][]*big.Int
	for i, field := range fields {
		raw, err := requireParam(log, EventBatchValueTransfer, field)
		if err != nil {
			return nil, err
		}
		nums, err := asUint256Slice(EventBatchValueTransfer, field, raw)
		if err != nil {
			return nil, err
		}
		arrays[i] = nums
	}
	n := len(arrays[0])
	for i := 1; i < len(arrays); i++ {
		if len(arrays[i]) != n {
			return nil, model.NewValidationError(EventBatchValueTransfer, fields[i], "length %d does not match %s length %d", len(arrays[i]), fields[0], n)
		}
	}

	out := make([]model.ValueTransfer, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, buildValueTransfer(log, pctx, [4]*big.Int{arrays[0][i], arrays[1][i], arrays[2][i], arrays[3][i]}, i))
	}
	return out, nil
}

type parties struct {
	operator string
	from     string
	to       string
}

func transferParties(log model.RawLog, event string) (parties, error) {
	var out parties
	targets := []struct {
		field string
		dst   *string
	}{
		{"operator", &out.operator},
		{"from", &out.from},
		{"to", &out.to},
	}
	for _, target := range targets {
		raw, err := requireParam(log, event, target.field)
		if err != nil {
			return parties{}, err
		}
		addr, err := asAddress(event, target.field, raw)
		if err != nil {
			return parties{}, err
		}
		*target.dst = addr
	}
	return out, nil
}

func buildTransfer(log model.RawLog, pctx model.ParserContext, p parties, id, value *big.Int, batchIndex int) model.TokenTransfer {
	return model.TokenTransfer{
		ContractsID:    pctx.ContractID,
		Operator:       p.operator,
		From:           p.from,
		To:             p.to,
		TokenID:        id,
		ClaimID:        token.ClaimIDOf(id),
		IsClaim:        token.IsClaim(id),
		Value:          value,
		BlockNumber:    log.BlockNumber,
		BlockTimestamp: pctx.Block.Timestamp,
		TxHash:         log.TxHash.Hex(),
		LogIndex:       log.LogIndex,
		BatchIndex:     batchIndex,
	}
}

func buildValueTransfer(log model.RawLog, pctx model.ParserContext, nums [4]*big.Int, batchIndex int) model.ValueTransfer {
	return model.ValueTransfer{
		ContractsID:    pctx.ContractID,
		ClaimID:        nums[0],
		FromTokenID:    nums[1],
		ToTokenID:      nums[2],
		Units:          nums[3],
		BlockNumber:    log.BlockNumber,
		BlockTimestamp: pctx.Block.Timestamp,
		TxHash:         log.TxHash.Hex(),
		LogIndex:       log.LogIndex,
		BatchIndex:     batchIndex,
	}
}
