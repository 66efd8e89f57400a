package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"hypercertsIndexer/internal/model"
)

// AttestationParam is the bag key the enrich stage fills with the
// on-chain attestation read for an Attested log.
const AttestationParam = "attestation"

// ValidateAttested validates an EAS Attested log enriched with its
// attestation. The parser context must carry the schema the log refers to.
func ValidateAttested(log model.RawLog, pctx model.ParserContext) ([]model.AttestationData, error) {
	const event = EventAttested

	if pctx.Schema == nil {
		return nil, model.NewValidationError(event, "schema", "no supported schema in context")
	}
	rawSchema, err := requireParam(log, event, "schema")
	if err != nil {
		return nil, err
	}
	schemaUID, err := asBytes32(event, "schema", rawSchema)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(schemaUID, pctx.Schema.UID) {
		return nil, model.NewValidationError(event, "schema", "uid %s is not the supported schema %s", schemaUID, pctx.Schema.UID)
	}

	rawUID, err := requireParam(log, event, "uid")
	if err != nil {
		return nil, err
	}
	uid, err := asBytes32(event, "uid", rawUID)
	if err != nil {
		return nil, err
	}
	rawRecipient, err := requireParam(log, event, "recipient")
	if err != nil {
		return nil, err
	}
	recipient, err := asAddress(event, "recipient", rawRecipient)
	if err != nil {
		return nil, err
	}
	rawAttester, err := requireParam(log, event, "attester")
	if err != nil {
		return nil, err
	}
	attester, err := asAddress(event, "attester", rawAttester)
	if err != nil {
		return nil, err
	}

	rawAttestation, err := requireParam(log, event, AttestationParam)
	if err != nil {
		return nil, err
	}
	bag, ok := rawAttestation.(map[string]interface{})
	if !ok {
		return nil, model.NewValidationError(event, AttestationParam, "expected object, got %T", rawAttestation)
	}
	att := model.RawLog{EventName: event, Params: bag}

	onchainUID, err := bytes32Field(att, "uid")
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(onchainUID, uid) {
		return nil, model.NewValidationError(event, "attestation.uid", "%s does not match log uid %s", onchainUID, uid)
	}
	refUID, err := bytes32Field(att, "refUID")
	if err != nil {
		return nil, err
	}
	var times [3]uint64
	for i, field := range []string{"time", "expirationTime", "revocationTime"} {
		raw, err := requireParam(att, event, field)
		if err != nil {
			return nil, err
		}
		if times[i], err = asUint64(event, "attestation."+field, raw); err != nil {
			return nil, err
		}
	}
	revocable := false
	if raw, ok := att.Param("revocable"); ok {
		if revocable, err = asBool(event, "attestation.revocable", raw); err != nil {
			return nil, err
		}
	}
	rawData, err := requireParam(att, event, "data")
	if err != nil {
		return nil, err
	}
	data, err := asBytes(event, "attestation.data", rawData)
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeAttestationData(pctx.Schema.Schema, data)
	if err != nil {
		return nil, model.NewValidationError(event, "attestation.data", "%v", err)
	}

	out := model.AttestationData{
		SupportedSchemaID: pctx.Schema.ID,
		UID:               uid,
		SchemaUID:         schemaUID,
		Attester:          attester,
		Recipient:         recipient,
		RefUID:            refUID,
		Time:              times[0],
		ExpirationTime:    times[1],
		RevocationTime:    times[2],
		Revocable:         revocable,
		RawData:           hexutil.Encode(data),
		Data:              decoded,
		BlockNumber:       log.BlockNumber,
		BlockTimestamp:    pctx.Block.Timestamp,
		TxHash:            log.TxHash.Hex(),
	}

	if raw, ok := decoded["chain_id"]; ok {
		if out.ClaimChainID, err = asUint256(event, "data.chain_id", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := decoded["contract_address"]; ok {
		if out.ContractAddress, err = asAddress(event, "data.contract_address", raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := decoded["token_id"]; ok {
		if out.TokenID, err = asUint256(event, "data.token_id", raw); err != nil {
			return nil, err
		}
	}
	return []model.AttestationData{out}, nil
}

func bytes32Field(bag model.RawLog, field string) (string, error) {
	raw, err := requireParam(bag, EventAttested, field)
	if err != nil {
		return "", err
	}
	return asBytes32(EventAttested, "attestation."+field, raw)
}

// AttestationUID returns the uid argument of an Attested log.
func AttestationUID(log model.RawLog) (common.Hash, error) {
	raw, err := requireParam(log, EventAttested, "uid")
	if err != nil {
		return common.Hash{}, err
	}
	uid, err := asBytes32(EventAttested, "uid", raw)
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(uid), nil
}
