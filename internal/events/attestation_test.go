package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/model"
)

const evaluationSchema = "uint256 chain_id,address contract_address,uint256 token_id,uint8 evaluate_basic,string comments,string[] tags"

func TestParseSchema(t *testing.T) {
	args, err := ParseSchema(evaluationSchema)
	require.NoError(t, err)
	require.Len(t, args, 6)
	assert.Equal(t, "contract_address", args[1].Name)

	for _, bad := range []string{"", "uint256", "uint257 x", "uint256 a,uint256 a", "(string a,string b) pair"} {
		_, err := ParseSchema(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeAttestationData(t *testing.T) {
	args, err := ParseSchema(evaluationSchema)
	require.NoError(t, err)
	contract := common.HexToAddress("0x822f17a9a5eecfd66dbaff7946a8071c265d1d07")
	data, err := args.Pack(big.NewInt(10), contract, big.NewInt(7), uint8(1), "solid", []string{"a", "b"})
	require.NoError(t, err)

	decoded, err := DecodeAttestationData(evaluationSchema, data)
	require.NoError(t, err)
	assert.Equal(t, "10", decoded["chain_id"])
	assert.Equal(t, contract.Hex(), decoded["contract_address"])
	assert.Equal(t, uint64(1), decoded["evaluate_basic"])
	assert.Equal(t, []interface{}{"a", "b"}, decoded["tags"])

	_, err = DecodeAttestationData(evaluationSchema, []byte{0x01})
	assert.Error(t, err)
}

func attestedFixture(t *testing.T) (model.RawLog, model.ParserContext) {
	t.Helper()
	args, err := ParseSchema(evaluationSchema)
	require.NoError(t, err)
	contract := common.HexToAddress("0x822f17a9a5eecfd66dbaff7946a8071c265d1d07")
	data, err := args.Pack(big.NewInt(10), contract, big.NewInt(7), uint8(1), "solid", []string{})
	require.NoError(t, err)

	schemaUID := common.HexToHash("0x2f4f575d5df78ac52e8b124c4c900ec4c540f1d44f5b8825fac0af5308c91449")
	uid := common.HexToHash("0x0102")
	log := rawLog(EventAttested, map[string]interface{}{
		"recipient": common.HexToAddress(testTo),
		"attester":  common.HexToAddress(testFrom),
		"uid":       [32]byte(uid),
		"schema":    [32]byte(schemaUID),
		AttestationParam: map[string]interface{}{
			"uid":            [32]byte(uid),
			"schema":         [32]byte(schemaUID),
			"refUID":         [32]byte{},
			"time":           uint64(1700000000),
			"expirationTime": uint64(0),
			"revocationTime": uint64(0),
			"revocable":      true,
			"data":           data,
		},
	})
	pctx := model.ParserContext{
		EventName: EventAttested,
		Block:     model.Block{Timestamp: 1700000100},
		Schema: &model.AttestationSchema{
			ID:     uuid.New(),
			UID:    schemaUID.Hex(),
			Schema: evaluationSchema,
		},
	}
	return log, pctx
}

func TestValidateAttested(t *testing.T) {
	log, pctx := attestedFixture(t)
	records, err := ValidateAttested(log, pctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	att := records[0]
	assert.Equal(t, pctx.Schema.ID, att.SupportedSchemaID)
	assert.Equal(t, "10", att.ClaimChainID.String())
	assert.Equal(t, "7", att.TokenID.String())
	assert.Equal(t, common.HexToAddress("0x822f17a9a5eecfd66dbaff7946a8071c265d1d07").Hex(), att.ContractAddress)
	assert.Equal(t, uint64(1700000000), att.Time)
	assert.True(t, att.Revocable)
	assert.Equal(t, "solid", att.Data["comments"])
}

func TestValidateAttestedRejects(t *testing.T) {
	log, pctx := attestedFixture(t)
	_, err := ValidateAttested(log, model.ParserContext{})
	requireValidationError(t, err, "schema")

	other := *pctx.Schema
	other.UID = common.HexToHash("0x99").Hex()
	_, err = ValidateAttested(log, model.ParserContext{Schema: &other})
	requireValidationError(t, err, "schema")

	delete(log.Params, AttestationParam)
	_, err = ValidateAttested(log, pctx)
	requireValidationError(t, err, AttestationParam)

	log, pctx = attestedFixture(t)
	log.Params[AttestationParam].(map[string]interface{})["uid"] = [32]byte(common.HexToHash("0x03"))
	_, err = ValidateAttested(log, pctx)
	requireValidationError(t, err, "attestation.uid")

	log, pctx = attestedFixture(t)
	log.Params[AttestationParam].(map[string]interface{})["data"] = []byte{0x01, 0x02}
	_, err = ValidateAttested(log, pctx)
	requireValidationError(t, err, "attestation.data")
}

func TestAttestationUID(t *testing.T) {
	log, _ := attestedFixture(t)
	uid, err := AttestationUID(log)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x0102"), uid)

	_, err = AttestationUID(rawLog(EventAttested, map[string]interface{}{}))
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}
