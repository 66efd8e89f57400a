package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"hypercertsIndexer/internal/chain"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
)

// ParseContractSeeds converts chain_id=address@start_block entries into
// minter contract seeds.
func ParseContractSeeds(inputs []string) ([]model.ContractSeed, error) {
	seeds := make([]model.ContractSeed, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		chainPart, rest, ok := strings.Cut(input, "=")
		if !ok {
			return nil, &model.ConfigurationError{Key: "contracts", Reason: fmt.Sprintf("expected chain_id=address@start_block, got %q", input)}
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(chainPart), 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: "contracts", Reason: fmt.Sprintf("invalid chain id in %q", input)}
		}
		if _, err := chain.Lookup(chainID); err != nil {
			return nil, err
		}
		address, startPart, _ := strings.Cut(rest, "@")
		address = strings.TrimSpace(address)
		if !common.IsHexAddress(address) {
			return nil, &model.ConfigurationError{Key: "contracts", Reason: fmt.Sprintf("invalid address: %s", address)}
		}
		var start uint64
		if startPart = strings.TrimSpace(startPart); startPart != "" {
			start, err = strconv.ParseUint(startPart, 10, 64)
			if err != nil {
				return nil, &model.ConfigurationError{Key: "contracts", Reason: fmt.Sprintf("invalid start block in %q", input)}
			}
		}
		seeds = append(seeds, model.ContractSeed{
			ChainID:    chainID,
			Address:    common.HexToAddress(address).Hex(),
			StartBlock: start,
			Events:     append([]string(nil), events.MinterEvents...),
		})
	}
	return seeds, nil
}

// EASSeeds registers the EAS contract of each chain in startBlocks with the
// Attested event.
func EASSeeds(startBlocks map[uint64]uint64) ([]model.ContractSeed, error) {
	seeds := make([]model.ContractSeed, 0, len(startBlocks))
	for _, id := range chain.Supported() {
		start, ok := startBlocks[id]
		if !ok {
			continue
		}
		c, err := chain.Lookup(id)
		if err != nil {
			return nil, err
		}
		if !c.HasEAS() {
			return nil, &model.ConfigurationError{Key: "eas-start-block", Reason: fmt.Sprintf("chain %d has no EAS deployment", id)}
		}
		seeds = append(seeds, model.ContractSeed{
			ChainID:    id,
			Address:    c.EAS.Hex(),
			StartBlock: start,
			Events:     []string{events.EventAttested},
		})
	}
	return seeds, nil
}

// parseSchemaUIDs converts chain_id=uid entries into per-chain uid lists.
func parseSchemaUIDs(inputs []string) (map[uint64][]string, error) {
	out := make(map[uint64][]string)
	for _, input := range inputs {
		chainPart, uid, ok := strings.Cut(strings.TrimSpace(input), "=")
		if !ok {
			return nil, &model.ConfigurationError{Key: "eas-schema-uids", Reason: fmt.Sprintf("expected chain_id=uid, got %q", input)}
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(chainPart), 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: "eas-schema-uids", Reason: fmt.Sprintf("invalid chain id in %q", input)}
		}
		uid = strings.TrimSpace(uid)
		data, err := hexutil.Decode(uid)
		if err != nil || len(data) != 32 {
			return nil, &model.ConfigurationError{Key: "eas-schema-uids", Reason: fmt.Sprintf("invalid schema uid: %s", uid)}
		}
		out[chainID] = append(out[chainID], common.BytesToHash(data).Hex())
	}
	return out, nil
}

func parseStartBlocks(in map[string]string) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(in))
	for k, v := range in {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: "eas-start-block", Reason: fmt.Sprintf("invalid chain id %q", k)}
		}
		block, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: "eas-start-block", Reason: fmt.Sprintf("invalid start block %q", v)}
		}
		out[id] = block
	}
	return out, nil
}
