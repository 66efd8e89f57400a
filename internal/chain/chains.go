package chain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"hypercertsIndexer/internal/model"
)

// Chain is a supported network and its attestation contracts. A zero EAS
// address means attestations are not indexed on that chain.
type Chain struct {
	ID             uint64
	Name           string
	Testnet        bool
	EAS            common.Address
	SchemaRegistry common.Address
}

// HasEAS reports whether attestations can be indexed.
func (c Chain) HasEAS() bool {
	return c.EAS != (common.Address{}) && c.SchemaRegistry != (common.Address{})
}

var (
	opStackEAS      = common.HexToAddress("0x4200000000000000000000000000000000000021")
	opStackRegistry = common.HexToAddress("0x4200000000000000000000000000000000000020")
)

var supported = map[uint64]Chain{
	10:       {ID: 10, Name: "optimism", EAS: opStackEAS, SchemaRegistry: opStackRegistry},
	8453:     {ID: 8453, Name: "base", EAS: opStackEAS, SchemaRegistry: opStackRegistry},
	42220:    {ID: 42220, Name: "celo", EAS: common.HexToAddress("0x72E1d8ccf5299fb36fEfD8CC4394B8ef7e98Af92"), SchemaRegistry: common.HexToAddress("0x5ece93bE4BDCF293Ed61FA78698B594F2135AF34")},
	42161:    {ID: 42161, Name: "arbitrum-one", EAS: common.HexToAddress("0xbD75f629A22Dc1ceD33dDA0b68c546A1c035c458"), SchemaRegistry: common.HexToAddress("0xA310da9c5B885E7fb3fbA9D66E9Ba6Df512b78eB")},
	314:      {ID: 314, Name: "filecoin"},
	11155111: {ID: 11155111, Name: "sepolia", Testnet: true, EAS: common.HexToAddress("0xC2679fBD37d54388Ce493F1DB75320D236e1815e"), SchemaRegistry: common.HexToAddress("0x0a7E2Ff54e76B8E6659aedc9103FB21c038050D0")},
	84532:    {ID: 84532, Name: "base-sepolia", Testnet: true, EAS: opStackEAS, SchemaRegistry: opStackRegistry},
	421614:   {ID: 421614, Name: "arbitrum-sepolia", Testnet: true, EAS: common.HexToAddress("0x2521021fc8BF070473E1e1801D3c7B4aB701E1dE"), SchemaRegistry: common.HexToAddress("0x45CB6Fa0870a8Af06796Ac15915619a0f22cd475")},
	314159:   {ID: 314159, Name: "filecoin-calibration", Testnet: true},
}

// Lookup returns the supported chain for id.
func Lookup(id uint64) (Chain, error) {
	c, ok := supported[id]
	if !ok {
		return Chain{}, &model.ConfigurationError{Key: "chain-ids", Reason: fmt.Sprintf("unsupported chain id %d", id)}
	}
	return c, nil
}

// Supported lists supported chain ids in ascending order.
func Supported() []uint64 {
	ids := make([]uint64, 0, len(supported))
	for id := range supported {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
