package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// maxCachedTimestamps bounds the block timestamp cache.
const maxCachedTimestamps = 10000

// Attestation is an EAS attestation as returned by getAttestation.
type Attestation struct {
	Uid            [32]byte
	Schema         [32]byte
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         [32]byte
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte
}

// SchemaRecord is an EAS schema registry entry.
type SchemaRecord struct {
	Uid       [32]byte
	Resolver  common.Address
	Revocable bool
	Schema    string
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	chainID   uint64

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials rpcURL and checks that it serves the expected chain.
func NewClient(ctx context.Context, rpcURL string, expectedChainID uint64) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		chainID:   expectedChainID,
		tsCache:   make(map[uint64]uint64),
	}

	got, err := c.GetChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if expectedChainID != 0 && got.Uint64() != expectedChainID {
		c.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", got, expectedChainID)
	}
	c.chainID = got.Uint64()
	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain id checked at dial time.
func (c *Client) ChainID() uint64 { return c.chainID }

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	if len(c.tsCache) >= maxCachedTimestamps {
		c.tsCache = make(map[uint64]uint64)
	}
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given range for addresses and topic
// filters. topics[0] filters topic0, topics[3] the third indexed argument.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topics [][]common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    topics,
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// UnitsOf reads the units held by a hypercert token at a block. A zero
// block reads the latest state.
func (c *Client) UnitsOf(ctx context.Context, contract common.Address, tokenID *big.Int, block uint64) (*big.Int, error) {
	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}
	values, err := c.call(ctx, contract, "unitsOf", at, tokenID)
	if err != nil {
		return nil, err
	}
	units, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unitsOf: unexpected type %T", values[0])
	}
	return units, nil
}

// GetAttestation reads an attestation from an EAS contract.
func (c *Client) GetAttestation(ctx context.Context, eas common.Address, uid common.Hash) (Attestation, error) {
	values, err := c.call(ctx, eas, "getAttestation", nil, [32]byte(uid))
	if err != nil {
		return Attestation{}, err
	}
	out := toAttestation(values[0])
	if out.Uid == ([32]byte{}) {
		return Attestation{}, fmt.Errorf("attestation %s not found", uid.Hex())
	}
	return out, nil
}

// GetSchema reads a schema record from an EAS schema registry.
func (c *Client) GetSchema(ctx context.Context, registry common.Address, uid common.Hash) (SchemaRecord, error) {
	values, err := c.call(ctx, registry, "getSchema", nil, [32]byte(uid))
	if err != nil {
		return SchemaRecord{}, err
	}
	out := toSchemaRecord(values[0])
	if out.Uid == ([32]byte{}) {
		return SchemaRecord{}, fmt.Errorf("schema %s not registered", uid.Hex())
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, contract common.Address, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	parsed, err := ViewsABI()
	if err != nil {
		return nil, err
	}
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return values, nil
}

func toAttestation(v interface{}) Attestation {
	return *abi.ConvertType(v, new(Attestation)).(*Attestation)
}

func toSchemaRecord(v interface{}) SchemaRecord {
	return *abi.ConvertType(v, new(SchemaRecord)).(*SchemaRecord)
}

// Params returns the attestation as a parameter bag for validation.
func (a Attestation) Params() map[string]interface{} {
	return map[string]interface{}{
		"uid":            a.Uid,
		"schema":         a.Schema,
		"time":           a.Time,
		"expirationTime": a.ExpirationTime,
		"revocationTime": a.RevocationTime,
		"refUID":         a.RefUID,
		"recipient":      a.Recipient,
		"attester":       a.Attester,
		"revocable":      a.Revocable,
		"data":           a.Data,
	}
}
