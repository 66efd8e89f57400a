package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const viewsABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "tokenID", "type": "uint256"}],
    "name": "unitsOf",
    "outputs": [{"internalType": "uint256", "name": "units", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "uid", "type": "bytes32"}],
    "name": "getAttestation",
    "outputs": [
      {
        "components": [
          {"internalType": "bytes32", "name": "uid", "type": "bytes32"},
          {"internalType": "bytes32", "name": "schema", "type": "bytes32"},
          {"internalType": "uint64", "name": "time", "type": "uint64"},
          {"internalType": "uint64", "name": "expirationTime", "type": "uint64"},
          {"internalType": "uint64", "name": "revocationTime", "type": "uint64"},
          {"internalType": "bytes32", "name": "refUID", "type": "bytes32"},
          {"internalType": "address", "name": "recipient", "type": "address"},
          {"internalType": "address", "name": "attester", "type": "address"},
          {"internalType": "bool", "name": "revocable", "type": "bool"},
          {"internalType": "bytes", "name": "data", "type": "bytes"}
        ],
        "internalType": "struct Attestation",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "uid", "type": "bytes32"}],
    "name": "getSchema",
    "outputs": [
      {
        "components": [
          {"internalType": "bytes32", "name": "uid", "type": "bytes32"},
          {"internalType": "address", "name": "resolver", "type": "address"},
          {"internalType": "bool", "name": "revocable", "type": "bool"},
          {"internalType": "string", "name": "schema", "type": "string"}
        ],
        "internalType": "struct SchemaRecord",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	viewsABI     abi.ABI
	viewsABIOnce sync.Once
	viewsABIErr  error
)

// ViewsABI returns the ABI of the contract reads the indexer performs.
func ViewsABI() (abi.ABI, error) {
	viewsABIOnce.Do(func() {
		viewsABI, viewsABIErr = abi.JSON(strings.NewReader(viewsABIJSON))
	})
	return viewsABI, viewsABIErr
}
