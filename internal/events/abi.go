package events

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event names emitted by the hypercert minter and EAS contracts.
const (
	EventClaimStored        = "ClaimStored"
	EventTransferSingle     = "TransferSingle"
	EventTransferBatch      = "TransferBatch"
	EventValueTransfer      = "ValueTransfer"
	EventBatchValueTransfer = "BatchValueTransfer"
	EventLeafClaimed        = "LeafClaimed"
	EventAllowlistCreated   = "AllowlistCreated"
	EventAttested           = "Attested"
)

const hypercertEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "claimID", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "uri", "type": "string"},
      {"indexed": false, "internalType": "uint256", "name": "totalUnits", "type": "uint256"}
    ],
    "name": "ClaimStored",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "TransferSingle",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256[]", "name": "ids", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "values", "type": "uint256[]"}
    ],
    "name": "TransferBatch",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "claimID", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fromTokenID", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "toTokenID", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "ValueTransfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256[]", "name": "claimIDs", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "fromTokenIDs", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "toTokenIDs", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "values", "type": "uint256[]"}
    ],
    "name": "BatchValueTransfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "tokenID", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "leaf", "type": "bytes32"}
    ],
    "name": "LeafClaimed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "tokenID", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "root", "type": "bytes32"}
    ],
    "name": "AllowlistCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "attester", "type": "address"},
      {"indexed": false, "internalType": "bytes32", "name": "uid", "type": "bytes32"},
      {"indexed": true, "internalType": "bytes32", "name": "schema", "type": "bytes32"}
    ],
    "name": "Attested",
    "type": "event"
  }
]`

var (
	eventsABI     abi.ABI
	eventsABIOnce sync.Once
	eventsABIErr  error
)

// EventsABI returns the parsed ABI of every indexed event.
func EventsABI() (abi.ABI, error) {
	eventsABIOnce.Do(func() {
		eventsABI, eventsABIErr = abi.JSON(strings.NewReader(hypercertEventsABIJSON))
	})
	return eventsABI, eventsABIErr
}

// MinterEvents lists the events indexed on every hypercert minter contract.
var MinterEvents = []string{
	EventClaimStored,
	EventTransferSingle,
	EventTransferBatch,
	EventValueTransfer,
	EventBatchValueTransfer,
	EventLeafClaimed,
	EventAllowlistCreated,
}

// Signatures maps each event name to its canonical signature.
func Signatures() (map[string]string, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(parsed.Events))
	for name, ev := range parsed.Events {
		out[name] = ev.Sig
	}
	return out, nil
}
