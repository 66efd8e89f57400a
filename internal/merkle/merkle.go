// Package merkle loads and checks standard Merkle tree dumps (format
// "standard-v1"): leaves are keccak256(keccak256(abi.encode(value))),
// inner nodes hash their sorted children, and node i has children 2i+1
// and 2i+2.
package merkle

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Format is the only supported dump format.
const Format = "standard-v1"

// Value is one leaf value with its position in the node array.
type Value struct {
	Fields    []interface{}
	TreeIndex int
	Leaf      common.Hash
}

// Tree is a validated standard Merkle tree.
type Tree struct {
	nodes    []common.Hash
	values   []Value
	encoding []string
	args     abi.Arguments
}

// Entry is an allow-list leaf expanded with its proof.
type Entry struct {
	Index   int
	Address common.Address
	Units   *big.Int
	Leaf    common.Hash
	Proof   []common.Hash
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash { return t.nodes[0] }

// Len returns the number of leaf values.
func (t *Tree) Len() int { return len(t.values) }

// LeafEncoding returns the ABI types of a leaf value.
func (t *Tree) LeafEncoding() []string { return append([]string(nil), t.encoding...) }

// Proof returns the sibling path from the node at treeIndex to the root.
func (t *Tree) Proof(treeIndex int) ([]common.Hash, error) {
	if treeIndex < 0 || treeIndex >= len(t.nodes) || !isLeafNode(len(t.nodes), treeIndex) {
		return nil, fmt.Errorf("index %d is not a leaf", treeIndex)
	}
	var proof []common.Hash
	for i := treeIndex; i > 0; i = parentIndex(i) {
		proof = append(proof, t.nodes[siblingIndex(i)])
	}
	return proof, nil
}

// VerifyRoot compares the tree root with a known root in hex.
func (t *Tree) VerifyRoot(expected string) error {
	if expected == "" {
		return nil
	}
	want := common.HexToHash(expected)
	if t.Root() != want {
		return fmt.Errorf("root %s does not match expected %s", t.Root().Hex(), want.Hex())
	}
	return nil
}

// Entries expands every value into an (address, units) entry with its
// proof. The leaf encoding must contain an address and a uint256.
func (t *Tree) Entries() ([]Entry, error) {
	addrPos, unitsPos := -1, -1
	for i, typ := range t.encoding {
		switch {
		case typ == "address" && addrPos < 0:
			addrPos = i
		case typ == "uint256" && unitsPos < 0:
			unitsPos = i
		}
	}
	if addrPos < 0 || unitsPos < 0 {
		return nil, fmt.Errorf("leaf encoding %v has no address and uint256 fields", t.encoding)
	}

	out := make([]Entry, 0, len(t.values))
	for i, v := range t.values {
		proof, err := t.Proof(v.TreeIndex)
		if err != nil {
			return nil, err
		}
		if !Verify(t.Root(), v.Leaf, proof) {
			return nil, fmt.Errorf("value %d: proof does not reach root", i)
		}
		out = append(out, Entry{
			Index:   i,
			Address: v.Fields[addrPos].(common.Address),
			Units:   new(big.Int).Set(v.Fields[unitsPos].(*big.Int)),
			Leaf:    v.Leaf,
			Proof:   proof,
		})
	}
	return out, nil
}

// Verify checks a proof against a root.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	node := leaf
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

func leafHash(args abi.Arguments, fields []interface{}) (common.Hash, error) {
	packed, err := args.Pack(fields...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode leaf: %w", err)
	}
	return crypto.Keccak256Hash(crypto.Keccak256(packed)), nil
}

func leftChild(i int) int   { return 2*i + 1 }
func rightChild(i int) int  { return 2*i + 2 }
func parentIndex(i int) int { return (i - 1) / 2 }

func siblingIndex(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}

func isLeafNode(size, i int) bool { return leftChild(i) >= size }
