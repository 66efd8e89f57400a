package merkle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Build constructs a tree from raw values, sorting leaves by hash.
func Build(encoding []string, values [][]interface{}) (*Tree, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	args, err := leafArguments(encoding)
	if err != nil {
		return nil, err
	}

	type hashed struct {
		fields []interface{}
		index  int
		leaf   common.Hash
	}
	leaves := make([]hashed, 0, len(values))
	for i, raw := range values {
		fields, err := coerceFields(args, raw)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		leaf, err := leafHash(args, fields)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		leaves = append(leaves, hashed{fields: fields, index: i, leaf: leaf})
	}
	sort.SliceStable(leaves, func(a, b int) bool {
		return bytes.Compare(leaves[a].leaf[:], leaves[b].leaf[:]) < 0
	})

	n := len(leaves)
	nodes := make([]common.Hash, 2*n-1)
	out := make([]Value, n)
	for i, l := range leaves {
		idx := len(nodes) - 1 - i
		nodes[idx] = l.leaf
		out[l.index] = Value{Fields: l.fields, TreeIndex: idx, Leaf: l.leaf}
	}
	for i := len(nodes) - 1 - n; i >= 0; i-- {
		nodes[i] = hashPair(nodes[leftChild(i)], nodes[rightChild(i)])
	}
	return &Tree{nodes: nodes, values: out, encoding: append([]string(nil), encoding...), args: args}, nil
}
