package merkle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Dump is the JSON form of a standard Merkle tree.
type Dump struct {
	Format       string      `json:"format"`
	Tree         []string    `json:"tree"`
	Values       []DumpValue `json:"values"`
	LeafEncoding []string    `json:"leafEncoding"`
}

// DumpValue is one leaf value in a Dump.
type DumpValue struct {
	Value     []interface{} `json:"value"`
	TreeIndex int           `json:"treeIndex"`
}

// Parse decodes a structured dump object and validates it.
func Parse(data []byte) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var d Dump
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return Load(d)
}

// ParseEncoded decodes a dump that was stored as a JSON string holding
// the dump's JSON text.
func ParseEncoded(data []byte) (*Tree, error) {
	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil, fmt.Errorf("decode tree string: %w", err)
	}
	return Parse([]byte(inner))
}

// ParseEither tries the string-encoded form first and the structured form
// second.
func ParseEither(data []byte) (*Tree, error) {
	tree, encErr := ParseEncoded(data)
	if encErr == nil {
		return tree, nil
	}
	tree, err := Parse(data)
	if err == nil {
		return tree, nil
	}
	return nil, fmt.Errorf("string form: %v; object form: %w", encErr, err)
}

// Load validates a dump: node hashes, leaf positions and leaf hashes.
func Load(d Dump) (*Tree, error) {
	if d.Format != Format {
		return nil, fmt.Errorf("unsupported format %q", d.Format)
	}
	if len(d.Tree) == 0 {
		return nil, fmt.Errorf("empty tree")
	}
	if len(d.Values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	args, err := leafArguments(d.LeafEncoding)
	if err != nil {
		return nil, err
	}

	nodes := make([]common.Hash, len(d.Tree))
	for i, node := range d.Tree {
		raw, err := hexutil.Decode(node)
		if err != nil || len(raw) != common.HashLength {
			return nil, fmt.Errorf("node %d is not a 32-byte hex value", i)
		}
		nodes[i] = common.BytesToHash(raw)
	}
	for i := range nodes {
		if isLeafNode(len(nodes), i) {
			continue
		}
		if rightChild(i) >= len(nodes) {
			return nil, fmt.Errorf("node %d has a single child", i)
		}
		if nodes[i] != hashPair(nodes[leftChild(i)], nodes[rightChild(i)]) {
			return nil, fmt.Errorf("node %d does not hash its children", i)
		}
	}

	seen := make(map[int]struct{}, len(d.Values))
	values := make([]Value, 0, len(d.Values))
	for i, v := range d.Values {
		if v.TreeIndex < 0 || v.TreeIndex >= len(nodes) || !isLeafNode(len(nodes), v.TreeIndex) {
			return nil, fmt.Errorf("value %d: tree index %d is not a leaf", i, v.TreeIndex)
		}
		if _, dup := seen[v.TreeIndex]; dup {
			return nil, fmt.Errorf("value %d: tree index %d used twice", i, v.TreeIndex)
		}
		seen[v.TreeIndex] = struct{}{}

		fields, err := coerceFields(args, v.Value)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		leaf, err := leafHash(args, fields)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if leaf != nodes[v.TreeIndex] {
			return nil, fmt.Errorf("value %d: leaf hash mismatch at index %d", i, v.TreeIndex)
		}
		values = append(values, Value{Fields: fields, TreeIndex: v.TreeIndex, Leaf: leaf})
	}

	return &Tree{nodes: nodes, values: values, encoding: append([]string(nil), d.LeafEncoding...), args: args}, nil
}

// Dump returns the JSON form of the tree.
func (t *Tree) Dump() Dump {
	d := Dump{Format: Format, LeafEncoding: t.LeafEncoding()}
	for _, node := range t.nodes {
		d.Tree = append(d.Tree, node.Hex())
	}
	for _, v := range t.values {
		fields := make([]interface{}, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = formatField(f)
		}
		d.Values = append(d.Values, DumpValue{Value: fields, TreeIndex: v.TreeIndex})
	}
	return d
}

var (
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

var supportedTypes = map[string]struct{}{
	"address": {}, "uint256": {}, "int256": {}, "bytes32": {}, "string": {}, "bool": {},
}

func leafArguments(encoding []string) (abi.Arguments, error) {
	if len(encoding) == 0 {
		return nil, fmt.Errorf("missing leaf encoding")
	}
	args := make(abi.Arguments, 0, len(encoding))
	for _, typ := range encoding {
		if _, ok := supportedTypes[typ]; !ok {
			return nil, fmt.Errorf("unsupported leaf type %q", typ)
		}
		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			return nil, fmt.Errorf("leaf type %q: %w", typ, err)
		}
		args = append(args, abi.Argument{Type: t})
	}
	return args, nil
}

func coerceFields(args abi.Arguments, raw []interface{}) ([]interface{}, error) {
	if len(raw) != len(args) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(args), len(raw))
	}
	out := make([]interface{}, len(raw))
	for i, arg := range args {
		v, err := coerceField(arg.Type.String(), raw[i])
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerceField(typ string, raw interface{}) (interface{}, error) {
	switch typ {
	case "address":
		switch v := raw.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("invalid address %q", v)
			}
			return common.HexToAddress(v), nil
		}
	case "uint256", "int256":
		n, err := toBig(raw)
		if err != nil {
			return nil, err
		}
		if typ == "uint256" && (n.Sign() < 0 || n.BitLen() > 256) {
			return nil, fmt.Errorf("uint256 out of range: %s", n)
		}
		if typ == "int256" && (n.Cmp(minInt256) < 0 || n.Cmp(maxInt256) > 0) {
			return nil, fmt.Errorf("int256 out of range: %s", n)
		}
		return n, nil
	case "bytes32":
		switch v := raw.(type) {
		case [32]byte:
			return v, nil
		case common.Hash:
			return [32]byte(v), nil
		case string:
			b, err := hexutil.Decode(v)
			if err != nil || len(b) != 32 {
				return nil, fmt.Errorf("invalid bytes32 %q", v)
			}
			return [32]byte(common.BytesToHash(b)), nil
		}
	case "string":
		if v, ok := raw.(string); ok {
			return v, nil
		}
	case "bool":
		if v, ok := raw.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", raw, typ)
}

func toBig(raw interface{}) (*big.Int, error) {
	var s string
	switch v := raw.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return nil, fmt.Errorf("cannot use %T as integer", raw)
	}
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}

func formatField(v interface{}) interface{} {
	switch f := v.(type) {
	case common.Address:
		return f.Hex()
	case *big.Int:
		return f.String()
	case [32]byte:
		return common.Hash(f).Hex()
	default:
		return v
	}
}
