package events

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseSchema turns an EAS schema string such as
// "uint256 chain_id,address contract_address,string[] tags" into ABI
// arguments. Tuple fields are not supported.
func ParseSchema(schema string) (abi.Arguments, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return nil, fmt.Errorf("empty schema")
	}
	if strings.ContainsAny(schema, "()") {
		return nil, fmt.Errorf("tuple fields are not supported: %q", schema)
	}

	parts := strings.Split(schema, ",")
	args := make(abi.Arguments, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid schema field %q", strings.TrimSpace(part))
		}
		typ, err := abi.NewType(fields[0], "", nil)
		if err != nil {
			return nil, fmt.Errorf("schema field %s: %w", fields[1], err)
		}
		if _, dup := seen[fields[1]]; dup {
			return nil, fmt.Errorf("duplicate schema field %s", fields[1])
		}
		seen[fields[1]] = struct{}{}
		args = append(args, abi.Argument{Name: fields[1], Type: typ})
	}
	return args, nil
}

// DecodeAttestationData decodes ABI-encoded attestation data against a
// schema. Values are normalized to JSON friendly forms: integers become
// decimal strings, addresses are checksummed and byte values are 0x-hex.
func DecodeAttestationData(schema string, data []byte) (map[string]interface{}, error) {
	args, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack attestation data: %w", err)
	}
	out := make(map[string]interface{}, len(args))
	for i, arg := range args {
		out[arg.Name] = normalizeValue(values[i])
	}
	return out, nil
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	case string, bool:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(raw), rv)
			return hexutil.Encode(raw)
		}
		fallthrough
	case reflect.Slice:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	default:
		return value
	}
}
