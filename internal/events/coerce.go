package events

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/token"
)

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

func requireParam(log model.RawLog, event, field string) (interface{}, error) {
	v, ok := log.Param(field)
	if !ok {
		return nil, model.NewValidationError(event, field, "missing")
	}
	return v, nil
}

// asUint256 coerces numeric or numeric-string input into an exact uint256.
func asUint256(event, field string, value interface{}) (*big.Int, error) {
	out, err := toBigInt(value)
	if err != nil {
		return nil, model.NewValidationError(event, field, "%v", err)
	}
	if !token.InRange(out) {
		return nil, model.NewValidationError(event, field, "out of uint256 range: %s", out.String())
	}
	return out, nil
}

func toBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("not an integer: %v", v)
		}
		if math.Abs(v) > maxExactFloat {
			return nil, fmt.Errorf("float %v is not exact", v)
		}
		return big.NewInt(int64(v)), nil
	case json.Number:
		return parseIntString(v.String())
	case string:
		return parseIntString(v)
	default:
		return nil, fmt.Errorf("unsupported integer type %T", value)
	}
}

func parseIntString(input string) (*big.Int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("empty integer string")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		out, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex integer: %q", input)
		}
		return out, nil
	}
	out, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", input)
	}
	return out, nil
}

// asUint256Slice coerces an array parameter element by element.
func asUint256Slice(event, field string, value interface{}) ([]*big.Int, error) {
	switch v := value.(type) {
	case []*big.Int:
		out := make([]*big.Int, 0, len(v))
		for i, item := range v {
			n, err := asUint256(event, fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case []interface{}:
		out := make([]*big.Int, 0, len(v))
		for i, item := range v {
			n, err := asUint256(event, fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case []string:
		out := make([]*big.Int, 0, len(v))
		for i, item := range v {
			n, err := asUint256(event, fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return nil, model.NewValidationError(event, field, "expected array, got %T", value)
		}
		out := make([]*big.Int, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := asUint256(event, fmt.Sprintf("%s[%d]", field, i), rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
}

// asAddress validates an address and returns its checksummed form.
func asAddress(event, field string, value interface{}) (string, error) {
	switch v := value.(type) {
	case common.Address:
		return v.Hex(), nil
	case *common.Address:
		if v == nil {
			return "", model.NewValidationError(event, field, "nil address")
		}
		return v.Hex(), nil
	case string:
		s := strings.TrimSpace(v)
		if !common.IsHexAddress(s) {
			return "", model.NewValidationError(event, field, "invalid address %q", v)
		}
		return common.HexToAddress(s).Hex(), nil
	default:
		return "", model.NewValidationError(event, field, "unsupported address type %T", value)
	}
}

// asBytes32 returns the 0x-prefixed hex of a 32-byte value.
func asBytes32(event, field string, value interface{}) (string, error) {
	switch v := value.(type) {
	case [32]byte:
		return common.Hash(v).Hex(), nil
	case common.Hash:
		return v.Hex(), nil
	case []byte:
		if len(v) != common.HashLength {
			return "", model.NewValidationError(event, field, "expected 32 bytes, got %d", len(v))
		}
		return common.BytesToHash(v).Hex(), nil
	case string:
		raw, err := hexutil.Decode(strings.TrimSpace(v))
		if err != nil {
			return "", model.NewValidationError(event, field, "invalid hex: %v", err)
		}
		if len(raw) != common.HashLength {
			return "", model.NewValidationError(event, field, "expected 32 bytes, got %d", len(raw))
		}
		return common.BytesToHash(raw).Hex(), nil
	default:
		return "", model.NewValidationError(event, field, "unsupported bytes32 type %T", value)
	}
}

func asString(event, field string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", model.NewValidationError(event, field, "expected string, got %T", value)
	}
	return s, nil
}

func asBytes(event, field string, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		raw, err := hexutil.Decode(strings.TrimSpace(v))
		if err != nil {
			return nil, model.NewValidationError(event, field, "invalid hex: %v", err)
		}
		return raw, nil
	default:
		return nil, model.NewValidationError(event, field, "unsupported bytes type %T", value)
	}
}

func asUint64(event, field string, value interface{}) (uint64, error) {
	n, err := asUint256(event, field, value)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, model.NewValidationError(event, field, "does not fit in uint64: %s", n.String())
	}
	return n.Uint64(), nil
}

func asBool(event, field string, value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, model.NewValidationError(event, field, "expected bool, got %T", value)
	}
	return b, nil
}
