// Package abicodec converts plan argument values into the Go values the
// go-ethereum ABI packer expects for a given Solidity type.
package abicodec

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lmittmann/w3"
)

var (
	ErrArgumentCount   = errors.New("wrong number of arguments")
	ErrValueMismatch   = errors.New("value does not match ABI type")
	ErrUnsupportedType = errors.New("unsupported ABI type")
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// CoerceArguments converts values positionally against args.
func CoerceArguments(args abi.Arguments, values []any) ([]any, error) {
	if len(args) != len(values) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrArgumentCount, len(args), len(values))
	}

	out := make([]any, len(values))
	for i, arg := range args {
		v, err := Coerce(arg.Type, values[i])
		if err != nil {
			name := arg.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, arg.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

// Coerce converts v into the Go representation of typ.
//
// Accepted inputs:
//   - address: common.Address or a hex string
//   - bool: bool or "true"/"false"
//   - string: any scalar
//   - intN/uintN: Go integers, *big.Int, decimal/hex strings or unit strings ("1 ether")
//   - bytes/bytesN: []byte or 0x-prefixed hex
//   - T[]/T[N]: []any of elements accepted for T
func Coerce(typ abi.Type, v any) (any, error) {
	switch typ.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.BoolTy:
		return toBool(v)
	case abi.StringTy:
		return toString(v)
	case abi.IntTy, abi.UintTy:
		return toInteger(typ, v)
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy:
		return toFixedBytes(typ, v)
	case abi.SliceTy, abi.ArrayTy:
		return toSequence(typ, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ.String())
	}
}

func toAddress(v any) (any, error) {
	switch val := v.(type) {
	case common.Address:
		return val, nil
	case string:
		if !common.IsHexAddress(val) {
			return nil, fmt.Errorf("%w: %q is not an address", ErrValueMismatch, val)
		}
		return common.HexToAddress(val), nil
	default:
		return nil, fmt.Errorf("%w: %T is not an address", ErrValueMismatch, v)
	}
}

func toBool(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrValueMismatch, val)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a bool", ErrValueMismatch, v)
	}
}

func toString(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case common.Address:
		return val.Hex(), nil
	case *big.Int:
		return val.String(), nil
	case bool, int, int64, uint64:
		return fmt.Sprint(val), nil
	default:
		return nil, fmt.Errorf("%w: %T is not a string", ErrValueMismatch, v)
	}
}

func toInteger(typ abi.Type, v any) (any, error) {
	n, err := bigInt(v)
	if err != nil {
		return nil, err
	}

	if typ.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > typ.Size {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrValueMismatch, n, typ.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		minVal := new(big.Int).Neg(limit)
		if n.Cmp(minVal) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%w: %s overflows %s", ErrValueMismatch, n, typ.String())
		}
	}

	rt := typ.GetType()
	if rt == bigIntType {
		return n, nil
	}
	if typ.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(rt).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(rt).Interface(), nil
}

func bigInt(v any) (*big.Int, error) {
	switch val := v.(type) {
	case *big.Int:
		return new(big.Int).Set(val), nil
	case int:
		return big.NewInt(int64(val)), nil
	case int64:
		return big.NewInt(val), nil
	case int32:
		return big.NewInt(int64(val)), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case string:
		s := strings.TrimSpace(val)
		if n, ok := new(big.Int).SetString(s, 0); ok {
			return n, nil
		}
		if n := parseUnits(s); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("%w: %q is not an integer", ErrValueMismatch, val)
	default:
		return nil, fmt.Errorf("%w: %T is not an integer", ErrValueMismatch, v)
	}
}

// parseUnits parses amounts such as "1.5 ether" or "20 gwei".
func parseUnits(s string) (n *big.Int) {
	defer func() {
		if recover() != nil {
			n = nil
		}
	}()
	return w3.I(s)
}

func toBytes(v any) (any, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return decodeHex(val)
	default:
		return nil, fmt.Errorf("%w: %T is not bytes", ErrValueMismatch, v)
	}
}

func toFixedBytes(typ abi.Type, v any) (any, error) {
	raw, err := toBytes(v)
	if err != nil {
		return nil, err
	}
	b := raw.([]byte)
	if len(b) > typ.Size {
		return nil, fmt.Errorf("%w: %d bytes do not fit %s", ErrValueMismatch, len(b), typ.String())
	}

	arr := reflect.New(typ.GetType()).Elem()
	reflect.Copy(arr.Slice(0, typ.Size), reflect.ValueOf(b))
	return arr.Interface(), nil
}

func toSequence(typ abi.Type, v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a list", ErrValueMismatch, v)
	}
	if typ.T == abi.ArrayTy && len(items) != typ.Size {
		return nil, fmt.Errorf("%w: %s needs %d elements, got %d", ErrValueMismatch, typ.String(), typ.Size, len(items))
	}

	var out reflect.Value
	if typ.T == abi.SliceTy {
		out = reflect.MakeSlice(typ.GetType(), len(items), len(items))
	} else {
		out = reflect.New(typ.GetType()).Elem()
	}

	for i, item := range items {
		elem, err := Coerce(*typ.Elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

func decodeHex(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	switch {
	case errors.Is(err, hexutil.ErrMissingPrefix), errors.Is(err, hexutil.ErrEmptyString):
		return nil, fmt.Errorf("%w: %q is not 0x-prefixed hex", ErrValueMismatch, s)
	case err != nil:
		return nil, fmt.Errorf("%w: %q is not hex: %v", ErrValueMismatch, s, err)
	}
	return b, nil
}
