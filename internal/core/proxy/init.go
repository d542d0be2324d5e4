// Package proxy builds the constructor arguments of upgradeable proxies.
//
// A proxy unit is deployed with exactly two constructor arguments: the
// address of its logic contract and the ABI-encoded call the proxy forwards
// to that logic on construction. Everything here is pure.
package proxy

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/artpar/chaindeploy/internal/core/abicodec"
	"github.com/artpar/chaindeploy/internal/core/plan"
)

// Call is an initialization call with its arguments already resolved.
type Call struct {
	Function string
	Args     []any
}

// EncodeInit ABI-encodes call as calldata (selector followed by arguments).
//
// Function may be a full signature such as "initialize(address,string)", in
// which case logicABI is not consulted, or a bare name that is looked up in
// logicABI. A bare name requires a non-nil logicABI and must not be
// overloaded there.
func EncodeInit(call Call, logicABI *abi.ABI) ([]byte, error) {
	inputs, selector, err := lookupFunction(call.Function, logicABI)
	if err != nil {
		return nil, err
	}

	values, err := abicodec.CoerceArguments(inputs, call.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", plan.ErrInvalidInitPayload, call.Function, err)
	}

	packed, err := inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", plan.ErrInvalidInitPayload, call.Function, err)
	}

	data := make([]byte, 0, len(selector)+len(packed))
	data = append(data, selector...)
	return append(data, packed...), nil
}

// ConstructorArgs returns the constructor arguments of a proxy pointing at
// logic: the logic address followed by the init calldata.
func ConstructorArgs(logic common.Address, payload []byte) []any {
	if payload == nil {
		payload = []byte{}
	}
	return []any{logic, payload}
}

func lookupFunction(fn string, logicABI *abi.ABI) (abi.Arguments, []byte, error) {
	if strings.Contains(fn, "(") {
		f, err := w3.NewFunc(fn, "")
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", plan.ErrInvalidInitPayload, fn, err)
		}
		return f.Args, f.Selector[:], nil
	}

	if logicABI == nil {
		return nil, nil, fmt.Errorf("%w: %s: logic ABI unavailable, use a full signature", plan.ErrInvalidInitPayload, fn)
	}
	var matches []abi.Method
	for _, method := range logicABI.Methods {
		if method.RawName == fn {
			matches = append(matches, method)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("%w: %s not found in logic ABI", plan.ErrInvalidInitPayload, fn)
	case 1:
		return matches[0].Inputs, matches[0].ID, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s is overloaded, use a full signature", plan.ErrInvalidInitPayload, fn)
	}
}
