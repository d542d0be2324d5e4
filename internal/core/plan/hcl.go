package plan

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// hclFile is the decoded shape of an HCL plan:
//
//	name      = "insurance"
//	variables = { setup_label = "Initial Setup" }
//
//	unit "AccountProxy" {
//	  artifact = "AccountProxy"
//	  wraps    = "AccountLogic"
//	  init {
//	    function = "initialize"
//	    args     = [var("deployer"), var("setup_label")]
//	  }
//	}
type hclFile struct {
	Name      string            `hcl:"name,optional"`
	Variables map[string]string `hcl:"variables,optional"`
	Units     []hclUnit         `hcl:"unit,block"`
}

type hclUnit struct {
	Name     string         `hcl:"name,label"`
	Artifact string         `hcl:"artifact"`
	Wraps    string         `hcl:"wraps,optional"`
	Args     hcl.Expression `hcl:"args,optional"`
	Init     *hclInit       `hcl:"init,block"`
}

type hclInit struct {
	Function string         `hcl:"function"`
	Args     hcl.Expression `hcl:"args,optional"`
}

// refType is the cty value produced by the ref() function.
var refType = cty.Object(map[string]cty.Type{"ref": cty.String})

// ParseHCL parses an HCL plan into a validated Plan.
// This is a pure function - no I/O, no side effects.
//
// Two functions are available inside expressions: ref("Unit") produces a
// reference and var("name") produces a ${name} placeholder, since HCL would
// otherwise try to interpolate ${...} itself.
func ParseHCL(filename string, content []byte) (*Plan, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyInput
	}

	file, diags := hclsyntax.ParseConfig(content, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, NewPlanError("", diags.Error(), ErrInvalidSyntax)
	}

	evalCtx := &hcl.EvalContext{
		Functions: map[string]function.Function{
			"ref": refFunc,
			"var": varFunc,
		},
	}

	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &raw); diags.HasErrors() {
		return nil, NewPlanError("", diags.Error(), ErrInvalidSyntax)
	}

	p := &Plan{
		Name:      raw.Name,
		Variables: raw.Variables,
		Units:     make([]Unit, 0, len(raw.Units)),
	}
	if p.Variables == nil {
		p.Variables = make(map[string]string)
	}

	for _, ru := range raw.Units {
		field := "units." + ru.Name
		u := Unit{
			Name:     ru.Name,
			Artifact: ru.Artifact,
			Wraps:    ru.Wraps,
		}

		args, err := evalHCLArgs(field+".args", ru.Args, evalCtx)
		if err != nil {
			return nil, err
		}
		u.Args = args

		if ru.Init != nil {
			initArgs, err := evalHCLArgs(field+".init.args", ru.Init.Args, evalCtx)
			if err != nil {
				return nil, err
			}
			u.Init = &InitPayload{Function: ru.Init.Function, Args: initArgs}
		}

		p.Units = append(p.Units, u)
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func evalHCLArgs(field string, expr hcl.Expression, evalCtx *hcl.EvalContext) ([]Arg, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, NewPlanError(field, diags.Error(), ErrInvalidArgument)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsTupleType() && !val.Type().IsListType() {
		return nil, NewPlanError(field, "args must be a list", ErrInvalidArgument)
	}
	return convertCtyElements(field, val)
}

func convertCtyElements(field string, val cty.Value) ([]Arg, error) {
	var args []Arg
	for it := val.ElementIterator(); it.Next(); {
		key, elem := it.Element()
		idx, _ := key.AsBigFloat().Int64()
		a, err := convertCtyArg(fmt.Sprintf("%s[%d]", field, idx), elem)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func convertCtyArg(field string, val cty.Value) (Arg, error) {
	if val.IsNull() || !val.IsKnown() {
		return Arg{}, NewPlanError(field, "argument is null", ErrInvalidArgument)
	}

	ty := val.Type()
	switch {
	case ty.Equals(refType):
		return Ref(val.GetAttr("ref").AsString()), nil
	case ty == cty.String:
		return Literal(val.AsString()), nil
	case ty == cty.Bool:
		return Literal(val.True()), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return Arg{}, NewPlanError(field, "fractional numbers are not supported, quote the value", ErrInvalidArgument)
		}
		n, _ := bf.Int(nil)
		if n.IsInt64() {
			return Literal(n.Int64()), nil
		}
		return Literal(n), nil
	case ty.IsTupleType() || ty.IsListType():
		items, err := convertCtyElements(field, val)
		if err != nil {
			return Arg{}, err
		}
		return List(items...), nil
	default:
		return Arg{}, NewPlanError(field, fmt.Sprintf("unsupported argument type %s", ty.FriendlyName()), ErrInvalidArgument)
	}
}

// =============================================================================
// HCL Functions
// =============================================================================

var refFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "unit", Type: cty.String},
	},
	Type: function.StaticReturnType(refType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.ObjectVal(map[string]cty.Value{"ref": args[0]}), nil
	},
})

var varFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal("${" + args[0].AsString() + "}"), nil
	},
})
