package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses plan content, choosing the format from the file extension:
// ".hcl" is parsed as HCL, anything else as YAML (which also accepts JSON).
// The returned plan has been validated.
func Parse(filename string, content []byte) (*Plan, error) {
	if strings.EqualFold(filepath.Ext(filename), ".hcl") {
		return ParseHCL(filename, content)
	}
	return ParseYAML(content)
}

// yamlPlan is the on-disk YAML shape of a plan.
type yamlPlan struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables"`
	Units     []yamlUnit        `yaml:"units"`
}

type yamlUnit struct {
	Name     string      `yaml:"name"`
	Artifact string      `yaml:"artifact"`
	Args     []yaml.Node `yaml:"args"`
	Wraps    string      `yaml:"wraps"`
	Init     *yamlInit   `yaml:"init"`
}

type yamlInit struct {
	Function string      `yaml:"function"`
	Args     []yaml.Node `yaml:"args"`
}

// ParseYAML parses a YAML plan into a validated Plan.
// This is a pure function - no I/O, no side effects.
//
// Arguments are written as scalars for literals and as a single-key
// mapping {ref: UnitName} for references:
//
//	units:
//	  - name: Profiles
//	    artifact: Profile
//	    args: [{ref: AccountProxy}, "${deployer}"]
func ParseYAML(content []byte) (*Plan, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyInput
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var raw yamlPlan
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, NewPlanError("", err.Error(), ErrInvalidSyntax)
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

		args, err := convertYAMLArgs(field+".args", ru.Args)
		if err != nil {
			return nil, err
		}
		u.Args = args

		if ru.Init != nil {
			initArgs, err := convertYAMLArgs(field+".init.args", ru.Init.Args)
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

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

func convertYAMLArgs(field string, nodes []yaml.Node) ([]Arg, error) {
	args := make([]Arg, 0, len(nodes))
	for i := range nodes {
		a, err := convertYAMLArg(fmt.Sprintf("%s[%d]", field, i), &nodes[i])
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func convertYAMLArg(field string, node *yaml.Node) (Arg, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return convertYAMLArg(field, node.Alias)
	case yaml.SequenceNode:
		items := make([]Arg, 0, len(node.Content))
		for i, child := range node.Content {
			a, err := convertYAMLArg(fmt.Sprintf("%s[%d]", field, i), child)
			if err != nil {
				return Arg{}, err
			}
			items = append(items, a)
		}
		return List(items...), nil
	case yaml.MappingNode:
		var m map[string]any
		if err := node.Decode(&m); err != nil {
			return Arg{}, NewPlanError(field, err.Error(), ErrInvalidArgument)
		}
		ref, ok := m["ref"].(string)
		if !ok || len(m) != 1 {
			return Arg{}, NewPlanError(field, "mapping arguments must have exactly one key: ref", ErrInvalidArgument)
		}
		return Ref(ref), nil
	case yaml.ScalarNode:
		return convertYAMLScalar(field, node)
	default:
		return Arg{}, NewPlanError(field, "unsupported argument", ErrInvalidArgument)
	}
}

// integerLiteral matches the plain integer forms YAML accepts.
var integerLiteral = regexp.MustCompile(`^[-+]?(0[xX][0-9a-fA-F_]+|0[oO][0-7_]+|0[bB][01_]+|[0-9][0-9_]*)$`)

// convertYAMLScalar maps a scalar to a literal. YAML resolves integers
// beyond 64 bits to floats or strings, so plain integer text is parsed
// into a *big.Int directly.
func convertYAMLScalar(field string, node *yaml.Node) (Arg, error) {
	if node.Style == 0 && integerLiteral.MatchString(node.Value) {
		if n, ok := new(big.Int).SetString(strings.ReplaceAll(node.Value, "_", ""), 0); ok {
			if n.IsInt64() {
				return Literal(n.Int64()), nil
			}
			return Literal(n), nil
		}
	}

	switch tag := node.ShortTag(); tag {
	case "!!null":
		return Arg{}, NewPlanError(field, "argument is null", ErrInvalidArgument)
	case "!!str":
		return Literal(node.Value), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Arg{}, NewPlanError(field, err.Error(), ErrInvalidArgument)
		}
		return Literal(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return Arg{}, NewPlanError(field, err.Error(), ErrInvalidArgument)
		}
		return Literal(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Arg{}, NewPlanError(field, err.Error(), ErrInvalidArgument)
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return Arg{}, NewPlanError(field, "fractional numbers are not supported, quote the value", ErrInvalidArgument)
		}
		if math.Abs(f) > maxExactFloat {
			return Arg{}, NewPlanError(field, fmt.Sprintf("%s cannot be represented exactly, write it as an integer or quote it", node.Value), ErrInvalidArgument)
		}
		return Literal(big.NewInt(int64(f))), nil
	default:
		return Arg{}, NewPlanError(field, fmt.Sprintf("unsupported argument type %s", tag), ErrInvalidArgument)
	}
}
