package plan

// =============================================================================
// Arguments
// =============================================================================

// ArgKind distinguishes literal arguments from references.
type ArgKind int

const (
	ArgLiteral ArgKind = iota
	ArgRef
	ArgList
)

// Arg is a single constructor or initializer argument.
type Arg struct {
	Kind  ArgKind
	Value any    // Literal scalar (string, int64, *big.Int, bool)
	Unit  string // Referenced unit for ArgRef
	Items []Arg  // Elements for ArgList
}

// Literal returns a literal argument.
func Literal(v any) Arg {
	return Arg{Kind: ArgLiteral, Value: v}
}

// Ref returns an argument that resolves to the deployed address of unit.
func Ref(unit string) Arg {
	return Arg{Kind: ArgRef, Unit: unit}
}

// List returns an argument holding an ordered sequence of arguments.
func List(items ...Arg) Arg {
	return Arg{Kind: ArgList, Items: items}
}

// =============================================================================
// Units
// =============================================================================

// InitPayload describes the initializer call a proxy unit forwards to its
// logic unit on construction.
type InitPayload struct {
	// Function is a bare method name ("initialize") or a full signature
	// ("initialize(address,string)").
	Function string
	Args     []Arg
}

// Unit is one deployable contract in a plan.
type Unit struct {
	Name     string
	Artifact string
	Args     []Arg
	Wraps    string // Logic unit wrapped by this proxy unit
	Init     *InitPayload
}

// IsProxy reports whether the unit wraps a logic unit.
func (u Unit) IsProxy() bool {
	return u.Wraps != ""
}

// References returns the distinct unit names u depends on, in first-seen
// order: the wrapped logic unit, then refs in args, then refs in the init
// payload.
func (u Unit) References() []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}

	if u.Wraps != "" {
		add(u.Wraps)
	}
	walkRefs(u.Args, add)
	if u.Init != nil {
		walkRefs(u.Init.Args, add)
	}
	return refs
}

func walkRefs(args []Arg, fn func(string)) {
	for _, a := range args {
		switch a.Kind {
		case ArgRef:
			fn(a.Unit)
		case ArgList:
			walkRefs(a.Items, fn)
		}
	}
}

// =============================================================================
// Plan
// =============================================================================

// Plan is the static description of one deployment run.
type Plan struct {
	Name      string
	Variables map[string]string
	Units     []Unit
}

// Unit returns the unit with the given name.
func (p *Plan) Unit(name string) (Unit, bool) {
	for _, u := range p.Units {
		if u.Name == name {
			return u, true
		}
	}
	return Unit{}, false
}
