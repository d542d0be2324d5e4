package deployment

import (
	"fmt"
	"strings"

	"github.com/artpar/chaindeploy/internal/core/plan"
)

// =============================================================================
// Unit Ordering Functions
// =============================================================================

// Order sorts plan units so every unit comes after the units it references
// (through wraps, args or init args), using Kahn's algorithm.
//
// Ties are broken by declaration order: whenever several units are ready,
// the one declared first in the plan goes next. An already sorted plan is
// therefore returned unchanged.
//
// Returns ErrCyclicDependency, wrapped in a PlanError naming the cycle, if
// no valid order exists.
//
// Example:
//
//	// Units: Profiles → AccountProxy → AccountLogic
//	units := []plan.Unit{
//	    {Name: "Profiles", Args: []plan.Arg{plan.Ref("AccountProxy")}},
//	    {Name: "AccountProxy", Wraps: "AccountLogic"},
//	    {Name: "AccountLogic"},
//	}
//	ordered, _ := Order(&plan.Plan{Units: units})
//	// Result: [AccountLogic, AccountProxy, Profiles]
func Order(p *plan.Plan) ([]plan.Unit, error) {
	if p == nil || len(p.Units) == 0 {
		return nil, nil
	}

	// Build dependency graph keyed by declaration index
	index := make(map[string]int, len(p.Units))
	for i, u := range p.Units {
		index[u.Name] = i
	}

	inDegree := make([]int, len(p.Units))
	dependents := make([][]int, len(p.Units))
	for i, u := range p.Units {
		for _, ref := range u.References() {
			j, ok := index[ref]
			if !ok {
				return nil, plan.NewPlanError("units."+u.Name, fmt.Sprintf("unknown unit %q", ref), plan.ErrUnknownReference)
			}
			if j == i {
				return nil, plan.NewPlanError("units", "cycle: "+u.Name+" -> "+u.Name, plan.ErrCyclicDependency)
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, len(p.Units))
	result := make([]plan.Unit, 0, len(p.Units))
	for len(result) < len(p.Units) {
		next := -1
		for i := range p.Units {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, plan.NewPlanError("units", "cycle: "+strings.Join(findCycle(p, done), " -> "), plan.ErrCyclicDependency)
		}

		done[next] = true
		result = append(result, p.Units[next])
		for _, dep := range dependents[next] {
			inDegree[dep]--
		}
	}

	return result, nil
}

// findCycle returns one reference cycle among the units not yet ordered,
// as a path that starts and ends with the same unit name.
func findCycle(p *plan.Plan, done []bool) []string {
	index := make(map[string]int, len(p.Units))
	for i, u := range p.Units {
		index[u.Name] = i
	}

	const (
		unvisited = iota
		onStack
		finished
	)
	state := make([]int, len(p.Units))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = onStack
		stack = append(stack, i)
		for _, ref := range p.Units[i].References() {
			j := index[ref]
			if done[j] {
				continue
			}
			switch state[j] {
			case onStack:
				var path []string
				for k := len(stack) - 1; k >= 0; k-- {
					path = append([]string{p.Units[stack[k]].Name}, path...)
					if stack[k] == j {
						break
					}
				}
				return append(path, p.Units[j].Name)
			case unvisited:
				if cycle := visit(j); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = finished
		return nil
	}

	for i := range p.Units {
		if !done[i] && state[i] == unvisited {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
