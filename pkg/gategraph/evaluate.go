package gategraph

import (
	"fmt"
	"strings"

	"github.com/Quantmill-Labs/vouch/pkg/reasons"
)

// EvaluateDependencies fills in the causal flags for a gate list and
// returns the augmented list.
//
//   - REJECT with no failing ancestor in its dependency chain: primary.
//   - REJECT with at least one failing ancestor: propagated, not primary.
//   - A passing gate is never flagged, even when a dependency failed.
//
// Dependencies on unknown gate ids are ignored; they contribute no failing
// ancestor. If the graph contains a cycle, one synthetic REJECT gate
// (CycleGateID) is appended describing the cycle path, and every normal
// gate is still returned with best-effort flags.
func EvaluateDependencies(gates []Item) []Item {
	out := make([]Item, len(gates))
	copy(out, gates)

	index := make(map[string]int, len(out))
	for i, g := range out {
		if _, dup := index[g.GateID]; !dup {
			index[g.GateID] = i
		}
	}

	cycle := detectCycle(out, index)

	for i := range out {
		// Derived fields: never trust caller-set values.
		out[i].IsPrimaryFail = false
		out[i].IsPropagatedFail = false
		if out[i].Status != StatusReject {
			continue
		}
		if hasFailingAncestor(i, out, index) {
			out[i].IsPropagatedFail = true
		} else {
			out[i].IsPrimaryFail = true
		}
	}

	if cycle != nil {
		out = append(out, Item{
			GateID:        CycleGateID,
			GateName:      "Gate Dependency Cycle",
			Status:        StatusReject,
			Message:       fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
			ReasonCodes:   []string{reasons.CodeGateDependencyCycle},
			IsPrimaryFail: true,
			Details:       map[string]any{"cycle_path": cycle},
		})
	}

	return out
}

// detectCycle walks the dependency graph with an iterative DFS and an
// explicit on-stack set, so a misconfigured graph can never blow the call
// stack. It returns the first cycle found as a closed path
// (e.g. [g1 g2 g3 g1]), or nil.
func detectCycle(gates []Item, index map[string]int) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(gates))

	type frame struct {
		id   string
		next int
	}

	for _, root := range gates {
		if color[root.GateID] != white {
			continue
		}
		stack := []frame{{id: root.GateID}}
		path := []string{root.GateID}
		color[root.GateID] = gray

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			deps := gates[index[f.id]].DependsOn

			if f.next >= len(deps) {
				color[f.id] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			dep := deps[f.next]
			f.next++
			if _, known := index[dep]; !known {
				continue
			}
			switch color[dep] {
			case white:
				color[dep] = gray
				stack = append(stack, frame{id: dep})
				path = append(path, dep)
			case gray:
				for i, p := range path {
					if p == dep {
						cyc := append([]string{}, path[i:]...)
						return append(cyc, dep)
					}
				}
			}
		}
	}
	return nil
}

// hasFailingAncestor walks the transitive dependency chain of gate i with
// a visited set, so cyclic configurations still terminate.
func hasFailingAncestor(i int, gates []Item, index map[string]int) bool {
	visited := make(map[string]bool)
	queue := append([]string{}, gates[i].DependsOn...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		gi, ok := index[id]
		if !ok {
			continue
		}
		if gates[gi].Status == StatusReject {
			return true
		}
		queue = append(queue, gates[gi].DependsOn...)
	}
	return false
}
