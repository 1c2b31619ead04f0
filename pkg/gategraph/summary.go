package gategraph

// NewSummary wraps a gate list into a Summary. When computeDependencies is
// true the causal flags (and cycle handling) are derived first.
//
// OverallStatus follows worst-of precedence: REJECT > WARN > PASS >
// UNKNOWN. An empty gate list is UNKNOWN.
func NewSummary(gates []Item, source, evaluator string, computeDependencies bool) Summary {
	items := gates
	if computeDependencies {
		items = EvaluateDependencies(gates)
	} else {
		items = make([]Item, len(gates))
		copy(items, gates)
	}

	counts := map[Status]int{
		StatusPass:    0,
		StatusWarn:    0,
		StatusReject:  0,
		StatusUnknown: 0,
	}
	for _, g := range items {
		counts[g.Status]++
	}

	overall := StatusUnknown
	switch {
	case counts[StatusReject] > 0:
		overall = StatusReject
	case counts[StatusWarn] > 0:
		overall = StatusWarn
	case counts[StatusPass] > 0:
		overall = StatusPass
	}

	return Summary{
		Gates:         items,
		OverallStatus: overall,
		Counts:        counts,
		TotalGates:    len(items),
		Source:        source,
		Evaluator:     evaluator,
	}
}
