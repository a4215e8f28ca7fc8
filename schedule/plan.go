package schedule

import (
	"sort"

	"github.com/jonwraymond/healthops/health"
)

// planLevels arranges registrations into dependency levels: every check
// appears in a later level than all of its dependencies present in the set,
// so a check never executes before its dependencies have finished in the
// same cycle. Within a level, checks are ordered by priority descending,
// then by name for determinism. Dependencies outside the set are ignored.
//
// The registry rejects dependency cycles at registration time, so a cycle
// here means registrations changed underneath us; the offending checks are
// dropped from the plan rather than run out of order.
func planLevels(regs []*health.Registration) [][]*health.Registration {
	inSet := make(map[string]*health.Registration, len(regs))
	for _, reg := range regs {
		inSet[reg.Name()] = reg
	}

	indegree := make(map[string]int, len(regs))
	dependents := make(map[string][]string, len(regs))
	for _, reg := range regs {
		name := reg.Name()
		for _, dep := range reg.Config().DependsOn {
			if _, ok := inSet[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	frontier := make([]*health.Registration, 0, len(regs))
	for _, reg := range regs {
		if indegree[reg.Name()] == 0 {
			frontier = append(frontier, reg)
		}
	}

	var levels [][]*health.Registration
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			pi, pj := frontier[i].Config().Priority, frontier[j].Config().Priority
			if pi != pj {
				return pi > pj
			}
			return frontier[i].Name() < frontier[j].Name()
		})
		levels = append(levels, frontier)

		var next []*health.Registration
		for _, reg := range frontier {
			for _, dependent := range dependents[reg.Name()] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, inSet[dependent])
				}
			}
		}
		frontier = next
	}
	return levels
}
