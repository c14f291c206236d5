// Package compute contains pure functions for business logic.
// Functions in this package perform no I/O - they transform data into actions.
package compute

import (
	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/action"
)

// FlushPhase names what a flush sweep removes.
type FlushPhase int

const (
	// PhaseSelected removes what the user's selector matches.
	PhaseSelected FlushPhase = iota
	// PhaseGroups removes group nexthops only.
	PhaseGroups
	// PhaseSingles removes the nexthops left after PhaseGroups.
	PhaseSingles
)

func (p FlushPhase) String() string {
	switch p {
	case PhaseGroups:
		return "groups"
	case PhaseSingles:
		return "singles"
	default:
		return "selected"
	}
}

// FlushPass is one dump-and-delete sweep of a flush.
type FlushPass struct {
	Phase    FlushPhase
	Selector nexthop.Selector
}

// FlushPasses returns the sweeps needed to flush sel. A flush of
// everything removes groups before any other nexthop, since the kernel
// refuses to delete a nexthop that a group still references. A flush
// narrowed by a selector is a single sweep.
func FlushPasses(sel nexthop.Selector, all bool) []FlushPass {
	if !all {
		return []FlushPass{{Phase: PhaseSelected, Selector: sel}}
	}
	return []FlushPass{
		{Phase: PhaseGroups, Selector: sel.WithGroups(true)},
		{Phase: PhaseSingles, Selector: sel.WithGroups(false)},
	}
}

// FlushAction returns the delete for a dumped nexthop, or false when the
// record is not selected or carries no id.
// Pure function.
func FlushAction(n nexthop.Nexthop, sel nexthop.Selector) (action.Action, bool) {
	if n.ID == 0 || !sel.Match(n) {
		return nil, false
	}
	return action.DeleteNexthop{ID: n.ID}, true
}

// CreateAction returns the action that installs n, honouring replace.
// Pure function.
func CreateAction(n nexthop.Nexthop, replace bool) action.Action {
	if replace {
		return action.ReplaceNexthop{Nexthop: n}
	}
	return action.CreateNexthop{Nexthop: n}
}

// FilterNexthops returns the nexthops matching the predicate.
// Pure function.
func FilterNexthops(nhs []nexthop.Nexthop, predicate func(nexthop.Nexthop) bool) []nexthop.Nexthop {
	var result []nexthop.Nexthop
	for _, n := range nhs {
		if predicate(n) {
			result = append(result, n)
		}
	}
	return result
}
