// Package action contains reified effects - descriptions of what to do
// without actually doing it. These are pure data structures.
package action

import (
	"github.com/frobware/go-nexthop"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
}

// CreateNexthop installs a new nexthop. It fails if the id is taken.
type CreateNexthop struct {
	Nexthop nexthop.Nexthop
}

func (CreateNexthop) isAction() {}

// ReplaceNexthop installs a nexthop, overwriting any existing one with
// the same id.
type ReplaceNexthop struct {
	Nexthop nexthop.Nexthop
}

func (ReplaceNexthop) isAction() {}

// DeleteNexthop removes a nexthop by id.
type DeleteNexthop struct {
	ID nexthop.ID
}

func (DeleteNexthop) isAction() {}

// Sequence executes actions in order, stopping at the first failure.
type Sequence struct {
	Actions []Action
}

func (Sequence) isAction() {}
