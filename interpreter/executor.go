package interpreter

import (
	"context"
	"fmt"

	"github.com/frobware/go-nexthop/action"
	"github.com/frobware/go-nexthop/codec"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
	ExecuteAll(ctx context.Context, actions []action.Action) error
}

// executor encodes actions with a codec and sends them over a transport.
type executor struct {
	codec     *codec.Codec
	transport Transport
}

// NewExecutor creates a new action executor.
func NewExecutor(c *codec.Codec, t Transport) ActionExecutor {
	return &executor{
		codec:     c,
		transport: t,
	}
}

// Execute runs a single action.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.CreateNexthop:
		req, err := e.codec.NewNexthop(a.Nexthop, codec.CreateFlags)
		if err != nil {
			return err
		}
		_, err = e.transport.Execute(ctx, req)
		return err

	case action.ReplaceNexthop:
		req, err := e.codec.NewNexthop(a.Nexthop, codec.ReplaceFlags)
		if err != nil {
			return err
		}
		_, err = e.transport.Execute(ctx, req)
		return err

	case action.DeleteNexthop:
		req, err := e.codec.DeleteNexthop(a.ID)
		if err != nil {
			return err
		}
		_, err = e.transport.Execute(ctx, req)
		return err

	case action.Sequence:
		return e.ExecuteAll(ctx, a.Actions)

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ExecuteAll runs multiple actions, stopping on first error.
func (e *executor) ExecuteAll(ctx context.Context, actions []action.Action) error {
	for _, a := range actions {
		if err := e.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
