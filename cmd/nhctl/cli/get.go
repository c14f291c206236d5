package cli

import (
	"context"

	"github.com/frobware/go-nexthop"
)

// GetCmd shows one nexthop.
type GetCmd struct {
	Args []string `arg:"" optional:"" help:"id ID."`
}

// Run executes the get command.
func (c *GetCmd) Run(cli *CLI, ctx context.Context) error {
	id, err := parseIDOnly(c.Args)
	if err != nil {
		return err
	}

	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	n, err := rt.Manager.Get(ctx, id, rt.Family)
	if err != nil {
		return err
	}

	output, err := rt.Printer.Nexthops([]nexthop.Nexthop{n})
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// DeleteCmd deletes one nexthop.
type DeleteCmd struct {
	Args []string `arg:"" optional:"" help:"id ID."`
}

// Run executes the delete command.
func (c *DeleteCmd) Run(cli *CLI, ctx context.Context) error {
	id, err := parseIDOnly(c.Args)
	if err != nil {
		return err
	}

	rt, err := cli.Runtime()
	if err != nil {
		return err
	}
	return rt.Manager.Delete(ctx, id)
}
