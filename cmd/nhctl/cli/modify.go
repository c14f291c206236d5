package cli

import (
	"context"
)

// AddCmd creates a nexthop.
type AddCmd struct {
	Args []string `arg:"" optional:"" help:"id ID NH keywords."`
}

// Run executes the add command.
func (c *AddCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	n, err := nexthopParser{links: rt.Links, protocols: rt.Protocols}.parse(c.Args, rt.Family)
	if err != nil {
		return err
	}
	return rt.Manager.Add(ctx, n)
}

// ReplaceCmd creates a nexthop or overwrites an existing one.
type ReplaceCmd struct {
	Args []string `arg:"" optional:"" help:"id ID NH keywords."`
}

// Run executes the replace command.
func (c *ReplaceCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	n, err := nexthopParser{links: rt.Links, protocols: rt.Protocols}.parse(c.Args, rt.Family)
	if err != nil {
		return err
	}
	return rt.Manager.Replace(ctx, n)
}
