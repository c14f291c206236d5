package cli

import (
	"context"

	"github.com/frobware/go-nexthop"
)

// ListCmd lists nexthops.
type ListCmd struct {
	Args []string `arg:"" optional:"" help:"SELECTOR keywords."`
}

// Run executes the list command. "id ID" shows that one nexthop.
func (c *ListCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	sel, err := parseSelection(c.Args, rt.Links, rt.Protocols)
	if err != nil {
		return err
	}

	var nhs []nexthop.Nexthop
	if sel.ByID {
		n, err := rt.Manager.Get(ctx, sel.Selector.ID, rt.Family)
		if err != nil {
			return err
		}
		nhs = []nexthop.Nexthop{n}
	} else {
		var listErr error
		nhs, listErr = rt.Manager.List(ctx, rt.Family, sel.Selector)
		if listErr != nil {
			// Records that arrived before the failure are still shown.
			return printPartial(cli, listErr, len(nhs), func() (string, error) {
				return rt.Printer.Nexthops(nhs)
			})
		}
	}

	output, err := rt.Printer.Nexthops(nhs)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// printPartial prints what render returns when n records were collected,
// then reports cause.
func printPartial(cli *CLI, cause error, n int, render func() (string, error)) error {
	if n == 0 {
		return cause
	}
	output, err := render()
	if err != nil {
		return err
	}
	if err := cli.PrintOut(output); err != nil {
		return err
	}
	return cause
}

// FlushCmd deletes the nexthops matching a selector.
type FlushCmd struct {
	Args []string `arg:"" optional:"" help:"SELECTOR keywords; none flushes everything."`
}

// Run executes the flush command. "id ID" deletes that one nexthop.
func (c *FlushCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	sel, err := parseSelection(c.Args, rt.Links, rt.Protocols)
	if err != nil {
		return err
	}

	if sel.ByID {
		return rt.Manager.Delete(ctx, sel.Selector.ID)
	}

	res, flushErr := rt.Manager.Flush(ctx, rt.Family, sel.Selector, sel.All)
	rt.Logger.Debug("flush finished", "flushed", res.Flushed, "skipped", res.Skipped, "passes", res.Passes)

	// The count is reported even when a dump failed part way.
	output, err := rt.Printer.FlushResult(res)
	if err != nil {
		return err
	}
	if err := cli.PrintOut(output); err != nil {
		return err
	}
	return flushErr
}
