package cli

import (
	"context"

	"github.com/frobware/go-nexthop/manager"
)

// MonitorCmd prints nexthop and bucket notifications.
type MonitorCmd struct{}

// Run executes the monitor command. It returns when ctx is cancelled.
func (c *MonitorCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	rt.Logger.Info("monitoring nexthop notifications")
	return rt.Manager.Monitor(ctx, func(ev manager.Event) error {
		output, err := rt.Printer.Event(ev)
		if err != nil {
			return err
		}
		return cli.PrintOut(output)
	})
}
