package cli

import (
	"context"

	"github.com/frobware/go-nexthop"
)

// BucketCmd inspects the bucket tables of resilient groups.
type BucketCmd struct {
	List BucketListCmd `cmd:"" aliases:"show,lst" default:"withargs" help:"List buckets."`
	Get  BucketGetCmd  `cmd:"" help:"Show one bucket."`
}

// BucketListCmd lists buckets.
type BucketListCmd struct {
	Args []string `arg:"" optional:"" help:"BUCKET_SELECTOR keywords."`
}

// Run executes the bucket list command.
func (c *BucketListCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	sel, err := parseBucketSelection(c.Args, rt.Links)
	if err != nil {
		return err
	}

	buckets, err := rt.Manager.BucketList(ctx, rt.Family, sel)
	if err != nil {
		return printPartial(cli, err, len(buckets), func() (string, error) {
			return rt.Printer.Buckets(buckets)
		})
	}

	output, err := rt.Printer.Buckets(buckets)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}

// BucketGetCmd shows one bucket of a group.
type BucketGetCmd struct {
	Args []string `arg:"" optional:"" help:"id ID index INDEX."`
}

// Run executes the bucket get command.
func (c *BucketGetCmd) Run(cli *CLI, ctx context.Context) error {
	id, index, err := parseBucketGet(c.Args)
	if err != nil {
		return err
	}

	rt, err := cli.Runtime()
	if err != nil {
		return err
	}

	b, err := rt.Manager.BucketGet(ctx, id, index, rt.Family)
	if err != nil {
		return err
	}

	output, err := rt.Printer.Buckets([]nexthop.Bucket{b})
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
