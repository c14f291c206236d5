// nhctl manages kernel nexthop objects over rtnetlink.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/frobware/go-nexthop/cmd/nhctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	c := &cli.CLI{Out: os.Stdout, Err: os.Stderr}
	code := c.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
