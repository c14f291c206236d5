// Package cli provides the Kong-based command-line interface for nhctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/config"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/logging"
)

// Exit statuses.
const (
	ExitOK      = 0
	ExitUsage   = -1
	ExitFailure = -2
)

// Synopsis is printed after a usage error.
const Synopsis = `Usage: nhctl [FLAGS] { list | flush } [ protocol ID ] SELECTOR
       nhctl [FLAGS] { add | replace } id ID NH [ protocol ID ]
       nhctl [FLAGS] { get | delete } id ID
       nhctl [FLAGS] bucket list BUCKET_SELECTOR
       nhctl [FLAGS] bucket get id ID index INDEX
       nhctl [FLAGS] monitor
SELECTOR := [ id ID ] [ dev DEV ] [ vrf NAME ] [ master DEV ]
            [ groups ] [ fdb ]
BUCKET_SELECTOR := SELECTOR | [ nhid ID ]
NH := { blackhole | unreachable | prohibit | [ via ADDRESS ]
        [ dev DEV ] [ onlink ] [ encap ENCAPTYPE ENCAPHDR ] |
        group GROUP [ fdb ] [ type TYPE [ TYPE_ARGS ] ] }
GROUP := [ <id[,weight]>/<id[,weight]>/... ]
TYPE := { mpath | resilient }
TYPE_ARGS := [ RESILIENT_ARGS ]
RESILIENT_ARGS := [ buckets BUCKETS ] [ idle_timer IDLE ]
                  [ unbalanced_timer UNBALANCED ]
ENCAPTYPE := [ mpls ]
ENCAPHDR := [ MPLSLABEL ]
`

// ErrHelp is returned when the keyword "help" appears in the arguments.
var ErrHelp = errors.New("help requested")

// CLI is the root command structure for nhctl.
type CLI struct {
	Config  string     `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log     string     `name:"log" help:"Log spec (e.g., 'warn,flush=debug')." env:"NHCTL_LOG"`
	Family  FamilyFlag `name:"family" short:"f" help:"Address family: inet, inet6 or any."`
	Details bool       `name:"details" short:"d" help:"Show scope and protocol even when they have their default value."`
	NetNS   string     `name:"netns" short:"n" help:"Operate in the named network namespace, or the namespace file at this path."`
	OutputFlags

	List    ListCmd    `cmd:"" aliases:"show,lst" default:"withargs" help:"List nexthops."`
	Flush   FlushCmd   `cmd:"" help:"Delete the nexthops matching a selector, or all of them."`
	Add     AddCmd     `cmd:"" help:"Create a nexthop."`
	Replace ReplaceCmd `cmd:"" help:"Create or overwrite a nexthop."`
	Get     GetCmd     `cmd:"" help:"Show one nexthop."`
	Delete  DeleteCmd  `cmd:"" aliases:"del" help:"Delete one nexthop."`
	Bucket  BucketCmd  `cmd:"" help:"Inspect the buckets of resilient groups."`
	Monitor MonitorCmd `cmd:"" help:"Print nexthop notifications until interrupted."`

	Out io.Writer `kong:"-"`
	Err io.Writer `kong:"-"`

	// Dialer and Links replace the rtnetlink implementations when set.
	Dialer interpreter.Dialer       `kong:"-"`
	Links  interpreter.LinkResolver `kong:"-"`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("nhctl"),
		kong.Description("Manage kernel nexthop objects over rtnetlink."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(FamilyFlag{}), familyMapper()),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
		},
	}
}

// Execute parses args, runs the selected command and returns the exit
// status.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	exited, exitCode := false, ExitOK
	opts := append(KongOptions(),
		kong.Writers(c.Out, c.Err),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Exit(func(code int) {
			exited, exitCode = true, code
		}),
	)

	parser, err := kong.New(c, opts...)
	if err != nil {
		fmt.Fprintf(c.Err, "nhctl: %v\n", err)
		return ExitFailure
	}

	kctx, err := parser.Parse(args)
	if exited {
		return exitCode
	}
	if err != nil {
		fmt.Fprintf(c.Err, "nhctl: %v\n", err)
		if kctx != nil {
			_ = kctx.PrintUsage(true)
		}
		return ExitUsage
	}

	return c.report(kctx.Run(c))
}

// report prints err and maps it to an exit status.
func (c *CLI) report(err error) int {
	switch {
	case err == nil:
	case errors.Is(err, ErrHelp):
		fmt.Fprint(c.Err, Synopsis)
	case nexthop.IsUsage(err):
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		fmt.Fprint(c.Err, Synopsis)
	default:
		fmt.Fprintf(c.Err, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to an exit status: usage errors give
// ExitUsage and everything else, kernel refusals included, ExitFailure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrHelp), nexthop.IsUsage(err):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// Logger creates a logger writing to the error stream. The level comes
// from --log, then NHCTL_LOG, then the config file.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(logging.Options{
		CLISpec:    c.Log,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     c.Err,
	})
}

// WriteOut writes p to the output stream. A short write is an error.
func (c *CLI) WriteOut(p []byte) error {
	n, err := c.Out.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the output stream.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats to the output stream.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
