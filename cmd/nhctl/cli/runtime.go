package cli

import (
	"fmt"
	"log/slog"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/interpreter/rtnl"
	"github.com/frobware/go-nexthop/manager"
	"github.com/frobware/go-nexthop/netns"
)

// Runtime holds what a command needs once flags and the config file
// have been resolved. It is built once per invocation.
type Runtime struct {
	Manager   *manager.Manager
	Links     interpreter.LinkResolver
	Protocols *nexthop.ProtocolTable
	Family    nexthop.Family
	Printer   *Printer
	Logger    *slog.Logger
}

// Runtime loads the config file and wires the manager to rtnetlink, or
// to the Dialer and Links set on c.
func (c *CLI) Runtime() (*Runtime, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := c.Logger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	protocols, err := nexthop.LoadProtocolTable(cfg.Display.NamesDir)
	if err != nil {
		return nil, fmt.Errorf("load protocol names: %w", err)
	}

	cdc := codec.New(
		codec.WithMaxMessageSize(cfg.Netlink.MaxMessageSize),
		codec.WithUserHZ(cfg.Display.UserHZ),
		codec.WithLogger(logger),
	)

	nsPath := netns.Path(c.NetNS)
	if nsPath != "" {
		nsid, err := netns.ID(nsPath)
		if err != nil {
			return nil, fmt.Errorf("cannot use network namespace %q: %w", c.NetNS, err)
		}
		logger.Debug("using network namespace", "path", nsPath, "nsid", nsid)
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = rtnl.NewDialer(rtnl.Options{
			ReceiveBuffer: cfg.Netlink.ReceiveBuffer,
			Strict:        cfg.Netlink.Strict,
			NetNS:         nsPath,
		}, logger)
	}
	links := c.Links
	if links == nil {
		links = rtnl.Links{NetNS: nsPath}
	}

	logger.Debug("loaded config", "path", c.Config,
		"max_message_size", cfg.Netlink.MaxMessageSize, "user_hz", cfg.Display.UserHZ)

	family := cfg.Display.FamilyValue()
	if c.Family.Set {
		family = c.Family.Value
	}

	return &Runtime{
		Manager:   manager.New(cdc, dialer, logger),
		Links:     links,
		Protocols: protocols,
		Family:    family,
		Printer: &Printer{
			Output:    c.OutputFlags,
			Details:   c.Details || cfg.Display.Details,
			Links:     links,
			Protocols: protocols,
			UserHZ:    cfg.Display.UserHZ,
		},
		Logger: logger.With("component", "cli"),
	}, nil
}
