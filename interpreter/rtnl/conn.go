// Package rtnl implements the interpreter interfaces over an rtnetlink
// socket.
package rtnl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/logging"
	"github.com/frobware/go-nexthop/netns"
)

// Options configures the sockets opened by a Dialer.
type Options struct {
	// ReceiveBuffer sets SO_RCVBUF. Zero keeps the kernel default.
	ReceiveBuffer int
	// Strict enables NETLINK_GET_STRICT_CHK so that the kernel rejects
	// dump filters it does not understand instead of ignoring them.
	Strict bool
	// NetNS is the namespace file to open sockets in. Empty means the
	// caller's namespace.
	NetNS string
}

// Dialer opens rtnetlink sockets.
type Dialer struct {
	opts   Options
	logger *slog.Logger
}

var _ interpreter.Dialer = (*Dialer)(nil)

// NewDialer returns a Dialer for NETLINK_ROUTE sockets.
func NewDialer(opts Options, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		opts:   opts,
		logger: logger.With("component", "transport"),
	}
}

// Dial opens a request socket.
func (d *Dialer) Dial(ctx context.Context) (interpreter.Transport, error) {
	c, err := d.open()
	if err != nil {
		return nil, err
	}
	return NewConn(c, d.logger), nil
}

// Subscribe opens a socket joined to the given multicast groups.
func (d *Dialer) Subscribe(ctx context.Context, groups ...uint32) (interpreter.Subscription, error) {
	c, err := d.open()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := c.JoinGroup(g); err != nil {
			c.Close()
			return nil, fmt.Errorf("join multicast group %d: %w", g, err)
		}
	}
	d.logger.Debug("subscribed", "groups", groups)
	return &subscription{conn: c}, nil
}

func (d *Dialer) open() (*netlink.Conn, error) {
	cfg := &netlink.Config{}
	if d.opts.NetNS != "" {
		// The socket keeps its namespace once created, so the file is
		// only needed for the duration of the dial.
		ns, err := netns.Open(d.opts.NetNS)
		if err != nil {
			return nil, err
		}
		defer ns.Close()
		cfg.NetNS = int(ns.Fd())
	}

	c, err := netlink.Dial(unix.NETLINK_ROUTE, cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot open rtnetlink: %w", err)
	}
	if d.opts.ReceiveBuffer > 0 {
		if err := c.SetReadBuffer(d.opts.ReceiveBuffer); err != nil {
			c.Close()
			return nil, fmt.Errorf("set receive buffer: %w", err)
		}
	}
	if d.opts.Strict {
		if err := c.SetOption(netlink.GetStrictCheck, true); err != nil {
			c.Close()
			return nil, fmt.Errorf("enable strict checking: %w", err)
		}
	}
	// Extended acks carry the kernel's reason for a rejection; older
	// kernels lack it and the plain errno is still reported.
	if err := c.SetOption(netlink.ExtendedAcknowledge, true); err != nil {
		d.logger.Debug("extended acknowledgements unavailable", "error", err)
	}
	return c, nil
}

// Conn is a Transport over one netlink socket.
type Conn struct {
	conn   *netlink.Conn
	logger *slog.Logger
}

var _ interpreter.Transport = (*Conn)(nil)

// NewConn wraps an existing netlink connection.
func NewConn(c *netlink.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{conn: c, logger: logger}
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Execute sends req and returns its replies with acknowledgements
// removed.
func (c *Conn) Execute(ctx context.Context, req netlink.Message) ([]netlink.Message, error) {
	msgs, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	out := msgs[:0]
	for _, m := range msgs {
		if m.Header.Type == netlink.Error {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Dump sends a dump request and passes every record to fn. The whole
// reply is read before fn sees the first record, so memory grows with
// the size of the table, and a flush deleting from fn never races the
// kernel's walk of the table it is dumping.
func (c *Conn) Dump(ctx context.Context, req netlink.Message, fn func(netlink.Message) error) error {
	msgs, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	c.logger.Debug("dump complete", "type", uint16(req.Header.Type), "records", len(msgs))
	for _, m := range msgs {
		if m.Header.Type == netlink.Error || m.Header.Type == netlink.Done {
			continue
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) execute(ctx context.Context, req netlink.Message) ([]netlink.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := interruptOnDone(ctx, c.conn)
	defer stop()

	c.logger.Log(ctx, logging.LevelTrace.ToSlog(), "send",
		"type", uint16(req.Header.Type), "flags", req.Header.Flags, "len", len(req.Data))

	msgs, err := c.conn.Execute(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return msgs, nil
}

// interruptOnDone unblocks pending socket I/O when ctx is cancelled.
func interruptOnDone(ctx context.Context, c *netlink.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Unix(1, 0))
	})
}

type subscription struct {
	conn *netlink.Conn
}

func (s *subscription) Close() error {
	return s.conn.Close()
}

func (s *subscription) Receive(ctx context.Context) ([]netlink.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := interruptOnDone(ctx, s.conn)
	defer stop()

	msgs, err := s.conn.Receive()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return msgs, nil
}
