// Package codec translates nexthop descriptors and selectors into
// rtnetlink requests and decodes nexthop and bucket records from the
// replies.
//
// Attributes are built with the mdlayher/netlink attribute encoder.
// Container attributes (NHA_RES_GROUP, NHA_RES_BUCKET, NHA_ENCAP) always
// carry NLA_F_NESTED: the kernel validates nexthop attributes strictly
// and treats an unflagged container as malformed.
package codec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
	"github.com/frobware/go-nexthop/logging"
)

// DefaultMaxMessageSize bounds the attribute payload of one request.
const DefaultMaxMessageSize = 1024

// Codec encodes requests and decodes records. A Codec is immutable
// after construction and safe for concurrent use.
type Codec struct {
	maxMessageSize int
	userHZ         uint32
	logger         *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxMessageSize sets the attribute capacity of a request. Requests
// that grow beyond it fail with nexthop.ErrCapacityExceeded.
func WithMaxMessageSize(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}

// WithUserHZ sets the tick rate used to convert kernel clock_t values.
func WithUserHZ(hz uint32) Option {
	return func(c *Codec) {
		if hz > 0 {
			c.userHZ = hz
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		maxMessageSize: DefaultMaxMessageSize,
		userHZ:         nexthop.DefaultUserHZ,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "codec")
	return c
}

// UserHZ returns the tick rate used for clock_t conversion.
func (c *Codec) UserHZ() uint32 { return c.userHZ }

// MaxMessageSize returns the attribute capacity of a request.
func (c *Codec) MaxMessageSize() int { return c.maxMessageSize }

// message assembles header and attributes into a request, enforcing the
// capacity bound.
func (c *Codec) message(typ uint16, flags netlink.HeaderFlags, hdr kernel.Nhmsg, ae *netlink.AttributeEncoder) (netlink.Message, error) {
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, fmt.Errorf("encode attributes: %w", err)
	}
	if len(attrs) > c.maxMessageSize {
		return netlink.Message{}, fmt.Errorf("%w: %d bytes of attributes, capacity %d",
			nexthop.ErrCapacityExceeded, len(attrs), c.maxMessageSize)
	}

	h, err := hdr.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}

	data := make([]byte, 0, len(h)+len(attrs))
	data = append(data, h...)
	data = append(data, attrs...)

	c.logger.Log(context.Background(), logging.LevelTrace.ToSlog(), "encoded request",
		"type", typ, "flags", flags, "attr_bytes", len(attrs))

	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(typ),
			Flags: flags,
		},
		Data: data,
	}, nil
}
