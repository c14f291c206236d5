// Package interpreter contains interfaces and executors for effects.
// This is the only package that performs actual I/O.
package interpreter

import (
	"context"
	"io"

	"github.com/mdlayher/netlink"
)

// Transport carries rtnetlink requests to the kernel. A Transport is
// one socket: replies are read in order, so a dump in progress must not
// be interleaved with other requests on the same Transport.
type Transport interface {
	io.Closer

	// Execute sends req and waits for its reply. For acknowledged
	// requests the kernel's error, if any, is returned as the error and
	// the acknowledgement itself is not part of the returned messages.
	Execute(ctx context.Context, req netlink.Message) ([]netlink.Message, error)

	// Dump sends a dump request and calls fn for every record of the
	// reply in order. Iteration stops at the first error from fn, which
	// Dump returns.
	Dump(ctx context.Context, req netlink.Message, fn func(netlink.Message) error) error
}

// Subscription delivers multicast notifications.
type Subscription interface {
	io.Closer

	// Receive blocks until at least one notification arrives or ctx
	// is done.
	Receive(ctx context.Context) ([]netlink.Message, error)
}

// Dialer opens transports. Flush needs two: one for the dump and one
// for the deletes issued from its callback.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
	Subscribe(ctx context.Context, groups ...uint32) (Subscription, error)
}

// LinkResolver maps network device names to indices and back.
type LinkResolver interface {
	// IndexByName returns the index of the named device.
	IndexByName(name string) (uint32, error)
	// NameByIndex returns the name of the device with the given index.
	NameByIndex(index uint32) (string, error)
	// IsVRF reports whether the device with the given index is a VRF.
	IsVRF(index uint32) (bool, error)
}
