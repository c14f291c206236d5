package rtnl

import (
	"errors"
	"fmt"

	vnl "github.com/vishvananda/netlink"

	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/netns"
)

// ErrLinkNotFound is returned when a device does not exist.
var ErrLinkNotFound = errors.New("device does not exist")

// Links resolves devices through vishvananda/netlink.
type Links struct {
	// NetNS is the namespace file whose devices are resolved. Empty
	// means the caller's namespace.
	NetNS string
}

var _ interpreter.LinkResolver = Links{}

func (l Links) byName(name string) (link vnl.Link, err error) {
	err = netns.Run(l.NetNS, func() error {
		link, err = vnl.LinkByName(name)
		return err
	})
	return link, err
}

func (l Links) byIndex(index uint32) (link vnl.Link, err error) {
	err = netns.Run(l.NetNS, func() error {
		link, err = vnl.LinkByIndex(int(index))
		return err
	})
	return link, err
}

// IndexByName returns the index of the named device.
func (l Links) IndexByName(name string) (uint32, error) {
	link, err := l.byName(name)
	if err != nil {
		var nf vnl.LinkNotFoundError
		if errors.As(err, &nf) {
			return 0, fmt.Errorf("%w: %s", ErrLinkNotFound, name)
		}
		return 0, fmt.Errorf("lookup %s: %w", name, err)
	}
	return uint32(link.Attrs().Index), nil
}

// NameByIndex returns the name of the device with the given index.
func (l Links) NameByIndex(index uint32) (string, error) {
	link, err := l.byIndex(index)
	if err != nil {
		var nf vnl.LinkNotFoundError
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: index %d", ErrLinkNotFound, index)
		}
		return "", fmt.Errorf("lookup index %d: %w", index, err)
	}
	return link.Attrs().Name, nil
}

// IsVRF reports whether the device with the given index is a VRF.
func (l Links) IsVRF(index uint32) (bool, error) {
	link, err := l.byIndex(index)
	if err != nil {
		return false, fmt.Errorf("lookup index %d: %w", index, err)
	}
	_, ok := link.(*vnl.Vrf)
	return ok || link.Type() == "vrf", nil
}
