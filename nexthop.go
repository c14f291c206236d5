// Package nexthop models rtnetlink nexthop objects: single forwarding
// targets, weighted groups of them, and the bucket tables of resilient
// groups. It holds the pure parts of the client: group specification
// parsing, selectors, timer conversion and the name tables used for
// display. Wire encoding lives in package codec.
package nexthop

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ID identifies a nexthop. Zero asks the kernel to assign one.
type ID uint32

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses a nexthop id, accepting the 0x and 0 prefixes.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, &UsageError{Arg: s, Reason: "invalid id value"}
	}
	return ID(v), nil
}

// Family is an address family as carried in nhmsg.nh_family.
type Family uint8

const (
	FamilyUnspec Family = unix.AF_UNSPEC
	FamilyInet   Family = unix.AF_INET
	FamilyInet6  Family = unix.AF_INET6
)

func (f Family) String() string {
	switch f {
	case FamilyUnspec:
		return "unspec"
	case FamilyInet:
		return "inet"
	case FamilyInet6:
		return "inet6"
	default:
		return fmt.Sprintf("family%d", uint8(f))
	}
}

// ParseFamily accepts the family names used on the command line and in
// the config file.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "unspec":
		return FamilyUnspec, nil
	case "inet", "ipv4", "4":
		return FamilyInet, nil
	case "inet6", "ipv6", "6":
		return FamilyInet6, nil
	default:
		return FamilyUnspec, fmt.Errorf("unknown address family: %q", s)
	}
}

// FamilyOf returns the family of addr.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() || addr.Is4In6() {
		return FamilyInet
	}
	return FamilyInet6
}

// Action is what a nexthop does with traffic.
type Action uint8

const (
	// ActionForward sends traffic via a gateway and/or out of a device.
	ActionForward Action = iota
	ActionBlackhole
	ActionUnreachable
	ActionProhibit
	// ActionGroup spreads traffic over the members of Group.
	ActionGroup
)

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionBlackhole:
		return "blackhole"
	case ActionUnreachable:
		return "unreachable"
	case ActionProhibit:
		return "prohibit"
	case ActionGroup:
		return "group"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Encap is an opaque lightweight tunnel encapsulation: an LWTUNNEL_ENCAP_*
// type and the attributes nested under NHA_ENCAP.
type Encap struct {
	Type uint16
	Data []byte
}

// Nexthop is a nexthop descriptor. It is what add and replace send and
// what get, list and monitor decode.
type Nexthop struct {
	ID       ID
	Family   Family
	Protocol Protocol
	Scope    Scope
	Flags    Flags

	// Ifindex is the output device; zero when unset.
	Ifindex uint32
	Gateway netip.Addr
	Action  Action
	Group   *Group
	Encap   *Encap
	FDB     bool

	// Deleted is set on decoded RTM_DELNEXTHOP notifications.
	Deleted bool
}

// IsGroup reports whether n is a nexthop group.
func (n Nexthop) IsGroup() bool {
	return n.Action == ActionGroup
}

// Validate checks the combinations the kernel refuses outright, so that
// the user gets a usage error rather than a bare EINVAL.
func (n Nexthop) Validate() error {
	switch n.Action {
	case ActionGroup:
		if n.Group == nil || len(n.Group.Members) == 0 {
			return &UsageError{Arg: "group", Reason: "group has no members"}
		}
		if n.Gateway.IsValid() || n.Ifindex != 0 || n.Encap != nil {
			return &UsageError{Arg: "group", Reason: "group cannot be combined with via, dev or encap"}
		}
		if n.Group.Resilient != nil && n.Group.Type != GroupTypeResilient {
			return &UsageError{Arg: "type", Reason: "resilient arguments require type resilient"}
		}
	case ActionBlackhole, ActionUnreachable, ActionProhibit:
		if n.Gateway.IsValid() || n.Encap != nil || n.Group != nil {
			return &UsageError{Arg: n.Action.String(), Reason: "cannot be combined with via, encap or group"}
		}
		if n.FDB {
			return &UsageError{Arg: "fdb", Reason: "fdb nexthop cannot be " + n.Action.String()}
		}
	case ActionForward:
		if n.Group != nil {
			return &UsageError{Arg: "group", Reason: "group members given without group action"}
		}
		if n.FDB && (n.Ifindex != 0 || n.Encap != nil) {
			return &UsageError{Arg: "fdb", Reason: "fdb nexthop cannot have dev or encap"}
		}
	}
	if n.Gateway.IsValid() && n.Family != FamilyUnspec && FamilyOf(n.Gateway) != n.Family {
		return &UsageError{Arg: n.Gateway.String(), Reason: "address family mismatch"}
	}
	return nil
}
