package codec

import (
	"fmt"

	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
)

// Header flags for the two flavours of RTM_NEWNEXTHOP.
const (
	// CreateFlags makes add fail when the id already exists.
	CreateFlags = netlink.Create | netlink.Excl
	// ReplaceFlags makes replace overwrite an existing id.
	ReplaceFlags = netlink.Create | netlink.Replace
)

// NewNexthop encodes an RTM_NEWNEXTHOP request for n. flags selects add
// (CreateFlags) or replace (ReplaceFlags) semantics.
func (c *Codec) NewNexthop(n nexthop.Nexthop, flags netlink.HeaderFlags) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()

	if n.ID != 0 {
		ae.Uint32(kernel.NHA_ID, uint32(n.ID))
	}
	if n.Ifindex != 0 {
		ae.Uint32(kernel.NHA_OIF, n.Ifindex)
	}
	if n.Gateway.IsValid() {
		ae.Bytes(kernel.NHA_GATEWAY, n.Gateway.Unmap().AsSlice())
	}
	if n.Encap != nil {
		encodeEncap(ae, n.Encap)
	}

	switch n.Action {
	case nexthop.ActionBlackhole:
		ae.Flag(kernel.NHA_BLACKHOLE, true)
	case nexthop.ActionUnreachable:
		ae.Flag(kernel.NHA_UNREACHABLE, true)
	case nexthop.ActionProhibit:
		ae.Flag(kernel.NHA_PROHIBIT, true)
	}

	ae.Flag(kernel.NHA_FDB, n.FDB)

	if n.Action == nexthop.ActionGroup {
		if n.Group == nil {
			return netlink.Message{}, &nexthop.UsageError{Arg: "group", Reason: "group action without members"}
		}
		if err := c.encodeGroup(ae, *n.Group); err != nil {
			return netlink.Message{}, err
		}
	}

	hdr := kernel.Nhmsg{
		Family:   uint8(n.Family),
		Scope:    uint8(n.Scope),
		Protocol: uint8(n.Protocol),
		Flags:    uint32(n.Flags),
	}
	return c.message(kernel.RTM_NEWNEXTHOP, netlink.Request|netlink.Acknowledge|flags, hdr, ae)
}

// encodeGroup emits NHA_GROUP, then the resilient arguments and the
// group type. NHA_GROUP_TYPE is only sent when the user chose a type.
func (c *Codec) encodeGroup(ae *netlink.AttributeEncoder, g nexthop.Group) error {
	if len(g.Members) == 0 {
		return &nexthop.UsageError{Arg: "group", Reason: `"group" value is invalid: no members`}
	}

	order := ae.ByteOrder
	ae.Do(kernel.NHA_GROUP, func() ([]byte, error) {
		b := make([]byte, len(g.Members)*kernel.SizeofNexthopGrp)
		for i, m := range g.Members {
			if m.Weight < nexthop.MinWeight || m.Weight > nexthop.MaxWeight {
				return nil, &nexthop.UsageError{Arg: fmt.Sprint(m.Weight), Reason: `"weight" is invalid`}
			}
			kernel.PutNexthopGrp(b[i*kernel.SizeofNexthopGrp:], kernel.NexthopGrp{
				ID:     uint32(m.ID),
				Weight: m.WireWeight(),
			}, order)
		}
		return b, nil
	})

	if g.Type == nexthop.GroupTypeResilient && g.Resilient != nil && !g.Resilient.IsEmpty() {
		res := *g.Resilient
		ae.Nested(kernel.NHA_RES_GROUP, func(nae *netlink.AttributeEncoder) error {
			if res.Buckets != nil {
				nae.Uint16(kernel.NHA_RES_GROUP_BUCKETS, *res.Buckets)
			}
			if res.IdleTimer != nil {
				v, err := timerU32(*res.IdleTimer)
				if err != nil {
					return err
				}
				nae.Uint32(kernel.NHA_RES_GROUP_IDLE_TIMER, v)
			}
			if res.UnbalancedTimer != nil {
				v, err := timerU32(*res.UnbalancedTimer)
				if err != nil {
					return err
				}
				nae.Uint32(kernel.NHA_RES_GROUP_UNBALANCED_TIMER, v)
			}
			return nil
		})
	}

	if g.ExplicitType || g.Type != nexthop.GroupTypeMultipath {
		ae.Uint16(kernel.NHA_GROUP_TYPE, uint16(g.Type))
	}
	return nil
}

func timerU32(t nexthop.Ticks) (uint32, error) {
	if t > nexthop.Ticks(^uint32(0)) {
		return 0, &nexthop.UsageError{Arg: fmt.Sprint(uint64(t)), Reason: "timer value out of range"}
	}
	return uint32(t), nil
}

// DeleteNexthop encodes an RTM_DELNEXTHOP request for id.
func (c *Codec) DeleteNexthop(id nexthop.ID) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, uint32(id))
	return c.message(kernel.RTM_DELNEXTHOP, netlink.Request|netlink.Acknowledge, kernel.Nhmsg{}, ae)
}

// GetNexthop encodes an RTM_GETNEXTHOP request for a single id.
func (c *Codec) GetNexthop(id nexthop.ID, family nexthop.Family) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, uint32(id))
	return c.message(kernel.RTM_GETNEXTHOP, netlink.Request, kernel.Nhmsg{Family: uint8(family)}, ae)
}

// DumpNexthops encodes an RTM_GETNEXTHOP dump narrowed by f.
func (c *Codec) DumpNexthops(family nexthop.Family, f Filter) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	f.encode(ae)
	return c.message(kernel.RTM_GETNEXTHOP, netlink.Request|netlink.Dump, kernel.Nhmsg{Family: uint8(family)}, ae)
}

// GetBucket encodes an RTM_GETNEXTHOPBUCKET request for one bucket of a
// resilient group.
func (c *Codec) GetBucket(group nexthop.ID, index uint16, family nexthop.Family) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, uint32(group))
	ae.Nested(kernel.NHA_RES_BUCKET, func(nae *netlink.AttributeEncoder) error {
		nae.Uint16(kernel.NHA_RES_BUCKET_INDEX, index)
		return nil
	})
	return c.message(kernel.RTM_GETNEXTHOPBUCKET, netlink.Request, kernel.Nhmsg{Family: uint8(family)}, ae)
}

// DumpBuckets encodes an RTM_GETNEXTHOPBUCKET dump narrowed by f.
func (c *Codec) DumpBuckets(family nexthop.Family, f Filter) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	f.encode(ae)
	return c.message(kernel.RTM_GETNEXTHOPBUCKET, netlink.Request|netlink.Dump, kernel.Nhmsg{Family: uint8(family)}, ae)
}
