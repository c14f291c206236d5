package codec

import (
	"fmt"
	"net/netip"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
)

// DecodeNexthop decodes an RTM_NEWNEXTHOP or RTM_DELNEXTHOP record. An
// attribute whose length is invalid fails the whole record with a
// *nexthop.DecodeError; nothing is returned for it.
func (c *Codec) DecodeNexthop(m netlink.Message) (nexthop.Nexthop, error) {
	var n nexthop.Nexthop

	switch m.Header.Type {
	case kernel.RTM_NEWNEXTHOP:
	case kernel.RTM_DELNEXTHOP:
		n.Deleted = true
	default:
		return n, fmt.Errorf("not a nexthop: %08x %08x %08x",
			m.Header.Length, uint16(m.Header.Type), uint16(m.Header.Flags))
	}

	hdr, attrs, err := splitHeader(m)
	if err != nil {
		return n, err
	}
	n.Family = nexthop.Family(hdr.Family)
	n.Scope = nexthop.Scope(hdr.Scope)
	n.Protocol = nexthop.Protocol(hdr.Protocol)
	n.Flags = nexthop.Flags(hdr.Flags)

	ad, err := netlink.NewAttributeDecoder(attrs)
	if err != nil {
		return nexthop.Nexthop{}, &nexthop.DecodeError{Attr: "nexthop", Reason: err.Error()}
	}

	var (
		group     *nexthop.Group
		groupType *nexthop.GroupType
		resilient *nexthop.ResilientConfig
	)

	for ad.Next() {
		switch ad.Type() {
		case kernel.NHA_ID:
			n.ID = nexthop.ID(ad.Uint32())
		case kernel.NHA_GROUP:
			ad.Do(func(b []byte) error {
				members, err := decodeMembers(b)
				if err != nil {
					return err
				}
				group = &nexthop.Group{Members: members}
				return nil
			})
		case kernel.NHA_GROUP_TYPE:
			t := nexthop.GroupType(ad.Uint16())
			groupType = &t
		case kernel.NHA_RES_GROUP:
			resilient = &nexthop.ResilientConfig{}
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				return decodeResilient(nad, resilient)
			})
		case kernel.NHA_BLACKHOLE:
			n.Action = nexthop.ActionBlackhole
		case kernel.NHA_UNREACHABLE:
			n.Action = nexthop.ActionUnreachable
		case kernel.NHA_PROHIBIT:
			n.Action = nexthop.ActionProhibit
		case kernel.NHA_OIF:
			n.Ifindex = ad.Uint32()
		case kernel.NHA_GATEWAY:
			ad.Do(func(b []byte) error {
				addr, ok := netip.AddrFromSlice(b)
				if !ok {
					return &nexthop.DecodeError{Attr: "NHA_GATEWAY", Reason: fmt.Sprintf("invalid address length %d", len(b))}
				}
				n.Gateway = addr
				return nil
			})
		case kernel.NHA_ENCAP_TYPE:
			if n.Encap == nil {
				n.Encap = &nexthop.Encap{}
			}
			n.Encap.Type = ad.Uint16()
		case kernel.NHA_ENCAP:
			if n.Encap == nil {
				n.Encap = &nexthop.Encap{}
			}
			n.Encap.Data = ad.Bytes()
		case kernel.NHA_FDB:
			n.FDB = true
		}
	}
	if err := ad.Err(); err != nil {
		return nexthop.Nexthop{}, asDecodeError("nexthop", err)
	}

	if group != nil {
		n.Action = nexthop.ActionGroup
		if groupType != nil {
			group.Type = *groupType
			group.ExplicitType = true
		}
		group.Resilient = resilient
		n.Group = group
	}

	return n, nil
}

// decodeMembers decodes an NHA_GROUP payload. The payload must hold a
// whole, non-zero number of member records.
func decodeMembers(b []byte) ([]nexthop.GroupMember, error) {
	if len(b) == 0 || len(b)%kernel.SizeofNexthopGrp != 0 {
		return nil, &nexthop.DecodeError{
			Attr:   "NHA_GROUP",
			Reason: fmt.Sprintf("payload of %d bytes is not a whole number of %d-byte members", len(b), kernel.SizeofNexthopGrp),
		}
	}
	members := make([]nexthop.GroupMember, 0, len(b)/kernel.SizeofNexthopGrp)
	for off := 0; off < len(b); off += kernel.SizeofNexthopGrp {
		g := kernel.ReadNexthopGrp(b[off:], native.Endian)
		members = append(members, nexthop.MemberFromWire(g.ID, g.Weight))
	}
	return members, nil
}

func decodeResilient(ad *netlink.AttributeDecoder, res *nexthop.ResilientConfig) error {
	for ad.Next() {
		switch ad.Type() {
		case kernel.NHA_RES_GROUP_BUCKETS:
			v := ad.Uint16()
			res.Buckets = &v
		case kernel.NHA_RES_GROUP_IDLE_TIMER:
			v := nexthop.Ticks(ad.Uint32())
			res.IdleTimer = &v
		case kernel.NHA_RES_GROUP_UNBALANCED_TIMER:
			v := nexthop.Ticks(ad.Uint32())
			res.UnbalancedTimer = &v
		case kernel.NHA_RES_GROUP_UNBALANCED_TIME:
			ad.Do(func(b []byte) error {
				v, err := clockT("NHA_RES_GROUP_UNBALANCED_TIME", b)
				if err != nil {
					return err
				}
				res.UnbalancedTime = &v
				return nil
			})
		}
	}
	return nil
}

// DecodeBucket decodes an RTM_NEWNEXTHOPBUCKET or RTM_DELNEXTHOPBUCKET
// record.
func (c *Codec) DecodeBucket(m netlink.Message) (nexthop.Bucket, error) {
	var bk nexthop.Bucket

	switch m.Header.Type {
	case kernel.RTM_NEWNEXTHOPBUCKET:
	case kernel.RTM_DELNEXTHOPBUCKET:
		bk.Deleted = true
	default:
		return bk, fmt.Errorf("not a nexthop bucket: %08x %08x %08x",
			m.Header.Length, uint16(m.Header.Type), uint16(m.Header.Flags))
	}

	hdr, attrs, err := splitHeader(m)
	if err != nil {
		return bk, err
	}
	bk.Flags = nexthop.Flags(hdr.Flags)

	ad, err := netlink.NewAttributeDecoder(attrs)
	if err != nil {
		return nexthop.Bucket{}, &nexthop.DecodeError{Attr: "bucket", Reason: err.Error()}
	}

	for ad.Next() {
		switch ad.Type() {
		case kernel.NHA_ID:
			bk.GroupID = nexthop.ID(ad.Uint32())
		case kernel.NHA_RES_BUCKET:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					switch nad.Type() {
					case kernel.NHA_RES_BUCKET_INDEX:
						bk.Index = nad.Uint16()
					case kernel.NHA_RES_BUCKET_IDLE_TIME:
						nad.Do(func(b []byte) error {
							v, err := clockT("NHA_RES_BUCKET_IDLE_TIME", b)
							if err != nil {
								return err
							}
							bk.IdleTime = v
							bk.HasIdleTime = true
							return nil
						})
					case kernel.NHA_RES_BUCKET_NH_ID:
						bk.NexthopID = nexthop.ID(nad.Uint32())
					}
				}
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		return nexthop.Bucket{}, asDecodeError("bucket", err)
	}

	return bk, nil
}

func splitHeader(m netlink.Message) (kernel.Nhmsg, []byte, error) {
	var hdr kernel.Nhmsg
	if err := hdr.UnmarshalBinary(m.Data); err != nil {
		return hdr, nil, &nexthop.DecodeError{
			Attr:   "nhmsg",
			Reason: fmt.Sprintf("wrong nlmsg len %d", len(m.Data)-kernel.SizeofNhmsg),
		}
	}
	return hdr, m.Data[kernel.SizeofNhmsg:], nil
}

// clockT decodes a clock_t attribute, which the kernel sends as u64 but
// older kernels sent as u32.
func clockT(attr string, b []byte) (nexthop.Ticks, error) {
	switch len(b) {
	case 4:
		return nexthop.Ticks(native.Endian.Uint32(b)), nil
	case 8:
		return nexthop.Ticks(native.Endian.Uint64(b)), nil
	default:
		return 0, &nexthop.DecodeError{Attr: attr, Reason: fmt.Sprintf("invalid length %d", len(b))}
	}
}

func asDecodeError(what string, err error) error {
	if nexthop.IsDecode(err) {
		return err
	}
	return &nexthop.DecodeError{Attr: what, Reason: err.Error()}
}
