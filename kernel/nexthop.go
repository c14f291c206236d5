// Package kernel describes the rtnetlink nexthop objects exactly as the
// kernel lays them out on the wire: message types, attribute numbers,
// fixed-size headers and flag bits.
package kernel

// Message types (linux/rtnetlink.h).
const (
	RTM_NEWNEXTHOP       = 104
	RTM_DELNEXTHOP       = 105
	RTM_GETNEXTHOP       = 106
	RTM_NEWNEXTHOPBUCKET = 116
	RTM_DELNEXTHOPBUCKET = 117
	RTM_GETNEXTHOPBUCKET = 118
)

// RTNLGRP_NEXTHOP is the multicast group carrying nexthop notifications.
const RTNLGRP_NEXTHOP = 32

// Top-level nexthop attributes (linux/nexthop.h).
const (
	NHA_UNSPEC          = 0
	NHA_ID              = 1  // u32
	NHA_GROUP           = 2  // array of nexthop_grp
	NHA_GROUP_TYPE      = 3  // u16, NEXTHOP_GRP_TYPE_*
	NHA_BLACKHOLE       = 4  // flag
	NHA_OIF             = 5  // u32
	NHA_GATEWAY         = 6  // be32 or in6_addr
	NHA_ENCAP_TYPE      = 7  // u16, LWTUNNEL_ENCAP_*
	NHA_ENCAP           = 8  // nested lwt encap data
	NHA_GROUPS          = 9  // flag, dump filter
	NHA_MASTER          = 10 // u32, dump filter
	NHA_FDB             = 11 // flag
	NHA_RES_GROUP       = 12 // nested NHA_RES_GROUP_*
	NHA_RES_BUCKET      = 13 // nested NHA_RES_BUCKET_*
	NHA_OP_FLAGS        = 14
	NHA_GROUP_STATS     = 15
	NHA_HW_STATS_ENABLE = 16
	NHA_HW_STATS_USED   = 17
	NHA_UNREACHABLE     = 18 // flag
	NHA_PROHIBIT        = 19 // flag
)

// Attributes nested under NHA_RES_GROUP.
const (
	NHA_RES_GROUP_PAD              = 0
	NHA_RES_GROUP_BUCKETS          = 1 // u16
	NHA_RES_GROUP_IDLE_TIMER       = 2 // u32, clock_t
	NHA_RES_GROUP_UNBALANCED_TIMER = 3 // u32, clock_t
	NHA_RES_GROUP_UNBALANCED_TIME  = 4 // u64, clock_t
)

// Attributes nested under NHA_RES_BUCKET.
const (
	NHA_RES_BUCKET_PAD       = 0
	NHA_RES_BUCKET_INDEX     = 1 // u16
	NHA_RES_BUCKET_IDLE_TIME = 2 // u64, clock_t
	NHA_RES_BUCKET_NH_ID     = 3 // u32
)

// Group types carried in NHA_GROUP_TYPE.
const (
	NEXTHOP_GRP_TYPE_MPATH = 0
	NEXTHOP_GRP_TYPE_RES   = 1
	NEXTHOP_GRP_TYPE_MAX   = NEXTHOP_GRP_TYPE_RES
)

// Nexthop flags carried in nhmsg.nh_flags.
const (
	RTNH_F_DEAD       = 1 << 0
	RTNH_F_PERVASIVE  = 1 << 1
	RTNH_F_ONLINK     = 1 << 2
	RTNH_F_OFFLOAD    = 1 << 3
	RTNH_F_LINKDOWN   = 1 << 4
	RTNH_F_UNRESOLVED = 1 << 5
	RTNH_F_TRAP       = 1 << 6
)

// Route scopes carried in nhmsg.nh_scope.
const (
	RT_SCOPE_UNIVERSE = 0
	RT_SCOPE_SITE     = 200
	RT_SCOPE_LINK     = 253
	RT_SCOPE_HOST     = 254
	RT_SCOPE_NOWHERE  = 255
)

// RTPROT_UNSPEC is the protocol of a nexthop nobody claimed.
const RTPROT_UNSPEC = 0

// Lightweight tunnel encapsulation (linux/lwtunnel.h, linux/mpls_iptunnel.h).
const (
	LWTUNNEL_ENCAP_MPLS = 1
	MPLS_IPTUNNEL_DST   = 1
)
