package codec

import (
	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
)

// Filter is a Selector split in two: the attributes that narrow a dump
// in the kernel, and the residual predicate applied to every decoded
// record.
type Filter struct {
	sel    nexthop.Selector
	bucket bool
}

// NexthopFilter builds the filter for an RTM_GETNEXTHOP dump. The
// selector's ID is not part of a dump; a single id is fetched with
// GetNexthop instead.
func NexthopFilter(sel nexthop.Selector) Filter {
	return Filter{sel: sel}
}

// BucketFilter builds the filter for an RTM_GETNEXTHOPBUCKET dump. The
// selector's ID names the group and BucketNexthop the assigned member.
func BucketFilter(sel nexthop.Selector) Filter {
	return Filter{sel: sel, bucket: true}
}

// Selector returns the selector the filter was built from.
func (f Filter) Selector() nexthop.Selector { return f.sel }

// Match reports whether a decoded nexthop survives the client-side part
// of the selection.
func (f Filter) Match(n nexthop.Nexthop) bool {
	return f.sel.Match(n)
}

func (f Filter) encode(ae *netlink.AttributeEncoder) {
	if f.sel.Ifindex != 0 {
		ae.Uint32(kernel.NHA_OIF, f.sel.Ifindex)
	}
	ae.Flag(kernel.NHA_GROUPS, f.sel.Groups)
	if f.sel.Master != 0 {
		ae.Uint32(kernel.NHA_MASTER, f.sel.Master)
	}
	ae.Flag(kernel.NHA_FDB, f.sel.FDB)

	if !f.bucket {
		return
	}

	if f.sel.ID != 0 {
		ae.Uint32(kernel.NHA_ID, uint32(f.sel.ID))
	}
	if f.sel.BucketNexthop != 0 {
		id := uint32(f.sel.BucketNexthop)
		ae.Nested(kernel.NHA_RES_BUCKET, func(nae *netlink.AttributeEncoder) error {
			nae.Uint32(kernel.NHA_RES_BUCKET_NH_ID, id)
			return nil
		})
	}
}

// Attributes returns the encoded request-time attributes of f.
func (f Filter) Attributes() ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	f.encode(ae)
	return ae.Encode()
}
