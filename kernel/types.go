package kernel

import (
	"encoding/binary"
	"errors"

	"github.com/josharian/native"
)

// SizeofNhmsg is the size of struct nhmsg.
const SizeofNhmsg = 8

// SizeofNexthopGrp is the size of struct nexthop_grp, one group member.
const SizeofNexthopGrp = 8

// errShortNhmsg is returned when a message is too small to hold an nhmsg.
var errShortNhmsg = errors.New("message shorter than nhmsg header")

// Nhmsg is the fixed header that precedes the attributes of every nexthop
// and nexthop bucket message.
type Nhmsg struct {
	Family   uint8
	Scope    uint8
	Protocol uint8
	Flags    uint32
}

// MarshalBinary encodes the header in host byte order.
func (h Nhmsg) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeofNhmsg)
	b[0] = h.Family
	b[1] = h.Scope
	b[2] = h.Protocol
	// b[3] is reserved.
	native.Endian.PutUint32(b[4:8], h.Flags)
	return b, nil
}

// UnmarshalBinary decodes the header from the front of b.
func (h *Nhmsg) UnmarshalBinary(b []byte) error {
	if len(b) < SizeofNhmsg {
		return errShortNhmsg
	}
	h.Family = b[0]
	h.Scope = b[1]
	h.Protocol = b[2]
	h.Flags = native.Endian.Uint32(b[4:8])
	return nil
}

// NexthopGrp is one member of an NHA_GROUP array. Weight is the wire
// value, one less than the user-facing weight.
type NexthopGrp struct {
	ID     uint32
	Weight uint8
}

// PutNexthopGrp encodes g into b, which must hold SizeofNexthopGrp bytes.
func PutNexthopGrp(b []byte, g NexthopGrp, order binary.ByteOrder) {
	order.PutUint32(b[0:4], g.ID)
	b[4] = g.Weight
	b[5] = 0
	order.PutUint16(b[6:8], 0)
}

// ReadNexthopGrp decodes one group member from b.
func ReadNexthopGrp(b []byte, order binary.ByteOrder) NexthopGrp {
	return NexthopGrp{
		ID:     order.Uint32(b[0:4]),
		Weight: b[4],
	}
}
