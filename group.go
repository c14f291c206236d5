package nexthop

import (
	"fmt"
	"strconv"
	"strings"
)

// Weight bounds accepted for a group member.
const (
	MinWeight = 1
	MaxWeight = 256
)

// GroupType selects how a group spreads traffic over its members.
type GroupType uint16

const (
	// GroupTypeMultipath is the kernel default; it is never displayed.
	GroupTypeMultipath GroupType = 0
	// GroupTypeResilient keeps a bucket table so that flows stay put
	// when members come and go.
	GroupTypeResilient GroupType = 1
)

func (t GroupType) String() string {
	switch t {
	case GroupTypeMultipath:
		return "mpath"
	case GroupTypeResilient:
		return "resilient"
	default:
		return "<unknown type>"
	}
}

// ParseGroupType parses the argument of the "type" keyword.
func ParseGroupType(s string) (GroupType, error) {
	switch s {
	case "mpath":
		return GroupTypeMultipath, nil
	case "resilient":
		return GroupTypeResilient, nil
	default:
		return 0, &UsageError{Arg: s, Reason: `"type" value is invalid`}
	}
}

// GroupMember references another nexthop by id. The reference is weak:
// the member lives independently, but the kernel refuses to delete it
// while a group still points at it.
type GroupMember struct {
	ID     ID     `json:"id"`
	Weight uint16 `json:"weight"`
}

// WireWeight is the weight as carried in struct nexthop_grp, which
// stores weight-1 so that 256 fits in a byte.
func (m GroupMember) WireWeight() uint8 {
	return uint8(m.Weight - 1)
}

// MemberFromWire builds a member from its wire representation.
func MemberFromWire(id uint32, wireWeight uint8) GroupMember {
	return GroupMember{ID: ID(id), Weight: uint16(wireWeight) + 1}
}

func (m GroupMember) String() string {
	if m.Weight <= MinWeight {
		return m.ID.String()
	}
	return fmt.Sprintf("%d,%d", m.ID, m.Weight)
}

// Group is the action of a group nexthop. Member order is significant:
// the kernel assigns resilient buckets in this order.
type Group struct {
	Type GroupType
	// ExplicitType records that the user asked for a type, which puts
	// NHA_GROUP_TYPE on the wire even for the multipath default.
	ExplicitType bool
	Members      []GroupMember
	Resilient    *ResilientConfig
}

// String renders the members in the form accepted by ParseGroup.
func (g Group) String() string {
	parts := make([]string, len(g.Members))
	for i, m := range g.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, "/")
}

// ParseGroup parses a group specification of the form
// "id[,weight][/id[,weight]...]". Members keep their input order and
// default to weight 1.
func ParseGroup(spec string) ([]GroupMember, error) {
	if spec == "" {
		return nil, &UsageError{Arg: spec, Reason: `"group" value is invalid: no members`}
	}

	tokens := strings.Split(spec, "/")
	members := make([]GroupMember, 0, len(tokens))

	for _, tok := range tokens {
		idStr, weightStr, hasWeight := strings.Cut(tok, ",")

		id, err := strconv.ParseUint(idStr, 0, 32)
		if err != nil {
			return nil, &UsageError{Arg: idStr, Reason: `"group" member id is invalid`}
		}

		m := GroupMember{ID: ID(id), Weight: MinWeight}
		if hasWeight {
			w, err := strconv.ParseUint(weightStr, 0, 32)
			if err != nil || w < MinWeight || w > MaxWeight {
				return nil, &UsageError{Arg: weightStr, Reason: `"weight" is invalid`}
			}
			m.Weight = uint16(w)
		}
		members = append(members, m)
	}

	return members, nil
}
