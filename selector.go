package nexthop

// Selector narrows list, flush and bucket list. Device names are
// resolved to indices before a Selector is built; a zero field selects
// everything.
type Selector struct {
	// Ifindex selects nexthops using this output device.
	Ifindex uint32
	// Master selects nexthops whose device is enslaved to this master
	// or VRF.
	Master uint32
	// Protocol selects nexthops owned by this protocol. The kernel
	// cannot filter on it, so it is only ever applied to decoded records.
	Protocol Protocol
	// ID selects one nexthop, or for bucket queries one group.
	ID ID
	// BucketNexthop selects buckets currently assigned to this nexthop.
	BucketNexthop ID
	// Groups selects group nexthops only.
	Groups bool
	// FDB selects fdb nexthops only.
	FDB bool
}

// IsZero reports whether s selects everything.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// Match is the part of the selection the kernel does not perform. It
// must be applied to every decoded record, whatever was sent in the
// dump request.
func (s Selector) Match(n Nexthop) bool {
	if s.Protocol != 0 && n.Protocol != s.Protocol {
		return false
	}
	return true
}

// WithGroups returns a copy of s with the groups-only criterion set to
// groups. The remaining criteria are preserved.
func (s Selector) WithGroups(groups bool) Selector {
	s.Groups = groups
	return s
}
