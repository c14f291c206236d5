package cli

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/kernel"
)

// args walks the keyword arguments that follow a verb.
type args struct {
	tokens []string
	pos    int
}

func newArgs(tokens []string) *args {
	return &args{tokens: tokens}
}

func (a *args) more() bool { return a.pos < len(a.tokens) }

func (a *args) peek() string { return a.tokens[a.pos] }

func (a *args) next() string {
	tok := a.tokens[a.pos]
	a.pos++
	return tok
}

// value returns the argument of keyword kw.
func (a *args) value(kw string) (string, error) {
	if !a.more() {
		return "", &nexthop.UsageError{Arg: kw, Reason: "command line is not complete"}
	}
	return a.next(), nil
}

// matches reports whether tok abbreviates keyword kw.
func matches(tok, kw string) bool {
	return tok != "" && strings.HasPrefix(kw, tok)
}

func wrongArg(tok string) error {
	return &nexthop.UsageError{Arg: tok, Reason: "argument is wrong"}
}

func resolveDevice(links interpreter.LinkResolver, name string) (uint32, error) {
	idx, err := links.IndexByName(name)
	if err != nil || idx == 0 {
		return 0, &nexthop.UsageError{Arg: name, Reason: "Device does not exist"}
	}
	return idx, nil
}

func resolveVRF(links interpreter.LinkResolver, name string) (uint32, error) {
	idx, err := links.IndexByName(name)
	if err != nil || idx == 0 {
		return 0, &nexthop.UsageError{Arg: name, Reason: "Invalid VRF"}
	}
	isVRF, err := links.IsVRF(idx)
	if err != nil || !isVRF {
		return 0, &nexthop.UsageError{Arg: name, Reason: "Invalid VRF"}
	}
	return idx, nil
}

// selection is a parsed list, flush or bucket list selector.
type selection struct {
	Selector nexthop.Selector
	// ByID is set when "id ID" turned a list into a get or a flush into
	// a delete. Arguments after it are ignored.
	ByID bool
	// All is set when no argument was given at all.
	All bool
}

// parseSelection parses SELECTOR for list and flush.
func parseSelection(tokens []string, links interpreter.LinkResolver, protocols *nexthop.ProtocolTable) (selection, error) {
	s := selection{All: len(tokens) == 0}
	a := newArgs(tokens)

	for a.more() {
		tok := a.next()
		switch {
		case matches(tok, "dev"):
			name, err := a.value(tok)
			if err != nil {
				return s, err
			}
			if s.Selector.Ifindex, err = resolveDevice(links, name); err != nil {
				return s, err
			}
		case matches(tok, "groups"):
			s.Selector.Groups = true
		case matches(tok, "master"):
			name, err := a.value(tok)
			if err != nil {
				return s, err
			}
			if s.Selector.Master, err = resolveDevice(links, name); err != nil {
				return s, err
			}
		case matches(tok, "vrf"):
			name, err := a.value(tok)
			if err != nil {
				return s, err
			}
			if s.Selector.Master, err = resolveVRF(links, name); err != nil {
				return s, err
			}
		case tok == "id":
			v, err := a.value(tok)
			if err != nil {
				return s, err
			}
			id, err := nexthop.ParseID(v)
			if err != nil {
				return s, err
			}
			s.Selector.ID = id
			s.ByID = true
			return s, nil
		case matches(tok, "protocol"):
			v, err := a.value(tok)
			if err != nil {
				return s, err
			}
			if s.Selector.Protocol, err = protocols.Parse(v); err != nil {
				return s, err
			}
		case matches(tok, "fdb"):
			s.Selector.FDB = true
		case matches(tok, "help"):
			return s, ErrHelp
		default:
			return s, wrongArg(tok)
		}
	}
	return s, nil
}

// parseBucketSelection parses BUCKET_SELECTOR. Selector.ID names the
// group and Selector.BucketNexthop the member.
func parseBucketSelection(tokens []string, links interpreter.LinkResolver) (nexthop.Selector, error) {
	var sel nexthop.Selector
	a := newArgs(tokens)

	for a.more() {
		tok := a.next()
		switch {
		case matches(tok, "dev"):
			name, err := a.value(tok)
			if err != nil {
				return sel, err
			}
			if sel.Ifindex, err = resolveDevice(links, name); err != nil {
				return sel, err
			}
		case matches(tok, "master"):
			name, err := a.value(tok)
			if err != nil {
				return sel, err
			}
			if sel.Master, err = resolveDevice(links, name); err != nil {
				return sel, err
			}
		case matches(tok, "vrf"):
			name, err := a.value(tok)
			if err != nil {
				return sel, err
			}
			if sel.Master, err = resolveVRF(links, name); err != nil {
				return sel, err
			}
		case tok == "id", tok == "nhid":
			v, err := a.value(tok)
			if err != nil {
				return sel, err
			}
			id, err := nexthop.ParseID(v)
			if err != nil {
				return sel, err
			}
			if tok == "id" {
				sel.ID = id
			} else {
				sel.BucketNexthop = id
			}
		case matches(tok, "help"):
			return sel, ErrHelp
		default:
			return sel, wrongArg(tok)
		}
	}
	return sel, nil
}

// parseIDOnly parses "id ID", as taken by get and delete.
func parseIDOnly(tokens []string) (nexthop.ID, error) {
	var id nexthop.ID
	a := newArgs(tokens)

	for a.more() {
		tok := a.next()
		if tok != "id" {
			if matches(tok, "help") {
				return 0, ErrHelp
			}
			return 0, wrongArg(tok)
		}
		v, err := a.value(tok)
		if err != nil {
			return 0, err
		}
		if id, err = nexthop.ParseID(v); err != nil {
			return 0, err
		}
	}
	if id == 0 {
		return 0, &nexthop.UsageError{Arg: "id", Reason: "nexthop id is required"}
	}
	return id, nil
}

// parseBucketGet parses "id ID index INDEX".
func parseBucketGet(tokens []string) (nexthop.ID, uint16, error) {
	var (
		id       nexthop.ID
		index    uint16
		hasIndex bool
	)
	a := newArgs(tokens)

	for a.more() {
		tok := a.next()
		v, err := a.value(tok)
		if err != nil {
			return 0, 0, err
		}
		switch tok {
		case "id":
			if id, err = nexthop.ParseID(v); err != nil {
				return 0, 0, err
			}
		case "index":
			i, err := strconv.ParseUint(v, 0, 16)
			if err != nil {
				return 0, 0, &nexthop.UsageError{Arg: v, Reason: "invalid bucket index value"}
			}
			index, hasIndex = uint16(i), true
		default:
			return 0, 0, wrongArg(tok)
		}
	}
	if id == 0 || !hasIndex {
		return 0, 0, &nexthop.UsageError{Reason: "bucket get requires id and index"}
	}
	return id, index, nil
}

// nexthopParser builds a Nexthop from the NH grammar of add and replace.
type nexthopParser struct {
	links     interpreter.LinkResolver
	protocols *nexthop.ProtocolTable
}

// parse parses tokens. family is the preferred family; dev and the
// blackhole, unreachable and prohibit keywords turn an unspecified
// family into inet, and via takes the family of its address.
func (p nexthopParser) parse(tokens []string, family nexthop.Family) (nexthop.Nexthop, error) {
	n := nexthop.Nexthop{Family: family}
	var group *nexthop.Group
	a := newArgs(tokens)

	defaultInet := func() {
		if n.Family == nexthop.FamilyUnspec {
			n.Family = nexthop.FamilyInet
		}
	}
	ensureGroup := func() *nexthop.Group {
		if group == nil {
			group = &nexthop.Group{}
		}
		return group
	}

	for a.more() {
		tok := a.next()
		switch {
		case tok == "id":
			v, err := a.value(tok)
			if err != nil {
				return n, err
			}
			if n.ID, err = nexthop.ParseID(v); err != nil {
				return n, err
			}
		case tok == "dev":
			name, err := a.value(tok)
			if err != nil {
				return n, err
			}
			if n.Ifindex, err = resolveDevice(p.links, name); err != nil {
				return n, err
			}
			defaultInet()
		case tok == "via":
			if err := p.parseVia(a, &n); err != nil {
				return n, err
			}
		case tok == "encap":
			e, err := parseEncap(a)
			if err != nil {
				return n, err
			}
			n.Encap = e
		case tok == "blackhole":
			n.Action = nexthop.ActionBlackhole
			defaultInet()
		case tok == "unreachable":
			n.Action = nexthop.ActionUnreachable
			defaultInet()
		case tok == "prohibit":
			n.Action = nexthop.ActionProhibit
			defaultInet()
		case tok == "fdb":
			n.FDB = true
		case tok == "onlink":
			n.Flags |= kernel.RTNH_F_ONLINK
		case tok == "group":
			v, err := a.value(tok)
			if err != nil {
				return n, err
			}
			members, err := nexthop.ParseGroup(v)
			if err != nil {
				return n, err
			}
			ensureGroup().Members = members
			n.Action = nexthop.ActionGroup
		case tok == "type":
			if err := parseGroupType(a, ensureGroup()); err != nil {
				return n, err
			}
		case matches(tok, "protocol"):
			v, err := a.value(tok)
			if err != nil {
				return n, err
			}
			if n.Protocol, err = p.protocols.Parse(v); err != nil {
				return n, err
			}
		case tok == "help":
			return n, ErrHelp
		default:
			return n, wrongArg(tok)
		}
	}

	n.Group = group
	return n, nil
}

func (p nexthopParser) parseVia(a *args, n *nexthop.Nexthop) error {
	v, err := a.value("via")
	if err != nil {
		return err
	}

	var viaFamily nexthop.Family
	switch v {
	case "inet":
		viaFamily = nexthop.FamilyInet
	case "inet6":
		viaFamily = nexthop.FamilyInet6
	}
	if viaFamily != nexthop.FamilyUnspec {
		if v, err = a.value("via"); err != nil {
			return err
		}
	}

	addr, err := netip.ParseAddr(v)
	if err != nil {
		return &nexthop.UsageError{Arg: v, Reason: "invalid address"}
	}
	addr = addr.Unmap()
	got := nexthop.FamilyOf(addr)
	if viaFamily != nexthop.FamilyUnspec && viaFamily != got {
		return &nexthop.UsageError{Arg: v, Reason: "address family mismatch"}
	}

	switch {
	case n.Family == nexthop.FamilyUnspec:
		n.Family = got
	case n.Family != got:
		return &nexthop.UsageError{Arg: v, Reason: "address family mismatch"}
	}
	n.Gateway = addr
	return nil
}

// parseEncap parses "encap mpls LABEL[/LABEL...]".
func parseEncap(a *args) (*nexthop.Encap, error) {
	typ, err := a.value("encap")
	if err != nil {
		return nil, err
	}
	if typ != "mpls" {
		return nil, &nexthop.UsageError{Arg: typ, Reason: "unsupported encap type"}
	}
	v, err := a.value(typ)
	if err != nil {
		return nil, err
	}
	labels, err := codec.ParseMPLSLabels(v)
	if err != nil {
		return nil, err
	}
	return codec.MPLSEncap(labels)
}

// parseGroupType parses "type TYPE [TYPE_ARGS]". Resilient arguments
// are consumed for as long as they follow.
func parseGroupType(a *args, g *nexthop.Group) error {
	v, err := a.value("type")
	if err != nil {
		return err
	}
	if g.Type, err = nexthop.ParseGroupType(v); err != nil {
		return err
	}
	g.ExplicitType = true

	if g.Type != nexthop.GroupTypeResilient {
		return nil
	}

	res := &nexthop.ResilientConfig{}
	for a.more() {
		switch kw := a.peek(); kw {
		case "buckets":
			a.next()
			v, err := a.value(kw)
			if err != nil {
				return err
			}
			b, err := strconv.ParseUint(v, 0, 16)
			if err != nil {
				return &nexthop.UsageError{Arg: v, Reason: "invalid buckets value"}
			}
			buckets := uint16(b)
			res.Buckets = &buckets
		case "idle_timer", "unbalanced_timer":
			a.next()
			v, err := a.value(kw)
			if err != nil {
				return err
			}
			t, err := parseTimer(v)
			if err != nil {
				return &nexthop.UsageError{Arg: v, Reason: "invalid " + strings.ReplaceAll(kw, "_", " ") + " value"}
			}
			if kw == "idle_timer" {
				res.IdleTimer = &t
			} else {
				res.UnbalancedTimer = &t
			}
		default:
			g.Resilient = res
			return nil
		}
	}
	g.Resilient = res
	return nil
}

func parseTimer(s string) (nexthop.Ticks, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return nexthop.TimerFromSeconds(v)
}
