package nexthop

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/frobware/go-nexthop/kernel"
)

// Protocol identifies the owner of a nexthop (nhmsg.nh_protocol).
type Protocol uint8

// Scope is the route scope of a nexthop (nhmsg.nh_scope).
type Scope uint8

// Flags is the RTNH_F_* bit set of a nexthop (nhmsg.nh_flags).
type Flags uint32

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

var flagNames = []struct {
	bit  Flags
	name string
}{
	{kernel.RTNH_F_DEAD, "dead"},
	{kernel.RTNH_F_ONLINK, "onlink"},
	{kernel.RTNH_F_PERVASIVE, "pervasive"},
	{kernel.RTNH_F_OFFLOAD, "offload"},
	{kernel.RTNH_F_TRAP, "trap"},
	{kernel.RTNH_F_LINKDOWN, "linkdown"},
	{kernel.RTNH_F_UNRESOLVED, "unresolved"},
}

// Names returns the names of the set flags in display order.
func (f Flags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

var scopeNames = map[Scope]string{
	kernel.RT_SCOPE_UNIVERSE: "global",
	kernel.RT_SCOPE_SITE:     "site",
	kernel.RT_SCOPE_LINK:     "link",
	kernel.RT_SCOPE_HOST:     "host",
	kernel.RT_SCOPE_NOWHERE:  "nowhere",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// ProtocolTable maps protocol numbers to names and back. The zero value
// is not usable; use NewProtocolTable or LoadProtocolTable.
type ProtocolTable struct {
	byID   map[Protocol]string
	byName map[string]Protocol
}

var builtinProtocols = map[Protocol]string{
	0:   "unspec",
	1:   "redirect",
	2:   "kernel",
	3:   "boot",
	4:   "static",
	8:   "gated",
	9:   "ra",
	10:  "mrt",
	11:  "zebra",
	12:  "bird",
	13:  "dnrouted",
	14:  "xorp",
	15:  "ntk",
	16:  "dhcp",
	17:  "mrouted",
	18:  "keepalived",
	42:  "babel",
	99:  "openr",
	186: "bgp",
	187: "isis",
	188: "ospf",
	189: "rip",
	192: "eigrp",
}

// NewProtocolTable returns a table holding the built-in protocol names.
func NewProtocolTable() *ProtocolTable {
	t := &ProtocolTable{
		byID:   make(map[Protocol]string, len(builtinProtocols)),
		byName: make(map[string]Protocol, len(builtinProtocols)),
	}
	for id, name := range builtinProtocols {
		t.add(id, name)
	}
	return t
}

// LoadProtocolTable returns the built-in names overlaid with dir/rt_protos
// and every dir/rt_protos.d/*.conf. Missing files are not an error.
func LoadProtocolTable(dir string) (*ProtocolTable, error) {
	t := NewProtocolTable()
	if dir == "" {
		return t, nil
	}

	files := []string{filepath.Join(dir, "rt_protos")}
	extra, err := filepath.Glob(filepath.Join(dir, "rt_protos.d", "*.conf"))
	if err != nil {
		return nil, err
	}
	sort.Strings(extra)
	files = append(files, extra...)

	for _, path := range files {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		err = t.Read(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return t, nil
}

// Read adds "number name" lines from r. Blank lines and # comments are
// skipped.
func (t *ProtocolTable) Read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return fmt.Errorf("line %d: expected \"number name\"", line)
		}
		id, err := strconv.ParseUint(fields[0], 0, 8)
		if err != nil {
			return fmt.Errorf("line %d: invalid protocol number %q", line, fields[0])
		}
		t.add(Protocol(id), fields[1])
	}
	return sc.Err()
}

func (t *ProtocolTable) add(id Protocol, name string) {
	if old, ok := t.byID[id]; ok {
		delete(t.byName, old)
	}
	t.byID[id] = name
	t.byName[name] = id
}

// Name returns the name of p, or its number when it has none.
func (t *ProtocolTable) Name(p Protocol) string {
	if name, ok := t.byID[p]; ok {
		return name
	}
	return strconv.Itoa(int(p))
}

// Parse accepts a protocol name or number.
func (t *ProtocolTable) Parse(s string) (Protocol, error) {
	if p, ok := t.byName[s]; ok {
		return p, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, &UsageError{Arg: s, Reason: `"protocol" value is invalid`}
	}
	return Protocol(v), nil
}
