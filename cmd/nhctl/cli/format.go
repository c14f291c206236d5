package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"k8s.io/client-go/util/jsonpath"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/kernel"
	"github.com/frobware/go-nexthop/manager"
)

// Printer renders nexthops and buckets in the selected output format.
type Printer struct {
	Output OutputFlags
	// Details shows scope and protocol even at their default value.
	Details   bool
	Links     interpreter.LinkResolver
	Protocols *nexthop.ProtocolTable
	UserHZ    uint32
}

type resilientJSON struct {
	Buckets         *uint16  `json:"buckets,omitempty"`
	IdleTimer       *float64 `json:"idle_timer,omitempty"`
	UnbalancedTimer *float64 `json:"unbalanced_timer,omitempty"`
	UnbalancedTime  *float64 `json:"unbalanced_time,omitempty"`
}

// memberJSON leaves Weight zero, and so absent, for the default weight.
type memberJSON struct {
	ID     nexthop.ID `json:"id"`
	Weight uint16     `json:"weight,omitempty"`
}

type nexthopJSON struct {
	Deleted     bool           `json:"deleted,omitempty"`
	ID          nexthop.ID     `json:"id"`
	Group       []memberJSON   `json:"group,omitempty"`
	Type        string         `json:"type,omitempty"`
	Resilient   *resilientJSON `json:"resilient_args,omitempty"`
	Encap       string         `json:"encap,omitempty"`
	Dst         string         `json:"dst,omitempty"`
	Gateway     string         `json:"gateway,omitempty"`
	Dev         string         `json:"dev,omitempty"`
	Scope       string         `json:"scope,omitempty"`
	Blackhole   bool           `json:"blackhole,omitempty"`
	Unreachable bool           `json:"unreachable,omitempty"`
	Prohibit    bool           `json:"prohibit,omitempty"`
	Protocol    string         `json:"protocol,omitempty"`
	Flags       []string       `json:"flags,omitempty"`
	FDB         bool           `json:"fdb,omitempty"`
}

type bucketInfoJSON struct {
	Index     uint16     `json:"index"`
	IdleTime  *float64   `json:"idle_time,omitempty"`
	NexthopID nexthop.ID `json:"nhid"`
}

type bucketJSON struct {
	Deleted bool           `json:"deleted,omitempty"`
	ID      nexthop.ID     `json:"id"`
	Bucket  bucketInfoJSON `json:"bucket"`
	Flags   []string       `json:"flags,omitempty"`
}

// Nexthops renders a list of nexthops.
func (p *Printer) Nexthops(nhs []nexthop.Nexthop) (string, error) {
	if p.Output.Format() == OutputFormatTable {
		var b strings.Builder
		for _, n := range nhs {
			b.WriteString(p.nexthopLine(n))
			b.WriteByte('\n')
		}
		return b.String(), nil
	}

	views := make([]nexthopJSON, 0, len(nhs))
	for _, n := range nhs {
		views = append(views, p.nexthopView(n))
	}
	return p.structured(views, true)
}

// Buckets renders a list of buckets.
func (p *Printer) Buckets(buckets []nexthop.Bucket) (string, error) {
	if p.Output.Format() == OutputFormatTable {
		var b strings.Builder
		for _, bk := range buckets {
			b.WriteString(p.bucketLine(bk))
			b.WriteByte('\n')
		}
		return b.String(), nil
	}

	views := make([]bucketJSON, 0, len(buckets))
	for _, bk := range buckets {
		views = append(views, p.bucketView(bk))
	}
	return p.structured(views, true)
}

// Event renders one monitor notification on a single line.
func (p *Printer) Event(ev manager.Event) (string, error) {
	var (
		line string
		view any
	)
	switch {
	case ev.Nexthop != nil:
		line, view = p.nexthopLine(*ev.Nexthop), p.nexthopView(*ev.Nexthop)
	case ev.Bucket != nil:
		line, view = p.bucketLine(*ev.Bucket), p.bucketView(*ev.Bucket)
	default:
		return "", nil
	}

	if p.Output.Format() == OutputFormatTable {
		return line + "\n", nil
	}
	return p.structured(view, false)
}

// structured renders v as JSON or through the jsonpath expression.
func (p *Printer) structured(v any, indent bool) (string, error) {
	if p.Output.Format() == OutputFormatJSONPath {
		return formatJSONPath(v, p.Output.JSONPathExpr())
	}

	var (
		output []byte
		err    error
	)
	if indent {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	// jsonpath walks generic values, not tagged structs.
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

func (p *Printer) devName(ifindex uint32) string {
	if p.Links != nil {
		if name, err := p.Links.NameByIndex(ifindex); err == nil && name != "" {
			return name
		}
	}
	return "if" + strconv.FormatUint(uint64(ifindex), 10)
}

func (p *Printer) protocolName(proto nexthop.Protocol) string {
	if p.Protocols == nil {
		return strconv.Itoa(int(proto))
	}
	return p.Protocols.Name(proto)
}

func (p *Printer) showScope(n nexthop.Nexthop) bool {
	return n.Scope != kernel.RT_SCOPE_UNIVERSE || p.Details
}

func (p *Printer) showProtocol(n nexthop.Nexthop) bool {
	return n.Protocol != kernel.RTPROT_UNSPEC || p.Details
}

func (p *Printer) seconds(t nexthop.Ticks) string {
	return t.Seconds(p.UserHZ)
}

func (p *Printer) secondsValue(t *nexthop.Ticks) *float64 {
	if t == nil {
		return nil
	}
	v := t.Duration(p.UserHZ).Seconds()
	return &v
}

func (p *Printer) nexthopLine(n nexthop.Nexthop) string {
	var f []string

	if n.Deleted {
		f = append(f, "Deleted")
	}
	f = append(f, "id", n.ID.String())

	if g := n.Group; g != nil {
		f = append(f, "group", g.String())
		if g.Type != nexthop.GroupTypeMultipath {
			f = append(f, "type", g.Type.String())
		}
		if r := g.Resilient; r != nil {
			if r.Buckets != nil {
				f = append(f, "buckets", strconv.Itoa(int(*r.Buckets)))
			}
			if r.IdleTimer != nil {
				f = append(f, "idle_timer", p.seconds(*r.IdleTimer))
			}
			if r.UnbalancedTimer != nil {
				f = append(f, "unbalanced_timer", p.seconds(*r.UnbalancedTimer))
			}
			if r.UnbalancedTime != nil {
				f = append(f, "unbalanced_time", p.seconds(*r.UnbalancedTime))
			}
		}
	}
	if n.Encap != nil {
		f = append(f, codec.FormatEncap(n.Encap))
	}
	if n.Gateway.IsValid() {
		f = append(f, "via", n.Gateway.String())
	}
	if n.Ifindex != 0 {
		f = append(f, "dev", p.devName(n.Ifindex))
	}
	if p.showScope(n) {
		f = append(f, "scope", n.Scope.String())
	}
	switch n.Action {
	case nexthop.ActionBlackhole, nexthop.ActionUnreachable, nexthop.ActionProhibit:
		f = append(f, n.Action.String())
	}
	if p.showProtocol(n) {
		f = append(f, "proto", p.protocolName(n.Protocol))
	}
	f = append(f, n.Flags.Names()...)
	if n.FDB {
		f = append(f, "fdb")
	}

	return strings.Join(f, " ")
}

func (p *Printer) nexthopView(n nexthop.Nexthop) nexthopJSON {
	v := nexthopJSON{
		Deleted:     n.Deleted,
		ID:          n.ID,
		Blackhole:   n.Action == nexthop.ActionBlackhole,
		Unreachable: n.Action == nexthop.ActionUnreachable,
		Prohibit:    n.Action == nexthop.ActionProhibit,
		Flags:       n.Flags.Names(),
		FDB:         n.FDB,
	}

	if g := n.Group; g != nil {
		v.Group = make([]memberJSON, 0, len(g.Members))
		for _, m := range g.Members {
			mv := memberJSON{ID: m.ID}
			if m.Weight > nexthop.MinWeight {
				mv.Weight = m.Weight
			}
			v.Group = append(v.Group, mv)
		}
		if g.Type != nexthop.GroupTypeMultipath {
			v.Type = g.Type.String()
		}
		if r := g.Resilient; r != nil {
			v.Resilient = &resilientJSON{
				Buckets:         r.Buckets,
				IdleTimer:       p.secondsValue(r.IdleTimer),
				UnbalancedTimer: p.secondsValue(r.UnbalancedTimer),
				UnbalancedTime:  p.secondsValue(r.UnbalancedTime),
			}
		}
	}
	if n.Encap != nil {
		v.Encap = codec.EncapName(n.Encap.Type)
		if labels, err := codec.EncapLabels(n.Encap); err == nil {
			parts := make([]string, len(labels))
			for i, l := range labels {
				parts[i] = strconv.Itoa(l)
			}
			v.Dst = strings.Join(parts, "/")
		}
	}
	if n.Gateway.IsValid() {
		v.Gateway = n.Gateway.String()
	}
	if n.Ifindex != 0 {
		v.Dev = p.devName(n.Ifindex)
	}
	if p.showScope(n) {
		v.Scope = n.Scope.String()
	}
	if p.showProtocol(n) {
		v.Protocol = p.protocolName(n.Protocol)
	}
	return v
}

func (p *Printer) bucketLine(b nexthop.Bucket) string {
	var f []string

	if b.Deleted {
		f = append(f, "Deleted")
	}
	f = append(f, "id", b.GroupID.String(), "index", strconv.Itoa(int(b.Index)))
	if b.HasIdleTime {
		f = append(f, "idle_time", p.seconds(b.IdleTime))
	}
	f = append(f, "nhid", b.NexthopID.String())
	f = append(f, b.Flags.Names()...)

	return strings.Join(f, " ")
}

func (p *Printer) bucketView(b nexthop.Bucket) bucketJSON {
	v := bucketJSON{
		Deleted: b.Deleted,
		ID:      b.GroupID,
		Bucket: bucketInfoJSON{
			Index:     b.Index,
			NexthopID: b.NexthopID,
		},
		Flags: b.Flags.Names(),
	}
	if b.HasIdleTime {
		idle := b.IdleTime
		v.Bucket.IdleTime = p.secondsValue(&idle)
	}
	return v
}

// FlushResult renders the outcome of a flush.
func (p *Printer) FlushResult(res manager.FlushResult) (string, error) {
	if p.Output.Format() == OutputFormatTable {
		return res.String() + "\n", nil
	}
	return p.structured(res, true)
}
