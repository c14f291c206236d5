package cli_test

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/cmd/nhctl/cli"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/kernel"
	"github.com/frobware/go-nexthop/manager"
)

func newPrinter(output string) *cli.Printer {
	return &cli.Printer{
		Output:    cli.OutputFlags{Output: output},
		Links:     newFakeLinks(),
		Protocols: nexthop.NewProtocolTable(),
		UserHZ:    100,
	}
}

func ticks(v nexthop.Ticks) *nexthop.Ticks { return &v }

func resilientGroup() nexthop.Nexthop {
	buckets := uint16(8)
	return nexthop.Nexthop{
		ID:       20,
		Action:   nexthop.ActionGroup,
		Protocol: 4,
		Group: &nexthop.Group{
			Type:    nexthop.GroupTypeResilient,
			Members: []nexthop.GroupMember{{ID: 1, Weight: 1}, {ID: 2, Weight: 3}},
			Resilient: &nexthop.ResilientConfig{
				Buckets:         &buckets,
				IdleTimer:       ticks(12000),
				UnbalancedTimer: ticks(0),
				UnbalancedTime:  ticks(250),
			},
		},
	}
}

func TestPrinter_NexthopLines(t *testing.T) {
	mpls, err := codec.MPLSEncap([]int{100, 200})
	require.NoError(t, err)

	tests := []struct {
		name string
		n    nexthop.Nexthop
		want string
	}{
		{
			name: "gateway and device",
			n:    nexthop.Nexthop{ID: 1, Family: nexthop.FamilyInet, Gateway: netip.MustParseAddr("192.0.2.1"), Ifindex: 2},
			want: "id 1 via 192.0.2.1 dev eth0",
		},
		{
			name: "unknown device index",
			n:    nexthop.Nexthop{ID: 1, Ifindex: 99, Scope: kernel.RT_SCOPE_LINK},
			want: "id 1 dev if99 scope link",
		},
		{
			name: "deleted notification",
			n:    nexthop.Nexthop{ID: 4, Action: nexthop.ActionProhibit, Deleted: true},
			want: "Deleted id 4 prohibit",
		},
		{
			name: "unreachable",
			n:    nexthop.Nexthop{ID: 5, Action: nexthop.ActionUnreachable},
			want: "id 5 unreachable",
		},
		{
			name: "encap before via",
			n:    nexthop.Nexthop{ID: 6, Encap: mpls, Gateway: netip.MustParseAddr("192.0.2.1"), Ifindex: 3},
			want: "id 6 encap mpls 100/200 via 192.0.2.1 dev eth1",
		},
		{
			name: "flags and fdb",
			n:    nexthop.Nexthop{ID: 7, Gateway: netip.MustParseAddr("192.0.2.9"), Flags: kernel.RTNH_F_ONLINK | kernel.RTNH_F_DEAD, FDB: true},
			want: "id 7 via 192.0.2.9 dead onlink fdb",
		},
		{
			name: "resilient group",
			n:    resilientGroup(),
			want: "id 20 group 1/2,3 type resilient buckets 8 idle_timer 120 unbalanced_timer 0 unbalanced_time 2.5 proto static",
		},
		{
			name: "unnamed protocol",
			n:    nexthop.Nexthop{ID: 8, Action: nexthop.ActionBlackhole, Protocol: 250},
			want: "id 8 blackhole proto 250",
		},
	}

	p := newPrinter("table")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Nexthops([]nexthop.Nexthop{tt.n})
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", got)
		})
	}
}

func TestPrinter_NexthopJSON(t *testing.T) {
	out, err := newPrinter("json").Nexthops([]nexthop.Nexthop{resilientGroup()})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)

	v := got[0]
	assert.Equal(t, float64(20), v["id"])
	assert.Equal(t, "resilient", v["type"])
	assert.Equal(t, "static", v["protocol"])
	assert.Equal(t, []any{
		map[string]any{"id": float64(1)},
		map[string]any{"id": float64(2), "weight": float64(3)},
	}, v["group"])
	assert.Equal(t, map[string]any{
		"buckets":          float64(8),
		"idle_timer":       float64(120),
		"unbalanced_timer": float64(0),
		"unbalanced_time":  2.5,
	}, v["resilient_args"])
	assert.NotContains(t, v, "deleted")
	assert.NotContains(t, v, "blackhole")
}

func TestPrinter_JSONFlagsAndBooleans(t *testing.T) {
	n := nexthop.Nexthop{ID: 3, Action: nexthop.ActionBlackhole, Flags: kernel.RTNH_F_OFFLOAD, Deleted: true}

	out, err := newPrinter("json").Nexthops([]nexthop.Nexthop{n})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got[0]["deleted"])
	assert.Equal(t, true, got[0]["blackhole"])
	assert.Equal(t, []any{"offload"}, got[0]["flags"])
}

func TestPrinter_Buckets(t *testing.T) {
	buckets := []nexthop.Bucket{
		{GroupID: 10, Index: 0, IdleTime: 150, NexthopID: 1, HasIdleTime: true},
		{GroupID: 10, Index: 1, NexthopID: 2, Flags: kernel.RTNH_F_TRAP},
	}

	out, err := newPrinter("table").Buckets(buckets)
	require.NoError(t, err)
	assert.Equal(t, "id 10 index 0 idle_time 1.5 nhid 1\nid 10 index 1 nhid 2 trap\n", out)

	out, err = newPrinter("json").Buckets(buckets[:1])
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{
		"index":     float64(0),
		"idle_time": 1.5,
		"nhid":      float64(1),
	}, got[0]["bucket"])
}

func TestPrinter_Event(t *testing.T) {
	p := newPrinter("table")

	out, err := p.Event(manager.Event{Nexthop: &nexthop.Nexthop{ID: 1, Ifindex: 2, Scope: kernel.RT_SCOPE_LINK, Deleted: true}})
	require.NoError(t, err)
	assert.Equal(t, "Deleted id 1 dev eth0 scope link\n", out)

	out, err = p.Event(manager.Event{Bucket: &nexthop.Bucket{GroupID: 9, Index: 2, NexthopID: 3}})
	require.NoError(t, err)
	assert.Equal(t, "id 9 index 2 nhid 3\n", out)

	out, err = newPrinter("json").Event(manager.Event{Nexthop: &nexthop.Nexthop{ID: 1, Action: nexthop.ActionBlackhole}})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"blackhole":true}`+"\n", out)
}

func TestPrinter_JSONPathErrors(t *testing.T) {
	_, err := newPrinter("jsonpath={.items[").Nexthops(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jsonpath expression")
}

func TestPrinter_FlushResult(t *testing.T) {
	out, err := newPrinter("table").FlushResult(manager.FlushResult{Flushed: 3, Passes: 2})
	require.NoError(t, err)
	assert.Equal(t, "Flushed 3 nexthops\n", out)

	out, err = newPrinter("json").FlushResult(manager.FlushResult{Flushed: 3, Skipped: 1, Passes: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"flushed":3,"skipped":1,"passes":2}`, out)
}
