package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nltest"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/cmd/nhctl/cli"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/interpreter/rtnl"
	"github.com/frobware/go-nexthop/kernel"
)

// fakeLinks resolves a fixed set of devices.
type fakeLinks struct {
	byName map[string]uint32
	vrfs   map[uint32]bool
}

func newFakeLinks() fakeLinks {
	return fakeLinks{
		byName: map[string]uint32{"lo": 1, "eth0": 2, "eth1": 3, "blue": 10},
		vrfs:   map[uint32]bool{10: true},
	}
}

func (l fakeLinks) IndexByName(name string) (uint32, error) {
	if idx, ok := l.byName[name]; ok {
		return idx, nil
	}
	return 0, fmt.Errorf("link %q not found", name)
}

func (l fakeLinks) NameByIndex(index uint32) (string, error) {
	for name, idx := range l.byName {
		if idx == index {
			return name, nil
		}
	}
	return "", fmt.Errorf("link %d not found", index)
}

func (l fakeLinks) IsVRF(index uint32) (bool, error) {
	return l.vrfs[index], nil
}

var _ interpreter.LinkResolver = fakeLinks{}

// fakeKernel answers rtnetlink requests from an in-memory nexthop table.
// Every Dial returns a real rtnl.Conn over an nltest socket.
type fakeKernel struct {
	mu       sync.Mutex
	codec    *codec.Codec
	nexthops map[nexthop.ID]nexthop.Nexthop
	buckets  []nexthop.Bucket
	requests []uint16

	// masters maps a device index to the index of its VRF.
	masters map[uint32]uint32
	// malformedAfter injects an undecodable record into nexthop dumps
	// after that many good records when non-negative.
	malformedAfter int
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		codec:          codec.New(codec.WithLogger(discard())),
		nexthops:       make(map[nexthop.ID]nexthop.Nexthop),
		masters:        make(map[uint32]uint32),
		malformedAfter: -1,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (k *fakeKernel) seed(nhs ...nexthop.Nexthop) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, n := range nhs {
		k.nexthops[n.ID] = n
	}
}

func (k *fakeKernel) ids() []nexthop.ID {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]nexthop.ID, 0, len(k.nexthops))
	for id := range k.nexthops {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k *fakeKernel) Dial(context.Context) (interpreter.Transport, error) {
	return rtnl.NewConn(nltest.Dial(k.handle), discard()), nil
}

func (k *fakeKernel) Subscribe(context.Context, ...uint32) (interpreter.Subscription, error) {
	return nil, errors.New("notifications are not supported by the fake kernel")
}

var _ interpreter.Dialer = (*fakeKernel)(nil)

func (k *fakeKernel) handle(reqs []netlink.Message) ([]netlink.Message, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	req := reqs[0]
	k.requests = append(k.requests, uint16(req.Header.Type))

	switch req.Header.Type {
	case kernel.RTM_NEWNEXTHOP:
		n, err := k.codec.DecodeNexthop(req)
		if err != nil {
			return nltest.Error(int(unix.EINVAL), reqs)
		}
		if _, exists := k.nexthops[n.ID]; exists && req.Header.Flags&netlink.Excl != 0 {
			return nltest.Error(int(unix.EEXIST), reqs)
		}
		k.nexthops[n.ID] = n
		return nltest.Error(0, reqs)

	case kernel.RTM_DELNEXTHOP:
		id, ok := requestID(req)
		if _, exists := k.nexthops[id]; !ok || !exists {
			return nltest.Error(int(unix.ENOENT), reqs)
		}
		delete(k.nexthops, id)
		return nltest.Error(0, reqs)

	case kernel.RTM_GETNEXTHOP:
		if req.Header.Flags&netlink.Dump == 0 {
			id, _ := requestID(req)
			n, ok := k.nexthops[id]
			if !ok {
				return nltest.Error(int(unix.ENOENT), reqs)
			}
			return k.records(req, []nexthop.Nexthop{n})
		}
		f, err := parseDumpFilter(req)
		if err != nil {
			return nltest.Error(int(unix.EINVAL), reqs)
		}
		nhs := make([]nexthop.Nexthop, 0, len(k.nexthops))
		for _, n := range k.nexthops {
			if k.match(f, n) {
				nhs = append(nhs, n)
			}
		}
		sort.Slice(nhs, func(i, j int) bool { return nhs[i].ID < nhs[j].ID })
		msgs, err := k.records(req, nhs)
		if err != nil {
			return nil, err
		}
		if k.malformedAfter >= 0 && k.malformedAfter <= len(msgs) {
			bad, err := malformedRecord(req)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs[:k.malformedAfter], append([]netlink.Message{bad}, msgs[k.malformedAfter:]...)...)
		}
		return multipart(req, msgs), nil

	case kernel.RTM_GETNEXTHOPBUCKET:
		var msgs []netlink.Message
		for _, b := range k.buckets {
			m, err := bucketRecord(req, b)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
		}
		return multipart(req, msgs), nil
	}

	return nltest.Error(int(unix.EOPNOTSUPP), reqs)
}

// dumpFilter is the kernel-side view of a nexthop dump request.
type dumpFilter struct {
	oif, master uint32
	groups, fdb bool
}

func parseDumpFilter(req netlink.Message) (dumpFilter, error) {
	var f dumpFilter
	if len(req.Data) < kernel.SizeofNhmsg {
		return f, errors.New("short request")
	}
	ad, err := netlink.NewAttributeDecoder(req.Data[kernel.SizeofNhmsg:])
	if err != nil {
		return f, err
	}
	for ad.Next() {
		switch ad.Type() {
		case kernel.NHA_OIF:
			f.oif = ad.Uint32()
		case kernel.NHA_MASTER:
			f.master = ad.Uint32()
		case kernel.NHA_GROUPS:
			f.groups = true
		case kernel.NHA_FDB:
			f.fdb = true
		}
	}
	return f, ad.Err()
}

func (k *fakeKernel) match(f dumpFilter, n nexthop.Nexthop) bool {
	if f.groups && !n.IsGroup() {
		return false
	}
	if f.fdb && !n.FDB {
		return false
	}
	if f.oif != 0 && n.Ifindex != f.oif {
		return false
	}
	if f.master != 0 && k.masters[n.Ifindex] != f.master {
		return false
	}
	return true
}

// malformedRecord is a group record whose member array is truncated.
func malformedRecord(req netlink.Message) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, 999)
	ae.Bytes(kernel.NHA_GROUP, make([]byte, 5))
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}
	hdr, err := kernel.Nhmsg{Family: unix.AF_INET}.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}
	return netlink.Message{
		Header: netlink.Header{
			Type:     kernel.RTM_NEWNEXTHOP,
			Sequence: req.Header.Sequence,
			PID:      req.Header.PID,
		},
		Data: append(hdr, attrs...),
	}, nil
}

func (k *fakeKernel) records(req netlink.Message, nhs []nexthop.Nexthop) ([]netlink.Message, error) {
	msgs := make([]netlink.Message, 0, len(nhs))
	for _, n := range nhs {
		m, err := k.codec.NewNexthop(n, 0)
		if err != nil {
			return nil, err
		}
		m.Header = netlink.Header{
			Type:     kernel.RTM_NEWNEXTHOP,
			Sequence: req.Header.Sequence,
			PID:      req.Header.PID,
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func bucketRecord(req netlink.Message, b nexthop.Bucket) (netlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, uint32(b.GroupID))
	ae.Nested(kernel.NHA_RES_BUCKET, func(nae *netlink.AttributeEncoder) error {
		nae.Uint16(kernel.NHA_RES_BUCKET_INDEX, b.Index)
		nae.Uint64(kernel.NHA_RES_BUCKET_IDLE_TIME, uint64(b.IdleTime))
		nae.Uint32(kernel.NHA_RES_BUCKET_NH_ID, uint32(b.NexthopID))
		return nil
	})
	attrs, err := ae.Encode()
	if err != nil {
		return netlink.Message{}, err
	}
	hdr, err := kernel.Nhmsg{Family: unix.AF_INET}.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}
	return netlink.Message{
		Header: netlink.Header{
			Type:     kernel.RTM_NEWNEXTHOPBUCKET,
			Sequence: req.Header.Sequence,
			PID:      req.Header.PID,
		},
		Data: append(hdr, attrs...),
	}, nil
}

// multipart marks msgs as a multipart reply and terminates it.
func multipart(req netlink.Message, msgs []netlink.Message) []netlink.Message {
	for i := range msgs {
		msgs[i].Header.Flags |= netlink.Multi
	}
	return append(msgs, netlink.Message{Header: netlink.Header{
		Type:     netlink.Done,
		Flags:    netlink.Multi,
		Sequence: req.Header.Sequence,
		PID:      req.Header.PID,
	}})
}

func requestID(req netlink.Message) (nexthop.ID, bool) {
	if len(req.Data) < kernel.SizeofNhmsg {
		return 0, false
	}
	ad, err := netlink.NewAttributeDecoder(req.Data[kernel.SizeofNhmsg:])
	if err != nil {
		return 0, false
	}
	for ad.Next() {
		if ad.Type() == kernel.NHA_ID {
			return nexthop.ID(ad.Uint32()), true
		}
	}
	return 0, false
}

// result is what one nhctl invocation printed and returned.
type result struct {
	Code   int
	Stdout string
	Stderr string
}

// run executes nhctl with args against k. The config file does not exist,
// so built-in defaults apply.
func run(t *testing.T, k *fakeKernel, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	c := &cli.CLI{
		Out:    &stdout,
		Err:    &stderr,
		Dialer: k,
		Links:  newFakeLinks(),
	}

	cfg := filepath.Join(t.TempDir(), "nhctl.toml")
	code := c.Execute(context.Background(), append([]string{"--config", cfg}, args...))
	return result{Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
}
