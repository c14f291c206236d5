package manager_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
	"github.com/frobware/go-nexthop/kernel"
	"github.com/frobware/go-nexthop/manager"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set NHCTL_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("NHCTL_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// kernelOp records one request seen by the fake kernel.
type kernelOp struct {
	Op        string
	ID        nexthop.ID
	Transport int
	Err       error
}

// fakeKernel is an in-memory nexthop table that speaks the request
// encoding produced by package codec. Like the real kernel it refuses
// to delete a nexthop that a group still references.
type fakeKernel struct {
	mu sync.Mutex

	codec    *codec.Codec
	nexthops map[nexthop.ID]nexthop.Nexthop
	order    []nexthop.ID
	buckets  []nexthop.Bucket

	ops   []kernelOp
	dials int

	// malformedAfter injects an undecodable record into nexthop and
	// bucket dumps after that many good records when non-negative.
	malformedAfter int
	// failDelete makes deletes of the given ids fail.
	failDelete map[nexthop.ID]unix.Errno

	notifications [][]netlink.Message
}

var _ interpreter.Dialer = (*fakeKernel)(nil)

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		codec:          codec.New(codec.WithLogger(testLogger())),
		nexthops:       make(map[nexthop.ID]nexthop.Nexthop),
		malformedAfter: -1,
		failDelete:     make(map[nexthop.ID]unix.Errno),
	}
}

func (k *fakeKernel) Dial(ctx context.Context) (interpreter.Transport, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dials++
	return &fakeTransport{k: k, id: k.dials}, nil
}

func (k *fakeKernel) Subscribe(ctx context.Context, groups ...uint32) (interpreter.Subscription, error) {
	if len(groups) != 1 || groups[0] != kernel.RTNLGRP_NEXTHOP {
		return nil, fmt.Errorf("unexpected groups %v", groups)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return &fakeSubscription{batches: k.notifications}, nil
}

// seed installs nexthops directly, bypassing the request path.
func (k *fakeKernel) seed(nhs ...nexthop.Nexthop) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, n := range nhs {
		k.store(n)
	}
}

func (k *fakeKernel) store(n nexthop.Nexthop) {
	if _, ok := k.nexthops[n.ID]; !ok {
		k.order = append(k.order, n.ID)
	}
	k.nexthops[n.ID] = n
}

func (k *fakeKernel) record(op kernelOp) {
	k.ops = append(k.ops, op)
}

// Operations returns the recorded requests in order.
func (k *fakeKernel) Operations() []kernelOp {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]kernelOp(nil), k.ops...)
}

// IDs returns the installed ids in insertion order.
func (k *fakeKernel) IDs() []nexthop.ID {
	k.mu.Lock()
	defer k.mu.Unlock()
	var ids []nexthop.ID
	for _, id := range k.order {
		if _, ok := k.nexthops[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (k *fakeKernel) referenced(id nexthop.ID) bool {
	for _, n := range k.nexthops {
		if n.Group == nil {
			continue
		}
		for _, m := range n.Group.Members {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

func opError(errno unix.Errno) error {
	return &netlink.OpError{Op: "receive", Err: errno}
}

// toRecord encodes n the way the kernel reports it.
func (k *fakeKernel) toRecord(n nexthop.Nexthop) (netlink.Message, error) {
	msg, err := k.codec.NewNexthop(n, 0)
	if err != nil {
		return netlink.Message{}, err
	}
	msg.Header.Type = kernel.RTM_NEWNEXTHOP
	msg.Header.Flags = netlink.Multi
	return msg, nil
}

func (k *fakeKernel) bucketRecord(b nexthop.Bucket) (netlink.Message, error) {
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
	hdr, _ := kernel.Nhmsg{}.MarshalBinary()
	return netlink.Message{
		Header: netlink.Header{Type: kernel.RTM_NEWNEXTHOPBUCKET},
		Data:   append(hdr, attrs...),
	}, nil
}

// malformedRecord is a group record whose member array is truncated.
func malformedRecord() netlink.Message {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(kernel.NHA_ID, 999)
	ae.Bytes(kernel.NHA_GROUP, make([]byte, 5))
	attrs, _ := ae.Encode()
	hdr, _ := kernel.Nhmsg{}.MarshalBinary()
	return netlink.Message{
		Header: netlink.Header{Type: kernel.RTM_NEWNEXTHOP},
		Data:   append(hdr, attrs...),
	}
}

// dumpFilter is the kernel-side view of a dump request.
type dumpFilter struct {
	oif, master uint32
	groups, fdb bool
	id, nhid    uint32
	index       *uint16
}

func parseRequest(req netlink.Message) (dumpFilter, error) {
	var f dumpFilter
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
		case kernel.NHA_ID:
			f.id = ad.Uint32()
		case kernel.NHA_RES_BUCKET:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					switch nad.Type() {
					case kernel.NHA_RES_BUCKET_NH_ID:
						f.nhid = nad.Uint32()
					case kernel.NHA_RES_BUCKET_INDEX:
						v := nad.Uint16()
						f.index = &v
					}
				}
				return nil
			})
		}
	}
	return f, ad.Err()
}

func (f dumpFilter) match(n nexthop.Nexthop) bool {
	if f.groups && !n.IsGroup() {
		return false
	}
	if f.fdb && !n.FDB {
		return false
	}
	if f.oif != 0 && n.Ifindex != f.oif {
		return false
	}
	return true
}

type fakeTransport struct {
	k      *fakeKernel
	id     int
	closed bool
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

func (t *fakeTransport) Execute(ctx context.Context, req netlink.Message) ([]netlink.Message, error) {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()

	switch uint16(req.Header.Type) {
	case kernel.RTM_NEWNEXTHOP:
		n, err := k.codec.DecodeNexthop(req)
		if err != nil {
			return nil, err
		}
		_, exists := k.nexthops[n.ID]
		var opErr error
		switch {
		case exists && req.Header.Flags&netlink.Excl != 0:
			opErr = opError(unix.EEXIST)
		case n.IsGroup() && !k.membersExist(n.Group):
			opErr = opError(unix.EINVAL)
		}
		op := "add"
		if req.Header.Flags&netlink.Replace != 0 {
			op = "replace"
		}
		k.record(kernelOp{Op: op, ID: n.ID, Transport: t.id, Err: opErr})
		if opErr != nil {
			return nil, opErr
		}
		k.store(n)
		return nil, nil

	case kernel.RTM_DELNEXTHOP:
		n, err := k.codec.DecodeNexthop(req)
		if err != nil {
			return nil, err
		}
		var opErr error
		_, exists := k.nexthops[n.ID]
		switch {
		case !exists:
			opErr = opError(unix.ENOENT)
		case k.failDelete[n.ID] != 0:
			opErr = opError(k.failDelete[n.ID])
		case k.referenced(n.ID):
			opErr = opError(unix.EBUSY)
		}
		k.record(kernelOp{Op: "delete", ID: n.ID, Transport: t.id, Err: opErr})
		if opErr != nil {
			return nil, opErr
		}
		delete(k.nexthops, n.ID)
		return nil, nil

	case kernel.RTM_GETNEXTHOP:
		f, err := parseRequest(req)
		if err != nil {
			return nil, err
		}
		n, ok := k.nexthops[nexthop.ID(f.id)]
		if !ok {
			k.record(kernelOp{Op: "get", ID: nexthop.ID(f.id), Transport: t.id, Err: opError(unix.ENOENT)})
			return nil, opError(unix.ENOENT)
		}
		k.record(kernelOp{Op: "get", ID: n.ID, Transport: t.id})
		msg, err := k.toRecord(n)
		if err != nil {
			return nil, err
		}
		return []netlink.Message{msg}, nil

	case kernel.RTM_GETNEXTHOPBUCKET:
		f, err := parseRequest(req)
		if err != nil {
			return nil, err
		}
		for _, b := range k.buckets {
			if uint32(b.GroupID) == f.id && f.index != nil && b.Index == *f.index {
				msg, err := k.bucketRecord(b)
				if err != nil {
					return nil, err
				}
				return []netlink.Message{msg}, nil
			}
		}
		return nil, opError(unix.ENOENT)
	}

	return nil, opError(unix.EOPNOTSUPP)
}

func (k *fakeKernel) membersExist(g *nexthop.Group) bool {
	for _, m := range g.Members {
		if _, ok := k.nexthops[m.ID]; !ok {
			return false
		}
	}
	return true
}

// Dump snapshots the matching records under the lock and then calls fn
// without it, so that fn may issue deletes on another transport.
func (t *fakeTransport) Dump(ctx context.Context, req netlink.Message, fn func(netlink.Message) error) error {
	msgs, err := t.snapshot(req)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeTransport) snapshot(req netlink.Message) ([]netlink.Message, error) {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if req.Header.Flags&netlink.Dump == 0 {
		return nil, fmt.Errorf("dump request without dump flag")
	}
	f, err := parseRequest(req)
	if err != nil {
		return nil, err
	}

	var msgs []netlink.Message
	switch uint16(req.Header.Type) {
	case kernel.RTM_GETNEXTHOP:
		k.record(kernelOp{Op: dumpOpName(f), Transport: t.id})
		for _, id := range k.order {
			n, ok := k.nexthops[id]
			if !ok || !f.match(n) {
				continue
			}
			if k.malformedAfter == len(msgs) {
				msgs = append(msgs, malformedRecord())
			}
			msg, err := k.toRecord(n)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	case kernel.RTM_GETNEXTHOPBUCKET:
		k.record(kernelOp{Op: "dump-buckets", ID: nexthop.ID(f.id), Transport: t.id})
		for _, b := range k.buckets {
			if f.id != 0 && uint32(b.GroupID) != f.id {
				continue
			}
			if f.nhid != 0 && uint32(b.NexthopID) != f.nhid {
				continue
			}
			if k.malformedAfter == len(msgs) {
				msgs = append(msgs, malformedRecord())
			}
			msg, err := k.bucketRecord(b)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	default:
		return nil, opError(unix.EOPNOTSUPP)
	}
	return msgs, nil
}

func dumpOpName(f dumpFilter) string {
	if f.groups {
		return "dump-groups"
	}
	return "dump"
}

type fakeSubscription struct {
	batches [][]netlink.Message
}

func (s *fakeSubscription) Close() error { return nil }

func (s *fakeSubscription) Receive(ctx context.Context) ([]netlink.Message, error) {
	if len(s.batches) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

// testFixture provides access to all components for verification.
type testFixture struct {
	Manager *manager.Manager
	Kernel  *fakeKernel
	t       *testing.T
}

// newTestFixture creates a complete test fixture with accessible components.
func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	k := newFakeKernel()
	mgr := manager.New(codec.New(codec.WithLogger(testLogger())), k, testLogger())
	return &testFixture{
		Manager: mgr,
		Kernel:  k,
		t:       t,
	}
}

// AssertKernelEmpty verifies no nexthops remain in the kernel.
func (f *testFixture) AssertKernelEmpty() {
	f.t.Helper()
	assert.Empty(f.t, f.Kernel.IDs(), "expected no nexthops in kernel")
}

// AssertKernelOps verifies the sequence of kernel operations.
func (f *testFixture) AssertKernelOps(expected []string) {
	f.t.Helper()
	ops := f.Kernel.Operations()
	actual := make([]string, len(ops))
	for i, op := range ops {
		name := op.Op
		if op.ID != 0 {
			name = fmt.Sprintf("%s:%d", op.Op, op.ID)
		}
		if op.Err != nil {
			actual[i] = name + ":error"
		} else {
			actual[i] = name + ":ok"
		}
	}
	assert.Equal(f.t, expected, actual, "kernel operations mismatch")
}

func forward(id nexthop.ID, ifindex uint32) nexthop.Nexthop {
	return nexthop.Nexthop{ID: id, Family: nexthop.FamilyInet, Ifindex: ifindex, Scope: kernel.RT_SCOPE_LINK}
}

func group(id nexthop.ID, members ...nexthop.ID) nexthop.Nexthop {
	g := &nexthop.Group{}
	for _, m := range members {
		g.Members = append(g.Members, nexthop.GroupMember{ID: m, Weight: 1})
	}
	return nexthop.Nexthop{ID: id, Action: nexthop.ActionGroup, Group: g}
}
