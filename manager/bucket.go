package manager

import (
	"context"
	"fmt"

	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/interpreter"
)

// BucketList dumps the buckets of resilient groups. sel.ID narrows the
// dump to one group and sel.BucketNexthop to buckets holding one member.
// Buckets decoded before a failure are returned with the error.
func (m *Manager) BucketList(ctx context.Context, family nexthop.Family, sel nexthop.Selector) ([]nexthop.Bucket, error) {
	ctx = beginOp(ctx)

	req, err := m.codec.DumpBuckets(family, codec.BucketFilter(sel))
	if err != nil {
		return nil, err
	}

	var buckets []nexthop.Bucket
	err = m.withTransport(ctx, func(t interpreter.Transport) error {
		return t.Dump(ctx, req, func(msg netlink.Message) error {
			b, err := m.codec.DecodeBucket(msg)
			if err != nil {
				return err
			}
			buckets = append(buckets, b)
			return nil
		})
	})
	if err != nil {
		return buckets, fmt.Errorf("dump nexthop buckets: %w", err)
	}

	m.logger.DebugContext(ctx, "listed buckets", "count", len(buckets), "group", sel.ID)
	return buckets, nil
}

// BucketGet fetches one bucket of a resilient group.
func (m *Manager) BucketGet(ctx context.Context, group nexthop.ID, index uint16, family nexthop.Family) (nexthop.Bucket, error) {
	ctx = beginOp(ctx)

	req, err := m.codec.GetBucket(group, index, family)
	if err != nil {
		return nexthop.Bucket{}, err
	}

	var b nexthop.Bucket
	err = m.withTransport(ctx, func(t interpreter.Transport) error {
		msgs, err := t.Execute(ctx, req)
		if err != nil {
			return fmt.Errorf("get bucket %d of group %d: %w", index, group, err)
		}
		if len(msgs) == 0 {
			return fmt.Errorf("get bucket %d of group %d: %w", index, group, ErrNotFound)
		}
		b, err = m.codec.DecodeBucket(msgs[0])
		return err
	})
	return b, err
}
