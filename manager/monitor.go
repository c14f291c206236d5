package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/kernel"
)

// Event is one nexthop notification. Exactly one of Nexthop and Bucket
// is set.
type Event struct {
	Nexthop *nexthop.Nexthop
	Bucket  *nexthop.Bucket
}

// Monitor subscribes to nexthop notifications and calls fn for each one
// until ctx is cancelled or fn returns an error. Records that cannot be
// decoded are logged and dropped. Cancellation is a clean stop.
func (m *Manager) Monitor(ctx context.Context, fn func(Event) error) error {
	ctx = beginOp(ctx)

	sub, err := m.dialer.Subscribe(ctx, kernel.RTNLGRP_NEXTHOP)
	if err != nil {
		return fmt.Errorf("subscribe to nexthop notifications: %w", err)
	}
	defer sub.Close()

	m.logger.DebugContext(ctx, "monitoring nexthops")

	for {
		msgs, err := sub.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("receive notification: %w", err)
		}

		for _, msg := range msgs {
			var ev Event
			switch uint16(msg.Header.Type) {
			case kernel.RTM_NEWNEXTHOP, kernel.RTM_DELNEXTHOP:
				n, err := m.codec.DecodeNexthop(msg)
				if err != nil {
					m.logger.WarnContext(ctx, "dropping notification", "error", err)
					continue
				}
				ev.Nexthop = &n
			case kernel.RTM_NEWNEXTHOPBUCKET, kernel.RTM_DELNEXTHOPBUCKET:
				b, err := m.codec.DecodeBucket(msg)
				if err != nil {
					m.logger.WarnContext(ctx, "dropping notification", "error", err)
					continue
				}
				ev.Bucket = &b
			default:
				continue
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
	}
}
