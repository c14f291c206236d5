package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/compute"
	"github.com/frobware/go-nexthop/interpreter"
)

// FlushState is the position of a flush in its pass sequence.
type FlushState int

const (
	FlushIdle FlushState = iota
	// FlushPurgeGroups deletes group nexthops only. A flush of
	// everything starts here.
	FlushPurgeGroups
	// FlushPurgeSingles deletes what the group pass left behind.
	FlushPurgeSingles
	// FlushPurgeSelected is the single pass of a narrowed flush.
	FlushPurgeSelected
	FlushDone
)

func (s FlushState) String() string {
	switch s {
	case FlushIdle:
		return "idle"
	case FlushPurgeGroups:
		return "purge-groups"
	case FlushPurgeSingles:
		return "purge-singles"
	case FlushPurgeSelected:
		return "purge-selected"
	case FlushDone:
		return "done"
	default:
		return fmt.Sprintf("FlushState(%d)", int(s))
	}
}

// FlushResult summarises a flush. It is valid even when Flush returns
// an error: deletions completed before the failure stay counted.
type FlushResult struct {
	// Flushed counts successful deletes.
	Flushed int `json:"flushed"`
	// Skipped counts deletes the kernel refused. They do not fail the
	// flush.
	Skipped int `json:"skipped"`
	// Passes counts the dump passes that ran to completion.
	Passes int `json:"passes"`
}

// String renders the report printed after a flush.
func (r FlushResult) String() string {
	if r.Flushed == 0 {
		return "Nothing to flush"
	}
	return fmt.Sprintf("Flushed %d nexthops", r.Flushed)
}

// flushOrchestrator runs the passes of one flush. Records are dumped on
// one transport and deleted one at a time on another, from inside the
// dump callback.
type flushOrchestrator struct {
	m      *Manager
	family nexthop.Family
	passes []compute.FlushPass
	dump   interpreter.Transport
	del    interpreter.ActionExecutor
	logger *slog.Logger

	state  FlushState
	result FlushResult
}

// Flush deletes the nexthops selected by sel. When all is set (no
// selector was given on the command line) groups are removed in a first
// pass before everything else.
func (m *Manager) Flush(ctx context.Context, family nexthop.Family, sel nexthop.Selector, all bool) (FlushResult, error) {
	ctx = beginOp(ctx)

	dump, err := m.dialer.Dial(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	defer dump.Close()

	del, err := m.dialer.Dial(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	defer del.Close()

	o := &flushOrchestrator{
		m:      m,
		family: family,
		passes: compute.FlushPasses(sel, all),
		dump:   dump,
		del:    interpreter.NewExecutor(m.codec, del),
		logger: m.logger.With("component", "flush"),
		state:  FlushIdle,
	}
	err = o.run(ctx)
	return o.result, err
}

func (o *flushOrchestrator) run(ctx context.Context) error {
	for _, pass := range o.passes {
		o.transition(ctx, stateFor(pass.Phase))
		if err := o.purge(ctx, pass.Selector); err != nil {
			o.logger.WarnContext(ctx, "flush pass aborted",
				"state", o.state, "flushed", o.result.Flushed, "error", err)
			return fmt.Errorf("dump terminated, failed to flush nexthops: %w", err)
		}
		o.result.Passes++
	}
	o.transition(ctx, FlushDone)
	o.logger.DebugContext(ctx, "flush complete",
		"flushed", o.result.Flushed, "skipped", o.result.Skipped, "passes", o.result.Passes)
	return nil
}

func (o *flushOrchestrator) transition(ctx context.Context, next FlushState) {
	o.logger.DebugContext(ctx, "flush state", "from", o.state, "to", next)
	o.state = next
}

func stateFor(p compute.FlushPhase) FlushState {
	switch p {
	case compute.PhaseGroups:
		return FlushPurgeGroups
	case compute.PhaseSingles:
		return FlushPurgeSingles
	default:
		return FlushPurgeSelected
	}
}

// purge runs one dump and deletes every selected record it yields.
func (o *flushOrchestrator) purge(ctx context.Context, sel nexthop.Selector) error {
	c := o.m.codec
	req, err := c.DumpNexthops(o.family, codec.NexthopFilter(sel))
	if err != nil {
		return err
	}

	return o.dump.Dump(ctx, req, func(msg netlink.Message) error {
		n, err := c.DecodeNexthop(msg)
		if err != nil {
			return err
		}
		a, ok := compute.FlushAction(n, sel)
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.del.Execute(ctx, a); err != nil {
			o.result.Skipped++
			o.logger.DebugContext(ctx, "delete failed, skipping", "id", n.ID, "error", err)
			return nil
		}
		o.result.Flushed++
		o.logger.DebugContext(ctx, "deleted", "id", n.ID, "state", o.state)
		return nil
	})
}
